package scheduler

import "errors"

// Config holds the hardware parameters used for planning.
type Config struct {
	CapacityKWh float64 `json:"car_capacity_kwh" yaml:"car_capacity_kwh"`
	MaxFuseA    float64 `json:"max_fuse_a" yaml:"max_fuse_a"`
	ChargerMaxA float64 `json:"charger_max_current_a" yaml:"charger_max_current_a"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.CapacityKWh == 0 {
		c.CapacityKWh = 64
	}
	if c.MaxFuseA == 0 {
		c.MaxFuseA = 20
	}
	if c.ChargerMaxA == 0 {
		c.ChargerMaxA = 16
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.CapacityKWh <= 0 {
		return errors.New("car_capacity_kwh must be positive")
	}
	if c.MaxFuseA <= 0 {
		return errors.New("max_fuse_a must be positive")
	}
	if c.ChargerMaxA <= 0 {
		return errors.New("charger_max_current_a must be positive")
	}
	return nil
}

// PlanningCurrent is the best current assumed available for future slots.
func (c Config) PlanningCurrent() float64 {
	if c.ChargerMaxA < c.MaxFuseA {
		return c.ChargerMaxA
	}
	return c.MaxFuseA
}
