package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/learning"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/scheduler"
)

// Config is the charging section of the service configuration.
type Config struct {
	Planner scheduler.Config `json:"planner" yaml:"planner"`
	// ChargerLossPct seeds the learned loss before any verification.
	ChargerLossPct float64 `json:"charger_loss_pct" yaml:"charger_loss_pct"`
	RefreshMode    string  `json:"refresh_mode" yaml:"refresh_mode"`
	// CarRefreshTarget is the entity or device the car refresh is sent to.
	CarRefreshTarget string `json:"car_refresh_target" yaml:"car_refresh_target"`
	TickIntervalS    int    `json:"tick_interval_s" yaml:"tick_interval_s"`
	Currency         string `json:"currency" yaml:"currency"`
	CalendarHours    int    `json:"calendar_horizon_h" yaml:"calendar_horizon_h"`
	// Defaults seeds the user settings on first start.
	Defaults *model.UserSettings `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// SetDefaults applies defaults for unset fields.
func (c *Config) SetDefaults() {
	c.Planner.SetDefaults()
	if c.ChargerLossPct == 0 {
		c.ChargerLossPct = 10
	}
	if c.RefreshMode == "" {
		c.RefreshMode = string(learning.RefreshNever)
	}
	if c.TickIntervalS == 0 {
		c.TickIntervalS = 30
	}
	if c.Currency == "" {
		c.Currency = "SEK"
	}
	if c.CalendarHours == 0 {
		c.CalendarHours = 48
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	if c.ChargerLossPct < 0 || c.ChargerLossPct > learning.MaxLossPct {
		return fmt.Errorf("charger_loss_pct must be between 0 and %.0f", learning.MaxLossPct)
	}
	if _, err := learning.ParseRefreshMode(c.RefreshMode); err != nil {
		return err
	}
	if c.TickIntervalS <= 0 {
		return errors.New("tick_interval_s must be positive")
	}
	if c.CalendarHours < 0 {
		return errors.New("calendar_horizon_h must not be negative")
	}
	return nil
}

// TickInterval returns the timer period.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalS) * time.Second
}

// CalendarHorizon returns how far ahead calendar events are loaded.
func (c Config) CalendarHorizon() time.Duration {
	return time.Duration(c.CalendarHours) * time.Hour
}

func (c Config) mode() learning.RefreshMode {
	m, err := learning.ParseRefreshMode(c.RefreshMode)
	if err != nil {
		return learning.RefreshNever
	}
	return m
}

func (c Config) userDefaults() model.UserSettings {
	if c.Defaults != nil {
		return *c.Defaults
	}
	return model.DefaultUserSettings()
}
