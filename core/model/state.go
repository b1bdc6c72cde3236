package model

import (
	"fmt"
	"time"
)

// ChargeState is the last state applied to the charger.
type ChargeState int

const (
	// StateUnknown means nothing has been applied since start-up.
	StateUnknown ChargeState = iota
	StatePaused
	StateCharging
	// StateMaintenance keeps the switch on at 0 A once the target is reached.
	StateMaintenance
)

func (s ChargeState) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StateCharging:
		return "charging"
	case StateMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// SwitchOn reports whether the charger switch is enabled in this state.
func (s ChargeState) SwitchOn() bool {
	return s == StateCharging || s == StateMaintenance
}

// MarshalText implements encoding.TextMarshaler.
func (s ChargeState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ChargeState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "paused":
		*s = StatePaused
	case "charging":
		*s = StateCharging
	case "maintenance":
		*s = StateMaintenance
	case "unknown", "":
		*s = StateUnknown
	default:
		return fmt.Errorf("unknown charge state %q", string(b))
	}
	return nil
}

// VirtualSoCState is the estimator state together with the last-applied
// actuation caches.
type VirtualSoCState struct {
	Value               float64     `json:"value"`
	LastUpdate          time.Time   `json:"last_update_time"`
	LastAppliedAmps     int         `json:"last_applied_amps"`
	LastAppliedState    ChargeState `json:"last_applied_state"`
	LastAppliedCarLimit int         `json:"last_applied_car_limit"`
}

// NewVirtualSoCState returns a state with every actuation cache unknown.
func NewVirtualSoCState(now time.Time) VirtualSoCState {
	return VirtualSoCState{
		LastUpdate:          now,
		LastAppliedAmps:     -1,
		LastAppliedState:    StateUnknown,
		LastAppliedCarLimit: -1,
	}
}
