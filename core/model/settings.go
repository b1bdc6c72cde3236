package model

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time without a date, serialized as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Next returns the first occurrence of t strictly after now, in now's location.
func (t TimeOfDay) Next(now time.Time) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if !d.After(now) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// UserSettings are the user-adjustable inputs persisted across restarts.
type UserSettings struct {
	TargetSoC         float64    `json:"target_soc" yaml:"target_soc"`
	MinSoC            float64    `json:"min_soc" yaml:"min_soc"`
	DepartureTime     TimeOfDay  `json:"departure_time" yaml:"departure_time"`
	DepartureOverride *TimeOfDay `json:"departure_override,omitempty" yaml:"departure_override,omitempty"`
	TargetSoCOverride float64    `json:"target_soc_override" yaml:"target_soc_override"`
	PriceLimit1       float64    `json:"price_limit_1" yaml:"price_limit_1"`
	TargetSoC1        float64    `json:"target_soc_1" yaml:"target_soc_1"`
	PriceLimit2       float64    `json:"price_limit_2" yaml:"price_limit_2"`
	TargetSoC2        float64    `json:"target_soc_2" yaml:"target_soc_2"`
	PriceExtraFee     float64    `json:"price_extra_fee" yaml:"price_extra_fee"`
	PriceVAT          float64    `json:"price_vat" yaml:"price_vat"`
	SmartCharging     bool       `json:"smart_charging" yaml:"smart_charging"`
}

// DefaultUserSettings returns the settings used before any user input.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		TargetSoC:         80,
		MinSoC:            20,
		DepartureTime:     TimeOfDay{Hour: 7},
		TargetSoCOverride: 80,
		PriceLimit1:       0.1,
		TargetSoC1:        90,
		PriceLimit2:       2.5,
		TargetSoC2:        70,
		SmartCharging:     true,
	}
}

// Departure returns the departure time in effect for the next session.
func (s UserSettings) Departure() TimeOfDay {
	if s.DepartureOverride != nil {
		return *s.DepartureOverride
	}
	return s.DepartureTime
}
