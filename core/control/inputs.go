package control

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kilianp07/smartcharge/core/model"
)

// ErrUnknownSetting is returned for an input key the controller does not know.
var ErrUnknownSetting = errors.New("unknown setting")

// ErrInvalidValue is returned when an input value cannot be applied.
var ErrInvalidValue = errors.New("invalid value")

type setter func(s *model.UserSettings, v string) error

func percent(field func(*model.UserSettings) *float64) setter {
	return func(s *model.UserSettings, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		if f < 0 || f > 100 {
			return fmt.Errorf("%v outside 0-100", f)
		}
		*field(s) = f
		return nil
	}
}

func number(field func(*model.UserSettings) *float64) setter {
	return func(s *model.UserSettings, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*field(s) = f
		return nil
	}
}

var setters = map[string]setter{
	"target_soc":          percent(func(s *model.UserSettings) *float64 { return &s.TargetSoC }),
	"min_soc":             percent(func(s *model.UserSettings) *float64 { return &s.MinSoC }),
	"target_soc_override": percent(func(s *model.UserSettings) *float64 { return &s.TargetSoCOverride }),
	"target_soc_1":        percent(func(s *model.UserSettings) *float64 { return &s.TargetSoC1 }),
	"target_soc_2":        percent(func(s *model.UserSettings) *float64 { return &s.TargetSoC2 }),
	"price_vat":           percent(func(s *model.UserSettings) *float64 { return &s.PriceVAT }),
	"price_limit_1":       number(func(s *model.UserSettings) *float64 { return &s.PriceLimit1 }),
	"price_limit_2":       number(func(s *model.UserSettings) *float64 { return &s.PriceLimit2 }),
	"price_extra_fee":     number(func(s *model.UserSettings) *float64 { return &s.PriceExtraFee }),
	"departure_time": func(s *model.UserSettings, v string) error {
		t, err := model.ParseTimeOfDay(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		s.DepartureTime = t
		return nil
	},
	"departure_override": func(s *model.UserSettings, v string) error {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "none") {
			s.DepartureOverride = nil
			return nil
		}
		t, err := model.ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		s.DepartureOverride = &t
		return nil
	},
	"smart_charging": func(s *model.UserSettings, v string) error {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on":
			s.SmartCharging = true
			return nil
		case "off":
			s.SmartCharging = false
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		s.SmartCharging = b
		return nil
	},
}

// SettingKeys lists the keys accepted by SetUserInput.
func SettingKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetUserInput changes one user setting. Setting target_soc_override
// activates the manual override. Any change releases the plan lock and
// requests a tick.
func (c *Controller) SetUserInput(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	c.mu.Lock()
	next := c.st.Settings
	if err := set(&next, value); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w for %s: %v", ErrInvalidValue, key, err)
	}
	c.st.Settings = next
	if key == "target_soc_override" {
		c.st.ManualOverride = true
	}
	c.st.Lock = nil
	now := c.now()
	c.addAction(context.Background(), now, fmt.Sprintf("Setting %s changed to %s", key, strings.TrimSpace(value)))
	c.save(now)
	c.mu.Unlock()
	c.RequestTick()
	return nil
}

// ClearManualOverride turns the manual override off and resets the override
// target to the standard target.
func (c *Controller) ClearManualOverride() {
	c.mu.Lock()
	c.st.ManualOverride = false
	c.st.Settings.TargetSoCOverride = c.st.Settings.TargetSoC
	c.st.Lock = nil
	now := c.now()
	c.addAction(context.Background(), now, "Manual override cleared")
	c.save(now)
	c.mu.Unlock()
	c.RequestTick()
}

// RequestRefresh discards the locked plan and asks for a new one.
func (c *Controller) RequestRefresh() {
	c.mu.Lock()
	c.st.Lock = nil
	c.mu.Unlock()
	c.RequestTick()
}

// Settings returns the current user settings and override flag.
func (c *Controller) Settings() (model.UserSettings, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Settings, c.st.ManualOverride
}
