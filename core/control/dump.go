package control

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/scheduler"
)

// SensorDump is the sensor part of a debug dump.
type SensorDump struct {
	Household      [model.Phases]float64 `json:"household"`
	Charger        [model.Phases]float64 `json:"charger"`
	CarSoC         float64               `json:"car_soc"`
	Plugged        bool                  `json:"car_plugged"`
	SafeCurrentA   float64               `json:"safe_current_a"`
	MeasuredAmps   float64               `json:"measured_charger_a"`
	CalendarEvents []model.CalendarEvent `json:"calendar_events,omitempty"`
}

// SessionInfo is the session part of a debug dump.
type SessionInfo struct {
	OverloadMinutes float64    `json:"overload_prevention_minutes"`
	SessionActive   bool       `json:"session_active"`
	SessionID       string     `json:"session_id,omitempty"`
	SessionStart    *time.Time `json:"session_start,omitempty"`
	PlanLocked      bool       `json:"plan_locked"`
	BufferEnd       *time.Time `json:"buffer_end,omitempty"`
}

// Dump is the full controller state, enough to replay the planner offline.
type Dump struct {
	Timestamp      time.Time             `json:"timestamp"`
	Config         Config                `json:"config_settings"`
	UserSettings   model.UserSettings    `json:"user_settings"`
	ManualOverride bool                  `json:"manual_override_active"`
	Sensor         SensorDump            `json:"sensor_data"`
	Prices         model.PriceCurve      `json:"price_data"`
	Session        SessionInfo           `json:"session_info"`
	Learning       model.LearningState   `json:"learning"`
	VirtualSoC     model.VirtualSoCState `json:"virtual_soc"`
	Refresh        RefreshState          `json:"refresh"`
	Decision       model.PlanDecision    `json:"decision"`
}

// DebugDump captures the current state.
func (c *Controller) DebugDump() Dump {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.st
	snap := st.LastSnapshot
	d := Dump{
		Timestamp:      c.now(),
		Config:         c.cfg,
		UserSettings:   st.Settings,
		ManualOverride: st.ManualOverride,
		Sensor: SensorDump{
			Household:      snap.Household,
			Charger:        snap.Charger,
			CarSoC:         snap.CarSoC,
			Plugged:        snap.Plugged,
			SafeCurrentA:   st.LastSafeCurrent,
			MeasuredAmps:   snap.MeasuredChargerCurrent(),
			CalendarEvents: st.LastEvents,
		},
		Prices: snap.Prices,
		Session: SessionInfo{
			OverloadMinutes: st.Overload.Minutes,
			SessionActive:   st.Recorder.Active(),
			PlanLocked:      st.Lock != nil,
			BufferEnd:       st.BufferEnd,
		},
		Learning:   st.Learning,
		VirtualSoC: st.VirtualSoC,
		Refresh:    st.Refresh,
		Decision:   st.LastDecision,
	}
	d.Learning.History = append([]model.LearningSample(nil), st.Learning.History...)
	if cur := st.Recorder.Current; cur != nil {
		start := cur.StartTime
		d.Session.SessionID = cur.ID
		d.Session.SessionStart = &start
	}
	return d
}

// Replay runs the planner against the dumped state at the given time. A zero
// at uses the dump timestamp.
func (d Dump) Replay(at time.Time) model.PlanDecision {
	if at.IsZero() {
		at = d.Timestamp
	}
	cfg := d.Config.Planner
	cfg.SetDefaults()
	soc := d.VirtualSoC.Value
	if soc <= 0 {
		soc = d.Sensor.CarSoC
	}
	return scheduler.New(cfg).Plan(scheduler.Input{
		Now:             at,
		Prices:          d.Prices,
		Settings:        d.UserSettings,
		SoC:             soc,
		LossPct:         d.Learning.LossPct,
		ManualOverride:  d.ManualOverride,
		Calendar:        d.Sensor.CalendarEvents,
		OverloadMinutes: d.Session.OverloadMinutes,
	})
}

// EncodeDump renders d as "json" or "yaml".
func EncodeDump(d Dump, format string) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "json", "":
		return b, nil
	case "yaml", "yml":
		// Go through JSON so both formats share the json field names.
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return nil, err
		}
		return yaml.Marshal(generic)
	}
	return nil, fmt.Errorf("unsupported dump format %q", format)
}

// DecodeDump parses a dump written by EncodeDump.
func DecodeDump(data []byte, format string) (Dump, error) {
	var d Dump
	switch strings.ToLower(format) {
	case "json", "":
		if err := json.Unmarshal(data, &d); err != nil {
			return Dump{}, fmt.Errorf("decode json dump: %w", err)
		}
	case "yaml", "yml":
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return Dump{}, fmt.Errorf("decode yaml dump: %w", err)
		}
		b, err := json.Marshal(generic)
		if err != nil {
			return Dump{}, fmt.Errorf("decode yaml dump: %w", err)
		}
		if err := json.Unmarshal(b, &d); err != nil {
			return Dump{}, fmt.Errorf("decode yaml dump: %w", err)
		}
	default:
		return Dump{}, fmt.Errorf("unsupported dump format %q", format)
	}
	return d, nil
}
