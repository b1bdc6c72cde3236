package control

import (
	"time"

	"github.com/kilianp07/smartcharge/core/actuation"
	"github.com/kilianp07/smartcharge/core/model"
)

// Status strings.
const (
	StatusDisconnected = "Disconnected"
	StatusCharging     = "Charging"
	StatusMaintenance  = "Maintenance"
	StatusWaiting      = "Waiting for Schedule"

	PlanDisconnected = "Car Disconnected"
	PlanActive       = "Active Now"
	PlanNone         = "No Charging Needed"
)

// Update is the published result of a tick.
type Update struct {
	Time            time.Time            `json:"time"`
	Plugged         bool                 `json:"car_plugged"`
	SoC             float64              `json:"virtual_soc"`
	SensorSoC       float64              `json:"sensor_soc"`
	SafeCurrentA    float64              `json:"safe_current_a"`
	Price           model.PriceStatus    `json:"price"`
	Decision        model.PlanDecision   `json:"decision"`
	ChargerState    model.ChargeState    `json:"charger_state"`
	AppliedAmps     int                  `json:"applied_amps"`
	Suppressed      bool                 `json:"actuation_suppressed,omitempty"`
	Status          string               `json:"status"`
	Plan            string               `json:"plan"`
	ManualOverride  bool                 `json:"manual_override_active"`
	Settings        model.UserSettings   `json:"user_settings"`
	OverloadMinutes float64              `json:"overload_prevention_minutes"`
	Learning        model.LearningState  `json:"learning"`
	ActionLog       []string             `json:"action_log"`
	LastSession     *model.SessionReport `json:"last_session,omitempty"`
}

// StatusText returns the charger status shown to the user.
func StatusText(plugged bool, dec model.PlanDecision) string {
	switch {
	case !plugged:
		return StatusDisconnected
	case dec.Maintenance:
		return StatusMaintenance
	case dec.ShouldChargeNow:
		return StatusCharging
	}
	return StatusWaiting
}

// PlanText returns the short plan description shown to the user.
func PlanText(plugged bool, dec model.PlanDecision) string {
	switch {
	case !plugged:
		return PlanDisconnected
	case dec.ShouldChargeNow:
		return PlanActive
	case dec.ScheduledStart != nil:
		return "Next: " + dec.ScheduledStart.Format("15:04")
	}
	return PlanNone
}

// Status returns the result of the latest tick.
func (c *Controller) Status() Update {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	return c.last
}

// ActionLog returns the action log lines of the last 24 hours, newest first.
func (c *Controller) ActionLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Log.Prune(c.now())
	return c.st.Log.Lines()
}

func (c *Controller) setLast(u Update) {
	c.lastMu.Lock()
	c.last = u
	c.lastMu.Unlock()
}

func (c *Controller) buildUpdate(now time.Time, snap model.SensorSnapshot, dec model.PlanDecision, res actuation.Result, prices model.PriceStatus, safe float64) Update {
	st := c.st
	lrn := st.Learning
	lrn.History = append([]model.LearningSample(nil), st.Learning.History...)
	return Update{
		Time:            now,
		Plugged:         snap.Plugged,
		SoC:             st.VirtualSoC.Value,
		SensorSoC:       snap.CarSoC,
		SafeCurrentA:    safe,
		Price:           prices,
		Decision:        dec,
		ChargerState:    res.State,
		AppliedAmps:     res.Amps,
		Suppressed:      res.Suppressed,
		Status:          StatusText(snap.Plugged, dec),
		Plan:            PlanText(snap.Plugged, dec),
		ManualOverride:  st.ManualOverride,
		Settings:        st.Settings,
		OverloadMinutes: st.Overload.Minutes,
		Learning:        lrn,
		ActionLog:       st.Log.Lines(),
		LastSession:     st.Recorder.Last,
	}
}
