package model

import "time"

// MaintenanceSummary prefixes the summary of a maintenance decision.
const MaintenanceSummary = "Maintenance mode active"

// BufferSummary is the summary of a decision forced by the overrun buffer.
const BufferSummary = "Charging Buffer Active (15 min overrun)."

// ScheduleSlot is one entry of a charge schedule.
type ScheduleSlot struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Price  float64   `json:"price"`
	Active bool      `json:"active"`
}

// ChargeSchedule spans from the current slot to the departure deadline.
type ChargeSchedule []ScheduleSlot

// ActiveAt reports whether the slot containing t is scheduled for charging.
func (s ChargeSchedule) ActiveAt(t time.Time) bool {
	for _, sl := range s {
		if !t.Before(sl.Start) && t.Before(sl.End) {
			return sl.Active
		}
	}
	return false
}

// NextRun returns the bounds of the first run of active slots ending after t.
func (s ChargeSchedule) NextRun(t time.Time) (start, end time.Time, ok bool) {
	for i, sl := range s {
		if !sl.Active || !sl.End.After(t) {
			continue
		}
		start, end = sl.Start, sl.End
		for j := i + 1; j < len(s) && s[j].Active && s[j].Start.Equal(end); j++ {
			end = s[j].End
		}
		return start, end, true
	}
	return time.Time{}, time.Time{}, false
}

// ActiveCount returns the number of active slots.
func (s ChargeSchedule) ActiveCount() int {
	n := 0
	for _, sl := range s {
		if sl.Active {
			n++
		}
	}
	return n
}

// PlanDecision is the planner output for one tick.
type PlanDecision struct {
	ShouldChargeNow  bool           `json:"should_charge_now"`
	Maintenance      bool           `json:"maintenance"`
	PlannedTargetSoC float64        `json:"planned_target_soc"`
	ScheduledStart   *time.Time     `json:"scheduled_start,omitempty"`
	SessionEndTime   *time.Time     `json:"session_end_time,omitempty"`
	Departure        time.Time      `json:"departure_time"`
	ChargingSummary  string         `json:"charging_summary"`
	EnergyNeededKWh  float64        `json:"energy_needed_kwh"`
	RequiredSlots    int            `json:"required_slots"`
	Schedule         ChargeSchedule `json:"charging_schedule"`
	BufferActive     bool           `json:"buffer_active,omitempty"`
	Locked           bool           `json:"locked,omitempty"`
}
