package model

import (
	"strings"
	"time"
)

// Phases is the number of supply phases measured by the meters.
const Phases = 3

// SensorSnapshot is the set of readings delivered by the host once per tick.
// Unavailable numeric readings are reported as zero.
type SensorSnapshot struct {
	Household [Phases]float64 `json:"household"`
	Charger   [Phases]float64 `json:"charger"`
	CarSoC    float64         `json:"car_soc"`
	Plugged   bool            `json:"car_plugged"`
	Prices    PriceCurve      `json:"price_data"`
	Calendar  []CalendarEvent `json:"calendar_events,omitempty"`
}

// MeasuredChargerCurrent returns the highest per-phase charger current.
func (s SensorSnapshot) MeasuredChargerCurrent() float64 {
	max := 0.0
	for _, a := range s.Charger {
		if a > max {
			max = a
		}
	}
	return max
}

// CalendarEvent is an opaque blocking window during which no charging is planned.
type CalendarEvent struct {
	Summary string    `json:"summary,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Overlaps reports whether the event intersects [start, end).
func (e CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

var pluggedStates = map[string]struct{}{
	"on":         {},
	"true":       {},
	"connected":  {},
	"charging":   {},
	"full":       {},
	"plugged_in": {},
}

// ParsePlugged maps a host plug sensor state to a connected flag.
func ParsePlugged(state string) bool {
	_, ok := pluggedStates[strings.ToLower(strings.TrimSpace(state))]
	return ok
}
