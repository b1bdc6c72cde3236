// Package estimator maintains the virtual state of charge between sensor updates.
package estimator

import (
	"math"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

const (
	// TrustWindow is how long after a forced refresh a changed sensor value is
	// accepted even when it is lower than the estimate.
	TrustWindow = 5 * time.Minute
	// Voltage is the per-phase nominal voltage used for power estimates.
	Voltage = 230.0
	// activeThresholdA is the measured current below which the charger is
	// considered idle and the last applied target is used instead.
	activeThresholdA = 0.5
)

// PowerKW approximates three-phase charging power for the given current.
func PowerKW(amps float64) float64 {
	return float64(model.Phases) * Voltage * amps / 1000
}

// Input carries the readings for one estimator update.
type Input struct {
	Now time.Time
	// SensorSoC is the car sensor reading; values <= 0 mean unavailable.
	SensorSoC float64
	// MeasuredAmps is the highest per-phase charger current.
	MeasuredAmps float64
	LossPct      float64
	// RefreshAt is when the last forced refresh was requested.
	RefreshAt *time.Time
	// SensorBeforeRefresh is the sensor value noted just before that refresh.
	SensorBeforeRefresh float64
}

// Result reports what happened during an update.
type Result struct {
	Adopted  bool
	Trusted  bool
	AddedPct float64
}

// Estimator integrates charging energy into a battery percentage.
type Estimator struct {
	CapacityKWh float64
}

// New returns an estimator for a battery of the given capacity.
func New(capacityKWh float64) *Estimator { return &Estimator{CapacityKWh: capacityKWh} }

// TrustOpen reports whether the forced-refresh trust window accepts sensor.
func TrustOpen(in Input) bool {
	if in.RefreshAt == nil || in.SensorSoC <= 0 {
		return false
	}
	if in.Now.Sub(*in.RefreshAt) >= TrustWindow {
		return false
	}
	return in.SensorSoC != in.SensorBeforeRefresh
}

// Update syncs the estimate with the sensor where allowed, then integrates
// the energy delivered since the previous update.
func (e *Estimator) Update(st *model.VirtualSoCState, in Input) Result {
	var res Result
	if in.SensorSoC > 0 {
		res.Trusted = TrustOpen(in)
		if in.SensorSoC > st.Value || st.Value == 0 || res.Trusted {
			st.Value = in.SensorSoC
			res.Adopted = true
		}
	}

	if st.LastAppliedState == model.StateCharging && !st.LastUpdate.IsZero() {
		amps := in.MeasuredAmps
		if amps <= activeThresholdA {
			amps = float64(st.LastAppliedAmps)
		}
		hours := in.Now.Sub(st.LastUpdate).Hours()
		if amps > 0 && hours > 0 && e.CapacityKWh > 0 {
			kwh := PowerKW(amps) * hours * (1 - in.LossPct/100)
			before := st.Value
			st.Value += kwh / e.CapacityKWh * 100
			// The car stops at its own limit; never clamp below where we started.
			if limit := float64(st.LastAppliedCarLimit); limit > 0 && st.Value > limit {
				st.Value = math.Max(limit, before)
			}
			if st.Value > 100 {
				st.Value = 100
			}
			if st.Value > before {
				res.AddedPct = st.Value - before
			}
		}
	}

	st.LastUpdate = in.Now
	return res
}
