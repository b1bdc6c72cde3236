// Package loadbalance computes the charging current the site fuse can still carry.
package loadbalance

import "github.com/kilianp07/smartcharge/core/model"

// MinCurrentA is the lowest current the vehicle charging protocol accepts.
const MinCurrentA = 6.0

// Balancer computes the instantaneous safe charging current.
type Balancer struct {
	FuseA       float64
	ChargerMaxA float64
}

// SafeCurrent returns fuse - max(household phase load excluding the charger's
// own draw), floored at zero and capped at the charger maximum.
func (b Balancer) SafeCurrent(household, charger [model.Phases]float64) float64 {
	peak := 0.0
	for i := 0; i < model.Phases; i++ {
		load := household[i] - charger[i]
		if load < 0 {
			load = 0
		}
		if load > peak {
			peak = load
		}
	}
	safe := b.FuseA - peak
	if safe < 0 {
		safe = 0
	}
	if b.ChargerMaxA > 0 && safe > b.ChargerMaxA {
		safe = b.ChargerMaxA
	}
	return safe
}

// Feasible reports whether a current is enough to charge at all.
func Feasible(amps float64) bool { return amps >= MinCurrentA }
