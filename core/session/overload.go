package session

import "time"

// OverloadTimer accumulates the wall-clock time during which load balancing
// prevented charging.
type OverloadTimer struct {
	Minutes   float64    `json:"overload_prevention_minutes"`
	LastCheck *time.Time `json:"last_check,omitempty"`
}

// Check adds the time elapsed since the previous check while overloaded. The
// first overloaded check only starts the clock.
func (o *OverloadTimer) Check(now time.Time, overloaded bool) {
	if !overloaded {
		o.LastCheck = nil
		return
	}
	if o.LastCheck != nil {
		if d := now.Sub(*o.LastCheck); d > 0 {
			o.Minutes += d.Minutes()
		}
	}
	t := now
	o.LastCheck = &t
}

// Reset clears the timer for a new session.
func (o *OverloadTimer) Reset() {
	o.Minutes = 0
	o.LastCheck = nil
}
