package learning

import (
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// RefreshMode selects when the car sensor is force-refreshed.
type RefreshMode string

const (
	RefreshNever    RefreshMode = "never"
	Refresh30Min    RefreshMode = "30min"
	Refresh1Hour    RefreshMode = "1h"
	Refresh2Hours   RefreshMode = "2h"
	Refresh3Hours   RefreshMode = "3h"
	Refresh4Hours   RefreshMode = "4h"
	RefreshAtTarget RefreshMode = "at_target"
)

const (
	// MinRefreshInterval rate-limits every kind of refresh.
	MinRefreshInterval = 30 * time.Minute
	// CompletionInterval limits at-target completion checks.
	CompletionInterval = 12 * time.Hour
	// SettleDelay is the wait between a refresh and its learning evaluation.
	SettleDelay = 30 * time.Second

	smartWindowLow  = 25 * time.Minute
	smartWindowHigh = 35 * time.Minute
	smartMinSession = 60 * time.Minute
)

// ParseRefreshMode validates a configured mode.
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch m := RefreshMode(s); m {
	case RefreshNever, Refresh30Min, Refresh1Hour, Refresh2Hours, Refresh3Hours, Refresh4Hours, RefreshAtTarget:
		return m, nil
	case "":
		return RefreshNever, nil
	}
	return "", fmt.Errorf("unknown refresh mode %q", s)
}

func (m RefreshMode) interval() time.Duration {
	switch m {
	case Refresh30Min:
		return 30 * time.Minute
	case Refresh1Hour:
		return time.Hour
	case Refresh2Hours:
		return 2 * time.Hour
	case Refresh3Hours:
		return 3 * time.Hour
	case Refresh4Hours:
		return 4 * time.Hour
	}
	return 0
}

// RefreshInput is the tick context for a refresh decision.
type RefreshInput struct {
	Now         time.Time
	Mode        RefreshMode
	Plugged     bool
	LastRefresh *time.Time
	Estimate    float64
	Target      float64
	// WindowStart is the plug-in session start and WindowEnd the end of the
	// active or next charging run.
	WindowStart *time.Time
	WindowEnd   *time.Time
	Charging    bool
	PrevState   model.ChargeState
	NextState   model.ChargeState
}

// RefreshDecision tells the control loop whether to refresh and learn.
type RefreshDecision struct {
	Refresh bool
	Learn   bool
	Reason  string
}

// RefreshPolicy decides when the car sensor is force-refreshed.
type RefreshPolicy struct{}

// Decide evaluates the configured mode for the current tick.
func (RefreshPolicy) Decide(in RefreshInput) RefreshDecision {
	if !in.Plugged || in.Mode == RefreshNever || in.Mode == "" {
		return RefreshDecision{}
	}
	since := 365 * 24 * time.Hour
	if in.LastRefresh != nil {
		since = in.Now.Sub(*in.LastRefresh)
	}
	if since < MinRefreshInterval {
		return RefreshDecision{}
	}

	if in.Mode != RefreshAtTarget {
		if since > in.Mode.interval() {
			return RefreshDecision{Refresh: true, Reason: "interval " + string(in.Mode)}
		}
		return RefreshDecision{}
	}

	if SmartWindow(in.Now, in.WindowStart, in.WindowEnd) && in.Charging {
		return RefreshDecision{Refresh: true, Learn: true, Reason: "pre-departure verification"}
	}
	if in.PrevState == model.StateCharging && in.NextState == model.StateMaintenance {
		return RefreshDecision{Refresh: true, Reason: "entered maintenance"}
	}
	if in.Estimate >= in.Target && since > CompletionInterval {
		return RefreshDecision{Refresh: true, Reason: "target reached"}
	}
	return RefreshDecision{}
}

// SmartWindow reports whether now is 25-35 minutes before end, for a session
// spanning at least an hour from start to end.
func SmartWindow(now time.Time, start, end *time.Time) bool {
	if start == nil || end == nil {
		return false
	}
	if end.Sub(*start) < smartMinSession {
		return false
	}
	toEnd := end.Sub(now)
	return toEnd > smartWindowLow && toEnd <= smartWindowHigh
}
