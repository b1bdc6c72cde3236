package learning

import (
	"testing"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

func ptr(t time.Time) *time.Time { return &t }

func TestParseRefreshMode(t *testing.T) {
	if m, err := ParseRefreshMode(""); err != nil || m != RefreshNever {
		t.Fatalf("expected never default, got %q %v", m, err)
	}
	if _, err := ParseRefreshMode("hourly"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if m, _ := ParseRefreshMode("at_target"); m != RefreshAtTarget {
		t.Fatalf("expected at_target got %q", m)
	}
}

func TestRefreshNotPluggedOrNever(t *testing.T) {
	p := RefreshPolicy{}
	if d := p.Decide(RefreshInput{Now: now, Mode: Refresh30Min}); d.Refresh {
		t.Fatalf("unplugged car must not refresh")
	}
	if d := p.Decide(RefreshInput{Now: now, Mode: RefreshNever, Plugged: true}); d.Refresh {
		t.Fatalf("never mode must not refresh")
	}
}

func TestIntervalModes(t *testing.T) {
	p := RefreshPolicy{}
	in := RefreshInput{Now: now, Mode: Refresh1Hour, Plugged: true, LastRefresh: ptr(now.Add(-50 * time.Minute))}
	if d := p.Decide(in); d.Refresh {
		t.Fatalf("1h mode refreshed after 50 minutes")
	}
	in.LastRefresh = ptr(now.Add(-61 * time.Minute))
	if d := p.Decide(in); !d.Refresh || d.Learn {
		t.Fatalf("expected plain refresh, got %+v", d)
	}
	in.LastRefresh = nil
	if d := p.Decide(in); !d.Refresh {
		t.Fatalf("first refresh must fire")
	}
}

func TestRateLimit(t *testing.T) {
	p := RefreshPolicy{}
	in := RefreshInput{
		Now:         now,
		Mode:        RefreshAtTarget,
		Plugged:     true,
		LastRefresh: ptr(now.Add(-15 * time.Minute)),
		Estimate:    85,
		Target:      80,
		PrevState:   model.StateCharging,
		NextState:   model.StateMaintenance,
	}
	if d := p.Decide(in); d.Refresh {
		t.Fatalf("refresh within 30 minutes of the previous one")
	}
}

func TestSmartPreDepartureRefreshLearns(t *testing.T) {
	p := RefreshPolicy{}
	in := RefreshInput{
		Now:         now,
		Mode:        RefreshAtTarget,
		Plugged:     true,
		Estimate:    60,
		Target:      80,
		WindowStart: ptr(time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)),
		WindowEnd:   ptr(time.Date(2024, 1, 15, 22, 30, 0, 0, time.UTC)),
		Charging:    true,
		PrevState:   model.StateCharging,
		NextState:   model.StateCharging,
	}
	d := p.Decide(in)
	if !d.Refresh || !d.Learn {
		t.Fatalf("expected learning refresh, got %+v", d)
	}

	in.Now = time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC)
	if d := p.Decide(in); d.Refresh {
		t.Fatalf("refresh 90 minutes before end")
	}
}

func TestSmartWindowNeedsLongSession(t *testing.T) {
	start := time.Date(2024, 1, 15, 22, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 22, 45, 0, 0, time.UTC)
	if SmartWindow(start.Add(15*time.Minute), &start, &end) {
		t.Fatalf("45 minute session must not trigger the smart refresh")
	}
	if SmartWindow(now, nil, nil) {
		t.Fatalf("no window must not trigger")
	}
	longStart := start.Add(-time.Hour)
	if !SmartWindow(end.Add(-35*time.Minute), &longStart, &end) {
		t.Fatalf("35 minutes before end is inside the window")
	}
	if SmartWindow(end.Add(-25*time.Minute), &longStart, &end) {
		t.Fatalf("25 minutes before end is outside the window")
	}
}

func TestCompletionRefreshDoesNotLearn(t *testing.T) {
	p := RefreshPolicy{}
	in := RefreshInput{
		Now:         now,
		Mode:        RefreshAtTarget,
		Plugged:     true,
		Estimate:    80.5,
		Target:      80,
		LastRefresh: ptr(now.Add(-13 * time.Hour)),
		PrevState:   model.StateMaintenance,
		NextState:   model.StateMaintenance,
	}
	d := p.Decide(in)
	if !d.Refresh || d.Learn {
		t.Fatalf("expected completion refresh without learning, got %+v", d)
	}
	in.LastRefresh = ptr(now.Add(-2 * time.Hour))
	if d := p.Decide(in); d.Refresh {
		t.Fatalf("staying in maintenance must not refresh again")
	}
}

func TestMaintenanceEntryRefresh(t *testing.T) {
	p := RefreshPolicy{}
	d := p.Decide(RefreshInput{
		Now:         now,
		Mode:        RefreshAtTarget,
		Plugged:     true,
		Estimate:    80,
		Target:      80,
		LastRefresh: ptr(now.Add(-2 * time.Hour)),
		PrevState:   model.StateCharging,
		NextState:   model.StateMaintenance,
	})
	if !d.Refresh || d.Learn {
		t.Fatalf("expected maintenance entry refresh, got %+v", d)
	}
}
