package price

import (
	"math"
	"testing"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

func TestAdjust(t *testing.T) {
	got := Adjust(0.85, 0.7908, 25)
	if math.Abs(got-2.051) > 1e-9 {
		t.Fatalf("expected 2.051 got %v", got)
	}
}

func TestSlotWidthAndIndex(t *testing.T) {
	if SlotWidth(96) != 15*time.Minute || SlotWidth(24) != time.Hour {
		t.Fatalf("unexpected slot widths")
	}
	ts := time.Date(2026, 2, 1, 13, 28, 0, 0, time.UTC)
	if idx := SlotIndex(ts, 96); idx != 53 {
		t.Fatalf("expected quarter index 53 got %d", idx)
	}
	if idx := SlotIndex(ts, 24); idx != 13 {
		t.Fatalf("expected hourly index 13 got %d", idx)
	}
	late := time.Date(2026, 2, 1, 23, 50, 0, 0, time.UTC)
	if idx := SlotIndex(late, 92); idx != 91 {
		t.Fatalf("expected index clamped to 91 got %d", idx)
	}
}

func TestHorizonIncludesTomorrowOnlyWhenValid(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	curve := model.PriceCurve{Today: make([]float64, 24), Tomorrow: make([]float64, 24)}
	if n := len(Horizon(curve, now, 0, 0)); n != 24 {
		t.Fatalf("expected 24 slots got %d", n)
	}
	curve.TomorrowValid = true
	slots := Horizon(curve, now, 0, 0)
	if len(slots) != 48 {
		t.Fatalf("expected 48 slots got %d", len(slots))
	}
	if !slots[24].Start.Equal(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("tomorrow starts at %v", slots[24].Start)
	}
}

func TestAnalyzeLabels(t *testing.T) {
	a := Analyzer{ExtraFee: 0.7908, VATPct: 25, CheapBelow: 0.1, ExpensiveAbove: 2.5}
	today := make([]float64, 96)
	for i := range today {
		today[i] = 1.2
	}
	today[0] = -1
	now := time.Date(2026, 2, 1, 13, 28, 0, 0, time.UTC)

	st := a.Analyze(model.PriceCurve{Today: today}, now)
	if !st.Available || st.Label != model.PriceNormal {
		t.Fatalf("expected normal got %+v", st)
	}
	if st.Current.Index != 53 {
		t.Fatalf("expected slot 53 got %d", st.Current.Index)
	}

	midnight := time.Date(2026, 2, 1, 0, 5, 0, 0, time.UTC)
	if st := a.Analyze(model.PriceCurve{Today: today}, midnight); st.Label != model.PriceCheap {
		t.Fatalf("expected cheap got %s", st.Label)
	}

	today[53] = 3
	if st := a.Analyze(model.PriceCurve{Today: today}, now); st.Label != model.PriceExpensive {
		t.Fatalf("expected expensive got %s", st.Label)
	}

	if st := a.Analyze(model.PriceCurve{}, now); st.Available || st.Label != model.PriceUnknown {
		t.Fatalf("expected unknown for empty curve got %+v", st)
	}
}
