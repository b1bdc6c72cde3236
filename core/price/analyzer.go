// Package price derives adjusted slot prices from the host price curve and
// classifies the current slot.
package price

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Adjust applies the extra fee and VAT percentage to a raw price.
func Adjust(raw, extraFee, vatPct float64) float64 {
	return (raw + extraFee) * (1 + vatPct/100)
}

// SlotWidth infers the slot duration from the number of entries in a day curve.
func SlotWidth(n int) time.Duration {
	if n > 25 {
		return 15 * time.Minute
	}
	return time.Hour
}

// SlotIndex returns the index of the slot containing t in a curve of n entries.
func SlotIndex(t time.Time, n int) int {
	if n <= 0 {
		return -1
	}
	idx := t.Hour()
	if n > 25 {
		idx = t.Hour()*4 + t.Minute()/15
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// Slots expands a day curve starting at the midnight of day into timed slots.
func Slots(raw []float64, day time.Time, extraFee, vatPct float64) []model.PriceSlot {
	if len(raw) == 0 {
		return nil
	}
	width := SlotWidth(len(raw))
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	out := make([]model.PriceSlot, len(raw))
	for i, p := range raw {
		start := midnight.Add(time.Duration(i) * width)
		out[i] = model.PriceSlot{
			Index:         i,
			Start:         start,
			End:           start.Add(width),
			RawPrice:      p,
			AdjustedPrice: Adjust(p, extraFee, vatPct),
		}
	}
	return out
}

// Horizon returns today's slots followed by tomorrow's when published.
func Horizon(curve model.PriceCurve, now time.Time, extraFee, vatPct float64) []model.PriceSlot {
	slots := Slots(curve.Today, now, extraFee, vatPct)
	if curve.TomorrowValid && len(curve.Tomorrow) > 0 {
		slots = append(slots, Slots(curve.Tomorrow, now.AddDate(0, 0, 1), extraFee, vatPct)...)
	}
	return slots
}

// Analyzer classifies the current price against two thresholds.
type Analyzer struct {
	ExtraFee float64
	VATPct   float64
	// CheapBelow marks prices at or below it as cheap.
	CheapBelow float64
	// ExpensiveAbove marks prices at or above it as expensive.
	ExpensiveAbove float64
}

// NewAnalyzer builds an analyzer from the user price settings.
func NewAnalyzer(s model.UserSettings) Analyzer {
	return Analyzer{
		ExtraFee:       s.PriceExtraFee,
		VATPct:         s.PriceVAT,
		CheapBelow:     s.PriceLimit1,
		ExpensiveAbove: s.PriceLimit2,
	}
}

// Analyze returns the adjusted current slot and its label.
func (a Analyzer) Analyze(curve model.PriceCurve, now time.Time) model.PriceStatus {
	if curve.Empty() {
		return model.PriceStatus{Label: model.PriceUnknown}
	}
	idx := SlotIndex(now, len(curve.Today))
	slot := Slots(curve.Today, now, a.ExtraFee, a.VATPct)[idx]
	return model.PriceStatus{Current: slot, Label: a.Label(slot.AdjustedPrice), Available: true}
}

// Label classifies an adjusted price.
func (a Analyzer) Label(adjusted float64) model.PriceLabel {
	switch {
	case adjusted <= a.CheapBelow:
		return model.PriceCheap
	case adjusted >= a.ExpensiveAbove:
		return model.PriceExpensive
	default:
		return model.PriceNormal
	}
}
