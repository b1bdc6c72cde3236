package model

import "time"

// PriceCurve carries the raw day-ahead price attributes published by the host.
type PriceCurve struct {
	Today         []float64 `json:"today" yaml:"today"`
	Tomorrow      []float64 `json:"tomorrow" yaml:"tomorrow"`
	TomorrowValid bool      `json:"tomorrow_valid" yaml:"tomorrow_valid"`
	Currency      string    `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// Empty reports whether no price data is available for today.
func (c PriceCurve) Empty() bool { return len(c.Today) == 0 }

// PriceSlot is one fixed-width interval of a price curve.
type PriceSlot struct {
	Index         int       `json:"index"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	RawPrice      float64   `json:"raw_price"`
	AdjustedPrice float64   `json:"adjusted_price"`
}

// Contains reports whether t falls inside the slot.
func (s PriceSlot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// PriceLabel is the coarse classification of the current price.
type PriceLabel string

const (
	PriceUnknown   PriceLabel = "unknown"
	PriceCheap     PriceLabel = "cheap"
	PriceNormal    PriceLabel = "normal"
	PriceExpensive PriceLabel = "expensive"
)

// PriceStatus is the price analyzer output for the current slot.
type PriceStatus struct {
	Current   PriceSlot  `json:"current"`
	Label     PriceLabel `json:"label"`
	Available bool       `json:"available"`
}
