// Package scheduler plans when to charge. It selects the cheapest price slots
// between now and the departure deadline that deliver the energy needed to
// reach the target state of charge, applies the price-tier target rules and
// the minimum-SoC guarantee, and reports the immediate charge decision.
package scheduler
