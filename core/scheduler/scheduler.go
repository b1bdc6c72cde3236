package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/smartcharge/core/estimator"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/price"
)

// Input gathers everything a planning run depends on.
type Input struct {
	Now      time.Time
	Prices   model.PriceCurve
	Settings model.UserSettings
	// SoC is the current virtual state of charge.
	SoC            float64
	LossPct        float64
	ManualOverride bool
	Calendar       []model.CalendarEvent
	// OverloadMinutes is the time lost to load balancing this session.
	OverloadMinutes float64
}

// Planner selects charging slots.
type Planner struct {
	Config Config
}

// New returns a planner for cfg.
func New(cfg Config) Planner {
	return Planner{Config: cfg}
}

// Plan computes the charging decision for in.
func (p Planner) Plan(in Input) model.PlanDecision {
	s := in.Settings
	departure := s.Departure().Next(in.Now)
	cands := p.candidates(in, departure)
	target := p.Target(in, cands)

	dec := model.PlanDecision{
		PlannedTargetSoC: target,
		Departure:        departure,
	}

	if in.SoC >= target {
		dec.ShouldChargeNow = true
		dec.Maintenance = true
		dec.Schedule = buildSchedule(cands, nil)
		dec.ChargingSummary = fmt.Sprintf("%s: target %.0f%% reached.", model.MaintenanceSummary, target)
		return dec
	}

	dec.EnergyNeededKWh = p.energyFor(target-in.SoC, in.LossPct)

	if !s.SmartCharging && len(cands) == 0 {
		dec.ShouldChargeNow = true
		dec.ChargingSummary = fmt.Sprintf("Smart charging disabled: charging to %.0f%%.", target)
		return dec
	}

	if len(cands) == 0 {
		if in.SoC < s.MinSoC {
			dec.ShouldChargeNow = true
			dec.ChargingSummary = fmt.Sprintf("No price data: charging to minimum %.0f%%.", s.MinSoC)
		} else {
			dec.ChargingSummary = "Waiting for price data."
		}
		return dec
	}

	width := cands[0].End.Sub(cands[0].Start)
	required := p.slotsFor(dec.EnergyNeededKWh, width)
	if in.OverloadMinutes > 0 {
		required += int(math.Ceil(in.OverloadMinutes / width.Minutes()))
	}
	dec.RequiredSlots = required

	if !s.SmartCharging {
		selected := make(map[int]bool, required)
		for i := 0; i < required && i < len(cands); i++ {
			selected[i] = true
		}
		dec.Schedule = buildSchedule(cands, selected)
		dec.ShouldChargeNow = true
		p.setWindow(&dec, in.Now)
		dec.ChargingSummary = fmt.Sprintf("Smart charging disabled: charging to %.0f%%.", target)
		return dec
	}

	selected := make(map[int]bool, required)
	forced := 0
	if in.SoC < s.MinSoC && !(in.ManualOverride && required <= len(cands)) {
		forced = p.slotsFor(p.energyFor(s.MinSoC-in.SoC, in.LossPct), width)
		for i := 0; i < forced && i < len(cands); i++ {
			selected[i] = true
		}
	}
	for _, i := range byPrice(cands) {
		if len(selected) >= required {
			break
		}
		selected[i] = true
	}

	dec.Schedule = buildSchedule(cands, selected)
	dec.ShouldChargeNow = dec.Schedule.ActiveAt(in.Now)
	p.setWindow(&dec, in.Now)
	dec.ChargingSummary = summarize(dec, target, forced > 0 && dec.ShouldChargeNow, s.MinSoC, required > len(cands))
	return dec
}

// Target returns the effective target SoC for the candidate slots.
func (p Planner) Target(in Input, cands []model.PriceSlot) float64 {
	s := in.Settings
	if in.ManualOverride {
		return s.TargetSoCOverride
	}
	target := s.TargetSoC
	if len(cands) == 0 {
		return target
	}
	cheapest := cands[0].AdjustedPrice
	for _, c := range cands[1:] {
		cheapest = math.Min(cheapest, c.AdjustedPrice)
	}
	switch {
	case cheapest <= s.PriceLimit1:
		target = math.Max(target, s.TargetSoC1)
	case cheapest >= s.PriceLimit2:
		target = math.Min(target, s.TargetSoC2)
	}
	return target
}

// SlotEnergyKWh is the energy delivered by one slot of the given width at the
// best available current.
func (p Planner) SlotEnergyKWh(width time.Duration) float64 {
	return estimator.PowerKW(p.Config.PlanningCurrent()) * width.Hours()
}

func (p Planner) candidates(in Input, departure time.Time) []model.PriceSlot {
	s := in.Settings
	var out []model.PriceSlot
	for _, sl := range price.Horizon(in.Prices, in.Now, s.PriceExtraFee, s.PriceVAT) {
		if !sl.End.After(in.Now) || !sl.Start.Before(departure) {
			continue
		}
		if blocked(sl, in.Calendar) {
			continue
		}
		out = append(out, sl)
	}
	return out
}

func blocked(sl model.PriceSlot, events []model.CalendarEvent) bool {
	for _, ev := range events {
		if ev.Overlaps(sl.Start, sl.End) {
			return true
		}
	}
	return false
}

func (p Planner) energyFor(pct, lossPct float64) float64 {
	if pct <= 0 {
		return 0
	}
	eff := 1 - lossPct/100
	if eff <= 0 {
		eff = 0.01
	}
	return pct / 100 * p.Config.CapacityKWh / eff
}

func (p Planner) slotsFor(energy float64, width time.Duration) int {
	per := p.SlotEnergyKWh(width)
	if energy <= 0 || per <= 0 {
		return 0
	}
	return int(math.Ceil(energy/per - 1e-9))
}

func (p Planner) setWindow(dec *model.PlanDecision, now time.Time) {
	if start, end, ok := dec.Schedule.NextRun(now); ok {
		dec.ScheduledStart = &start
		dec.SessionEndTime = &end
	}
}

// byPrice returns candidate indexes ordered by price then start.
func byPrice(cands []model.PriceSlot) []int {
	idx := make([]int, len(cands))
	for i := range cands {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return cands[idx[a]].AdjustedPrice < cands[idx[b]].AdjustedPrice
	})
	return idx
}

func buildSchedule(cands []model.PriceSlot, active map[int]bool) model.ChargeSchedule {
	out := make(model.ChargeSchedule, len(cands))
	for i, c := range cands {
		out[i] = model.ScheduleSlot{Start: c.Start, End: c.End, Price: c.AdjustedPrice, Active: active[i]}
	}
	return out
}

func summarize(dec model.PlanDecision, target float64, forced bool, minSoC float64, short bool) string {
	var msg string
	switch {
	case forced:
		msg = fmt.Sprintf("Charging now to reach minimum %.0f%%.", minSoC)
	case dec.ShouldChargeNow && dec.SessionEndTime != nil:
		msg = fmt.Sprintf("Charging now until %s; %d slots planned to reach %.0f%% by %s.",
			dec.SessionEndTime.Format("15:04"), dec.RequiredSlots, target, dec.Departure.Format("15:04"))
	case dec.ScheduledStart != nil:
		msg = fmt.Sprintf("Waiting: charging scheduled at %s (%d slots to reach %.0f%%).",
			dec.ScheduledStart.Format("15:04"), dec.RequiredSlots, target)
	default:
		msg = "No charging needed."
	}
	if short {
		msg += " Target may not be reached before departure."
	}
	return msg
}
