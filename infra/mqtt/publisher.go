package mqtt

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/kilianp07/smartcharge/core/control"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Published state names.
const (
	StateStatus         = "status"
	StatePlan           = "plan"
	StateVirtualSoC     = "virtual_soc"
	StateSafeCurrent    = "safe_current"
	StatePrice          = "price"
	StatePriceLabel     = "price_label"
	StateChargerState   = "charger_state"
	StateAppliedAmps    = "applied_amps"
	StateOverload       = "overload_minutes"
	StateLossPct        = "charger_loss"
	StateConfidence     = "learning_confidence"
	StateManualOverride = "manual_override"
	StateDecision       = "decision"
	StateActionLog      = "action_log"
	StateLastSession    = "last_session"
)

// StatePublisher mirrors controller updates to retained state topics.
type StatePublisher struct {
	cli    *Client
	topics Topics
	log    logger.Logger
}

// NewStatePublisher returns a StatePublisher.
func NewStatePublisher(c *Client, topics Topics) *StatePublisher {
	return &StatePublisher{cli: c, topics: topics, log: logger.New("mqtt_publisher")}
}

// Run publishes every update received on updates until ctx is done or the
// channel is closed. The availability topic is set online on start and
// offline on exit.
func (p *StatePublisher) Run(ctx context.Context, updates <-chan control.Update) error {
	if err := p.cli.Publish(ctx, "state", p.topics.AvailabilityTopic(), []byte(PayloadOnline), true); err != nil {
		p.log.Errorf("availability: %v", err)
	}
	defer func() {
		if err := p.cli.Publish(context.Background(), "state", p.topics.AvailabilityTopic(), []byte(PayloadOffline), true); err != nil {
			p.log.Errorf("availability: %v", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			p.Publish(ctx, u)
		}
	}
}

// Publish writes the states of one update. Failures are logged per topic.
func (p *StatePublisher) Publish(ctx context.Context, u control.Update) {
	for name, value := range States(u) {
		if err := p.cli.Publish(ctx, "state", p.topics.StateTopic(name), []byte(value), true); err != nil {
			p.log.Errorf("publish %s: %v", name, err)
		}
	}
}

// States renders an update as state name to payload.
func States(u control.Update) map[string]string {
	out := map[string]string{
		StateStatus:         u.Status,
		StatePlan:           u.Plan,
		StateVirtualSoC:     formatFloat(u.SoC, 1),
		StateSafeCurrent:    formatFloat(u.SafeCurrentA, 1),
		StatePriceLabel:     string(u.Price.Label),
		StateChargerState:   u.ChargerState.String(),
		StateAppliedAmps:    strconv.Itoa(u.AppliedAmps),
		StateOverload:       formatFloat(u.OverloadMinutes, 1),
		StateLossPct:        formatFloat(u.Learning.LossPct, 2),
		StateConfidence:     strconv.Itoa(u.Learning.Confidence),
		StateManualOverride: onOff(u.ManualOverride),
		StateDecision:       toJSON(u.Decision),
		StateActionLog:      toJSON(u.ActionLog),
	}
	if u.Price.Available {
		out[StatePrice] = formatFloat(u.Price.Current.AdjustedPrice, 4)
	} else {
		out[StatePrice] = "unknown"
	}
	if u.LastSession != nil {
		out[StateLastSession] = toJSON(u.LastSession)
	}
	for k, v := range settingValues(u.Settings) {
		out[k] = v
	}
	return out
}

func settingValues(s model.UserSettings) map[string]string {
	override := "none"
	if s.DepartureOverride != nil {
		override = s.DepartureOverride.String()
	}
	return map[string]string{
		"target_soc":          formatFloat(s.TargetSoC, 0),
		"min_soc":             formatFloat(s.MinSoC, 0),
		"target_soc_override": formatFloat(s.TargetSoCOverride, 0),
		"target_soc_1":        formatFloat(s.TargetSoC1, 0),
		"target_soc_2":        formatFloat(s.TargetSoC2, 0),
		"price_limit_1":       formatFloat(s.PriceLimit1, 2),
		"price_limit_2":       formatFloat(s.PriceLimit2, 2),
		"price_extra_fee":     formatFloat(s.PriceExtraFee, 4),
		"price_vat":           formatFloat(s.PriceVAT, 0),
		"departure_time":      s.DepartureTime.String(),
		"departure_override":  override,
		"smart_charging":      onOff(s.SmartCharging),
	}
}

func formatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

func onOff(b bool) string {
	if b {
		return PayloadOn
	}
	return PayloadOff
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
