package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
)

// PromSink exposes controller state as Prometheus metrics.
type PromSink struct {
	ticks       prometheus.Counter
	soc         *prometheus.GaugeVec
	target      prometheus.Gauge
	safeCurrent prometheus.Gauge
	price       prometheus.Gauge
	charging    prometheus.Gauge
	maintenance prometheus.Gauge
	overload    prometheus.Gauge
	commands    *prometheus.CounterVec
	sessions    prometheus.Counter
	energy      prometheus.Counter
	cost        *prometheus.CounterVec
	loss        prometheus.Gauge
	confidence  prometheus.Gauge
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. Collectors already
// registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	gauge := func(name, help string) prometheus.Gauge {
		if err != nil {
			return nil
		}
		var g prometheus.Gauge
		g, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}))
		return g
	}
	s.target = gauge("smartcharge_target_soc_percent", "Planned target state of charge")
	s.safeCurrent = gauge("smartcharge_safe_current_amps", "Current available to the charger after load balancing")
	s.price = gauge("smartcharge_price", "Adjusted price of the current slot")
	s.charging = gauge("smartcharge_charging", "1 when the plan charges now")
	s.maintenance = gauge("smartcharge_maintenance", "1 when the target has been reached")
	s.overload = gauge("smartcharge_overload_minutes", "Minutes lost to load balancing in the current session")
	s.loss = gauge("smartcharge_learning_loss_percent", "Learned charger loss")
	s.confidence = gauge("smartcharge_learning_confidence", "Learner confidence level")
	if err != nil {
		return nil, err
	}
	if s.ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartcharge_ticks_total", Help: "Control ticks processed",
	})); err != nil {
		return nil, err
	}
	if s.soc, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartcharge_soc_percent", Help: "State of charge by source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.commands, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcharge_commands_total", Help: "Commands sent to the charger and the car",
	}, []string{"command", "success"})); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartcharge_sessions_total", Help: "Finalized plug-in sessions",
	})); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartcharge_energy_kwh_total", Help: "Energy delivered over finalized sessions",
	})); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcharge_cost_total", Help: "Cost of finalized sessions",
	}, []string{"currency"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RecordTick updates the gauges from a tick summary.
func (s *PromSink) RecordTick(ev coremetrics.TickEvent) error {
	s.ticks.Inc()
	s.soc.WithLabelValues("virtual").Set(ev.SoC)
	s.soc.WithLabelValues("sensor").Set(ev.SensorSoC)
	s.target.Set(ev.TargetSoC)
	s.safeCurrent.Set(ev.SafeCurrentA)
	s.price.Set(ev.Price)
	s.charging.Set(boolGauge(ev.ShouldCharge && !ev.Maintenance))
	s.maintenance.Set(boolGauge(ev.Maintenance))
	s.overload.Set(ev.OverloadMin)
	return nil
}

// RecordActuation counts commands by outcome.
func (s *PromSink) RecordActuation(ev coremetrics.ActuationEvent) error {
	s.commands.WithLabelValues(ev.Command, strconv.FormatBool(ev.Success)).Inc()
	return nil
}

// RecordSession adds a finalized session to the totals.
func (s *PromSink) RecordSession(ev coremetrics.SessionEvent) error {
	s.sessions.Inc()
	if ev.AddedKWh > 0 {
		s.energy.Add(ev.AddedKWh)
	}
	if ev.Cost > 0 {
		s.cost.WithLabelValues(ev.Currency).Add(ev.Cost)
	}
	return nil
}

// RecordLearning exposes the learner state.
func (s *PromSink) RecordLearning(ev coremetrics.LearningEvent) error {
	s.loss.Set(ev.LossPct)
	s.confidence.Set(float64(ev.Confidence))
	return nil
}
