package metrics

import "time"

// TickEvent summarizes one control tick.
type TickEvent struct {
	Time          time.Time
	Plugged       bool
	SoC           float64
	SensorSoC     float64
	TargetSoC     float64
	SafeCurrentA  float64
	Price         float64
	PriceLabel    string
	ShouldCharge  bool
	Maintenance   bool
	State         string
	RequiredSlots int
	OverloadMin   float64
}

// MetricsSink records tick summaries.
type MetricsSink interface {
	RecordTick(ev TickEvent) error
}

// ActuationEvent is one command sent to the charger or the car.
type ActuationEvent struct {
	Time    time.Time
	Command string
	Success bool
	Error   string
}

// ActuationRecorder records charger and car commands.
type ActuationRecorder interface {
	RecordActuation(ev ActuationEvent) error
}

// SessionEvent is emitted when a plug-in session is finalized.
type SessionEvent struct {
	Time      time.Time
	SessionID string
	Duration  time.Duration
	StartSoC  float64
	EndSoC    float64
	AddedKWh  float64
	Cost      float64
	Currency  string
}

// SessionRecorder records finalized sessions.
type SessionRecorder interface {
	RecordSession(ev SessionEvent) error
}

// LearningEvent is emitted after each efficiency evaluation.
type LearningEvent struct {
	Time       time.Time
	Outcome    string
	Error      float64
	LossPct    float64
	Confidence int
	Locked     bool
}

// LearningRecorder records learner evaluations.
type LearningRecorder interface {
	RecordLearning(ev LearningEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTick(TickEvent) error           { return nil }
func (NopSink) RecordActuation(ActuationEvent) error { return nil }
func (NopSink) RecordSession(SessionEvent) error     { return nil }
func (NopSink) RecordLearning(LearningEvent) error   { return nil }
