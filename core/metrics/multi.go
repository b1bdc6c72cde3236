package metrics

// MultiSink fans events out to several sinks. Optional recorders are only
// invoked on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTick forwards the tick, returning the first error encountered.
func (m *MultiSink) RecordTick(ev TickEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTick(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordActuation(ev ActuationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ActuationRecorder); ok {
			if err := rec.RecordActuation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordSession(ev SessionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SessionRecorder); ok {
			if err := rec.RecordSession(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordLearning(ev LearningEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(LearningRecorder); ok {
			if err := rec.RecordLearning(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
