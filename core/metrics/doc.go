// Package metrics defines the observability interface of the charging
// controller. A MetricsSink records one TickEvent per control tick; sinks may
// also implement ActuationRecorder, SessionRecorder and LearningRecorder to
// receive the other event kinds. Sinks are built from configuration through
// the factory registry and combined with MultiSink when several are set.
package metrics
