// Package learning calibrates the charger loss factor from forced sensor
// refreshes and decides when such refreshes are issued.
package learning

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/smartcharge/core/model"
)

const (
	MaxLossPct    = 20.0
	MaxConfidence = 8
	MaxHistory    = 10
	// EarlySessions is the number of sessions during which larger steps apply.
	EarlySessions = 5
)

// Outcome classifies a verification.
type Outcome string

const (
	OutcomeWithinMargin   Outcome = "within_margin"
	OutcomeUnderperformed Outcome = "underperformed"
	OutcomeOverperformed  Outcome = "overperformed"
	OutcomeLocked         Outcome = "locked"
)

// Result describes one learning evaluation.
type Result struct {
	Outcome Outcome
	Error   float64
	Margin  float64
	// Delta is the change applied to the loss percentage.
	Delta float64
}

// Margin returns the tolerated error for the given confidence.
func Margin(confidence int) float64 {
	switch {
	case confidence < 3:
		return 3.0
	case confidence < 6:
		return 2.0
	default:
		return 1.0
	}
}

// Learner adjusts LearningState after each verification.
type Learner struct{}

// Evaluate compares the sensor reading after a refresh with the estimate
// recorded before it. It returns false when the sample is unusable.
func (Learner) Evaluate(st *model.LearningState, expected, actual float64, now time.Time) (Result, bool) {
	if actual <= 0 || expected <= 0 {
		return Result{}, false
	}
	errPct := actual - expected
	res := Result{Error: errPct, Margin: Margin(st.Confidence)}
	early := st.SessionsCount < EarlySessions

	switch {
	case st.Locked:
		res.Outcome = OutcomeLocked
	case errPct < -res.Margin:
		res.Outcome = OutcomeUnderperformed
		if early {
			res.Delta = math.Min(3.0, math.Abs(errPct)*0.5)
		} else {
			res.Delta = math.Min(1.5, math.Abs(errPct)*0.3)
		}
		st.Confidence = max(st.Confidence-1, 0)
	case errPct > res.Margin:
		res.Outcome = OutcomeOverperformed
		if early {
			res.Delta = -math.Min(2.0, errPct*0.4)
		} else {
			res.Delta = -math.Min(1.0, errPct*0.25)
		}
		st.Confidence = max(st.Confidence-1, 0)
	default:
		res.Outcome = OutcomeWithinMargin
		st.Confidence = min(st.Confidence+1, MaxConfidence)
	}

	st.LossPct = clampLoss(st.LossPct + res.Delta)
	st.SessionsCount++
	if st.Confidence >= MaxConfidence {
		st.Locked = true
	}

	st.History = append(st.History, model.LearningSample{
		Timestamp:   now,
		ExpectedSoC: expected,
		ActualSoC:   actual,
		Error:       errPct,
	})
	if len(st.History) > MaxHistory {
		st.History = append([]model.LearningSample(nil), st.History[len(st.History)-MaxHistory:]...)
	}
	return res, true
}

// Reset clears the learned state back to the configured loss.
func (Learner) Reset(st *model.LearningState, lossPct float64) {
	*st = model.NewLearningState(clampLoss(lossPct))
}

func clampLoss(v float64) float64 {
	return math.Max(0, math.Min(MaxLossPct, v))
}

// Summary aggregates the verification history.
type Summary struct {
	Samples      int     `json:"samples"`
	MeanError    float64 `json:"mean_error"`
	MeanAbsError float64 `json:"mean_abs_error"`
}

// Summarize computes error statistics over the retained history.
func Summarize(history []model.LearningSample) Summary {
	if len(history) == 0 {
		return Summary{}
	}
	errs := make([]float64, len(history))
	abs := make([]float64, len(history))
	for i, h := range history {
		errs[i] = h.Error
		abs[i] = math.Abs(h.Error)
	}
	return Summary{
		Samples:      len(history),
		MeanError:    stat.Mean(errs, nil),
		MeanAbsError: stat.Mean(abs, nil),
	}
}
