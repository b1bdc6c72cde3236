package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
)

var now = time.Date(2024, 1, 15, 22, 0, 0, 0, time.UTC)

func TestMargin(t *testing.T) {
	assert.Equal(t, 3.0, Margin(0))
	assert.Equal(t, 3.0, Margin(2))
	assert.Equal(t, 2.0, Margin(3))
	assert.Equal(t, 2.0, Margin(5))
	assert.Equal(t, 1.0, Margin(6))
	assert.Equal(t, 1.0, Margin(8))
}

func TestUnderperformanceIncreasesLoss(t *testing.T) {
	st := model.LearningState{LossPct: 5, Confidence: 3, SessionsCount: 2}
	res, ok := Learner{}.Evaluate(&st, 75, 70, now)
	require.True(t, ok)
	assert.Equal(t, OutcomeUnderperformed, res.Outcome)
	assert.Equal(t, 7.5, st.LossPct)
	assert.Equal(t, 2, st.Confidence)
	assert.Equal(t, 3, st.SessionsCount)
}

func TestUnderperformanceLateStepIsCapped(t *testing.T) {
	st := model.LearningState{LossPct: 5, Confidence: 0, SessionsCount: 7}
	res, _ := Learner{}.Evaluate(&st, 80, 70, now)
	assert.Equal(t, 1.5, res.Delta)
	assert.Equal(t, 6.5, st.LossPct)
	assert.Equal(t, 0, st.Confidence)
}

func TestOverperformanceDecreasesLoss(t *testing.T) {
	st := model.LearningState{LossPct: 10, Confidence: 3, SessionsCount: 2}
	res, ok := Learner{}.Evaluate(&st, 70, 75, now)
	require.True(t, ok)
	assert.Equal(t, OutcomeOverperformed, res.Outcome)
	assert.Equal(t, 8.0, st.LossPct)
	assert.Equal(t, 2, st.Confidence)

	late := model.LearningState{LossPct: 10, Confidence: 6, SessionsCount: 9}
	res, _ = Learner{}.Evaluate(&late, 70, 80, now)
	assert.Equal(t, -1.0, res.Delta)
	assert.Equal(t, 9.0, late.LossPct)
}

func TestWithinMarginRaisesConfidenceAndLocks(t *testing.T) {
	st := model.LearningState{LossPct: 10, Confidence: 5, SessionsCount: 5}
	res, _ := Learner{}.Evaluate(&st, 80, 81, now)
	assert.Equal(t, OutcomeWithinMargin, res.Outcome)
	assert.Equal(t, 6, st.Confidence)
	assert.Equal(t, 6, st.SessionsCount)
	assert.Equal(t, 10.0, st.LossPct)

	st.Confidence = 7
	Learner{}.Evaluate(&st, 80, 80.5, now)
	assert.True(t, st.Locked)
	assert.Equal(t, MaxConfidence, st.Confidence)

	res, ok := Learner{}.Evaluate(&st, 80, 60, now)
	require.True(t, ok)
	assert.Equal(t, OutcomeLocked, res.Outcome)
	assert.Equal(t, 10.0, st.LossPct, "locked learner must not adjust loss")
	assert.True(t, st.Locked)
	assert.Equal(t, 8, st.SessionsCount)
}

func TestLossIsClamped(t *testing.T) {
	high := model.LearningState{LossPct: 19}
	Learner{}.Evaluate(&high, 80, 60, now)
	assert.Equal(t, MaxLossPct, high.LossPct)

	low := model.LearningState{LossPct: 1}
	Learner{}.Evaluate(&low, 60, 80, now)
	assert.Equal(t, 0.0, low.LossPct)
}

func TestSkipsUnusableSamples(t *testing.T) {
	st := model.LearningState{LossPct: 10, SessionsCount: 3}
	_, ok := Learner{}.Evaluate(&st, 80, 0, now)
	assert.False(t, ok)
	_, ok = Learner{}.Evaluate(&st, 0, 80, now)
	assert.False(t, ok)
	assert.Equal(t, 3, st.SessionsCount)
	assert.Empty(t, st.History)
}

func TestHistoryKeepsLastTen(t *testing.T) {
	st := model.LearningState{LossPct: 10}
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		Learner{}.Evaluate(&st, 80, 80, start.Add(time.Duration(i)*time.Hour))
	}
	require.Len(t, st.History, MaxHistory)
	assert.Equal(t, start.Add(2*time.Hour), st.History[0].Timestamp)
	assert.Equal(t, start.Add(11*time.Hour), st.History[MaxHistory-1].Timestamp)
}

func TestReset(t *testing.T) {
	st := model.LearningState{LossPct: 3, Confidence: 8, Locked: true, SessionsCount: 12}
	Learner{}.Reset(&st, 10)
	assert.Equal(t, model.LearningState{LossPct: 10}, st)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]model.LearningSample{{Error: -2}, {Error: 4}})
	assert.Equal(t, 2, s.Samples)
	assert.InDelta(t, 1.0, s.MeanError, 1e-9)
	assert.InDelta(t, 3.0, s.MeanAbsError, 1e-9)
	assert.Equal(t, Summary{}, Summarize(nil))
}
