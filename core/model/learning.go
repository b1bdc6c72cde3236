package model

import "time"

// LearningSample is one verification of the estimate against the sensor.
type LearningSample struct {
	Timestamp   time.Time `json:"timestamp"`
	ExpectedSoC float64   `json:"expected_soc"`
	ActualSoC   float64   `json:"actual_soc"`
	Error       float64   `json:"error"`
}

// LearningState is the persisted state of the efficiency learner.
type LearningState struct {
	LossPct       float64          `json:"loss_pct"`
	Confidence    int              `json:"confidence"`
	SessionsCount int              `json:"sessions_count"`
	Locked        bool             `json:"locked"`
	LastRefresh   *time.Time       `json:"last_refresh_time,omitempty"`
	History       []LearningSample `json:"history"`
}

// NewLearningState seeds the learner with the configured charger loss.
func NewLearningState(lossPct float64) LearningState {
	return LearningState{LossPct: lossPct}
}
