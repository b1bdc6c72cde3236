package control

import (
	"math"
	"time"

	"github.com/kilianp07/smartcharge/core/learning"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/persistence"
	"github.com/kilianp07/smartcharge/core/session"
)

// RefreshState is the bookkeeping around the last forced sensor refresh.
type RefreshState struct {
	At *time.Time `json:"refresh_requested_at,omitempty"`
	// SensorBefore and EstimateBefore are noted when the refresh is sent.
	SensorBefore   float64    `json:"soc_before_refresh"`
	EstimateBefore float64    `json:"estimate_before_refresh"`
	PendingLearnAt *time.Time `json:"pending_learning_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

func (r *RefreshState) clear() {
	*r = RefreshState{}
}

// PlanLock freezes a schedule once charging has started.
type PlanLock struct {
	Decision model.PlanDecision `json:"decision"`
	// SensorSoC is the sensor reading when the lock was taken.
	SensorSoC float64   `json:"sensor_soc"`
	LockedAt  time.Time `json:"locked_at"`
}

// State is everything the control loop owns. It is only mutated inside a
// tick or under the controller mutex.
type State struct {
	Settings       model.UserSettings
	ManualOverride bool
	VirtualSoC     model.VirtualSoCState
	Learning       model.LearningState
	Overload       session.OverloadTimer
	Log            session.ActionLog
	Recorder       *session.Recorder
	WasPlugged     bool
	Refresh        RefreshState
	Lock           *PlanLock
	// LastScheduledEnd is the end of the run the charger last charged in.
	LastScheduledEnd *time.Time
	BufferEnd        *time.Time
	LastDecision     model.PlanDecision
	LastSnapshot     model.SensorSnapshot
	// LastEvents are the calendar events the last plan was made with.
	LastEvents      []model.CalendarEvent
	LastSafeCurrent float64
}

// NewState returns the state used before anything has been persisted.
func NewState(cfg Config, now time.Time) *State {
	return &State{
		Settings:   cfg.userDefaults(),
		VirtualSoC: model.NewVirtualSoCState(now),
		Learning:   model.NewLearningState(cfg.ChargerLossPct),
		Recorder:   session.NewRecorder(),
	}
}

// Snapshot converts the state to its persisted form.
func (s *State) Snapshot(now time.Time) persistence.State {
	p := persistence.State{
		Version:        persistence.StateVersion,
		SavedAt:        now,
		Settings:       s.Settings,
		ManualOverride: s.ManualOverride,
		VirtualSoC:     s.VirtualSoC,
		Learning:       s.Learning,
		Overload:       s.Overload,
		ActionLog:      append([]model.LogEntry(nil), s.Log.Entries...),
		LastSession:    s.Recorder.Last,
		WasPlugged:     s.WasPlugged,
	}
	// The saved copy is encoded on another goroutine while ticks keep appending.
	p.Learning.History = append([]model.LearningSample(nil), s.Learning.History...)
	if cur := s.Recorder.Current; cur != nil {
		cp := *cur
		cp.History = append([]model.SessionPoint(nil), cur.History...)
		cp.Log = append([]string(nil), cur.Log...)
		p.CurrentSession = &cp
	}
	return p
}

// apply restores a persisted state. The applied-state caches are kept only as
// far as they are safe: the charger may have been changed while we were down.
func (s *State) apply(p *persistence.State, now time.Time) {
	s.Settings = p.Settings
	s.ManualOverride = p.ManualOverride
	s.VirtualSoC = p.VirtualSoC
	s.VirtualSoC.LastUpdate = now
	s.VirtualSoC.LastAppliedAmps = -1
	s.VirtualSoC.LastAppliedState = model.StateUnknown
	s.VirtualSoC.LastAppliedCarLimit = -1
	s.Learning = p.Learning
	s.Learning.LossPct = math.Max(0, math.Min(learning.MaxLossPct, s.Learning.LossPct))
	s.Overload = p.Overload
	s.Log.Entries = append([]model.LogEntry(nil), p.ActionLog...)
	s.Log.Prune(now)
	s.Recorder.Restore(p.CurrentSession, p.LastSession)
	s.WasPlugged = p.WasPlugged
}
