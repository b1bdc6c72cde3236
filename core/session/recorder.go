// Package session records plug-in sessions, overload time and the rolling
// action log.
package session

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/integrate"

	"github.com/kilianp07/smartcharge/core/estimator"
	"github.com/kilianp07/smartcharge/core/model"
)

// Recorder tracks the open session and keeps the last finalized report.
type Recorder struct {
	Current *model.SessionRecord
	Last    *model.SessionReport
	burst   bool
	newID   func() string
}

// NewRecorder returns an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{newID: func() string { return uuid.NewString() }}
}

// Restore reinstates persisted session data.
func (r *Recorder) Restore(cur *model.SessionRecord, last *model.SessionReport) {
	r.Current = cur
	r.Last = last
}

// Active reports whether a session is open.
func (r *Recorder) Active() bool { return r.Current != nil }

// Open starts a new session, discarding any unfinished one.
func (r *Recorder) Open(now time.Time) *model.SessionRecord {
	r.Current = &model.SessionRecord{ID: r.newID(), StartTime: now}
	r.burst = false
	return r.Current
}

// MarkCharging flags that charging happened since the last point, so short
// bursts between samples are not lost.
func (r *Recorder) MarkCharging() { r.burst = true }

// Append adds a point to the open session.
func (r *Recorder) Append(p model.SessionPoint) {
	if r.Current == nil {
		return
	}
	p.Charging = p.Charging || r.burst
	r.burst = false
	r.Current.History = append(r.Current.History, p)
}

// AddLog mirrors an action log line into the open session.
func (r *Recorder) AddLog(line string) {
	if r.Current == nil {
		return
	}
	r.Current.Log = append(r.Current.Log, line)
}

// Finalize closes the open session and returns its report. It returns nil
// when no session is open.
func (r *Recorder) Finalize(now time.Time, currency string) *model.SessionReport {
	cur := r.Current
	if cur == nil {
		return nil
	}
	end := now
	cur.EndTime = &end

	rep := &model.SessionReport{
		ID:         cur.ID,
		StartTime:  cur.StartTime,
		EndTime:    now,
		Currency:   currency,
		GraphData:  cur.History,
		SessionLog: cur.Log,
	}
	if n := len(cur.History); n > 0 {
		rep.StartSoC = cur.History[0].SoC
		rep.EndSoC = cur.History[n-1].SoC
	}
	rep.AddedKWh, rep.TotalCost = Totals(cur.History)

	r.Last = rep
	r.Current = nil
	r.burst = false
	return rep
}

// Totals integrates delivered energy and its cost over the history using the
// trapezoidal rule.
func Totals(points []model.SessionPoint) (kwh, cost float64) {
	if len(points) < 2 {
		return 0, 0
	}
	x := make([]float64, len(points))
	power := make([]float64, len(points))
	spend := make([]float64, len(points))
	t0 := points[0].Time
	for i, p := range points {
		x[i] = p.Time.Sub(t0).Hours()
		if p.Charging && p.Amps > 0 {
			power[i] = estimator.PowerKW(float64(p.Amps))
		}
		spend[i] = power[i] * p.Price
	}
	for i := 1; i < len(x); i++ {
		if x[i] < x[i-1] {
			return 0, 0
		}
	}
	return integrate.Trapezoidal(x, power), integrate.Trapezoidal(x, spend)
}
