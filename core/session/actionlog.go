package session

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// ActionLogWindow is how long entries stay in the action log.
const ActionLogWindow = 24 * time.Hour

// ActionLog is a newest-first log of actions from the last 24 hours.
type ActionLog struct {
	Entries []model.LogEntry `json:"entries"`
}

// Add prepends msg and drops expired entries. It returns the formatted line.
func (l *ActionLog) Add(now time.Time, msg string) string {
	e := model.LogEntry{Time: now, Message: msg}
	l.Entries = append([]model.LogEntry{e}, l.Entries...)
	l.Prune(now)
	return e.String()
}

// Prune removes entries older than the window.
func (l *ActionLog) Prune(now time.Time) {
	cutoff := now.Add(-ActionLogWindow)
	kept := l.Entries[:0]
	for _, e := range l.Entries {
		if e.Time.After(cutoff) {
			kept = append(kept, e)
		}
	}
	l.Entries = kept
}

// Lines returns the formatted entries, newest first.
func (l *ActionLog) Lines() []string {
	out := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.String()
	}
	return out
}
