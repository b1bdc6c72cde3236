package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
)

var t0 = time.Date(2026, 2, 17, 23, 45, 0, 0, time.UTC)

func TestOverloadCountsElapsedTimeNotTicks(t *testing.T) {
	var o OverloadTimer
	for i := 0; i <= 10; i++ {
		o.Check(t0.Add(time.Duration(i*6)*time.Second), true)
	}
	assert.InDelta(t, 1.0, o.Minutes, 1e-9)
}

func TestOverloadIrregularTicks(t *testing.T) {
	var o OverloadTimer
	now := t0
	steps := []int{2, 10, 5, 3, 7, 2, 9, 4}
	end := t0.Add(48 * time.Minute)
	for i := 0; now.Before(end); i++ {
		o.Check(now, true)
		now = now.Add(time.Duration(steps[i%len(steps)]) * time.Second)
	}
	o.Check(end, true)
	assert.InDelta(t, 48.0, o.Minutes, 1e-6)
}

func TestOverloadResetsClockWhenCleared(t *testing.T) {
	var o OverloadTimer
	o.Check(t0, true)
	o.Check(t0.Add(30*time.Second), true)
	o.Check(t0.Add(time.Minute), false)
	assert.Nil(t, o.LastCheck)
	assert.InDelta(t, 0.5, o.Minutes, 1e-9)

	o.Check(t0.Add(10*time.Minute), true)
	assert.InDelta(t, 0.5, o.Minutes, 1e-9, "gap without overload must not count")

	o.Reset()
	assert.Zero(t, o.Minutes)
	assert.Nil(t, o.LastCheck)
}

func TestRecorderLifecycle(t *testing.T) {
	r := NewRecorder()
	assert.Nil(t, r.Finalize(t0, "SEK"))

	cur := r.Open(t0)
	require.NotEmpty(t, cur.ID)
	assert.True(t, r.Active())

	r.Append(model.SessionPoint{Time: t0, SoC: 40, Amps: 16, Charging: true, Price: 2})
	r.Append(model.SessionPoint{Time: t0.Add(time.Hour), SoC: 55, Amps: 16, Charging: true, Price: 2})
	r.MarkCharging()
	r.Append(model.SessionPoint{Time: t0.Add(2 * time.Hour), SoC: 55, Amps: 0, Price: 1})
	r.AddLog("Charging started at 16A")

	rep := r.Finalize(t0.Add(2*time.Hour), "SEK")
	require.NotNil(t, rep)
	assert.Equal(t, cur.ID, rep.ID)
	assert.Equal(t, 40.0, rep.StartSoC)
	assert.Equal(t, 55.0, rep.EndSoC)
	assert.True(t, rep.GraphData[2].Charging, "burst flag marks the next point")
	// 11.04 kW for the first hour, ramping to 0 over the second.
	assert.InDelta(t, 11.04+5.52, rep.AddedKWh, 1e-9)
	assert.InDelta(t, 22.08+11.04, rep.TotalCost, 1e-9)
	assert.Equal(t, []string{"Charging started at 16A"}, rep.SessionLog)
	assert.False(t, r.Active())
	assert.Same(t, rep, r.Last)
}

func TestTotalsNeedTwoPoints(t *testing.T) {
	kwh, cost := Totals([]model.SessionPoint{{Time: t0, Amps: 16, Charging: true, Price: 1}})
	assert.Zero(t, kwh)
	assert.Zero(t, cost)
}

func TestActionLogWindow(t *testing.T) {
	var l ActionLog
	l.Add(t0, "old")
	line := l.Add(t0.Add(23*time.Hour), "recent")
	assert.Equal(t, "[2026-02-18 22:45:00] recent", line)
	require.Len(t, l.Entries, 2)
	assert.Equal(t, "recent", l.Entries[0].Message)

	l.Add(t0.Add(25*time.Hour), "newest")
	assert.Equal(t, []string{"[2026-02-19 00:45:00] newest", "[2026-02-18 22:45:00] recent"}, l.Lines())
}
