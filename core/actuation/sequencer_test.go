package actuation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
)

type fakePort struct {
	calls     []string
	failOn    map[string]error
	unmapped  map[string]bool
	refreshes int
}

func (f *fakePort) do(call string) error {
	if err := f.failOn[call]; err != nil {
		return err
	}
	if kind, _, _ := strings.Cut(call, ":"); f.unmapped[kind] {
		return ErrNotConfigured
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakePort) SetSwitch(_ context.Context, on bool) error {
	if on {
		return f.do("switch:on")
	}
	return f.do("switch:off")
}

func (f *fakePort) SetCurrentLimit(_ context.Context, amps int) error {
	return f.do(fmt.Sprintf("amps:%d", amps))
}

func (f *fakePort) SetCarLimit(_ context.Context, soc int) error {
	return f.do(fmt.Sprintf("limit:%d", soc))
}

func (f *fakePort) RequestRefresh(context.Context) error {
	f.refreshes++
	return nil
}

var start = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func ready() time.Time { return start.Add(StartupGrace) }

func newState() *model.VirtualSoCState {
	st := model.NewVirtualSoCState(start)
	return &st
}

func TestGraceSuppressesCommands(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	res := seq.Apply(context.Background(), newState(), Request{Now: start.Add(time.Minute), SafeCurrent: 16, ShouldCharge: true, CarLimit: 80})
	assert.True(t, res.Suppressed)
	assert.Empty(t, port.calls)
}

func TestChargingOrder(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	st := newState()
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16.7, ShouldCharge: true, CarLimit: 80})

	assert.Equal(t, []string{"limit:80", "switch:on", "amps:16"}, port.calls)
	assert.Equal(t, model.StateCharging, res.State)
	assert.Equal(t, 16, st.LastAppliedAmps)
	assert.Equal(t, 80, st.LastAppliedCarLimit)

	port.calls = nil
	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16.2, ShouldCharge: true, CarLimit: 80})
	assert.Empty(t, port.calls, "cached state must not resend commands")

	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 10, ShouldCharge: true, CarLimit: 80})
	assert.Equal(t, []string{"amps:10"}, port.calls)
}

func TestPausingOrder(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	st := newState()
	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true, CarLimit: 80})

	port.calls = nil
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, CarLimit: 80})
	assert.Equal(t, []string{"amps:0", "switch:off"}, port.calls)
	assert.Equal(t, model.StatePaused, res.State)
	assert.Contains(t, res.Actions, "Charging paused")
}

func TestSwitchFailureLeavesLimiterUntouched(t *testing.T) {
	port := &fakePort{failOn: map[string]error{"switch:on": errors.New("timeout")}}
	seq := NewSequencer(port, nil, start)
	st := newState()
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true})

	require.Len(t, res.Failed(), 1)
	assert.Equal(t, CmdSwitch, res.Failed()[0].Command)
	assert.Empty(t, port.calls)
	assert.Equal(t, model.StateUnknown, st.LastAppliedState)
	assert.Equal(t, -1, st.LastAppliedAmps)

	port.failOn = nil
	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true})
	assert.Equal(t, []string{"switch:on", "amps:16"}, port.calls)
}

func TestLimiterFailureKeepsSwitchOn(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	st := newState()
	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true})

	port.calls = nil
	port.failOn = map[string]error{"amps:0": errors.New("offline")}
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16})
	assert.Empty(t, port.calls)
	assert.Equal(t, model.StateCharging, res.State)
	assert.Len(t, res.Failed(), 1)
}

func TestSafetyCutoff(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	st := newState()
	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true})

	port.calls = nil
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 5.9, ShouldCharge: true})
	assert.True(t, res.Cutoff)
	assert.Equal(t, model.StatePaused, res.State)
	assert.Equal(t, []string{"amps:0", "switch:off"}, port.calls)
	assert.Equal(t, "Safety Cutoff: Available 5A is below minimum 6A. Pausing.", res.Actions[0])
}

func TestMaintenanceKeepsSwitchOnAtZeroAmps(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	st := newState()
	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true, CarLimit: 80})

	port.calls = nil
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true, Maintenance: true, CarLimit: 80})
	assert.Equal(t, []string{"amps:0"}, port.calls)
	assert.Equal(t, model.StateMaintenance, res.State)
}

func TestCarLimitResentWhenEnteringCharging(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	st := newState()
	st.LastAppliedCarLimit = 80
	st.LastAppliedState = model.StatePaused
	st.LastAppliedAmps = 0
	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true, CarLimit: 80})
	assert.Equal(t, []string{"limit:80", "switch:on", "amps:16"}, port.calls)
}

func TestUnconfiguredCarLimitIsCached(t *testing.T) {
	port := &fakePort{failOn: map[string]error{"limit:80": ErrNotConfigured}}
	seq := NewSequencer(port, nil, start)
	st := newState()
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true, CarLimit: 80})
	assert.Empty(t, res.Failed())
	assert.Equal(t, 80, st.LastAppliedCarLimit)
}

func TestForceOff(t *testing.T) {
	port := &fakePort{}
	seq := NewSequencer(port, nil, start)
	st := newState()
	require.NoError(t, seq.ForceOff(context.Background(), st))
	assert.Equal(t, []string{"switch:off"}, port.calls)
	assert.Equal(t, model.StatePaused, st.LastAppliedState)
	assert.Equal(t, -1, st.LastAppliedCarLimit)
}

func TestUnmappedLimiterStillSwitchesOff(t *testing.T) {
	port := &fakePort{unmapped: map[string]bool{"amps": true}}
	seq := NewSequencer(port, nil, start)
	st := newState()
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true})
	assert.Equal(t, []string{"switch:on"}, port.calls)
	assert.Equal(t, model.StateCharging, res.State)
	assert.Empty(t, res.Failed())

	port.calls = nil
	res = seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 3, ShouldCharge: true})
	assert.True(t, res.Cutoff)
	assert.Equal(t, model.StatePaused, res.State)
	assert.Equal(t, []string{"switch:off"}, port.calls)
	assert.Empty(t, res.Failed())

	port.calls = nil
	for i := 0; i < 2; i++ {
		res = seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 3, ShouldCharge: true})
		assert.Equal(t, model.StatePaused, res.State)
	}
	assert.Empty(t, port.calls)

	seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true})
	assert.Equal(t, []string{"switch:on"}, port.calls)
}

func TestUnmappedSwitchUsesLimiterOnly(t *testing.T) {
	port := &fakePort{unmapped: map[string]bool{"switch": true}}
	seq := NewSequencer(port, nil, start)
	st := newState()
	res := seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16, ShouldCharge: true})
	assert.Equal(t, []string{"amps:16"}, port.calls)
	assert.Equal(t, model.StateCharging, res.State)

	port.calls = nil
	res = seq.Apply(context.Background(), st, Request{Now: ready(), SafeCurrent: 16})
	assert.Equal(t, []string{"amps:0"}, port.calls)
	assert.Equal(t, model.StatePaused, res.State)
	assert.Empty(t, res.Failed())
}
