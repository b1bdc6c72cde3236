package actuation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/loadbalance"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

// StartupGrace is the period after start during which no command is sent.
const StartupGrace = 2 * time.Minute

// Request is the desired outcome of one tick.
type Request struct {
	Now          time.Time
	SafeCurrent  float64
	ShouldCharge bool
	Maintenance  bool
	// CarLimit is the SoC limit to push to the car.
	CarLimit int
}

// Command names reported in results.
const (
	CmdSwitch       = "switch"
	CmdCurrentLimit = "current_limit"
	CmdCarLimit     = "car_limit"
)

// CommandResult is the outcome of one port call.
type CommandResult struct {
	Command string
	Err     error
}

// Result reports what the sequencer did.
type Result struct {
	State      model.ChargeState
	Amps       int
	Suppressed bool
	Cutoff     bool
	Commands   []CommandResult
	// Actions are human readable lines for the action log.
	Actions []string
}

// Failed returns the commands that returned an error.
func (r Result) Failed() []CommandResult {
	var out []CommandResult
	for _, c := range r.Commands {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Sequencer applies requests to a Port in a safe order. The caches live in
// the VirtualSoCState passed to Apply and only change after a successful
// command, so failed commands are retried on the next tick.
type Sequencer struct {
	port    Port
	log     logger.Logger
	started time.Time
	mu      sync.Mutex
}

// NewSequencer returns a sequencer whose grace period starts at started.
func NewSequencer(port Port, log logger.Logger, started time.Time) *Sequencer {
	return &Sequencer{port: port, log: logger.OrNop(log), started: started}
}

// InGrace reports whether now is inside the startup grace period.
func (s *Sequencer) InGrace(now time.Time) bool {
	return now.Sub(s.started) < StartupGrace
}

// Apply drives the charger towards req.
func (s *Sequencer) Apply(ctx context.Context, st *model.VirtualSoCState, req Request) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{State: st.LastAppliedState, Amps: st.LastAppliedAmps}
	if s.InGrace(req.Now) {
		res.Suppressed = true
		return res
	}

	amps := int(math.Floor(req.SafeCurrent))
	desired := model.StatePaused
	switch {
	case req.Maintenance:
		desired = model.StateMaintenance
		amps = 0
	case req.ShouldCharge && amps < loadbalance.MinCurrentA:
		res.Cutoff = true
		res.Actions = append(res.Actions, fmt.Sprintf("Safety Cutoff: Available %dA is below minimum %.0fA. Pausing.", amps, loadbalance.MinCurrentA))
	case req.ShouldCharge:
		desired = model.StateCharging
	}

	if desired == model.StatePaused {
		s.pause(ctx, st, &res)
	} else {
		s.enable(ctx, st, desired, amps, req.CarLimit, &res)
	}
	res.State = st.LastAppliedState
	res.Amps = st.LastAppliedAmps
	return res
}

func (s *Sequencer) enable(ctx context.Context, st *model.VirtualSoCState, desired model.ChargeState, amps, carLimit int, res *Result) {
	entering := desired == model.StateCharging && st.LastAppliedState != model.StateCharging
	if carLimit > 0 && (carLimit != st.LastAppliedCarLimit || entering) {
		err := s.port.SetCarLimit(ctx, carLimit)
		switch {
		case err == nil:
			st.LastAppliedCarLimit = carLimit
			s.ok(res, CmdCarLimit)
			res.Actions = append(res.Actions, fmt.Sprintf("Car limit set to %d%%", carLimit))
		case errors.Is(err, ErrNotConfigured):
			st.LastAppliedCarLimit = carLimit
		default:
			s.fail(res, CmdCarLimit, err)
		}
	}

	if !st.LastAppliedState.SwitchOn() && !s.send(res, CmdSwitch, s.port.SetSwitch(ctx, true)) {
		return
	}
	if st.LastAppliedState != desired {
		if desired == model.StateMaintenance {
			res.Actions = append(res.Actions, "Maintenance mode: charger on at 0A")
		} else {
			res.Actions = append(res.Actions, fmt.Sprintf("Charging started at %dA", amps))
		}
	}
	st.LastAppliedState = desired

	if st.LastAppliedAmps != amps {
		if !s.send(res, CmdCurrentLimit, s.port.SetCurrentLimit(ctx, amps)) {
			return
		}
		if desired == model.StateCharging {
			res.Actions = append(res.Actions, fmt.Sprintf("Current limit set to %dA", amps))
		}
		st.LastAppliedAmps = amps
	}
}

func (s *Sequencer) pause(ctx context.Context, st *model.VirtualSoCState, res *Result) {
	if st.LastAppliedAmps != 0 {
		if !s.send(res, CmdCurrentLimit, s.port.SetCurrentLimit(ctx, 0)) {
			return
		}
		st.LastAppliedAmps = 0
	}
	if st.LastAppliedState != model.StatePaused {
		if !s.send(res, CmdSwitch, s.port.SetSwitch(ctx, false)) {
			return
		}
		if st.LastAppliedState != model.StateUnknown {
			res.Actions = append(res.Actions, "Charging paused")
		}
		st.LastAppliedState = model.StatePaused
	}
}

// ForceOff switches the charger off regardless of grace and caches, used when
// the car is unplugged. The amps and car limit caches are invalidated.
func (s *Sequencer) ForceOff(ctx context.Context, st *model.VirtualSoCState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.LastAppliedAmps = -1
	st.LastAppliedCarLimit = -1
	if err := s.port.SetSwitch(ctx, false); err != nil && !errors.Is(err, ErrNotConfigured) {
		s.log.Warnf("switch off on unplug failed: %v", err)
		st.LastAppliedState = model.StateUnknown
		return err
	}
	st.LastAppliedState = model.StatePaused
	return nil
}

// send records the outcome of a port call and reports whether the sequence
// may continue. An unmapped entity counts as applied.
func (s *Sequencer) send(res *Result, cmd string, err error) bool {
	switch {
	case err == nil:
		s.ok(res, cmd)
	case errors.Is(err, ErrNotConfigured):
		s.log.Debugf("%s not configured, skipping", cmd)
	default:
		s.fail(res, cmd, err)
		return false
	}
	return true
}

func (s *Sequencer) ok(res *Result, cmd string) {
	res.Commands = append(res.Commands, CommandResult{Command: cmd})
}

func (s *Sequencer) fail(res *Result, cmd string, err error) {
	s.log.Errorf("%s command failed: %v", cmd, err)
	res.Commands = append(res.Commands, CommandResult{Command: cmd, Err: err})
}
