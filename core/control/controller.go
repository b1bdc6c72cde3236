// Package control runs the charging control loop. A Controller owns the
// State and drives one tick at a time: read the snapshot, plan, actuate and
// record.
package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/actuation"
	"github.com/kilianp07/smartcharge/core/estimator"
	"github.com/kilianp07/smartcharge/core/journal"
	"github.com/kilianp07/smartcharge/core/learning"
	"github.com/kilianp07/smartcharge/core/loadbalance"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/core/persistence"
	"github.com/kilianp07/smartcharge/core/price"
	"github.com/kilianp07/smartcharge/core/scheduler"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// BufferWindow is how long charging continues after a scheduled run ends.
const BufferWindow = 15 * time.Minute

// CmdRefresh labels car refresh requests in actuation metrics.
const CmdRefresh = "refresh"

// SnapshotSource provides the sensor snapshot for a tick.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (model.SensorSnapshot, error)
}

// CalendarSource provides blocking calendar events.
type CalendarSource interface {
	Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error)
}

// Deps are the collaborators of a Controller. Only Source and Port are
// required.
type Deps struct {
	Source   SnapshotSource
	Calendar CalendarSource
	Port     actuation.Port
	Logger   logger.Logger
	Metrics  metrics.MetricsSink
	Monitor  monitoring.Monitor
	Bus      *eventbus.TypedBus[Update]
	Journal  journal.Store
	Store    persistence.Store
	Persist  *persistence.Debouncer
	Now      func() time.Time
}

// Controller runs the tick pipeline.
type Controller struct {
	cfg      Config
	source   SnapshotSource
	calendar CalendarSource
	port     actuation.Port
	log      logger.Logger
	metrics  metrics.MetricsSink
	monitor  monitoring.Monitor
	bus      *eventbus.TypedBus[Update]
	journal  journal.Store
	store    persistence.Store
	persist  *persistence.Debouncer
	now      func() time.Time

	planner  scheduler.Planner
	est      *estimator.Estimator
	learner  learning.Learner
	policy   learning.RefreshPolicy
	balancer loadbalance.Balancer
	seq      *actuation.Sequencer

	mu sync.Mutex
	st *State

	lastMu sync.RWMutex
	last   Update

	requests chan struct{}
}

// New builds a controller. The startup grace period starts now.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Source == nil {
		return nil, errors.New("control: snapshot source is required")
	}
	if deps.Port == nil {
		return nil, errors.New("control: actuation port is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("control config: %w", err)
	}
	c := &Controller{
		cfg:      cfg,
		source:   deps.Source,
		calendar: deps.Calendar,
		port:     deps.Port,
		log:      logger.OrNop(deps.Logger),
		metrics:  deps.Metrics,
		monitor:  deps.Monitor,
		bus:      deps.Bus,
		journal:  deps.Journal,
		store:    deps.Store,
		persist:  deps.Persist,
		now:      deps.Now,
		planner:  scheduler.New(cfg.Planner),
		est:      estimator.New(cfg.Planner.CapacityKWh),
		balancer: loadbalance.Balancer{FuseA: cfg.Planner.MaxFuseA, ChargerMaxA: cfg.Planner.ChargerMaxA},
		requests: make(chan struct{}, 1),
	}
	if c.metrics == nil {
		c.metrics = metrics.NopSink{}
	}
	if c.monitor == nil {
		c.monitor = monitoring.NopMonitor{}
	}
	if c.journal == nil {
		c.journal = journal.NopStore{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	start := c.now()
	c.st = NewState(cfg, start)
	c.seq = actuation.NewSequencer(deps.Port, c.log, start)
	return c, nil
}

// Restore loads the persisted state, if any.
func (c *Controller) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	p, err := c.store.Load(ctx)
	if errors.Is(err, persistence.ErrNotFound) {
		c.log.Infof("no persisted state, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.apply(p, c.now())
	c.log.Infof("restored state saved at %s", p.SavedAt.Format(time.RFC3339))
	return nil
}

// Run ticks on the configured interval and on request until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval())
	defer ticker.Stop()
	c.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.runTick(ctx)
		case <-c.requests:
			c.runTick(ctx)
		}
	}
}

// RequestTick asks Run for an out-of-band tick. Requests made while one is
// pending are coalesced.
func (c *Controller) RequestTick() {
	select {
	case c.requests <- struct{}{}:
	default:
	}
}

func (c *Controller) runTick(ctx context.Context) {
	if _, err := c.Tick(ctx); err != nil {
		c.log.Errorf("tick failed: %v", err)
		c.monitor.CaptureException(err, map[string]string{"component": "control"})
	}
}

// Tick runs the full pipeline once.
func (c *Controller) Tick(ctx context.Context) (Update, error) {
	now := c.now()
	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		return Update{}, fmt.Errorf("read snapshot: %w", err)
	}
	events := c.events(ctx, now, snap)

	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.st

	safe := c.balancer.SafeCurrent(snap.Household, snap.Charger)
	prices := price.NewAnalyzer(st.Settings).Analyze(snap.Prices, now)

	c.handlePlug(ctx, now, snap)
	c.runLearning(ctx, now, snap)

	upd := c.est.Update(&st.VirtualSoC, estimator.Input{
		Now:                 now,
		SensorSoC:           snap.CarSoC,
		MeasuredAmps:        snap.MeasuredChargerCurrent(),
		LossPct:             st.Learning.LossPct,
		RefreshAt:           st.Refresh.At,
		SensorBeforeRefresh: st.Refresh.SensorBefore,
	})
	if upd.Trusted && upd.Adopted {
		c.addAction(ctx, now, fmt.Sprintf("Sensor refresh adopted: %.0f%%", st.VirtualSoC.Value))
	}

	dec := c.decide(now, snap, events)
	c.manageRefresh(ctx, now, snap, dec, safe)

	prev := st.VirtualSoC.LastAppliedState
	res := c.seq.Apply(ctx, &st.VirtualSoC, actuation.Request{
		Now:          now,
		SafeCurrent:  safe,
		ShouldCharge: dec.ShouldChargeNow,
		Maintenance:  dec.Maintenance,
		CarLimit:     int(math.Round(dec.PlannedTargetSoC)),
	})
	for _, a := range res.Actions {
		c.addAction(ctx, now, a)
	}
	for _, cmd := range res.Commands {
		c.recordActuation(now, cmd.Command, cmd.Err)
	}

	c.record(now, snap, dec, res, prev, prices, safe)

	st.LastDecision = dec
	st.LastSnapshot = snap
	st.LastEvents = events
	st.LastSafeCurrent = safe
	out := c.buildUpdate(now, snap, dec, res, prices, safe)

	if err := c.metrics.RecordTick(tickEvent(out)); err != nil {
		c.log.Warnf("record tick metrics: %v", err)
	}
	c.setLast(out)
	if c.bus != nil {
		c.bus.Publish(out)
	}
	c.save(now)
	return out, nil
}

func (c *Controller) events(ctx context.Context, now time.Time, snap model.SensorSnapshot) []model.CalendarEvent {
	if c.calendar == nil {
		return snap.Calendar
	}
	evs, err := c.calendar.Events(ctx, now, now.Add(c.cfg.CalendarHorizon()))
	if err != nil {
		c.log.Warnf("calendar unavailable, planning without events: %v", err)
		return nil
	}
	return evs
}

func (c *Controller) handlePlug(ctx context.Context, now time.Time, snap model.SensorSnapshot) {
	st := c.st
	switch {
	case snap.Plugged && !st.WasPlugged:
		st.Recorder.Open(now)
		st.Overload.Reset()
		st.Refresh.clear()
		c.clearPlan()
		if snap.CarSoC > 0 {
			st.VirtualSoC.Value = snap.CarSoC
		}
		st.VirtualSoC.LastUpdate = now
		c.addAction(ctx, now, "Car plugged in")
		c.refresh(ctx, now, snap, false, "plug-in")
	case !snap.Plugged && st.WasPlugged:
		c.addAction(ctx, now, "Car unplugged")
		if rep := st.Recorder.Finalize(now, c.currency(snap)); rep != nil {
			c.journalSession(ctx, now, rep)
		}
		st.ManualOverride = false
		st.Settings.TargetSoCOverride = st.Settings.TargetSoC
		st.Settings.DepartureOverride = nil
		err := c.seq.ForceOff(ctx, &st.VirtualSoC)
		c.recordActuation(now, actuation.CmdSwitch, err)
		st.Overload.Reset()
		st.Refresh.clear()
		c.clearPlan()
	case snap.Plugged && !st.Recorder.Active():
		st.Recorder.Open(now)
	}
	st.WasPlugged = snap.Plugged
}

func (c *Controller) clearPlan() {
	c.st.Lock = nil
	c.st.BufferEnd = nil
	c.st.LastScheduledEnd = nil
}

func (c *Controller) runLearning(ctx context.Context, now time.Time, snap model.SensorSnapshot) {
	st := c.st
	due := st.Refresh.PendingLearnAt
	if due == nil || now.Before(*due) {
		return
	}
	st.Refresh.PendingLearnAt = nil
	res, ok := c.learner.Evaluate(&st.Learning, st.Refresh.EstimateBefore, snap.CarSoC, now)
	if !ok {
		c.log.Debugf("learning skipped: sensor %.1f, estimate before refresh %.1f", snap.CarSoC, st.Refresh.EstimateBefore)
		return
	}
	c.addAction(ctx, now, fmt.Sprintf("Learning: %s (error %+.1f%%, loss %.1f%%, confidence %d)",
		res.Outcome, res.Error, st.Learning.LossPct, st.Learning.Confidence))
	if r, ok := c.metrics.(metrics.LearningRecorder); ok {
		ev := metrics.LearningEvent{
			Time:       now,
			Outcome:    string(res.Outcome),
			Error:      res.Error,
			LossPct:    st.Learning.LossPct,
			Confidence: st.Learning.Confidence,
			Locked:     st.Learning.Locked,
		}
		if err := r.RecordLearning(ev); err != nil {
			c.log.Warnf("record learning metrics: %v", err)
		}
	}
}

func (c *Controller) decide(now time.Time, snap model.SensorSnapshot, events []model.CalendarEvent) model.PlanDecision {
	st := c.st
	if !snap.Plugged {
		return model.PlanDecision{
			PlannedTargetSoC: st.Settings.TargetSoC,
			Departure:        st.Settings.Departure().Next(now),
			ChargingSummary:  "Car disconnected.",
		}
	}

	fresh := c.planner.Plan(scheduler.Input{
		Now:             now,
		Prices:          snap.Prices,
		Settings:        st.Settings,
		SoC:             st.VirtualSoC.Value,
		LossPct:         st.Learning.LossPct,
		ManualOverride:  st.ManualOverride,
		Calendar:        events,
		OverloadMinutes: st.Overload.Minutes,
	})

	dec := fresh
	if lk := st.Lock; lk != nil {
		switch {
		case fresh.Maintenance:
			c.unlock("target reached")
		case snap.CarSoC > 0 && snap.CarSoC != lk.SensorSoC:
			c.unlock("sensor updated")
		case !now.Before(lk.Decision.Departure):
			c.unlock("departure passed")
		case !hasRemaining(lk.Decision.Schedule, now):
			c.unlock("locked plan complete")
		default:
			dec = lockedDecision(lk.Decision, now)
		}
	}

	dec = c.applyBuffer(now, dec)
	switch {
	case dec.Maintenance:
		st.LastScheduledEnd = nil
	case dec.ShouldChargeNow && !dec.BufferActive && dec.SessionEndTime != nil:
		end := *dec.SessionEndTime
		st.LastScheduledEnd = &end
	}
	return dec
}

func (c *Controller) unlock(reason string) {
	c.st.Lock = nil
	c.log.Debugf("plan lock released: %s", reason)
}

func hasRemaining(s model.ChargeSchedule, now time.Time) bool {
	_, _, ok := s.NextRun(now)
	return ok
}

func lockedDecision(d model.PlanDecision, now time.Time) model.PlanDecision {
	d.Locked = true
	d.ShouldChargeNow = d.Schedule.ActiveAt(now)
	d.ScheduledStart, d.SessionEndTime = nil, nil
	if start, end, ok := d.Schedule.NextRun(now); ok {
		d.ScheduledStart = &start
		d.SessionEndTime = &end
	}
	if !d.ShouldChargeNow && d.ScheduledStart != nil {
		d.ChargingSummary = fmt.Sprintf("Waiting: charging scheduled at %s (plan locked).", d.ScheduledStart.Format("15:04"))
	}
	return d
}

// applyBuffer keeps charging for BufferWindow after the run the charger was
// charging in has ended, unless a new decision already charges.
func (c *Controller) applyBuffer(now time.Time, dec model.PlanDecision) model.PlanDecision {
	st := c.st
	if dec.ShouldChargeNow || dec.Maintenance {
		st.BufferEnd = nil
		return dec
	}
	if st.BufferEnd == nil && st.LastScheduledEnd != nil {
		end := st.LastScheduledEnd.Add(BufferWindow)
		if !now.Before(*st.LastScheduledEnd) && now.Before(end) {
			st.BufferEnd = &end
		}
	}
	if st.BufferEnd != nil && now.Before(*st.BufferEnd) {
		dec.ShouldChargeNow = true
		dec.BufferActive = true
		dec.ChargingSummary = model.BufferSummary
		return dec
	}
	if st.BufferEnd != nil {
		st.LastScheduledEnd = nil
	}
	st.BufferEnd = nil
	return dec
}

func (c *Controller) manageRefresh(ctx context.Context, now time.Time, snap model.SensorSnapshot, dec model.PlanDecision, safe float64) {
	st := c.st
	var sessionStart *time.Time
	if cur := st.Recorder.Current; cur != nil {
		start := cur.StartTime
		sessionStart = &start
	}
	d := c.policy.Decide(learning.RefreshInput{
		Now:         now,
		Mode:        c.cfg.mode(),
		Plugged:     snap.Plugged,
		LastRefresh: st.Learning.LastRefresh,
		Estimate:    st.VirtualSoC.Value,
		Target:      dec.PlannedTargetSoC,
		WindowStart: sessionStart,
		WindowEnd:   dec.SessionEndTime,
		Charging:    dec.ShouldChargeNow && !dec.Maintenance,
		PrevState:   st.VirtualSoC.LastAppliedState,
		NextState:   nextState(snap.Plugged, dec, safe),
	})
	if d.Refresh {
		c.refresh(ctx, now, snap, d.Learn, d.Reason)
	}
}

// nextState predicts the state the sequencer will apply for dec.
func nextState(plugged bool, dec model.PlanDecision, safe float64) model.ChargeState {
	switch {
	case !plugged:
		return model.StatePaused
	case dec.Maintenance:
		return model.StateMaintenance
	case dec.ShouldChargeNow && loadbalance.Feasible(math.Floor(safe)):
		return model.StateCharging
	}
	return model.StatePaused
}

func (c *Controller) refresh(ctx context.Context, now time.Time, snap model.SensorSnapshot, learn bool, reason string) {
	st := c.st
	at := now
	st.Refresh.At = &at
	st.Refresh.SensorBefore = snap.CarSoC
	st.Refresh.EstimateBefore = st.VirtualSoC.Value
	st.Refresh.Reason = reason
	st.Refresh.PendingLearnAt = nil
	st.Learning.LastRefresh = &at
	if learn {
		due := now.Add(learning.SettleDelay)
		st.Refresh.PendingLearnAt = &due
	}

	err := c.port.RequestRefresh(ctx)
	if errors.Is(err, actuation.ErrNotConfigured) {
		c.log.Debugf("car refresh not configured, skipping %s refresh", reason)
		return
	}
	c.recordActuation(now, CmdRefresh, err)
	if err != nil {
		c.log.Warnf("car refresh failed: %v", err)
		return
	}
	c.addAction(ctx, now, fmt.Sprintf("Car sensor refresh requested (%s)", reason))
}

func (c *Controller) record(now time.Time, snap model.SensorSnapshot, dec model.PlanDecision, res actuation.Result, prev model.ChargeState, prices model.PriceStatus, safe float64) {
	st := c.st
	if !snap.Plugged {
		return
	}
	if res.State == model.StateCharging && st.Lock == nil && !dec.BufferActive && !dec.Locked {
		st.Lock = &PlanLock{Decision: dec, SensorSoC: snap.CarSoC, LockedAt: now}
	}

	if prev == model.StateCharging {
		st.Recorder.MarkCharging()
	}
	amps := res.Amps
	if amps < 0 {
		amps = 0
	}
	st.Recorder.Append(model.SessionPoint{
		Time:     now,
		SoC:      st.VirtualSoC.Value,
		Amps:     amps,
		Charging: res.State == model.StateCharging,
		Price:    prices.Current.AdjustedPrice,
	})

	overloaded := dec.ShouldChargeNow && !dec.Maintenance && !loadbalance.Feasible(safe)
	st.Overload.Check(now, overloaded)
}

func (c *Controller) addAction(ctx context.Context, now time.Time, msg string) {
	line := c.st.Log.Add(now, msg)
	c.st.Recorder.AddLog(line)
	c.log.Infof("%s", msg)
	if err := c.journal.Append(ctx, journal.Record{Timestamp: now, Kind: journal.KindAction, Message: msg}); err != nil {
		c.log.Warnf("journal action: %v", err)
	}
}

func (c *Controller) journalSession(ctx context.Context, now time.Time, rep *model.SessionReport) {
	msg := fmt.Sprintf("Session %s: %.2f kWh, %.2f %s", rep.ID, rep.AddedKWh, rep.TotalCost, rep.Currency)
	if err := c.journal.Append(ctx, journal.Record{Timestamp: now, Kind: journal.KindSession, Message: msg, Session: rep}); err != nil {
		c.log.Warnf("journal session: %v", err)
	}
	if r, ok := c.metrics.(metrics.SessionRecorder); ok {
		ev := metrics.SessionEvent{
			Time:      now,
			SessionID: rep.ID,
			Duration:  rep.EndTime.Sub(rep.StartTime),
			StartSoC:  rep.StartSoC,
			EndSoC:    rep.EndSoC,
			AddedKWh:  rep.AddedKWh,
			Cost:      rep.TotalCost,
			Currency:  rep.Currency,
		}
		if err := r.RecordSession(ev); err != nil {
			c.log.Warnf("record session metrics: %v", err)
		}
	}
}

func (c *Controller) recordActuation(now time.Time, cmd string, err error) {
	r, ok := c.metrics.(metrics.ActuationRecorder)
	if !ok {
		return
	}
	ev := metrics.ActuationEvent{Time: now, Command: cmd, Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	if rerr := r.RecordActuation(ev); rerr != nil {
		c.log.Warnf("record actuation metrics: %v", rerr)
	}
}

func (c *Controller) currency(snap model.SensorSnapshot) string {
	if snap.Prices.Currency != "" {
		return snap.Prices.Currency
	}
	return c.cfg.Currency
}

// save queues the state for persistence. Callers hold c.mu.
func (c *Controller) save(now time.Time) {
	if c.persist == nil {
		return
	}
	c.persist.Schedule(c.st.Snapshot(now))
}

func tickEvent(u Update) metrics.TickEvent {
	return metrics.TickEvent{
		Time:          u.Time,
		Plugged:       u.Plugged,
		SoC:           u.SoC,
		SensorSoC:     u.SensorSoC,
		TargetSoC:     u.Decision.PlannedTargetSoC,
		SafeCurrentA:  u.SafeCurrentA,
		Price:         u.Price.Current.AdjustedPrice,
		PriceLabel:    string(u.Price.Label),
		ShouldCharge:  u.Decision.ShouldChargeNow,
		Maintenance:   u.Decision.Maintenance,
		State:         u.ChargerState.String(),
		RequiredSlots: u.Decision.RequiredSlots,
		OverloadMin:   u.OverloadMinutes,
	}
}
