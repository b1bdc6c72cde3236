package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/logger"
)

// Debouncer coalesces save requests: only the latest state is written once
// the delay has passed without a newer request.
type Debouncer struct {
	store   Store
	delay   time.Duration
	log     logger.Logger
	mu      sync.Mutex
	writeMu sync.Mutex
	timer   *time.Timer
	pending *State
}

// NewDebouncer wraps store.
func NewDebouncer(store Store, delay time.Duration, log logger.Logger) *Debouncer {
	return &Debouncer{store: store, delay: delay, log: logger.OrNop(log)}
}

// Schedule queues st for saving, replacing any queued state.
func (d *Debouncer) Schedule(st State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = &st
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		if err := d.Flush(context.Background()); err != nil {
			d.log.Errorf("persist state: %v", err)
		}
	})
}

// Flush writes the queued state now, if any. Saves never overlap, so the
// newest state is always written last.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	st := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	if st == nil {
		return nil
	}
	st.Version = StateVersion
	return d.store.Save(ctx, st)
}
