// Package persistence defines the durable controller state and the stores
// that keep it across restarts.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/session"
)

// StateVersion is written with every saved state.
const StateVersion = 1

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no persisted state")

// State is everything the controller keeps across restarts.
type State struct {
	Version        int                   `json:"version"`
	SavedAt        time.Time             `json:"saved_at"`
	Settings       model.UserSettings    `json:"user_settings"`
	ManualOverride bool                  `json:"manual_override_active"`
	VirtualSoC     model.VirtualSoCState `json:"virtual_soc"`
	Learning       model.LearningState   `json:"learning"`
	Overload       session.OverloadTimer `json:"overload"`
	ActionLog      []model.LogEntry      `json:"action_log"`
	CurrentSession *model.SessionRecord  `json:"current_session,omitempty"`
	LastSession    *model.SessionReport  `json:"last_session,omitempty"`
	WasPlugged     bool                  `json:"was_plugged"`
}

// Store loads and saves State.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
	Close() error
}

// Config selects the state backend.
type Config struct {
	// Backend is "memory", "file" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// DebounceMS delays writes so bursts of changes produce one save.
	DebounceMS int `json:"debounce_ms"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "file"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "smartcharge.db"
		case "file":
			c.Path = "smartcharge_state.json"
		}
	}
	if c.DebounceMS == 0 {
		c.DebounceMS = 1000
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory", "file", "sqlite":
		return nil
	}
	return fmt.Errorf("unknown storage backend %s", c.Backend)
}

// MemoryStore keeps the state in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	state *State
	saves int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(context.Context) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, ErrNotFound
	}
	cp := *s.state
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, st *State) error {
	s.mu.Lock()
	cp := *st
	s.state = &cp
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *MemoryStore) Close() error { return nil }
