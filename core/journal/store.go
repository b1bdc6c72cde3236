// Package journal persists action-log lines and finalized session reports so
// they outlive the in-memory 24 hour window.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Kind classifies journal records.
type Kind string

const (
	KindAction  Kind = "action"
	KindSession Kind = "session"
)

// Record is one journal entry.
type Record struct {
	Timestamp time.Time            `json:"timestamp"`
	Kind      Kind                 `json:"kind"`
	Message   string               `json:"message,omitempty"`
	Session   *model.SessionReport `json:"session,omitempty"`
}

// Query filters records. Zero values match everything.
type Query struct {
	Start time.Time
	End   time.Time
	Kind  Kind
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return q.Kind == "" || r.Kind == q.Kind
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Config selects and configures the journal backend.
type Config struct {
	// Backend is "jsonl", "rotating" or "sqlite". Empty disables the journal.
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// MaxSizeMB triggers rotation of the rotating backend.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies defaults for the selected backend.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		return
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "journal.db"
		default:
			c.Path = "journal.jsonl"
		}
	}
	if c.Backend == "rotating" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "", "jsonl", "rotating", "sqlite":
		return nil
	}
	return fmt.Errorf("unknown journal backend %s", c.Backend)
}

// Open builds the configured store. A disabled journal returns NopStore.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "":
		return NopStore{}, nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	}
	return nil, fmt.Errorf("unknown journal backend %s", cfg.Backend)
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
