// Package persistence provides durable controller state stores.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	corepersist "github.com/kilianp07/smartcharge/core/persistence"
)

// FileStore keeps the state as a JSON document, replaced atomically on save.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(context.Context) (*corepersist.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, corepersist.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st corepersist.State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return &st, nil
}

func (s *FileStore) Save(_ context.Context, st *corepersist.State) error {
	cp := *st
	cp.SavedAt = time.Now().UTC()
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Close() error { return nil }

// Open builds the configured store.
func Open(cfg corepersist.Config) (corepersist.Store, error) {
	switch cfg.Backend {
	case "memory":
		return corepersist.NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	}
	return nil, fmt.Errorf("unknown storage backend %s", cfg.Backend)
}
