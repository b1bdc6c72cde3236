package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
)

var base = time.Date(2026, 2, 2, 6, 0, 0, 0, time.UTC)

func fill(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, Record{Timestamp: base, Kind: KindAction, Message: "Charging started at 16A"}))
	require.NoError(t, s.Append(ctx, Record{Timestamp: base.Add(time.Hour), Kind: KindAction, Message: "Charging paused"}))
	rep := &model.SessionReport{ID: "s1", StartTime: base, EndTime: base.Add(2 * time.Hour), AddedKWh: 11.04, Currency: "SEK"}
	require.NoError(t, s.Append(ctx, Record{Timestamp: base.Add(2 * time.Hour), Kind: KindSession, Session: rep}))
}

func check(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Charging started at 16A", all[0].Message)

	sessions, err := s.Query(ctx, Query{Kind: KindSession})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].Session)
	assert.Equal(t, "s1", sessions[0].Session.ID)

	window, err := s.Query(ctx, Query{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "Charging paused", window[0].Message)
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	fill(t, s)
	check(t, s)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "journal.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	fill(t, s)
	check(t, s)
}

func TestRotatingJSONLStoreRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	msg := make([]byte, 4096)
	for i := range msg {
		msg[i] = 'x'
	}
	for i := 0; i < 300; i++ {
		require.NoError(t, s.Append(context.Background(), Record{Timestamp: base, Kind: KindAction, Message: string(msg)}))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "journal*.jsonl"))
	if len(files) < 2 {
		t.Fatalf("expected rotated files, got %v", files)
	}
	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 300)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	fill(t, s)
	check(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	cfg := Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "j.db")}
	s, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	_ = s.Close()

	_, err = Open(Config{Backend: "kafka"})
	assert.Error(t, err)
	assert.Error(t, Config{Backend: "kafka"}.Validate())
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Backend: "rotating"}
	c.SetDefaults()
	assert.Equal(t, "journal.jsonl", c.Path)
	assert.Equal(t, 10, c.MaxSizeMB)

	off := Config{}
	off.SetDefaults()
	assert.Empty(t, off.Path)
}
