package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	corepersist "github.com/kilianp07/smartcharge/core/persistence"
)

// SQLiteStore keeps the state as a single JSON row.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS controller_state (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        saved_at INTEGER,
        state TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*corepersist.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM controller_state WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corepersist.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st corepersist.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, st *corepersist.State) error {
	cp := *st
	cp.SavedAt = time.Now().UTC()
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO controller_state (id, saved_at, state) VALUES (1, ?, ?)
         ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, state = excluded.state`,
		cp.SavedAt.Unix(), string(b))
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
