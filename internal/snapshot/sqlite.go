//go:build sqlite

package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"kmcsim/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists run snapshots to a single SQLite file via
// modernc.org/sqlite's pure-Go driver, so it needs no cgo toolchain at
// build time.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, snap model.RunSnapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(snap)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (run_id, config_hash, sim_time, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			config_hash = excluded.config_hash,
			sim_time = excluded.sim_time,
			payload = excluded.payload
	`, snap.RunID, snap.ConfigHash, float64(snap.Time), payload)
	return err
}

func (s *SQLiteStore) LoadRun(ctx context.Context, runID string) (model.RunSnapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunSnapshot{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunSnapshot{}, false, nil
		}
		return model.RunSnapshot{}, false, err
	}

	snap, err := DecodeRun(payload)
	if err != nil {
		return model.RunSnapshot{}, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return snap, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			config_hash TEXT NOT NULL,
			sim_time REAL NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
