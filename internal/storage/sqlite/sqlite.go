// Package sqlite archives recharge runs in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/gwrecharge/internal/storage"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS recharge_runs (
	id          TEXT PRIMARY KEY,
	created_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	grid_size   INTEGER NOT NULL DEFAULT 0,
	behavioural INTEGER NOT NULL DEFAULT 0,
	result      BLOB
)`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS idx_recharge_runs_created_at ON recharge_runs(created_at)`

const upsertRunSQL = `
INSERT INTO recharge_runs (id, created_at, finished_at, status, error, grid_size, behavioural, result)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	finished_at = excluded.finished_at,
	status      = excluded.status,
	error       = excluded.error,
	grid_size   = excluded.grid_size,
	behavioural = excluded.behavioural,
	result      = excluded.result
`

// Store implements storage.RunStore on SQLite
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.SugaredLogger
}

// New opens (creating if needed) the database at dbPath and its schema.
func New(ctx context.Context, dbPath string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create recharge_runs schema: %w", err)
		}
	}

	logger.Infof("archiving runs in SQLite database %s", dbPath)
	return &Store{db: db, dbPath: dbPath, logger: logger}, nil
}

// SaveRun inserts or replaces a run
func (s *Store) SaveRun(ctx context.Context, rec storage.RunRecord) error {
	_, err := s.db.ExecContext(ctx, upsertRunSQL,
		rec.ID, toUnix(rec.CreatedAt), toUnix(rec.FinishedAt), rec.Status, rec.Error,
		rec.GridSize, rec.Behavioural, rec.Result)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun returns one run including its result blob
func (s *Store) GetRun(ctx context.Context, id string) (storage.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, finished_at, status, error, grid_size, behavioural, result
		FROM recharge_runs WHERE id = ?`, id)

	var rec storage.RunRecord
	var created, finished int64
	err := row.Scan(&rec.ID, &created, &finished, &rec.Status, &rec.Error, &rec.GridSize, &rec.Behavioural, &rec.Result)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.RunRecord{}, storage.ErrRunNotFound
	}
	if err != nil {
		return storage.RunRecord{}, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	rec.CreatedAt, rec.FinishedAt = fromUnix(created), fromUnix(finished)
	return rec, nil
}

// ListRuns returns all runs, oldest first, without result blobs
func (s *Store) ListRuns(ctx context.Context) ([]storage.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, finished_at, status, error, grid_size, behavioural
		FROM recharge_runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var recs []storage.RunRecord
	for rows.Next() {
		var rec storage.RunRecord
		var created, finished int64
		if err := rows.Scan(&rec.ID, &created, &finished, &rec.Status, &rec.Error, &rec.GridSize, &rec.Behavioural); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.CreatedAt, rec.FinishedAt = fromUnix(created), fromUnix(finished)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CheckHealth pings the database
func (s *Store) CheckHealth(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
