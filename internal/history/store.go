// Package history persists build records in SQLite so the daemon and status
// endpoints can report past build outcomes across restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed (or failed) build.
type Record struct {
	ID         string
	Target     string
	Status     string
	Trigger    string
	Commit     string
	Error      string
	StartedAt  time.Time
	Duration   time.Duration
	OutputPath string
}

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (or creates) the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		status TEXT NOT NULL,
		build_trigger TEXT NOT NULL,
		commit_hash TEXT,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		output_path TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_target ON builds(target);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores a build record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, target, status, build_trigger, commit_hash, error, started_at, duration_ms, output_path) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Target, rec.Status, rec.Trigger, rec.Commit, rec.Error,
		rec.StartedAt.Unix(), rec.Duration.Milliseconds(), rec.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// Recent returns the most recent builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, target, status, build_trigger, commit_hash, error, started_at, duration_ms, output_path FROM builds ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

// ByTarget returns builds for a specific target, newest first.
func (s *Store) ByTarget(ctx context.Context, target string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, target, status, build_trigger, commit_hash, error, started_at, duration_ms, output_path FROM builds WHERE target = ? ORDER BY started_at DESC, id DESC LIMIT ?",
		target, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

func (s *Store) scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var startedUnix, durationMs int64

		err := rows.Scan(&rec.ID, &rec.Target, &rec.Status, &rec.Trigger, &rec.Commit,
			&rec.Error, &startedUnix, &durationMs, &rec.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}

		rec.StartedAt = time.Unix(startedUnix, 0)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
