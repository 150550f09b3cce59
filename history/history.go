// Package history records executed queries in a local SQLite database so
// past research sessions can be reviewed and exported.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	query        TEXT NOT NULL,
	final_answer TEXT NOT NULL,
	confidence   REAL NOT NULL,
	step_count   INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history (created_at);
`

// Entry is one recorded query execution.
type Entry struct {
	ID          int64
	Query       string
	FinalAnswer string
	Confidence  float64
	StepCount   int
	Duration    time.Duration
	CreatedAt   time.Time
}

// Store is a SQLite-backed query history.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the history database at path.
// Use ":memory:" for an ephemeral history.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	// modernc sqlite serializes through a single connection; more would
	// just contend on the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append records an entry. ID and CreatedAt are assigned by the store.
func (s *Store) Append(ctx context.Context, e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_history (query, final_answer, confidence, step_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Query, e.FinalAnswer, e.Confidence, e.StepCount,
		e.Duration.Milliseconds(), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, final_answer, confidence, step_count, duration_ms, created_at
		 FROM query_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.FinalAnswer, &e.Confidence, &e.StepCount, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_history`).Scan(&n)
	return n, err
}

// Clear deletes all recorded entries.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM query_history`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
