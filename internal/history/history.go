// Package history keeps a per-run summary log in SQLite: when each
// verification run happened, what it targeted and how the verdicts
// broke down. The stats command reads it. The trust database itself is
// never stored here; it stays a diffable text file.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotInitialized indicates the history database schema has not been
// created yet.
var ErrNotInitialized = errors.New("history database not initialized")

// Run summarizes one verification run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Command    string
	Checked    int
	Changed    int
	// Verdicts counts outcomes by trust level 0..4.
	Verdicts [5]int
	// Committed records whether the run persisted its results.
	Committed bool
}

// Store provides SQLite operations for the run history.
type Store struct {
	db *sql.DB
}

// New creates a Store at dbPath. Use ":memory:" in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateSchema creates the runs table if needed.
func (s *Store) CreateSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// RecordRun inserts one run summary.
func (s *Store) RecordRun(run *Run) error {
	res, err := s.db.Exec(`
		INSERT INTO runs (started_at, finished_at, command, checked, changed,
			v0, v1, v2, v3, v4, committed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Command, run.Checked, run.Changed,
		run.Verdicts[0], run.Verdicts[1], run.Verdicts[2], run.Verdicts[3], run.Verdicts[4],
		run.Committed)
	if err != nil {
		return wrapSchemaError(fmt.Errorf("failed to record run: %w", err))
	}
	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, command, checked, changed,
			v0, v1, v2, v3, v4, committed
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrapSchemaError(fmt.Errorf("failed to list runs: %w", err))
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.Command,
			&run.Checked, &run.Changed,
			&run.Verdicts[0], &run.Verdicts[1], &run.Verdicts[2], &run.Verdicts[3], &run.Verdicts[4],
			&run.Committed); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("failed to parse started_at for run %d: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for run %d: %w", run.ID, err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Totals returns the lifetime sum of files checked and changes across
// all committed runs.
func (s *Store) Totals() (checked, changed int, err error) {
	row := s.db.QueryRow(`
		SELECT COALESCE(SUM(checked), 0), COALESCE(SUM(changed), 0)
		FROM runs WHERE committed`)
	if err := row.Scan(&checked, &changed); err != nil {
		return 0, 0, wrapSchemaError(fmt.Errorf("failed to sum runs: %w", err))
	}
	return checked, changed, nil
}

// wrapSchemaError maps the driver's missing-table error onto the
// ErrNotInitialized sentinel so callers can errors.Is it.
func wrapSchemaError(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	return err
}
