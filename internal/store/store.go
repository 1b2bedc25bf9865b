// Package store persists run history to SQLite so operators can track
// flaky folders across harness runs. The history is advisory: recording
// failures never change a run's outcome.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haldane/snapvet/internal/report"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for harness run history.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically; safe to call
// against an existing history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent job recording.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun persists a finished run and all of its job outcomes in one
// transaction.
func (s *Store) RecordRun(ctx context.Context, run *report.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, mode, started_at, passed, failed)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Mode, run.StartedAt.Format(time.RFC3339), run.Passed(), run.Failed())
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}

	for _, o := range run.Outcomes() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO job_results (run_id, folder, mode, source_version, success, diagnostics)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, o.Folder, o.Mode, o.SourceVersion, boolToInt(o.Success), strings.Join(o.Diagnostics, "\n"))
		if err != nil {
			return fmt.Errorf("record job result for %s: %w", o.Folder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID        string
	Mode      string
	StartedAt time.Time
	Passed    int
	Failed    int
}

// RecentRuns returns up to limit run summaries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, started_at, passed, failed
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		var startedAt string
		if err := rows.Scan(&summary.ID, &summary.Mode, &startedAt, &summary.Passed, &summary.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		summary.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// FolderFailureCount returns how many recorded jobs failed for a folder
// across all runs. A persistently nonzero count flags a flaky test case.
func (s *Store) FolderFailureCount(ctx context.Context, folder string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM job_results WHERE folder = ? AND success = 0
	`, folder).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failures for %s: %w", folder, err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
