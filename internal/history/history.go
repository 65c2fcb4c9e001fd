// Package history records completed review runs in a local sqlite
// database. It is informational only: the dedup ledger, not this
// store, decides what gets reviewed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339

// Run is one completed review attempt against a revision.
type Run struct {
	RunID         string
	Project       string
	Repository    string
	PullRequestID int
	Revision      string
	Status        string // reviewed, failed, empty
	CommentCount  int
	Duration      time.Duration
	Error         string
	CreatedAt     time.Time
}

const (
	StatusReviewed = "reviewed"
	StatusFailed   = "failed"
	StatusEmpty    = "empty"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun persists one run, minting its ULID identifier.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.Repository == "" || run.Revision == "" {
		return "", fmt.Errorf("repository and revision are required")
	}
	runID := ulid.Make().String()
	createdAt := run.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO review_runs
		(run_id, project, repository, pull_request_id, revision, status, comment_count, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, run.Project, run.Repository, run.PullRequestID, run.Revision,
		run.Status, run.CommentCount, run.Duration.Milliseconds(), run.Error,
		createdAt.Format(timeFormat))
	if err != nil {
		return "", err
	}
	return runID, nil
}

// RecentRuns lists runs newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, project, repository, pull_request_id, revision,
		status, comment_count, duration_ms, error, created_at
		FROM review_runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var durationMS int64
		var createdAt string
		if err := rows.Scan(&run.RunID, &run.Project, &run.Repository, &run.PullRequestID,
			&run.Revision, &run.Status, &run.CommentCount, &durationMS, &run.Error, &createdAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(timeFormat, createdAt); err == nil {
			run.CreatedAt = ts
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func runMigrations(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS review_runs (
			run_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			repository TEXT NOT NULL,
			pull_request_id INTEGER NOT NULL,
			revision TEXT NOT NULL,
			status TEXT NOT NULL,
			comment_count INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_review_runs_created ON review_runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_review_runs_repo ON review_runs(repository, pull_request_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
