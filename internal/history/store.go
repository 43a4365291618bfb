// Package history records completed runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"runbook/internal/executor"
)

// Run is one recorded invocation.
type Run struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	FilePath   string        `json:"file_path"`
	Targets    []string      `json:"targets"`
	Status     string        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	GitCommit  string        `json:"git_commit,omitempty"`
	GitDirty   bool          `json:"git_dirty,omitempty"`

	Tasks []executor.Result `json:"tasks,omitempty"`
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Store persists runs. Nil stores are inert so recording can be
// disabled without branching at every call site.
type Store struct {
	db *sql.DB
}

// DefaultPath is $HOME/.runbook/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".runbook", "history.db"), nil
}

// Open creates the database and schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		targets TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		git_commit TEXT,
		git_dirty INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS task_results (
		run_id TEXT NOT NULL,
		task TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_task_results_run ON task_results(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Record stores a run and its per-task results in one transaction.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if s == nil || s.db == nil {
		return nil
	}
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dirty := 0
	if run.GitDirty {
		dirty = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, file_path, targets, status, exit_code, git_commit, git_dirty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), run.FilePath,
		strings.Join(run.Targets, " "), run.Status, run.ExitCode, run.GitCommit, dirty,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, res := range run.Tasks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO task_results (run_id, task, status, exit_code, attempts, duration_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, res.Task, string(res.Status), res.ExitCode, res.Attempts, res.DurationMS, res.Error,
		)
		if err != nil {
			return fmt.Errorf("insert task result: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns the latest runs, newest first, without task detail.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, file_path, targets, status, exit_code, git_commit, git_dirty
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			startedMS int64
			targets   string
			dirty     int
		)
		if err := rows.Scan(&run.ID, &startedMS, &run.DurationMS, &run.FilePath, &targets,
			&run.Status, &run.ExitCode, &run.GitCommit, &dirty); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(startedMS)
		run.Duration = time.Duration(run.DurationMS) * time.Millisecond
		if targets != "" {
			run.Targets = strings.Fields(targets)
		}
		run.GitDirty = dirty != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// TaskResults returns the per-task detail for one run, in insert order.
func (s *Store) TaskResults(ctx context.Context, runID string) ([]executor.Result, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT task, status, exit_code, attempts, duration_ms, error
		 FROM task_results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query task results: %w", err)
	}
	defer rows.Close()

	var results []executor.Result
	for rows.Next() {
		var (
			res    executor.Result
			status string
		)
		if err := rows.Scan(&res.Task, &status, &res.ExitCode, &res.Attempts, &res.DurationMS, &res.Error); err != nil {
			return nil, fmt.Errorf("scan task result: %w", err)
		}
		res.Status = executor.Status(status)
		results = append(results, res)
	}
	return results, rows.Err()
}
