// Package history records completed mission runs in a SQLite database under
// the workspace state directory, so past outcomes survive process exit.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cjy5507/csmh/internal/report"
)

// Run is one recorded mission run.
type Run struct {
	ID              string
	MissionPath     string
	Mode            string
	Objective       string
	Status          string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSec     float64
	FailedOrBlocked []string
}

// TaskRecord is the per-task summary stored with a run.
type TaskRecord struct {
	RunID       string
	TaskID      string
	Status      string
	Attempts    int
	ExitCode    *int
	DurationSec float64
	Error       string
}

// Store is a SQLite-backed run-history store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at dbPath, creating parent directories as
// needed. WAL mode and a busy timeout keep concurrent invocations from
// tripping over each other.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return store, nil
}

// OpenMemory creates an in-memory store for tests.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a completed mission report and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, rep *report.Report) (string, error) {
	runID := uuid.NewString()

	fob, err := json.Marshal(rep.FailedOrBlocked)
	if err != nil {
		return "", fmt.Errorf("encoding failed_or_blocked: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, mission_path, mode, objective, status, started_at, ended_at, duration_sec, failed_or_blocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rep.Mission.Path, rep.Mission.Mode, rep.Mission.Objective, rep.Status,
		rep.StartedAt.Format(time.RFC3339Nano), rep.EndedAt.Format(time.RFC3339Nano),
		rep.DurationSec, string(fob),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for taskID, res := range rep.Tasks {
		var exitCode any
		if res.ExitCode != nil {
			exitCode = *res.ExitCode
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_tasks (run_id, task_id, status, attempts, exit_code, duration_sec, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, taskID, res.Status, res.Attempts, exitCode, res.DurationSec, res.Error,
		)
		if err != nil {
			return "", fmt.Errorf("inserting task record %s: %w", taskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mission_path, mode, objective, status, started_at, ended_at, duration_sec, failed_or_blocked
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run and its task records.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, []TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mission_path, mode, objective, status, started_at, ended_at, duration_sec, failed_or_blocked
		FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, task_id, status, attempts, exit_code, duration_sec, error
		FROM run_tasks WHERE run_id = ? ORDER BY task_id`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing task records: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var tr TaskRecord
		var exitCode sql.NullInt64
		if err := rows.Scan(&tr.RunID, &tr.TaskID, &tr.Status, &tr.Attempts, &exitCode, &tr.DurationSec, &tr.Error); err != nil {
			return nil, nil, fmt.Errorf("scanning task record: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			tr.ExitCode = &code
		}
		tasks = append(tasks, tr)
	}
	return run, tasks, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var startedAt, endedAt, fob string
	if err := s.Scan(&run.ID, &run.MissionPath, &run.Mode, &run.Objective, &run.Status,
		&startedAt, &endedAt, &run.DurationSec, &fob); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return nil, fmt.Errorf("parsing ended_at: %w", err)
	}
	if err := json.Unmarshal([]byte(fob), &run.FailedOrBlocked); err != nil {
		return nil, fmt.Errorf("parsing failed_or_blocked: %w", err)
	}
	return &run, nil
}
