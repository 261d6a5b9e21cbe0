// Package store persists finished pipeline runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"querynerd/internal/logging"
	"querynerd/internal/pipeline"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 20

// Run is one persisted pipeline run.
type Run struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Degraded  bool           `json:"degraded"`
	State     pipeline.State `json:"state"`
}

// RunStore keeps runs in a single SQLite table.
type RunStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewRunStore creates or opens the run database at path.
func NewRunStore(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &RunStore{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Get(logging.CategoryStore).Debug("run store opened", zap.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.dbPath
}

func (s *RunStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		query TEXT NOT NULL,
		task TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		constraints_json TEXT,
		safety_flags_json TEXT,
		plan_json TEXT,
		step_log_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save writes run, assigning an ID and creation time when they are empty.
// Degraded is always recomputed from the step log.
func (s *RunStore) Save(ctx context.Context, run Run) (Run, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RunStore.Save")
	defer timer.Stop()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.Degraded = run.State.Degraded()

	constraintsJSON, err := json.Marshal(run.State.Constraints)
	if err != nil {
		return Run{}, fmt.Errorf("encode constraints: %w", err)
	}
	flagsJSON, err := json.Marshal(run.State.SafetyFlags)
	if err != nil {
		return Run{}, fmt.Errorf("encode safety flags: %w", err)
	}
	planJSON, err := json.Marshal(run.State.Plan)
	if err != nil {
		return Run{}, fmt.Errorf("encode plan: %w", err)
	}
	logJSON, err := json.Marshal(run.State.StepLog)
	if err != nil {
		return Run{}, fmt.Errorf("encode step log: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, created_at, query, task, degraded, constraints_json, safety_flags_json, plan_json, step_log_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.State.Query, string(run.State.Task), run.Degraded,
		string(constraintsJSON), string(flagsJSON), string(planJSON), string(logJSON))
	if err != nil {
		return Run{}, fmt.Errorf("failed to save run: %w", err)
	}

	logging.Get(logging.CategoryStore).Debug("run saved",
		zap.String("run_id", run.ID), zap.Bool("degraded", run.Degraded))
	return run, nil
}

const selectRun = `SELECT id, created_at, query, task, degraded, constraints_json, safety_flags_json, plan_json, step_log_json FROM runs`

// Get loads the run with the given ID.
func (s *RunStore) Get(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// List returns up to limit runs, newest first.
func (s *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run. Deleting an unknown ID returns ErrNotFound.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		createdAt int64
		task      string
		logJSON   string

		constraintsJSON, flagsJSON, planJSON sql.NullString
	)
	err := sc.Scan(&run.ID, &createdAt, &run.State.Query, &task, &run.Degraded,
		&constraintsJSON, &flagsJSON, &planJSON, &logJSON)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.UnixMilli(createdAt)
	run.State.Task = pipeline.Task(task)

	if err := decodeColumn(constraintsJSON, &run.State.Constraints); err != nil {
		return Run{}, fmt.Errorf("run %s: constraints: %w", run.ID, err)
	}
	if err := decodeColumn(flagsJSON, &run.State.SafetyFlags); err != nil {
		return Run{}, fmt.Errorf("run %s: safety flags: %w", run.ID, err)
	}
	if err := decodeColumn(planJSON, &run.State.Plan); err != nil {
		return Run{}, fmt.Errorf("run %s: plan: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(logJSON), &run.State.StepLog); err != nil {
		return Run{}, fmt.Errorf("run %s: step log: %w", run.ID, err)
	}
	if run.State.StepLog == nil {
		run.State.StepLog = []pipeline.AuditEntry{}
	}
	return run, nil
}

func decodeColumn(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}
