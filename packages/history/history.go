// Package history stores run results in SQLite so later runs can report
// regressions, recoveries and flaky scenarios.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is where the CLI keeps history unless told otherwise.
const DefaultPath = ".uispec/history.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	suite       TEXT NOT NULL,
	file        TEXT NOT NULL,
	base_url    TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_suite_started ON runs (suite, started_at);
CREATE TABLE IF NOT EXISTS scenarios (
	run_id      TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS scenarios_run ON scenarios (run_id);
`

// ErrNoRuns is returned when a suite has no recorded runs.
var ErrNoRuns = errors.New("no recorded runs")

// Run is one recorded suite run.
type Run struct {
	ID        string
	Suite     string
	File      string
	BaseURL   string
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
}

// OK reports whether the run had no failures.
func (r *Run) OK() bool {
	return r.Failed == 0
}

// ScenarioRecord is one scenario outcome within a run.
type ScenarioRecord struct {
	RunID    string
	Name     string
	Status   runner.Status
	Kind     string
	Error    string
	Duration time.Duration
}

// Flaky describes a scenario that both passed and failed recently.
type Flaky struct {
	Name      string
	Runs      int
	Failures  int
	LastError string
}

// FailureRate is the fraction of runs that failed.
func (f Flaky) FailureRate() float64 {
	if f.Runs == 0 {
		return 0
	}
	return float64(f.Failures) / float64(f.Runs)
}

// Store is a SQLite-backed run history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the history database. The location is a file path
// or a sqlite:// or sqlite: connection string.
func Open(ctx context.Context, location string) (*Store, error) {
	path, err := parseLocation(location)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating history: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a run and its scenarios and returns the new run.
func (s *Store) Record(ctx context.Context, result *runner.RunResult) (*Run, error) {
	run := &Run{
		ID:       uuid.NewString(),
		Suite:    result.Suite,
		File:     result.File,
		BaseURL:  result.BaseURL,
		Duration: result.Duration,
		Passed:   result.Passed,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
	}
	run.StartedAt = s.now().Add(-result.Duration).Truncate(time.Millisecond)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, suite, file, base_url, started_at, duration_ms, passed, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Suite, run.File, run.BaseURL, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(),
		run.Passed, run.Failed, run.Skipped,
	); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scenarios (run_id, name, status, kind, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, r := range result.Results {
		var msg string
		if r.Error != nil {
			msg = r.Error.Error()
		}
		if _, err := stmt.ExecContext(ctx, run.ID, r.Name, string(r.Status), string(r.Kind), msg, r.Duration.Milliseconds()); err != nil {
			return nil, fmt.Errorf("recording scenario %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

// Runs returns the most recent runs of a suite, newest first. An empty suite
// lists runs of every suite.
func (s *Store) Runs(ctx context.Context, suite string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, suite, file, base_url, started_at, duration_ms, passed, failed, skipped FROM runs`
	args := []any{}
	if suite != "" {
		query += ` WHERE suite = ?`
		args = append(args, suite)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			r               Run
			started, durMs int64
		)
		if err := rows.Scan(&r.ID, &r.Suite, &r.File, &r.BaseURL, &started, &durMs, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.Duration = time.Duration(durMs) * time.Millisecond
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// LastRun returns the newest run of a suite, or ErrNoRuns.
func (s *Store) LastRun(ctx context.Context, suite string) (*Run, error) {
	runs, err := s.Runs(ctx, suite, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return runs[0], nil
}

// Scenarios returns the scenario outcomes of a run in execution order.
func (s *Store) Scenarios(ctx context.Context, runID string) ([]*ScenarioRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, status, kind, error, duration_ms FROM scenarios WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []*ScenarioRecord
	for rows.Next() {
		var (
			rec    ScenarioRecord
			status string
			durMs  int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Name, &status, &rec.Kind, &rec.Error, &durMs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Status = runner.Status(status)
		rec.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Flaky reports scenarios of a suite that both passed and failed within its
// last window runs, most failures first.
func (s *Store) Flaky(ctx context.Context, suite string, window int) ([]Flaky, error) {
	if window <= 0 {
		window = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH recent AS (
			SELECT id FROM runs WHERE suite = ? ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
		SELECT sc.name,
		       COUNT(*) AS runs,
		       SUM(CASE WHEN sc.status = 'failed' THEN 1 ELSE 0 END) AS failures,
		       SUM(CASE WHEN sc.status = 'passed' THEN 1 ELSE 0 END) AS passes,
		       COALESCE((SELECT s2.error FROM scenarios s2 JOIN runs r2 ON r2.id = s2.run_id
		                 WHERE s2.name = sc.name AND s2.status = 'failed' AND r2.suite = ?
		                 ORDER BY r2.started_at DESC, s2.rowid DESC LIMIT 1), '') AS last_error
		FROM scenarios sc
		WHERE sc.run_id IN (SELECT id FROM recent) AND sc.status != 'skipped'
		GROUP BY sc.name
		HAVING failures > 0 AND passes > 0
		ORDER BY failures DESC, sc.name`,
		suite, window, suite)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []Flaky
	for rows.Next() {
		var (
			f      Flaky
			passes int
		)
		if err := rows.Scan(&f.Name, &f.Runs, &f.Failures, &passes, &f.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Prune deletes runs older than keep newest runs of every suite.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY suite ORDER BY started_at DESC, rowid DESC) AS n FROM runs
			) WHERE n > ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

// parseLocation accepts:
// - sqlite://path/to/history.db
// - sqlite:./history.db
// - a plain file path, or :memory:
func parseLocation(location string) (string, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return "", errors.New("empty history location")
	case strings.HasPrefix(location, "sqlite://"):
		return strings.TrimPrefix(location, "sqlite://"), nil
	case strings.HasPrefix(location, "sqlite:"):
		return strings.TrimPrefix(location, "sqlite:"), nil
	case strings.Contains(location, "://"):
		return "", fmt.Errorf("unsupported history location %q (only sqlite is supported)", location)
	default:
		return location, nil
	}
}
