// Package history records runs of the agent loop in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/victorhg/ralph/agentloop"
)

// Store is an agentloop.IterationRecorder backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ agentloop.IterationRecorder = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps in-memory databases alive and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			working_dir TEXT NOT NULL,
			max_iterations INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			outcome TEXT,
			iterations INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS iterations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			reads INTEGER NOT NULL,
			writes INTEGER NOT NULL,
			committed INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			reply_chars INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			errors_json TEXT NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_iterations_run_id ON iterations(run_id, iteration);`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) StartRun(ctx context.Context, info agentloop.RunInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, provider, model, working_dir, max_iterations, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		info.RunID,
		info.Provider,
		info.Model,
		info.WorkingDir,
		info.MaxIterations,
		formatTime(info.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", info.RunID, err)
	}
	return nil
}

func (s *Store) RecordIteration(ctx context.Context, rec agentloop.IterationRecord) error {
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode iteration errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO iterations (run_id, iteration, started_at, duration_ms, reads, writes, committed, completed,
			reply_chars, input_tokens, output_tokens, errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Iteration,
		formatTime(rec.StartedAt),
		rec.Duration.Milliseconds(),
		rec.Reads,
		rec.Writes,
		rec.Committed,
		rec.Completed,
		rec.ReplyChars,
		rec.Usage.InputTokens,
		rec.Usage.OutputTokens,
		string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert iteration %d of run %s: %w", rec.Iteration, rec.RunID, err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, result agentloop.RunResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, outcome = ?, iterations = ?, input_tokens = ?, output_tokens = ?
		WHERE run_id = ?`,
		formatTime(result.StartedAt.Add(result.Duration)),
		string(result.Outcome),
		result.Iterations,
		result.Usage.InputTokens,
		result.Usage.OutputTokens,
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", result.RunID, err)
	}
	return nil
}

// Run is a row of the runs table.
type Run struct {
	RunID         string
	Provider      string
	Model         string
	WorkingDir    string
	MaxIterations int
	StartedAt     time.Time
	FinishedAt    *time.Time
	Outcome       string
	Iterations    int
	InputTokens   int
	OutputTokens  int
}

// Iteration is a row of the iterations table.
type Iteration struct {
	Iteration    int
	StartedAt    time.Time
	Duration     time.Duration
	Reads        int
	Writes       int
	Committed    bool
	Completed    bool
	ReplyChars   int
	InputTokens  int
	OutputTokens int
	Errors       []string
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, provider, model, working_dir, max_iterations, started_at, finished_at,
			COALESCE(outcome, ''), iterations, input_tokens, output_tokens
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Provider, &r.Model, &r.WorkingDir, &r.MaxIterations,
			&started, &finished, &r.Outcome, &r.Iterations, &r.InputTokens, &r.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Iterations returns the recorded iterations of a run in order.
func (s *Store) Iterations(ctx context.Context, runID string) ([]Iteration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, started_at, duration_ms, reads, writes, committed, completed,
			reply_chars, input_tokens, output_tokens, errors_json
		FROM iterations
		WHERE run_id = ?
		ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var (
			it         Iteration
			started    string
			durationMS int64
			errorsJSON string
		)
		if err := rows.Scan(&it.Iteration, &started, &durationMS, &it.Reads, &it.Writes, &it.Committed,
			&it.Completed, &it.ReplyChars, &it.InputTokens, &it.OutputTokens, &errorsJSON); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		if it.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		it.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(errorsJSON), &it.Errors); err != nil {
			return nil, fmt.Errorf("decode iteration errors: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
