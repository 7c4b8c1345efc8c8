package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned by ReadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored scenario execution.
type Run struct {
	ID           string    `json:"id"`
	Scenario     string    `json:"scenario"`
	Source       string    `json:"source,omitempty"` // scenario file path
	Pass         bool      `json:"pass"`
	FinalClockMs int64     `json:"final_clock_ms"`
	Pending      int       `json:"pending"`
	Errors       []string  `json:"errors"`
	Digest       string    `json:"digest,omitempty"` // trace content hash
	RecordedAt   time.Time `json:"recorded_at"`
}

// Event is one stored trace event.
type Event struct {
	Seq   int64  `json:"seq"`
	Type  string `json:"type"`
	Label string `json:"label"`
	AtMs  int64  `json:"at_ms"`
	DueMs int64  `json:"due_ms"`
}

// WriteRun stores a run and its trace in one transaction and returns the
// run id. An empty run.ID is filled from the store's IDGenerator. Writing
// an id twice is an error.
func (s *Store) WriteRun(ctx context.Context, run Run, trace []Event) (string, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	if run.Scenario == "" {
		return "", fmt.Errorf("write run: scenario name is required")
	}

	errorsJSON, err := marshalErrors(run.Errors)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, source, pass, final_clock_ms, pending, errors, digest, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.Source,
		run.Pass,
		run.FinalClockMs,
		run.Pending,
		errorsJSON,
		run.Digest,
		run.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("write run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_events (run_id, seq, type, label, at_ms, due_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("write run %s: prepare trace: %w", run.ID, err)
	}
	defer stmt.Close()

	for _, e := range trace {
		if _, err := stmt.ExecContext(ctx, run.ID, e.Seq, e.Type, e.Label, e.AtMs, e.DueMs); err != nil {
			return "", fmt.Errorf("write run %s: trace event %d: %w", run.ID, e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	return run.ID, nil
}

// ReadRun returns a stored run. Returns ErrRunNotFound if id is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, source, pass, final_clock_ms, pending, errors, digest, recorded_at
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recently written runs first. limit <= 0 means
// no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT id, scenario, source, pass, final_clock_ms, pending, errors, digest, recorded_at
		FROM runs
		ORDER BY rowid DESC
		LIMIT ?
	`, sqlLimit(limit))
}

// ListScenarioRuns is ListRuns restricted to one scenario name.
func (s *Store) ListScenarioRuns(ctx context.Context, scenario string, limit int) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT id, scenario, source, pass, final_clock_ms, pending, errors, digest, recorded_at
		FROM runs
		WHERE scenario = ?
		ORDER BY rowid DESC
		LIMIT ?
	`, scenario, sqlLimit(limit))
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1 // SQLite: no limit
	}
	return limit
}

// ReadTrace returns a run's trace ordered by seq. Returns an empty slice
// (not nil) if the run has no events or does not exist.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, label, at_ms, due_ms
		FROM trace_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Type, &e.Label, &e.AtMs, &e.DueMs); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return events, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		errorsJSON string
		recordedAt string
	)
	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.Source,
		&run.Pass,
		&run.FinalClockMs,
		&run.Pending,
		&errorsJSON,
		&run.Digest,
		&recordedAt,
	)
	if err != nil {
		return Run{}, err
	}

	run.Errors, err = unmarshalErrors(errorsJSON)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: parse recorded_at: %w", run.ID, err)
	}
	return run, nil
}

// marshalErrors stores error messages as a JSON array without HTML
// escaping, so messages containing <, > or & stay readable in the db.
func marshalErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(errs); err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func unmarshalErrors(data string) ([]string, error) {
	errs := []string{}
	if err := json.Unmarshal([]byte(data), &errs); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	return errs, nil
}
