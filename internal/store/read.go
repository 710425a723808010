package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/incoq/internal/engine"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const runColumns = `id, seq, program, input_hash, output_hash, engine_version, format_version`

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	if err := sc.Scan(&r.ID, &r.Seq, &r.Program, &r.InputHash, &r.OutputHash, &r.EngineVersion, &r.FormatVersion); err != nil {
		return Run{}, err
	}
	return r, nil
}

// GetRun returns the run with the given id, including its queries.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	if r.Queries, err = s.RunQueries(ctx, id); err != nil {
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns every run without its queries, oldest first.
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC, id COLLATE BINARY ASC`)
}

// RunsForInput returns the runs that compiled the given input fingerprint,
// oldest first.
func (s *Store) RunsForInput(ctx context.Context, inputHash string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE input_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, inputHash)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunQueries returns the queries of a run in the order they were
// incrementalized.
func (s *Store) RunQueries(ctx context.Context, runID string) ([]RunQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, params, demand_params, impl, uses_demand, result
		FROM run_queries
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run queries: %w", err)
	}
	defer rows.Close()

	queries := []RunQuery{}
	for rows.Next() {
		var (
			q                    RunQuery
			params, demandParams string
			usesDemand           int
		)
		if err := rows.Scan(&q.Name, &params, &demandParams, &q.Impl, &usesDemand, &q.Result); err != nil {
			return nil, fmt.Errorf("scan run query: %w", err)
		}
		if q.Params, err = unmarshalStrings(params); err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		if q.DemandParams, err = unmarshalStrings(demandParams); err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		q.UsesDemand = usesDemand != 0
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run queries: %w", err)
	}
	return queries, nil
}

// ListExecutions returns the executions of a run, oldest first, with
// their events.
func (s *Store) ListExecutions(ctx context.Context, runID string) ([]Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, entry, steps, output
		FROM executions
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}

	execs := []Execution{}
	for rows.Next() {
		var (
			e      Execution
			output string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Seq, &e.Entry, &e.Steps, &output); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if e.Output, err = unmarshalStrings(output); err != nil {
			rows.Close()
			return nil, fmt.Errorf("execution %s: %w", e.ID, err)
		}
		execs = append(execs, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}

	// The single connection is free again once rows is closed.
	for i := range execs {
		if execs[i].Events, err = s.ExecutionEvents(ctx, execs[i].ID); err != nil {
			return nil, err
		}
	}
	return execs, nil
}

// ExecutionEvents returns the trace of an execution in sequence order.
func (s *Store) ExecutionEvents(ctx context.Context, executionID string) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, target, elem
		FROM execution_events
		WHERE execution_id = ?
		ORDER BY seq ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query execution events: %w", err)
	}
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		var ev engine.Event
		if err := rows.Scan(&ev.Seq, &ev.Op, &ev.Target, &ev.Elem); err != nil {
			return nil, fmt.Errorf("scan execution event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution events: %w", err)
	}
	return events, nil
}
