package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/incoq/internal/compiler"
	"github.com/roach88/incoq/internal/engine"
)

// Run is one recorded compilation.
type Run struct {
	ID            string
	Seq           int64
	Program       string
	InputHash     string
	OutputHash    string
	EngineVersion string
	FormatVersion string
	Queries       []RunQuery
}

// RunQuery records the decisions made for one query of a run.
type RunQuery struct {
	Name         string
	Params       []string
	DemandParams []string
	Impl         string
	UsesDemand   bool
	// Result is the relation or map maintaining the query, or "" when
	// the query is computed from scratch.
	Result string
}

// Execution is one engine run of a compiled program.
type Execution struct {
	ID     string
	RunID  string
	Seq    int64
	Entry  string
	Steps  int
	Output []string
	Events []engine.Event
}

// NewRun builds the record of a compilation of the named program. Queries
// are listed in dependency order.
func NewRun(program string, res *compiler.Result) *Run {
	run := &Run{
		Program:       program,
		InputHash:     res.InputHash,
		OutputHash:    res.OutputHash,
		EngineVersion: compiler.Version,
		FormatVersion: compiler.FormatVersion,
	}
	for _, name := range res.Order {
		sym, ok := res.Table.Query(name)
		if !ok {
			continue
		}
		run.Queries = append(run.Queries, RunQuery{
			Name:         sym.Name,
			Params:       sym.Params,
			DemandParams: sym.DemandParams,
			Impl:         string(sym.Impl),
			UsesDemand:   sym.UsesDemand,
			Result:       sym.Result,
		})
	}
	return run
}

// RecordRun inserts a run and its queries in one transaction. An empty ID
// is replaced by a fresh UUIDv7; Seq is always assigned by the store as
// the next logical sequence number. Both are written back to run.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		run.ID = id.String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "runs")
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, program, input_hash, output_hash, engine_version, format_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.Program,
		run.InputHash,
		run.OutputHash,
		run.EngineVersion,
		run.FormatVersion,
	); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for i, q := range run.Queries {
		params, err := marshalStrings(q.Params)
		if err != nil {
			return fmt.Errorf("record run: query %s: %w", q.Name, err)
		}
		demandParams, err := marshalStrings(q.DemandParams)
		if err != nil {
			return fmt.Errorf("record run: query %s: %w", q.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_queries
			(run_id, position, name, params, demand_params, impl, uses_demand, result)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			i,
			q.Name,
			params,
			demandParams,
			q.Impl,
			boolToInt(q.UsesDemand),
			q.Result,
		); err != nil {
			return fmt.Errorf("record run: query %s: %w", q.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	run.Seq = seq
	return nil
}

// RecordExecution inserts an execution of a recorded run together with
// its trace events. The run referenced by RunID must exist.
func (s *Store) RecordExecution(ctx context.Context, exec *Execution) error {
	if exec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("record execution: %w", err)
		}
		exec.ID = id.String()
	}
	output, err := marshalStrings(exec.Output)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "executions")
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO executions (id, run_id, seq, entry, steps, output)
		VALUES (?, ?, ?, ?, ?, ?)
	`, exec.ID, exec.RunID, seq, exec.Entry, exec.Steps, output); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	for _, ev := range exec.Events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO execution_events (execution_id, seq, op, target, elem)
			VALUES (?, ?, ?, ?, ?)
		`, exec.ID, ev.Seq, ev.Op, ev.Target, ev.Elem); err != nil {
			return fmt.Errorf("record execution: event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	exec.Seq = seq
	return nil
}

// nextSeq returns the next logical sequence number of table.
func nextSeq(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(seq) FROM %s", table)).Scan(&last); err != nil {
		return 0, fmt.Errorf("last seq of %s: %w", table, err)
	}
	return last.Int64 + 1, nil
}
