package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/incoq/internal/compiler"
	"github.com/roach88/incoq/internal/engine"
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/rt"
	"github.com/roach88/incoq/internal/store"
	"github.com/roach88/incoq/internal/testutil"
)

// Harness is the scenario execution engine. It compiles a scenario's
// program, runs both the compiled and the original program with a fixed
// run id, and records the compiled run in its store.
type Harness struct {
	store  *store.Store
	runIDs engine.RunIDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
// An error is returned only when the scenario cannot be executed at all;
// failed expectations are reported in Result.Errors.
//
// Execution flow:
// 1. Compile the program with the scenario's configuration
// 2. Check the compiler's query decisions
// 3. Run the compiled program with tracing and record it, failed or not
// 4. Run the original program as the reference
// 5. Compare outputs, errors and assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for cancelling the engine runs.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	prog, err := scenario.loadProgram()
	if err != nil {
		return nil, err
	}
	cfg, err := scenario.loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		runIDs: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	compiled, err := compiler.Compile(prog, cfg, compiler.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Compiled = compiled
	result.OutputHash = compiled.OutputHash
	result.Queries = queryResults(compiled)
	checkQueries(result, scenario.Queries)

	got, gotErr := h.execute(ctx, compiled.Program, scenario, true, result.State)
	if isCancellation(gotErr) {
		return nil, gotErr
	}
	ref, refErr := h.execute(ctx, prog, scenario, false, nil)
	if isCancellation(refErr) {
		return nil, refErr
	}

	if got != nil {
		result.RunID = got.RunID
		result.Output = got.Output
		result.Steps = got.Steps
		result.Trace = got.Trace
		if err := h.record(ctx, scenario, compiled, got); err != nil {
			return nil, err
		}
	}
	if ref != nil {
		result.Reference = ref.Output
	}

	if scenario.Expect.Error != "" {
		checkError(result, "compiled run", scenario.Expect.Error, gotErr)
		checkError(result, "reference run", scenario.Expect.Error, refErr)
	} else {
		switch {
		case gotErr != nil:
			result.AddError(fmt.Sprintf("compiled run failed: %v", gotErr))
		case refErr != nil:
			result.AddError(fmt.Sprintf("reference run failed: %v", refErr))
		default:
			if !slices.Equal(got.Output, scenario.Expect.Output) {
				result.AddError(fmt.Sprintf("output: expected %q, got %q", scenario.Expect.Output, got.Output))
			}
			if !slices.Equal(got.Output, ref.Output) {
				result.AddError(fmt.Sprintf("compiled output %q differs from reference output %q", got.Output, ref.Output))
			}
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"steps", result.Steps,
		"errors", len(result.Errors),
	)
	return result, nil
}

// execute runs prog's entry function. When state is non-nil it receives
// the formatted final value of every declared collection, even after a
// failed run.
func (h *Harness) execute(ctx context.Context, prog *incast.Program, scenario *Scenario, trace bool, state map[string]string) (*engine.Result, error) {
	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithRunIDGenerator(h.runIDs),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	if trace {
		opts = append(opts, engine.WithTrace())
	}
	decls := engine.DeclarationsFromProgram(prog)
	eng, err := engine.New(prog.Module, decls, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	res, runErr := eng.Run(ctx, scenario.entry())
	if state != nil {
		for _, name := range append(append([]string(nil), decls.Relations...), decls.Maps...) {
			if v, ok := eng.Global(name); ok {
				state[name] = rt.Format(v)
			}
		}
	}
	return res, runErr
}

// record writes the compiled run and its execution to the store and
// reads the trace back.
func (h *Harness) record(ctx context.Context, scenario *Scenario, compiled *compiler.Result, got *engine.Result) error {
	run := store.NewRun(scenario.Name, compiled)
	if err := h.store.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	exec := &store.Execution{
		ID:     got.RunID,
		RunID:  run.ID,
		Entry:  scenario.entry(),
		Steps:  got.Steps,
		Output: got.Output,
		Events: got.Trace,
	}
	if err := h.store.RecordExecution(ctx, exec); err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	events, err := h.store.ExecutionEvents(ctx, exec.ID)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	if !slices.Equal(events, got.Trace) {
		return fmt.Errorf("recorded trace of %s differs from executed trace", exec.ID)
	}

	h.logger.Info("execution recorded",
		"run_id", run.ID,
		"execution_id", exec.ID,
		"events", len(events),
	)
	return nil
}

func queryResults(res *compiler.Result) []QueryResult {
	out := make([]QueryResult, 0, len(res.Order))
	for _, name := range res.Order {
		sym, ok := res.Table.Query(name)
		if !ok {
			continue
		}
		out = append(out, QueryResult{
			Name:         sym.Name,
			Impl:         string(sym.Impl),
			Params:       sym.Params,
			DemandParams: sym.DemandParams,
			Result:       sym.Result,
		})
	}
	return out
}

// checkQueries compares the compiler's decisions with the non-empty
// fields of each expectation.
func checkQueries(result *Result, expects []QueryExpect) {
	for _, want := range expects {
		i := slices.IndexFunc(result.Queries, func(q QueryResult) bool { return q.Name == want.Name })
		if i < 0 {
			result.AddError(fmt.Sprintf("query %s: not found in compiled program", want.Name))
			continue
		}
		got := result.Queries[i]
		if want.Impl != "" && want.Impl != got.Impl {
			result.AddError(fmt.Sprintf("query %s: expected impl %s, got %s", want.Name, want.Impl, got.Impl))
		}
		if want.Params != nil && !slices.Equal(want.Params, got.Params) {
			result.AddError(fmt.Sprintf("query %s: expected params %v, got %v", want.Name, want.Params, got.Params))
		}
		if want.DemandParams != nil && !slices.Equal(want.DemandParams, got.DemandParams) {
			result.AddError(fmt.Sprintf("query %s: expected demand params %v, got %v", want.Name, want.DemandParams, got.DemandParams))
		}
		if want.Result != "" && want.Result != got.Result {
			result.AddError(fmt.Sprintf("query %s: expected result %s, got %s", want.Name, want.Result, got.Result))
		}
	}
}

// checkError checks that err is a runtime error with the given code.
func checkError(result *Result, run, code string, err error) {
	if err == nil {
		result.AddError(fmt.Sprintf("%s: expected runtime error %s, run succeeded", run, code))
		return
	}
	var re *engine.RuntimeError
	if !errors.As(err, &re) {
		result.AddError(fmt.Sprintf("%s: expected runtime error %s, got %v", run, code, err))
		return
	}
	if string(re.Code) != code {
		result.AddError(fmt.Sprintf("%s: expected runtime error %s, got %s: %s", run, code, re.Code, re.Message))
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
