package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/incoq/internal/compiler"
	"github.com/roach88/incoq/internal/engine"
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Entry    string
	MaxSteps int
	Trace    bool
	Direct   bool // run the input program without compiling it

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// RunResult is the outcome of a run.
type RunResult struct {
	RunID       string         `json:"run_id"`
	Output      []string       `json:"output"`
	Steps       int            `json:"steps"`
	Trace       []engine.Event `json:"trace,omitempty"`
	CompileRun  string         `json:"compile_run,omitempty"`
	Incremental bool           `json:"incremental"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Compile a program and execute it",
		Long: `Compile a YAML program and execute the result on the runtime
collection library, printing the lines the program prints.

The module-level statements run first, then the entry function. With
--direct the input program runs as written, every query evaluated from
scratch; its output must equal the compiled program's. With --db the
compilation and the execution, including its trace, are recorded in the
run log.

Examples:
  incoq run prog.yaml
  incoq run prog.yaml --direct
  incoq run prog.yaml --config prog.cue --trace --db ./incoq.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "CUE symbol configuration")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite run log")
	cmd.Flags().StringVar(&opts.Entry, "entry", "main", "function to call after the module-level statements")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "statement quota (0 disables it)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "record every update of a relation or map")
	cmd.Flags().BoolVar(&opts.Direct, "direct", false, "run the program without compiling it")
	cmd.MarkFlagsMutuallyExclusive("direct", "db")

	return cmd
}

func runProgram(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var (
		prog *incast.Program
		res  *compiler.Result
	)
	if opts.Direct {
		loaded, err := Load(path, opts.Config)
		if err != nil {
			code, msg := loadErrorCode(err)
			return outputError(formatter, ExitCommandError, code, msg, nil)
		}
		prog = loaded.Program
	} else {
		var err error
		if _, res, err = loadAndCompile(formatter, path, opts.Config); err != nil {
			return err
		}
		prog = res.Program
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engOpts := []engine.Option{
		engine.WithLogger(formatter.Logger()),
		engine.WithMaxSteps(opts.MaxSteps),
	}
	if opts.RunIDGenerator != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDGenerator))
	}
	if opts.Trace {
		engOpts = append(engOpts, engine.WithTrace())
	}
	eng, err := engine.New(prog.Module, engine.DeclarationsFromProgram(prog), engOpts...)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	out, err := eng.Run(ctx, opts.Entry)
	if err != nil {
		return outputRuntimeError(formatter, err)
	}
	result := &RunResult{
		RunID:       out.RunID,
		Output:      nonNil(out.Output),
		Steps:       out.Steps,
		Trace:       out.Trace,
		Incremental: !opts.Direct,
	}

	if opts.Database != "" {
		if err := recordExecution(ctx, opts.Database, path, opts.Entry, res, result); err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		formatter.VerboseLog("Recorded execution %s of run %s", result.RunID, result.CompileRun)
	}

	return outputRunSuccess(formatter, result)
}

// recordExecution records the compilation and then the execution of it.
func recordExecution(ctx context.Context, dbPath, path, entry string, res *compiler.Result, result *RunResult) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	run := store.NewRun(path, res)
	if err := st.RecordRun(ctx, run); err != nil {
		return err
	}
	result.CompileRun = run.ID
	return st.RecordExecution(ctx, &store.Execution{
		ID:     result.RunID,
		RunID:  run.ID,
		Entry:  entry,
		Steps:  result.Steps,
		Output: result.Output,
		Events: result.Trace,
	})
}

func outputRunSuccess(formatter *OutputFormatter, result *RunResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	for _, line := range result.Output {
		fmt.Fprintln(formatter.Writer, line)
	}
	if len(result.Trace) > 0 {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintln(formatter.Writer, "Trace:")
		for _, ev := range result.Trace {
			fmt.Fprintf(formatter.Writer, "  %s\n", formatEvent(ev))
		}
	}
	formatter.VerboseLog("Run %s finished after %d step(s)", result.RunID, result.Steps)
	return nil
}

// outputRuntimeError reports a failed execution. Cancellation is a command
// error, everything else a program failure.
func outputRuntimeError(formatter *OutputFormatter, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outputError(formatter, ExitCommandError, ErrCodeGeneric, "run interrupted", nil)
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return outputError(formatter, ExitFailure, ErrCodeRuntime, re.Error(),
			map[string]string{"code": string(re.Code), "run_id": re.RunID})
	}
	return outputError(formatter, ExitFailure, ErrCodeRuntime, err.Error(), nil)
}

// formatEvent renders an event as "3 reladd S (1, 2)".
func formatEvent(ev engine.Event) string {
	if ev.Elem == "" {
		return fmt.Sprintf("%d %s %s", ev.Seq, ev.Op, ev.Target)
	}
	return fmt.Sprintf("%d %s %s %s", ev.Seq, ev.Op, ev.Target, ev.Elem)
}
