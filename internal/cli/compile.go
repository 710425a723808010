package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/roach88/incoq/internal/compiler"
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Config   string // CUE symbol configuration
	Output   string // output file path
	Database string // run log
	Diff     bool   // print a unified diff of input and output
	Print    bool   // print the compiled program
}

// QuerySummary describes how one query was compiled.
type QuerySummary struct {
	Name         string   `json:"name"`
	Impl         string   `json:"impl"`
	Params       []string `json:"params"`
	DemandParams []string `json:"demand_params"`
	UsesDemand   bool     `json:"uses_demand"`
	Result       string   `json:"result,omitempty"`
}

// CompilationResult is the output of a successful compile.
type CompilationResult struct {
	Program     string         `json:"program"`
	InputHash   string         `json:"input_hash"`
	OutputHash  string         `json:"output_hash"`
	Queries     []QuerySummary `json:"queries"`
	Warnings    []string       `json:"warnings,omitempty"`
	Compiled    string         `json:"compiled,omitempty"`
	Diff        string         `json:"diff,omitempty"`
	RunID       string         `json:"run_id,omitempty"`
	Determinism string         `json:"determinism,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Incrementalize the queries of a program",
		Long: `Compile a YAML program, replacing every query configured as incremental
with maintained auxiliary state.

Queries default to the incremental implementation with demand; a CUE
configuration can override this per query. With --db the compilation is
recorded in the run log and checked against earlier compilations of the
same input: the same input must always compile to the same output.

Examples:
  incoq compile prog.yaml
  incoq compile prog.yaml --config prog.cue --diff
  incoq compile prog.yaml --output compiled.yaml --db ./incoq.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "CUE symbol configuration")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the compilation in this SQLite run log")
	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "show a unified diff of the input and compiled program")
	cmd.Flags().BoolVarP(&opts.Print, "print", "p", false, "print the compiled program")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, res, err := loadAndCompile(formatter, path, opts.Config)
	if err != nil {
		return err
	}

	result := &CompilationResult{
		Program:    path,
		InputHash:  res.InputHash,
		OutputHash: res.OutputHash,
		Queries:    summarizeQueries(store.NewRun(path, res)),
		Warnings:   res.Warnings,
	}
	if opts.Print {
		result.Compiled = incast.Format(res.Program.Module)
	}
	if opts.Diff {
		if result.Diff, err = programDiff(path, loaded.Program, res.Program); err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeGeneric, fmt.Sprintf("diffing programs: %v", err), nil)
		}
	}

	if opts.Output != "" {
		if err := writeProgram(res.Program, opts.Output); err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		formatter.VerboseLog("Wrote compiled program to %s", opts.Output)
	}

	if opts.Database != "" {
		report, err := recordCompile(cmd.Context(), opts.Database, path, res, result)
		if err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		if !report.Deterministic() {
			return outputError(formatter, ExitFailure, ErrCodeNondeterministic, report.String(), result)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// loadAndCompile loads a program and its configuration and compiles it,
// reporting failures through formatter.
func loadAndCompile(formatter *OutputFormatter, path, configPath string) (*Loaded, *compiler.Result, error) {
	loaded, err := Load(path, configPath)
	if err != nil {
		code, msg := loadErrorCode(err)
		return nil, nil, outputError(formatter, ExitCommandError, code, msg, nil)
	}
	formatter.VerboseLog("Loaded %s (%d relation(s), %d map(s))",
		path, len(loaded.Program.Relations), len(loaded.Program.Maps))

	res, err := compiler.Compile(loaded.Program, loaded.Config, compiler.WithLogger(formatter.Logger()))
	if err != nil {
		return nil, nil, outputCompileError(formatter, err)
	}
	for _, w := range res.Warnings {
		formatter.VerboseLog("warning: %s", w)
	}
	return loaded, res, nil
}

func recordCompile(ctx context.Context, dbPath, path string, res *compiler.Result, result *CompilationResult) (*store.DeterminismReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	report, err := st.CheckDeterminism(ctx, res.InputHash, res.OutputHash, compiler.Version)
	if err != nil {
		return nil, err
	}
	run := store.NewRun(path, res)
	if err := st.RecordRun(ctx, run); err != nil {
		return nil, err
	}
	result.RunID = run.ID
	result.Determinism = report.String()
	return report, nil
}

func summarizeQueries(run *store.Run) []QuerySummary {
	out := make([]QuerySummary, 0, len(run.Queries))
	for _, q := range run.Queries {
		out = append(out, QuerySummary{
			Name:         q.Name,
			Impl:         q.Impl,
			Params:       nonNil(q.Params),
			DemandParams: nonNil(q.DemandParams),
			UsesDemand:   q.UsesDemand,
			Result:       q.Result,
		})
	}
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// programDiff renders a unified diff from the input program to the
// compiled one.
func programDiff(path string, in, out *incast.Program) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(incast.Format(in.Module)),
		B:        difflib.SplitLines(incast.Format(out.Module)),
		FromFile: path,
		ToFile:   path + " (compiled)",
		Context:  3,
	})
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %d query(ies)\n\n", result.Program, len(result.Queries))

	if len(result.Queries) > 0 {
		fmt.Fprintln(w, "Queries:")
		for _, q := range result.Queries {
			fmt.Fprintf(w, "  %s\n", describeQuery(q))
		}
		fmt.Fprintln(w)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Output hash: %s\n", result.OutputHash)
	if result.RunID != "" {
		fmt.Fprintf(w, "Recorded run %s (%s)\n", result.RunID, result.Determinism)
	}
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled program to %s\n", outputFile)
	}
	if result.Compiled != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, result.Compiled)
	}
	if result.Diff != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, result.Diff)
	}
	return nil
}

// describeQuery renders one query as "Q1: inc params=[a] demand=[a] → R_Q1".
func describeQuery(q QuerySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s params=[%s]", q.Name, q.Impl, strings.Join(q.Params, ", "))
	if q.UsesDemand {
		fmt.Fprintf(&b, " demand=[%s]", strings.Join(q.DemandParams, ", "))
	}
	if q.Result != "" {
		fmt.Fprintf(&b, " → %s", q.Result)
	}
	return b.String()
}

// outputError outputs a single error and returns the matching ExitError.
func outputError(formatter *OutputFormatter, exitCode int, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileError outputs a failed compilation. Validation failures
// list every error found.
func outputCompileError(formatter *OutputFormatter, err error) error {
	ce, ok := compiler.AsCompileError(err)
	if !ok {
		return outputError(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if len(ce.Errors) == 0 {
		return outputError(formatter, ExitCommandError, ce.Code, ce.Message, map[string]string{"phase": string(ce.Phase)})
	}

	if formatter.IsJSON() {
		cliErrors := make([]CLIError, len(ce.Errors))
		for i, ve := range ce.Errors {
			cliErrors[i] = CLIError{Code: ve.Code, Message: ve.Message, Details: ve.Field}
		}
		response := CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: ce.Code, Message: ce.Message},
			Data:   cliErrors, // Include all errors in data
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(ce.Errors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, ve := range ce.Errors {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", ve.Code, ve.Field, ve.Message)
	}
	fmt.Fprintln(formatter.Writer)

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(ce.Errors)))
}
