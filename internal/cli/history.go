package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/incoq/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Run      string // optional - show one run in detail
}

// RunEntry is one line of the run listing.
type RunEntry struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Program    string `json:"program"`
	InputHash  string `json:"input_hash"`
	OutputHash string `json:"output_hash"`
	Version    string `json:"version"`
}

// ExecutionEntry is one recorded execution of a run.
type ExecutionEntry struct {
	ID     string   `json:"id"`
	Seq    int64    `json:"seq"`
	Entry  string   `json:"entry"`
	Steps  int      `json:"steps"`
	Output []string `json:"output"`
	Trace  []string `json:"trace"`
}

// RunDetail holds one run with its queries and executions.
type RunDetail struct {
	Run        RunEntry         `json:"run"`
	Queries    []QuerySummary   `json:"queries"`
	Executions []ExecutionEntry `json:"executions"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded compilations and executions",
		Long: `List the compile runs recorded in a run log, oldest first.

With --run, show one run in detail: the decisions made for each query
and every recorded execution of the compiled program with its trace.

Examples:
  incoq history --db ./incoq.db
  incoq history --db ./incoq.db --run 0190a7c4-...
  incoq history --db ./incoq.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run id to show in detail")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	if opts.Run != "" {
		detail, err := loadRunDetail(ctx, st, opts.Run)
		if errors.Is(err, store.ErrNotFound) {
			return outputError(formatter, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no run %s", opts.Run), nil)
		}
		if err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		if formatter.IsJSON() {
			return formatter.Success(detail)
		}
		outputRunDetail(formatter, detail)
		return nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	entries := make([]RunEntry, len(runs))
	for i, r := range runs {
		entries[i] = runEntry(r)
	}

	if formatter.IsJSON() {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintf(formatter.Writer, "No runs recorded in %s\n", opts.Database)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%4d  %s  %s  %s → %s\n",
			e.Seq, e.ID, e.Program, shortHash(e.InputHash), shortHash(e.OutputHash))
	}
	return nil
}

func loadRunDetail(ctx context.Context, st *store.Store, id string) (*RunDetail, error) {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	execs, err := st.ListExecutions(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &RunDetail{
		Run:        runEntry(run),
		Queries:    summarizeQueries(&run),
		Executions: make([]ExecutionEntry, len(execs)),
	}
	for i, e := range execs {
		trace := make([]string, len(e.Events))
		for j, ev := range e.Events {
			trace[j] = formatEvent(ev)
		}
		detail.Executions[i] = ExecutionEntry{
			ID:     e.ID,
			Seq:    e.Seq,
			Entry:  e.Entry,
			Steps:  e.Steps,
			Output: e.Output,
			Trace:  trace,
		}
	}
	return detail, nil
}

func runEntry(r store.Run) RunEntry {
	return RunEntry{
		ID:         r.ID,
		Seq:        r.Seq,
		Program:    r.Program,
		InputHash:  r.InputHash,
		OutputHash: r.OutputHash,
		Version:    r.EngineVersion,
	}
}

func outputRunDetail(formatter *OutputFormatter, d *RunDetail) {
	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (seq %d)\n", d.Run.ID, d.Run.Seq)
	fmt.Fprintf(w, "  Program: %s\n", d.Run.Program)
	fmt.Fprintf(w, "  Input:   %s\n", d.Run.InputHash)
	fmt.Fprintf(w, "  Output:  %s\n", d.Run.OutputHash)
	fmt.Fprintf(w, "  Version: %s\n", d.Run.Version)

	if len(d.Queries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Queries:")
		for _, q := range d.Queries {
			fmt.Fprintf(w, "  %s\n", describeQuery(q))
		}
	}

	for _, e := range d.Executions {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Execution %s (seq %d, entry %s, %d step(s)):\n", e.ID, e.Seq, e.Entry, e.Steps)
		for _, line := range e.Output {
			fmt.Fprintf(w, "  | %s\n", line)
		}
		if formatter.Verbose {
			for _, ev := range e.Trace {
				fmt.Fprintf(w, "  %s\n", ev)
			}
		}
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
