package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/incoq/internal/compiler"
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/types"
)

// TypesOptions holds flags for the types command.
type TypesOptions struct {
	*RootOptions
	Config string
}

// TypedSymbol is one entry of the inferred type store.
type TypedSymbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// TypesResult holds the inferred types of a program.
type TypesResult struct {
	Symbols  []TypedSymbol `json:"symbols"`
	Queries  []TypedSymbol `json:"queries"`
	Illtyped []string      `json:"illtyped"`
	Warnings []string      `json:"warnings,omitempty"`
}

// NewTypesCommand creates the types command.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TypesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "types <program>",
		Short: "Show the inferred types of a program",
		Long: `Run type analysis on a program and print the inferred type of every
relation, map, variable and query, followed by the nodes found ill-typed.

Example:
  incoq types prog.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypes(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "CUE symbol configuration")

	return cmd
}

func runTypes(opts *TypesOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	_, res, err := loadAndCompile(formatter, path, opts.Config)
	if err != nil {
		return err
	}
	result := typesOf(res)

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintln(w, "Types:")
	for _, s := range result.Symbols {
		fmt.Fprintf(w, "  %s %s: %s\n", s.Kind, s.Name, s.Type)
	}
	if len(result.Queries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Queries:")
		for _, q := range result.Queries {
			fmt.Fprintf(w, "  %s: %s\n", q.Name, q.Type)
		}
	}
	if len(result.Illtyped) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Ill-typed:")
		for _, n := range result.Illtyped {
			fmt.Fprintf(w, "  %s\n", n)
		}
	}
	return nil
}

// typesOf lists the types inferred for the input program. Auxiliary
// symbols added by incrementalization are not part of the store.
func typesOf(res *compiler.Result) *TypesResult {
	result := &TypesResult{
		Symbols:  []TypedSymbol{},
		Queries:  []TypedSymbol{},
		Illtyped: []string{},
		Warnings: res.Warnings,
	}
	for _, name := range res.Store.Names() {
		result.Symbols = append(result.Symbols, TypedSymbol{
			Name: name,
			Kind: res.Table.Kind(name),
			Type: typeString(res.Store.Get(name)),
		})
	}
	for _, name := range res.Order {
		q, ok := res.Table.Query(name)
		if !ok {
			continue
		}
		result.Queries = append(result.Queries, TypedSymbol{Name: name, Kind: "query", Type: typeString(q.Type)})
	}
	for _, n := range res.Illtyped {
		result.Illtyped = append(result.Illtyped, incast.Format(n))
	}
	return result
}

func typeString(t types.Type) string {
	if t == nil {
		return types.Bottom.String()
	}
	return t.String()
}
