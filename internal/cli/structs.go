package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/incoq/internal/demand"
	"github.com/roach88/incoq/internal/incast"
)

// StructsOptions holds flags for the structs command.
type StructsOptions struct {
	*RootOptions
	Config string
}

// StructureInfo is the JSON form of one tag or filter.
type StructureInfo struct {
	Kind   string   `json:"kind"`
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Var    string   `json:"var,omitempty"`
	Clause string   `json:"clause"`
	Deps   []string `json:"deps,omitempty"`
	// Definition computes the structure from scratch.
	Definition string `json:"definition"`
}

// StructsResult holds the structures of one query.
type StructsResult struct {
	Query      string          `json:"query"`
	Structures []StructureInfo `json:"structures"`
	// Filtered is the comprehension ranging over its filters.
	Filtered string `json:"filtered,omitempty"`
}

// NewStructsCommand creates the structs command.
func NewStructsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StructsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "structs <program> <query>",
		Short: "Show the tags and filters of an incrementalized comprehension",
		Long: `Compile a program and print the tag and filter chain built for one
comprehension query. Each tag holds the values a variable takes in one
clause; each filter restricts the relation of one clause to the tagged
values of its bound positions. Every structure is followed by the
comprehension that computes it, and the chain by the query rewritten to
range over its filters.

Example:
  incoq structs prog.yaml Q1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStructs(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "CUE symbol configuration")

	return cmd
}

func runStructs(opts *StructsOptions, path, query string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	_, res, err := loadAndCompile(formatter, path, opts.Config)
	if err != nil {
		return err
	}
	if _, ok := res.Table.Query(query); !ok {
		return outputError(formatter, ExitCommandError, ErrCodeUnknownQuery,
			fmt.Sprintf("no query %s in %s", query, path), res.Order)
	}

	g := res.Structures[query]
	result := StructsResult{Query: query, Structures: []StructureInfo{}}
	if g != nil {
		for _, s := range g.Structs {
			def, err := g.MakeComp(s)
			if err != nil {
				return outputError(formatter, ExitFailure, ErrCodeGeneric, err.Error(), nil)
			}
			result.Structures = append(result.Structures, structureInfo(s, def))
		}
		result.Filtered = incast.Format(g.FilterComp())
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	if len(result.Structures) == 0 {
		fmt.Fprintf(formatter.Writer, "%s has no structures: it is not an incrementalized comprehension\n", query)
		return nil
	}
	for i, s := range g.Structs {
		fmt.Fprintln(formatter.Writer, s.String())
		fmt.Fprintf(formatter.Writer, "    %s\n", result.Structures[i].Definition)
	}
	fmt.Fprintf(formatter.Writer, "filtered: %s\n", result.Filtered)
	return nil
}

func structureInfo(s *demand.Structure, def *incast.Comp) StructureInfo {
	return StructureInfo{
		Kind:       string(s.Kind),
		Index:      s.Index,
		Name:       s.Name,
		Var:        s.Var,
		Clause:     incast.Format(s.Clause),
		Deps:       s.Deps,
		Definition: incast.Format(def),
	}
}
