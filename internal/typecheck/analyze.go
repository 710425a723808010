// Package typecheck infers a type for every variable, relation and map of
// a program by abstract interpretation over the types lattice.
//
// Each iteration walks the whole tree once, joining what it learns into the
// store. Iteration stops when a pass changes nothing or when the iteration
// limit is reached; in the latter case the result is flagged as not
// converged and a warning is logged. Composite types nested deeper than the
// height limit are widened to Top at the cut point, which bounds the
// ascending chains produced by recursive data.
package typecheck

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/types"
)

const (
	// DefaultIterationLimit bounds the number of fixpoint passes.
	DefaultIterationLimit = 20
	// DefaultHeightLimit is the widening depth. Zero disables widening.
	DefaultHeightLimit = 5
)

// Store maps symbol names to their inferred types. A missing name has
// type Bottom.
type Store map[string]types.Type

// Get returns the type of name, Bottom if unknown.
func (s Store) Get(name string) types.Type {
	if t, ok := s[name]; ok {
		return t
	}
	return types.Bottom
}

// Clone returns a shallow copy of s.
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the names in s in sorted order.
func (s Store) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Format renders the store one "name: type" line per symbol.
func (s Store) Format() string {
	var b strings.Builder
	for _, n := range s.Names() {
		fmt.Fprintf(&b, "%s: %s\n", n, s[n])
	}
	return b.String()
}

// Result is the outcome of Analyze.
type Result struct {
	Store Store

	// Illtyped lists the nodes found ill-typed in the final pass, in the
	// order they were first reported.
	Illtyped []incast.Node

	Converged  bool
	Iterations int
}

// IlltypedIDs returns the IDs of the ill-typed nodes.
func (r *Result) IlltypedIDs() []incast.NodeID {
	ids := make([]incast.NodeID, len(r.Illtyped))
	for i, n := range r.Illtyped {
		ids[i] = n.ID()
	}
	return ids
}

type config struct {
	heightLimit    int
	iterationLimit int
	logger         *slog.Logger
}

// Option configures Analyze.
type Option func(*config)

// WithHeightLimit sets the widening depth. Zero disables widening.
func WithHeightLimit(n int) Option {
	return func(c *config) { c.heightLimit = n }
}

// WithIterationLimit sets the maximum number of passes.
func WithIterationLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.iterationLimit = n
		}
	}
}

// WithLogger sets the logger used for progress and convergence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) *config {
	c := &config{
		heightLimit:    DefaultHeightLimit,
		iterationLimit: DefaultIterationLimit,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze runs the fixpoint analysis over tree starting from store, which
// is not modified. It returns an error only for programs the analyzer
// cannot handle, such as types that claim to be below a container type
// without being one.
func Analyze(tree incast.Node, store Store, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	cur := store.Clone()
	res := &Result{}
	for {
		res.Iterations++
		st := newStepper(cur, cfg.heightLimit)
		st.node(tree)
		if st.err != nil {
			return nil, st.err
		}
		cur = st.store
		res.Illtyped = st.illtyped
		cfg.logger.Debug("type analysis pass",
			"iteration", res.Iterations,
			"changed", st.changed,
			"illtyped", len(st.illtyped))
		if !st.changed {
			res.Converged = true
			break
		}
		if res.Iterations >= cfg.iterationLimit {
			cfg.logger.Warn("type analysis did not converge",
				"iterations", res.Iterations)
			break
		}
	}
	res.Store = cur
	return res, nil
}

// ExprType returns the type of e under store without updating it.
func ExprType(e incast.Expr, store Store) (types.Type, error) {
	st := newStepper(store.Clone(), 0)
	t := st.read(e)
	if st.err != nil {
		return nil, st.err
	}
	return t, nil
}
