// Package symtab holds the symbols of a program being compiled: relations,
// maps, variables and queries, with the attributes later passes attach to
// them.
package symtab

import (
	"fmt"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/types"
)

// Strategy selects how a comprehension's demand parameters are derived
// from its parameters.
type Strategy string

const (
	// Unconstrained keeps the parameters that occur as unconstrained
	// left-hand-side variables of some clause.
	Unconstrained Strategy = "unconstrained"
	// All keeps every parameter.
	All Strategy = "all"
	// Explicit uses the configured list.
	Explicit Strategy = "explicit"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == Unconstrained || s == All || s == Explicit
}

// Impl selects how a query is evaluated.
type Impl string

const (
	// Normal queries are evaluated from scratch at each occurrence.
	Normal Impl = "normal"
	// Incremental queries are maintained as auxiliary state.
	Incremental Impl = "inc"
)

// Valid reports whether i is a known implementation strategy.
func (i Impl) Valid() bool { return i == Normal || i == Incremental }

// RelationSymbol is a global set-valued variable. Counted relations hold
// a reference count per element.
type RelationSymbol struct {
	Name    string
	Type    types.Type
	Counted bool
}

// MapSymbol is a global map-valued variable.
type MapSymbol struct {
	Name string
	Type types.Type
}

// VarSymbol is a local or global scalar variable.
type VarSymbol struct {
	Name string
	Type types.Type
}

// QuerySymbol describes one named query.
type QuerySymbol struct {
	Name string
	// Node is the query's current defining expression, a Comp or an
	// aggregate.
	Node incast.Expr
	Type types.Type

	// Params are the variables the query reads from its enclosing scope,
	// in order of first appearance. DemandParams is the subset used to
	// restrict evaluation.
	Params           []string
	DemandParams     []string
	DemandParamStrat Strategy
	Impl             Impl
	UsesDemand       bool

	// DemandSet names the demand relation of an outer query, DemandQuery
	// the demand query of a nested one. At most one is set.
	DemandSet   string
	DemandQuery string

	// Result names the relation or map that holds the query's
	// incrementally maintained value.
	Result string
}

// MakeNode returns a Query node referring to q.
func (q *QuerySymbol) MakeNode() *incast.Query {
	return &incast.Query{Name: q.Name, Query: q.Node}
}

func (q *QuerySymbol) String() string {
	return fmt.Sprintf("%s(params=%v, demand_params=%v, impl=%s)", q.Name, q.Params, q.DemandParams, q.Impl)
}
