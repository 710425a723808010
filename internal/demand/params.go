package demand

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// CompDemandParams derives the demand parameters of a comprehension from
// its parameters. explicit is the configured list, nil when none was
// given; it is only allowed with the Explicit strategy.
func CompDemandParams(comp *incast.Comp, params, explicit []string, strat symtab.Strategy) ([]string, error) {
	if strat != symtab.Explicit && explicit != nil {
		return nil, fmt.Errorf("demand params given but demand_param_strat is %q, not %q", strat, symtab.Explicit)
	}
	switch strat {
	case symtab.Unconstrained:
		uncon := make(map[string]bool)
		for _, v := range symtab.UnconLHSVarsFromComp(comp) {
			uncon[v] = true
		}
		out := []string{}
		for _, p := range params {
			if uncon[p] {
				out = append(out, p)
			}
		}
		return out, nil
	case symtab.All:
		return append([]string{}, params...), nil
	case symtab.Explicit:
		if explicit == nil {
			return nil, fmt.Errorf("demand_param_strat is %q but no demand params were given", symtab.Explicit)
		}
		return append([]string{}, explicit...), nil
	}
	return nil, fmt.Errorf("unknown demand_param_strat %q", strat)
}

// AnalyzeParameters sets Params and DemandParams on the symbol of every
// query occurring in tree. A query's parameters are the variables of its
// definition that are bound in an enclosing scope, in order of first
// appearance. Relation and map names are never parameters. Every occurrence of a query must agree on its parameters.
//
// On entry a query symbol's DemandParams holds the configured explicit
// list, or nil.
func AnalyzeParameters(tree incast.Node, tab *symtab.Table, bindenv []string) error {
	scopes := BuildScopes(tree, bindenv)
	cache := make(map[string][]string)

	var err error
	incast.Walk(tree, func(n incast.Node) bool {
		if err != nil {
			return false
		}
		q, ok := n.(*incast.Query)
		if !ok {
			return true
		}
		err = analyzeQuery(q, tab, scopes[q.ID()], cache)
		return err == nil
	})
	return err
}

func analyzeQuery(q *incast.Query, tab *symtab.Table, scope ScopeInfo, cache map[string][]string) error {
	sym, ok := tab.Query(q.Name)
	if !ok {
		return incast.Errorf(q, "unknown query %s", q.Name)
	}

	bound := make(map[string]bool, len(scope.Bound))
	for _, v := range scope.Bound {
		bound[v] = true
	}
	params := []string{}
	for _, v := range incast.FindVars(q.Query) {
		if bound[v] && tab.Kind(v) != "relation" && tab.Kind(v) != "map" {
			params = append(params, v)
		}
	}

	if prev, seen := cache[q.Name]; seen {
		if !slices.Equal(prev, params) {
			return incast.Errorf(q, "Inconsistent parameter info for query %s: %s, %s",
				q.Name, formatTuple(prev), formatTuple(params))
		}
		return nil
	}
	cache[q.Name] = params

	var demandParams []string
	switch node := q.Query.(type) {
	case *incast.Comp:
		dp, err := CompDemandParams(node, params, sym.DemandParams, sym.DemandParamStrat)
		if err != nil {
			return incast.Errorf(q, "query %s: %v", q.Name, err)
		}
		demandParams = dp
	case *incast.Aggr, *incast.AggrRestr:
		demandParams = params
	default:
		kind := strings.TrimPrefix(fmt.Sprintf("%T", q.Query), "*incast.")
		return incast.Errorf(q, "No rule for analyzing parameters of %s query", kind)
	}
	sym.Params = params
	sym.DemandParams = demandParams
	return nil
}

func formatTuple(vs []string) string {
	return incast.Format(incast.Tuplify(vs))
}
