package demand

import (
	"fmt"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
	"github.com/roach88/incoq/internal/types"
)

// MakeDemandFunc returns the procedure that adds an element to the
// demand set of query q:
//
//	def _demand_Q(_elem):
//	    if (_elem not in _U_Q):
//	        _U_Q.reladd(_elem)
func MakeDemandFunc(q string) *incast.Fun {
	uset := symtab.DemandSetName(q)
	return &incast.Fun{
		Name: symtab.DemandFuncName(q),
		Args: []string{"_elem"},
		Body: []incast.Stmt{&incast.If{
			Test: incast.Cmp(incast.NewName("_elem"), incast.NotIn, incast.NewName(uset)),
			Body: []incast.Stmt{&incast.RelUpdate{Rel: uset, Op: incast.RelAdd, Elem: "_elem"}},
		}},
	}
}

// transformer rewrites queries top-down so that an inner query is
// rewritten after the clauses of its enclosing comprehension already
// include their own demand clause.
type transformer struct {
	tab *symtab.Table

	// compStack has one entry per transformable comprehension query being
	// visited, holding the clauses of that comprehension already visited.
	compStack    [][]incast.Clause
	pushNextComp bool

	usets         []string
	rewriteCache  map[string]incast.Expr
	demandQueries map[string]bool
	err           error
}

// Transform adds demand to every query in tree whose symbol has demand
// parameters, is incremental and uses demand. An outer query gets a demand
// set _U_Q and every occurrence becomes FIRSTTHEN(_demand_Q(params), ...);
// a query nested in a transformable comprehension instead gets a demand
// query _QU_Q over the clauses to its left. Comprehensions gain a leading
// membership clause; aggregates become restricted aggregates.
//
// Only the first occurrence of a query is rewritten; later occurrences
// reuse the result. A query whose symbol already has a demand set or demand
// query was rewritten by an earlier Transform and is left as it is, so
// transforming the output again changes nothing.
func Transform(tree incast.Node, tab *symtab.Table) (incast.Node, error) {
	t := &transformer{
		tab:           tab,
		rewriteCache:  make(map[string]incast.Expr),
		demandQueries: make(map[string]bool),
	}
	out := t.visit(tree)
	if t.err != nil {
		return nil, t.err
	}
	return out, nil
}

func (t *transformer) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

func (t *transformer) visit(n incast.Node) incast.Node {
	if t.err != nil {
		return n
	}
	switch n := n.(type) {
	case *incast.Module:
		m := incast.MapChildren(n, t.visit).(*incast.Module)
		if len(t.usets) == 0 {
			return m
		}
		decls := make([]incast.Stmt, 0, len(t.usets)+len(m.Decls))
		for _, q := range t.usets {
			decls = append(decls, MakeDemandFunc(q))
		}
		return &incast.Module{Decls: append(decls, m.Decls...)}
	case *incast.Query:
		return t.visitQuery(n)
	case *incast.FirstThen:
		if q, ok := n.Then.(*incast.Query); ok && t.rewritten(q.Name) {
			if _, cached := t.rewriteCache[q.Name]; !cached {
				t.rewriteCache[q.Name] = n
			}
			return n
		}
	case *incast.Comp:
		if !t.pushNextComp {
			return incast.MapChildren(n, t.visit)
		}
		t.pushNextComp = false
		t.compStack = append(t.compStack, nil)
		defer func() { t.compStack = t.compStack[:len(t.compStack)-1] }()

		clauses := make([]incast.Clause, len(n.Clauses))
		for i, c := range n.Clauses {
			clauses[i] = t.visit(c).(incast.Clause)
			top := len(t.compStack) - 1
			t.compStack[top] = append(t.compStack[top], clauses[i])
		}
		resexp := t.visit(n.Resexp).(incast.Expr)
		return &incast.Comp{Resexp: resexp, Clauses: clauses}
	}
	return incast.MapChildren(n, t.visit)
}

// leftClauses returns the clauses already visited in the innermost
// transformable comprehension, or ok=false outside of one.
func (t *transformer) leftClauses() (clauses []incast.Clause, ok bool) {
	if len(t.compStack) == 0 {
		return nil, false
	}
	return append([]incast.Clause{}, t.compStack[len(t.compStack)-1]...), true
}

func (t *transformer) visitQuery(n *incast.Query) incast.Node {
	if t.demandQueries[n.Name] {
		return n
	}
	if cached, ok := t.rewriteCache[n.Name]; ok {
		return cached
	}
	sym, ok := t.tab.Query(n.Name)
	if !ok {
		t.fail(incast.Errorf(n, "unknown query %s", n.Name))
		return n
	}
	if t.rewritten(sym.Name) {
		out := t.occurrence(sym, &incast.Query{Name: sym.Name, Query: sym.Node})
		t.rewriteCache[sym.Name] = out
		return out
	}

	inner, err := t.rewriteWithDemand(sym, sym.Node)
	if err != nil {
		t.fail(err)
		return n
	}
	if _, isComp := inner.(*incast.Comp); isComp && sym.Impl != symtab.Normal {
		t.pushNextComp = true
	}
	q := &incast.Query{Name: n.Name, Query: t.visit(inner).(incast.Expr)}
	t.pushNextComp = false
	sym.Node = q.Query

	out := t.occurrence(sym, q)
	t.rewriteCache[sym.Name] = out
	return out
}

// rewritten reports whether the query already carries demand from an
// earlier transformation.
func (t *transformer) rewritten(name string) bool {
	sym, ok := t.tab.Query(name)
	return ok && (sym.DemandSet != "" || sym.DemandQuery != "")
}

// occurrence returns the expression that replaces an occurrence of q: a
// query with a demand set first adds its parameters to the set.
func (t *transformer) occurrence(sym *symtab.QuerySymbol, q *incast.Query) incast.Expr {
	if sym.DemandSet == "" {
		return q
	}
	return &incast.FirstThen{
		First: incast.NewCall(symtab.DemandFuncName(sym.Name), incast.Tuplify(sym.DemandParams)),
		Then:  q,
	}
}

// rewriteWithDemand returns the demand-restricted form of a query's
// defining expression, without touching its subqueries.
func (t *transformer) rewriteWithDemand(sym *symtab.QuerySymbol, node incast.Expr) (incast.Expr, error) {
	dp := sym.DemandParams
	if len(dp) == 0 || sym.Impl == symtab.Normal || !sym.UsesDemand {
		return node, nil
	}

	var demNode incast.Expr
	var demClause incast.Clause
	if left, ok := t.leftClauses(); ok {
		demSym, err := t.makeDemandQuery(sym, left)
		if err != nil {
			return nil, err
		}
		demNode = demSym.MakeNode()
		demClause = &incast.VarsMember{Vars: dp, Iter: demNode}
		t.demandQueries[demSym.Name] = true
	} else {
		uset, err := t.makeDemandSet(sym)
		if err != nil {
			return nil, err
		}
		demNode = incast.NewName(uset)
		demClause = &incast.RelMember{Vars: dp, Rel: uset}
		t.usets = append(t.usets, sym.Name)
	}

	switch node := node.(type) {
	case *incast.Comp:
		clauses := append([]incast.Clause{demClause}, node.Clauses...)
		return &incast.Comp{Resexp: node.Resexp, Clauses: clauses}, nil
	case *incast.Aggr:
		return &incast.AggrRestr{Op: node.Op, Value: node.Value, Params: dp, Restr: demNode}, nil
	}
	return nil, incast.Errorf(node, "No rule for handling demand for %T node", node)
}

func (t *transformer) demandTupleType(dp []string) (types.Type, error) {
	elt, err := t.tab.AnalyzeExprType(incast.Tuplify(dp))
	if err != nil {
		return nil, err
	}
	return types.NewSet(elt), nil
}

func (t *transformer) makeDemandSet(sym *symtab.QuerySymbol) (string, error) {
	name := symtab.DemandSetName(sym.Name)
	typ, err := t.demandTupleType(sym.DemandParams)
	if err != nil {
		return "", err
	}
	if _, err := t.tab.DefineRelation(name, typ); err != nil {
		return "", fmt.Errorf("demand set for %s: %w", sym.Name, err)
	}
	sym.DemandSet = name
	return name, nil
}

// makeDemandQuery defines _QU_Q as the projection of the left clauses
// onto the demand parameters, with the clause variables renamed apart.
func (t *transformer) makeDemandQuery(sym *symtab.QuerySymbol, left []incast.Clause) (*symtab.QuerySymbol, error) {
	name := symtab.DemandQueryName(sym.Name)
	typ, err := t.demandTupleType(sym.DemandParams)
	if err != nil {
		return nil, err
	}
	prefix := t.tab.Fresh.NextPrefix()
	comp := symtab.RenameLHSVars(
		&incast.Comp{Resexp: incast.Tuplify(sym.DemandParams), Clauses: left},
		func(v string) string { return prefix + v },
	)

	bound := make(map[string]bool)
	for _, v := range symtab.LHSVarsFromComp(comp) {
		bound[v] = true
	}
	params := []string{}
	for _, v := range incast.FindVars(comp) {
		if !bound[v] && t.tab.Kind(v) != "relation" && t.tab.Kind(v) != "map" {
			params = append(params, v)
		}
	}

	demSym := &symtab.QuerySymbol{
		Name:         name,
		Node:         comp,
		Type:         typ,
		Params:       params,
		DemandParams: []string{},
		Impl:         sym.Impl,
	}
	if err := t.tab.DefineQuery(demSym); err != nil {
		return nil, fmt.Errorf("demand query for %s: %w", sym.Name, err)
	}
	sym.DemandQuery = name
	return demSym, nil
}
