package comp

import (
	"strings"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/maint"
	"github.com/roach88/incoq/internal/symtab"
)

// OccurrenceExpr returns the expression that reads the value of a query
// maintained in resultRel. nres is the number of result components and
// tuple reports whether the result expression is a tuple.
func OccurrenceExpr(resultRel string, params []string, nres int, tuple bool) incast.Expr {
	var e incast.Expr = incast.NewName(resultRel)
	if len(params) > 0 {
		mask := strings.Repeat("b", len(params)) + strings.Repeat("u", nres)
		e = &incast.ImgLookup{Set: e, Mask: incast.Mask(mask), Bounds: params}
	}
	if !tuple {
		e = &incast.Unwrap{Value: e}
	}
	return e
}

// Incrementalize maintains the comprehension query sym in a counted
// result relation. It defines the relation, adds a maintenance procedure
// for additions to and removals from every relation the comprehension
// ranges over, inserts calls to them around the updates, and replaces
// every occurrence of the query by a lookup on the result relation.
func Incrementalize(tree incast.Node, tab *symtab.Table, sym *symtab.QuerySymbol) (incast.Node, error) {
	c, ok := sym.Node.(*incast.Comp)
	if !ok {
		return nil, incast.Errorf(sym.Node, "query %s is not a comprehension", sym.Name)
	}
	norm, err := normalizeComp(tab, c, sym.Params)
	if err != nil {
		return nil, err
	}

	resultRel := symtab.ResultRelName(sym.Name)
	elts := resultElts(norm, sym.Params)
	typ, err := tab.AnalyzeExprType(&incast.Comp{Resexp: &incast.Tuple{Elts: elts}, Clauses: norm.Clauses})
	if err != nil {
		return nil, incast.Errorf(sym.Node, "result type of %s: %v", sym.Name, err)
	}
	rs, err := tab.DefineRelation(resultRel, typ)
	if err != nil {
		return nil, incast.Errorf(sym.Node, "%v", err)
	}
	rs.Counted = true

	var funcs []incast.Stmt
	for _, rel := range relations(norm) {
		add := makeMaintFunc(tab.Fresh, norm, sym.Params, resultRel, rel, incast.RelAdd)
		remove := makeMaintFunc(tab.Fresh, norm, sym.Params, resultRel, rel, incast.RelRemove)
		funcs = append(funcs, add, remove)
		m := &maint.Maintainer{
			Rel:    rel,
			Add:    add.Name,
			Remove: remove.Name,
			Clear:  []incast.Stmt{&incast.RelClear{Rel: resultRel}},
		}
		tree = m.Run(tree)
	}
	module, ok := maint.Prepend(tree, funcs...)
	if !ok {
		return nil, incast.Errorf(sym.Node, "comprehension %s must be incrementalized in a module", sym.Name)
	}

	_, tuple := norm.Resexp.(*incast.Tuple)
	nres := len(elts) - len(sym.Params)
	out := maint.ReplaceQuery(module, tab, sym.Name, func(*incast.Query) incast.Expr {
		return OccurrenceExpr(resultRel, sym.Params, nres, tuple)
	})
	sym.Node = norm
	sym.Result = resultRel
	return out, nil
}
