package compiler

import (
	"slices"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
	"github.com/roach88/incoq/internal/types"
)

// defineCollections adds the program's relations and maps to tab, with
// the types the configuration declares for them.
func defineCollections(prog *incast.Program, cfg *symtab.Config, tab *symtab.Table) error {
	for _, r := range prog.Relations {
		var typ types.Type
		counted := slices.Contains(prog.Counted, r)
		if sc, ok := cfg.Relations[r]; ok {
			typ = sc.Type
			counted = counted || sc.Counted
		}
		sym, err := tab.DefineRelation(r, typ)
		if err != nil {
			return err
		}
		sym.Counted = counted
	}
	for _, m := range prog.Maps {
		var typ types.Type
		if sc, ok := cfg.Maps[m]; ok {
			typ = sc.Type
		}
		if _, err := tab.DefineMap(m, typ); err != nil {
			return err
		}
	}
	return nil
}

// disallow rejects the constructs the compiler cannot reason about:
// attribute access and calls of computed functions.
func disallow(tree incast.Node) error {
	var err error
	incast.Walk(tree, func(n incast.Node) bool {
		if err != nil {
			return false
		}
		switch n.(type) {
		case *incast.Attribute:
			err = incast.Errorf(n, "attribute access is not supported")
		case *incast.GeneralCall:
			err = incast.Errorf(n, "only calls of named functions are supported")
		}
		return err == nil
	})
	return err
}

// importUpdates rewrites set and dict operations on declared relations
// and maps into their relation and map forms. An element that is not a
// variable is first assigned to a fresh one.
func importUpdates(tree incast.Node, tab *symtab.Table) (incast.Node, error) {
	var err error
	fail := func(e error) {
		if err == nil {
			err = e
		}
	}
	isRel := func(e incast.Expr) (string, bool) {
		if n, ok := e.(*incast.Name); ok && tab.Kind(n.Ident) == "relation" {
			return n.Ident, true
		}
		return "", false
	}
	isMap := func(e incast.Expr) (string, bool) {
		if n, ok := e.(*incast.Name); ok && tab.Kind(n.Ident) == "map" {
			return n.Ident, true
		}
		return "", false
	}

	tree = incast.ExpandStmts(tree, func(s incast.Stmt) []incast.Stmt {
		switch s := s.(type) {
		case *incast.Assign:
			if k := tab.Kind(s.Target); k == "relation" || k == "map" {
				fail(incast.Errorf(s, "%s %s cannot be reassigned", k, s.Target))
			}
		case *incast.SetUpdate:
			rel, ok := isRel(s.Target)
			if !ok {
				break
			}
			out, e := importSetUpdate(tab, rel, s)
			if e != nil {
				fail(e)
				break
			}
			return out
		case *incast.SetClear:
			if rel, ok := isRel(s.Target); ok {
				return []incast.Stmt{&incast.RelClear{Rel: rel}}
			}
		case *incast.DictAssign:
			if m, ok := isMap(s.Target); ok {
				return []incast.Stmt{&incast.MapAssign{Map: m, Key: s.Key, Value: s.Value}}
			}
		case *incast.DictDelete:
			if m, ok := isMap(s.Target); ok {
				return []incast.Stmt{&incast.MapDelete{Map: m, Key: s.Key}}
			}
		case *incast.DictClear:
			if m, ok := isMap(s.Target); ok {
				return []incast.Stmt{&incast.MapClear{Map: m}}
			}
		}
		return []incast.Stmt{s}
	})
	if err != nil {
		return nil, err
	}

	tree = incast.Rewrite(tree, func(n incast.Node) incast.Node {
		switch n := n.(type) {
		case *incast.DictLookup:
			if m, ok := isMap(n.Value); ok {
				return &incast.MapLookup{Map: m, Key: n.Key, Default: n.Default}
			}
		case *incast.VarsMember:
			if rel, ok := isRel(n.Iter); ok {
				return &incast.RelMember{Vars: n.Vars, Rel: rel}
			}
		}
		return n
	})
	return tree, nil
}

func importSetUpdate(tab *symtab.Table, rel string, s *incast.SetUpdate) ([]incast.Stmt, error) {
	switch s.Op {
	case incast.SetAdd, incast.SetRemove:
		op := incast.RelAdd
		if s.Op == incast.SetRemove {
			op = incast.RelRemove
		}
		if n, ok := s.Value.(*incast.Name); ok {
			return []incast.Stmt{&incast.RelUpdate{Rel: rel, Op: op, Elem: n.Ident}}, nil
		}
		v := tab.Fresh.Next()
		return []incast.Stmt{
			&incast.Assign{Target: v, Value: s.Value},
			&incast.RelUpdate{Rel: rel, Op: op, Elem: v},
		}, nil

	case incast.SetUnion, incast.SetDifferenceUpdate:
		// for v in value: if v not in rel: rel.add(v)
		v := tab.Fresh.Next()
		test, op := incast.NotIn, incast.RelAdd
		if s.Op == incast.SetDifferenceUpdate {
			test, op = incast.In, incast.RelRemove
		}
		return []incast.Stmt{&incast.For{
			Target: v,
			Iter:   s.Value,
			Body: []incast.Stmt{&incast.If{
				Test: incast.Cmp(incast.NewName(v), test, incast.NewName(rel)),
				Body: []incast.Stmt{&incast.RelUpdate{Rel: rel, Op: op, Elem: v}},
			}},
		}}, nil
	}
	return nil, incast.Errorf(s, "bulk update %s of relation %s is not supported", s.Op, rel)
}

// defineQueries adds a symbol for every query occurring in tree, outer
// queries first, with the attributes the configuration gives it.
func defineQueries(tree incast.Node, cfg *symtab.Config, tab *symtab.Table) error {
	var err error
	incast.Walk(tree, func(n incast.Node) bool {
		if err != nil {
			return false
		}
		q, ok := n.(*incast.Query)
		if !ok {
			return true
		}
		if _, defined := tab.Query(q.Name); defined {
			return true
		}
		if e := tab.DefineQuery(newQuerySymbol(q, cfg)); e != nil {
			err = incast.Errorf(q, "%v", e)
		}
		return err == nil
	})
	return err
}

func newQuerySymbol(q *incast.Query, cfg *symtab.Config) *symtab.QuerySymbol {
	sym := &symtab.QuerySymbol{
		Name:             q.Name,
		Node:             q.Query,
		Impl:             cfg.DefaultImpl,
		UsesDemand:       cfg.UsesDemand,
		DemandParamStrat: symtab.Unconstrained,
	}
	qc, ok := cfg.Queries[q.Name]
	if !ok {
		return sym
	}
	if qc.Impl != "" {
		sym.Impl = qc.Impl
	}
	sym.DemandParamStrat = qc.Strategy
	sym.DemandParams = qc.DemandParams
	if qc.UsesDemand != nil {
		sym.UsesDemand = *qc.UsesDemand
	}
	return sym
}

// defineVars adds a symbol for every variable of tree that is not a
// relation, map or query.
func defineVars(tree incast.Node, tab *symtab.Table) {
	for _, v := range incast.FindVars(tree) {
		tab.DefineVar(v)
	}
}
