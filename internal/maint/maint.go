// Package maint wires maintenance procedures into a program: it inserts
// calls around the updates of a relation or map, and replaces query
// occurrences once a query is maintained incrementally.
package maint

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// Maintainer inserts maintenance calls for one source relation.
//
// A call to Add follows every addition to Rel and a call to Remove
// precedes every removal, so the procedures observe the relation after
// and before the update respectively. Clear statements precede every
// clear of Rel. Reference count updates are not set updates and are left
// alone. An empty function name disables that hook.
type Maintainer struct {
	Rel    string
	Add    string
	Remove string
	Clear  []incast.Stmt
}

// Run returns tree with the calls inserted everywhere, including inside
// other maintenance procedures.
func (m *Maintainer) Run(tree incast.Node) incast.Node {
	return incast.ExpandStmts(tree, func(s incast.Stmt) []incast.Stmt {
		switch s := s.(type) {
		case *incast.RelUpdate:
			if s.Rel != m.Rel {
				break
			}
			switch {
			case s.Op == incast.RelAdd && m.Add != "":
				return []incast.Stmt{s, incast.CallStmt(m.Add, incast.NewName(s.Elem))}
			case s.Op == incast.RelRemove && m.Remove != "":
				return []incast.Stmt{incast.CallStmt(m.Remove, incast.NewName(s.Elem)), s}
			}
		case *incast.RelClear:
			if s.Rel == m.Rel && len(m.Clear) > 0 {
				return append(append([]incast.Stmt{}, m.Clear...), s)
			}
		case *incast.MapClear:
			if s.Map == m.Rel && len(m.Clear) > 0 {
				return append(append([]incast.Stmt{}, m.Clear...), s)
			}
		}
		return []incast.Stmt{s}
	})
}

// ReplaceQuery replaces every occurrence of query name in tree, and in
// the defining expressions of the other queries in tab, with the
// expression repl returns for it.
func ReplaceQuery(tree incast.Node, tab *symtab.Table, name string, repl func(*incast.Query) incast.Expr) incast.Node {
	fn := func(n incast.Node) incast.Node {
		if q, ok := n.(*incast.Query); ok && q.Name == name {
			return repl(q)
		}
		return n
	}
	for _, sym := range tab.Queries() {
		if sym.Name != name && sym.Node != nil {
			sym.Node = incast.RewriteExpr(sym.Node, fn)
		}
	}
	return incast.Rewrite(tree, fn)
}

// Prepend returns module with decls added before its existing ones.
func Prepend(module incast.Node, decls ...incast.Stmt) (*incast.Module, bool) {
	m, ok := module.(*incast.Module)
	if !ok {
		return nil, false
	}
	return &incast.Module{Decls: append(append([]incast.Stmt{}, decls...), m.Decls...)}, true
}
