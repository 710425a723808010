// Package demand analyses the parameters of queries and rewrites queries
// so that they are only maintained for the parameter values a program
// actually asks about.
package demand

import (
	"github.com/roach88/incoq/internal/incast"
)

// ScopeInfo records the variables bound around one Query occurrence.
type ScopeInfo struct {
	Query *incast.Query
	Bound []string
}

// varSet is an insertion-ordered string set.
type varSet struct {
	items []string
	has   map[string]bool
}

func newVarSet() *varSet { return &varSet{has: make(map[string]bool)} }

func (s *varSet) add(v string) {
	if !s.has[v] {
		s.has[v] = true
		s.items = append(s.items, v)
	}
}

// scopeBuilder keeps a stack of scopes, outermost first. A Query
// occurrence snapshots the stack by copying the slice, so later bindings
// in the shared scopes are still visible when the snapshot is flattened.
type scopeBuilder struct {
	stack []*varSet
	seen  map[incast.NodeID]*incast.Query
	snaps map[incast.NodeID][]*varSet
	order []incast.NodeID
}

// BuildScopes returns, for each Query occurrence in tree, the variables
// bound in the scopes enclosing it. The module, each function and each
// comprehension open a scope. Binding is flow-insensitive: a variable
// bound after the occurrence in an enclosing scope still counts. The
// names in bindenv are bound everywhere.
//
// Results are keyed by node identity; rebuilding a query node
// invalidates its entry.
func BuildScopes(tree incast.Node, bindenv []string) map[incast.NodeID]ScopeInfo {
	b := &scopeBuilder{
		seen:  make(map[incast.NodeID]*incast.Query),
		snaps: make(map[incast.NodeID][]*varSet),
	}
	b.enter()
	b.visit(tree)
	b.exit()

	out := make(map[incast.NodeID]ScopeInfo, len(b.order))
	for _, id := range b.order {
		flat := newVarSet()
		for _, v := range bindenv {
			flat.add(v)
		}
		for _, s := range b.snaps[id] {
			for _, v := range s.items {
				flat.add(v)
			}
		}
		out[id] = ScopeInfo{Query: b.seen[id], Bound: flat.items}
	}
	return out
}

func (b *scopeBuilder) enter() { b.stack = append(b.stack, newVarSet()) }
func (b *scopeBuilder) exit()  { b.stack = b.stack[:len(b.stack)-1] }

func (b *scopeBuilder) bind(names ...string) {
	top := b.stack[len(b.stack)-1]
	for _, n := range names {
		top.add(n)
	}
}

func (b *scopeBuilder) children(n incast.Node) {
	for _, c := range incast.Children(n) {
		b.visit(c)
	}
}

func (b *scopeBuilder) visit(n incast.Node) {
	switch n := n.(type) {
	case *incast.Module:
		b.enter()
		b.children(n)
		b.exit()
	case *incast.Fun:
		b.bind(n.Name)
		b.enter()
		b.bind(n.Args...)
		b.children(n)
		b.exit()
	case *incast.For:
		b.bind(n.Target)
		b.children(n)
	case *incast.DecompFor:
		b.bind(n.Vars...)
		b.children(n)
	case *incast.Assign:
		b.bind(n.Target)
		b.children(n)
	case *incast.DecompAssign:
		b.bind(n.Vars...)
		b.children(n)
	case *incast.Query:
		id := n.ID()
		if _, ok := b.seen[id]; !ok {
			b.order = append(b.order, id)
		}
		b.seen[id] = n
		b.snaps[id] = append([]*varSet(nil), b.stack...)
		b.children(n)
	case *incast.Comp:
		b.enter()
		b.children(n)
		b.exit()
	case *incast.RelMember:
		b.bind(n.Vars...)
		b.children(n)
	case *incast.SingMember:
		b.bind(n.Vars...)
		b.children(n)
	case *incast.VarsMember:
		b.bind(n.Vars...)
		b.children(n)
	default:
		b.children(n)
	}
}
