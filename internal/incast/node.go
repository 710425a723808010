package incast

import "sync/atomic"

// NodeID identifies one node object. Zero is never a valid ID.
type NodeID uint64

var nodeIDs atomic.Uint64

// base is embedded in every node type and holds its lazily assigned ID.
type base struct {
	id NodeID
}

// ID returns the node's identity, assigning one on first use.
func (b *base) ID() NodeID {
	if b.id == 0 {
		b.id = NodeID(nodeIDs.Add(1))
	}
	return b.id
}

// Node is any tree node.
type Node interface {
	ID() NodeID
	node()
}

// Stmt is a statement or declaration.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// Clause is one conjunct of a comprehension.
type Clause interface {
	Node
	clauseNode()
}

// Writable is implemented by the expressions that may appear in write
// context, such as the target of a set update.
type Writable interface {
	Expr
	writable()
}

// Mask is a per-position binding pattern over tuple components: 'b' for a
// bound (known) position and 'u' for an unbound (requested) one.
type Mask string

// Bound returns the number of bound positions.
func (m Mask) Bound() int {
	n := 0
	for _, c := range m {
		if c == 'b' {
			n++
		}
	}
	return n
}

// Unbound returns the number of unbound positions.
func (m Mask) Unbound() int { return len(m) - m.Bound() }

// Valid reports whether m consists only of 'b' and 'u'.
func (m Mask) Valid() bool {
	for _, c := range m {
		if c != 'b' && c != 'u' {
			return false
		}
	}
	return true
}

// MaskFromBound builds the mask of vars where a position is bound iff
// bound reports true for its variable.
func MaskFromBound(vars []string, bound func(string) bool) Mask {
	b := make([]byte, len(vars))
	for i, v := range vars {
		if bound(v) {
			b[i] = 'b'
		} else {
			b[i] = 'u'
		}
	}
	return Mask(b)
}

// Split partitions vars according to m into bound and unbound parts.
func (m Mask) Split(vars []string) (bound, unbound []string) {
	for i, c := range m {
		if i >= len(vars) {
			break
		}
		if c == 'b' {
			bound = append(bound, vars[i])
		} else {
			unbound = append(unbound, vars[i])
		}
	}
	return bound, unbound
}

// Program is a compilation unit: the module plus the names it declares as
// relations and maps. Counted lists the relations that hold reference
// counts; compiled programs declare their result relations there.
type Program struct {
	Relations []string
	Counted   []string
	Maps      []string
	Module    *Module
}
