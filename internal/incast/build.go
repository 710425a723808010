package incast

import "fmt"

// NewName returns a Name node.
func NewName(id string) *Name { return &Name{Ident: id} }

// NewNum returns a Num node.
func NewNum(v int64) *Num { return &Num{Value: v} }

// NewStr returns a Str node.
func NewStr(s string) *Str { return &Str{Value: s} }

// NewTuple returns a Tuple of the given elements.
func NewTuple(elts ...Expr) *Tuple { return &Tuple{Elts: elts} }

// NewCall returns a Call of a named function.
func NewCall(fn string, args ...Expr) *Call { return &Call{Func: fn, Args: args} }

// CallStmt returns a statement calling a named function.
func CallStmt(fn string, args ...Expr) *ExprStmt {
	return &ExprStmt{Value: NewCall(fn, args...)}
}

// Tuplify returns a tuple of Name nodes.
func Tuplify(names []string) *Tuple {
	elts := make([]Expr, len(names))
	for i, n := range names {
		elts[i] = NewName(n)
	}
	return &Tuple{Elts: elts}
}

// NotExpr returns the negation of e.
func NotExpr(e Expr) *UnaryOp { return &UnaryOp{Op: Not, Operand: e} }

// Cmp returns a comparison.
func Cmp(l Expr, op CmpOp, r Expr) *Compare { return &Compare{Left: l, Op: op, Right: r} }

// Index returns a call to the index builtin.
func Index(e Expr, i int64) *Call { return NewCall("index", e, NewNum(i)) }

// Clone returns a deep copy of n. The copy's nodes get new IDs, so it can
// be placed in a tree next to the original.
func Clone[T Node](n T) T {
	c, err := Decode(Encode(n))
	if err != nil {
		panic(fmt.Sprintf("incast: clone of %T: %v", n, err))
	}
	return c.(T)
}
