package incast

import "fmt"

// mapper applies f to direct children. Statement lists go through stmts,
// which may change their length.
type mapper struct {
	f     func(Node) Node
	stmts func([]Stmt) []Stmt
}

func (m *mapper) expr(e Expr) (Expr, bool) {
	if e == nil {
		return nil, false
	}
	out := asExpr(m.f(e))
	return out, out != e
}

func (m *mapper) exprList(es []Expr) ([]Expr, bool) {
	changed := false
	out := make([]Expr, len(es))
	for i, e := range es {
		var c bool
		out[i], c = m.expr(e)
		changed = changed || c
	}
	if !changed {
		return es, false
	}
	return out, true
}

func (m *mapper) stmtList(ss []Stmt) ([]Stmt, bool) {
	var out []Stmt
	if m.stmts != nil {
		out = m.stmts(ss)
	} else {
		out = make([]Stmt, len(ss))
		for i, s := range ss {
			out[i] = asStmt(m.f(s))
		}
	}
	if len(out) != len(ss) {
		return out, true
	}
	for i := range out {
		if out[i] != ss[i] {
			return out, true
		}
	}
	return ss, false
}

func (m *mapper) clauseList(cs []Clause) ([]Clause, bool) {
	changed := false
	out := make([]Clause, len(cs))
	for i, c := range cs {
		out[i] = asClause(m.f(c))
		changed = changed || out[i] != c
	}
	if !changed {
		return cs, false
	}
	return out, true
}

func asExpr(n Node) Expr {
	e, ok := n.(Expr)
	if !ok {
		panic(fmt.Sprintf("incast: %T used where an expression is required", n))
	}
	return e
}

func asStmt(n Node) Stmt {
	s, ok := n.(Stmt)
	if !ok {
		panic(fmt.Sprintf("incast: %T used where a statement is required", n))
	}
	return s
}

func asClause(n Node) Clause {
	c, ok := n.(Clause)
	if !ok {
		panic(fmt.Sprintf("incast: %T used where a clause is required", n))
	}
	return c
}

// MapChildren returns n with f applied to each direct child. If f leaves
// every child unchanged, n itself is returned; otherwise a new node with a
// fresh ID is built.
func MapChildren(n Node, f func(Node) Node) Node {
	return mapChildren(n, &mapper{f: f})
}

func mapChildren(n Node, m *mapper) Node {
	switch n := n.(type) {
	case *Module:
		if decls, c := m.stmtList(n.Decls); c {
			return &Module{Decls: decls}
		}
	case *Fun:
		if body, c := m.stmtList(n.Body); c {
			return &Fun{Name: n.Name, Args: n.Args, Body: body}
		}
	case *For:
		iter, c1 := m.expr(n.Iter)
		body, c2 := m.stmtList(n.Body)
		if c1 || c2 {
			return &For{Target: n.Target, Iter: iter, Body: body}
		}
	case *DecompFor:
		iter, c1 := m.expr(n.Iter)
		body, c2 := m.stmtList(n.Body)
		if c1 || c2 {
			return &DecompFor{Vars: n.Vars, Iter: iter, Body: body}
		}
	case *While:
		test, c1 := m.expr(n.Test)
		body, c2 := m.stmtList(n.Body)
		if c1 || c2 {
			return &While{Test: test, Body: body}
		}
	case *If:
		test, c1 := m.expr(n.Test)
		body, c2 := m.stmtList(n.Body)
		orelse, c3 := m.stmtList(n.Orelse)
		if c1 || c2 || c3 {
			return &If{Test: test, Body: body, Orelse: orelse}
		}
	case *Pass, *Break, *Continue, *RelUpdate, *RelClear, *MapClear:
	case *Return:
		if v, c := m.expr(n.Value); c {
			return &Return{Value: v}
		}
	case *ExprStmt:
		if v, c := m.expr(n.Value); c {
			return &ExprStmt{Value: v}
		}
	case *Assign:
		if v, c := m.expr(n.Value); c {
			return &Assign{Target: n.Target, Value: v}
		}
	case *DecompAssign:
		if v, c := m.expr(n.Value); c {
			return &DecompAssign{Vars: n.Vars, Value: v}
		}
	case *SetUpdate:
		t, c1 := m.expr(n.Target)
		v, c2 := m.expr(n.Value)
		if c1 || c2 {
			return &SetUpdate{Target: t, Op: n.Op, Value: v}
		}
	case *SetClear:
		if t, c := m.expr(n.Target); c {
			return &SetClear{Target: t}
		}
	case *DictAssign:
		t, c1 := m.expr(n.Target)
		k, c2 := m.expr(n.Key)
		v, c3 := m.expr(n.Value)
		if c1 || c2 || c3 {
			return &DictAssign{Target: t, Key: k, Value: v}
		}
	case *DictDelete:
		t, c1 := m.expr(n.Target)
		k, c2 := m.expr(n.Key)
		if c1 || c2 {
			return &DictDelete{Target: t, Key: k}
		}
	case *DictClear:
		if t, c := m.expr(n.Target); c {
			return &DictClear{Target: t}
		}
	case *MapAssign:
		k, c1 := m.expr(n.Key)
		v, c2 := m.expr(n.Value)
		if c1 || c2 {
			return &MapAssign{Map: n.Map, Key: k, Value: v}
		}
	case *MapDelete:
		if k, c := m.expr(n.Key); c {
			return &MapDelete{Map: n.Map, Key: k}
		}

	case *Name, *Num, *Str, *Bool, *None, *SetFromMap:
	case *Tuple:
		if elts, c := m.exprList(n.Elts); c {
			return &Tuple{Elts: elts}
		}
	case *List:
		if elts, c := m.exprList(n.Elts); c {
			return &List{Elts: elts}
		}
	case *SetLit:
		if elts, c := m.exprList(n.Elts); c {
			return &SetLit{Elts: elts}
		}
	case *UnaryOp:
		if o, c := m.expr(n.Operand); c {
			return &UnaryOp{Op: n.Op, Operand: o}
		}
	case *BoolOp:
		if vs, c := m.exprList(n.Values); c {
			return &BoolOp{Op: n.Op, Values: vs}
		}
	case *BinOp:
		l, c1 := m.expr(n.Left)
		r, c2 := m.expr(n.Right)
		if c1 || c2 {
			return &BinOp{Left: l, Op: n.Op, Right: r}
		}
	case *Compare:
		l, c1 := m.expr(n.Left)
		r, c2 := m.expr(n.Right)
		if c1 || c2 {
			return &Compare{Left: l, Op: n.Op, Right: r}
		}
	case *IfExp:
		t, c1 := m.expr(n.Test)
		b, c2 := m.expr(n.Body)
		o, c3 := m.expr(n.Orelse)
		if c1 || c2 || c3 {
			return &IfExp{Test: t, Body: b, Orelse: o}
		}
	case *Call:
		if args, c := m.exprList(n.Args); c {
			return &Call{Func: n.Func, Args: args}
		}
	case *GeneralCall:
		f, c1 := m.expr(n.Func)
		args, c2 := m.exprList(n.Args)
		if c1 || c2 {
			return &GeneralCall{Func: f, Args: args}
		}
	case *Attribute:
		if v, c := m.expr(n.Value); c {
			return &Attribute{Value: v, Attr: n.Attr}
		}
	case *Subscript:
		v, c1 := m.expr(n.Value)
		i, c2 := m.expr(n.Index)
		if c1 || c2 {
			return &Subscript{Value: v, Index: i}
		}
	case *DictLookup:
		v, c1 := m.expr(n.Value)
		k, c2 := m.expr(n.Key)
		d, c3 := m.expr(n.Default)
		if c1 || c2 || c3 {
			return &DictLookup{Value: v, Key: k, Default: d}
		}
	case *MapLookup:
		k, c1 := m.expr(n.Key)
		d, c2 := m.expr(n.Default)
		if c1 || c2 {
			return &MapLookup{Map: n.Map, Key: k, Default: d}
		}
	case *ImgLookup:
		if s, c := m.expr(n.Set); c {
			return &ImgLookup{Set: s, Mask: n.Mask, Bounds: n.Bounds}
		}
	case *Unwrap:
		if v, c := m.expr(n.Value); c {
			return &Unwrap{Value: v}
		}
	case *GetCount:
		if e, c := m.expr(n.Elem); c {
			return &GetCount{Rel: n.Rel, Elem: e}
		}
	case *Comp:
		cls, c1 := m.clauseList(n.Clauses)
		res, c2 := m.expr(n.Resexp)
		if c1 || c2 {
			return &Comp{Resexp: res, Clauses: cls}
		}
	case *Aggr:
		if v, c := m.expr(n.Value); c {
			return &Aggr{Op: n.Op, Value: v}
		}
	case *AggrRestr:
		v, c1 := m.expr(n.Value)
		r, c2 := m.expr(n.Restr)
		if c1 || c2 {
			return &AggrRestr{Op: n.Op, Value: v, Params: n.Params, Restr: r}
		}
	case *Query:
		if q, c := m.expr(n.Query); c {
			return &Query{Name: n.Name, Query: q}
		}
	case *FirstThen:
		f, c1 := m.expr(n.First)
		t, c2 := m.expr(n.Then)
		if c1 || c2 {
			return &FirstThen{First: f, Then: t}
		}

	case *RelMember, *MapMember:
	case *SingMember:
		if v, c := m.expr(n.Value); c {
			return &SingMember{Vars: n.Vars, Value: v}
		}
	case *VarsMember:
		if it, c := m.expr(n.Iter); c {
			return &VarsMember{Vars: n.Vars, Iter: it}
		}
	case *Cond:
		if e, c := m.expr(n.Cond); c {
			return &Cond{Cond: e}
		}
	default:
		panic(fmt.Sprintf("incast: no child mapping for %T", n))
	}
	return n
}

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	mapChildren(n, &mapper{f: func(c Node) Node {
		out = append(out, c)
		return c
	}})
	return out
}

// Walk visits n and its descendants in pre-order. If fn returns false the
// children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Rewrite rebuilds n bottom-up, applying fn to every node after its
// children have been rewritten.
func Rewrite(n Node, fn func(Node) Node) Node {
	var visit func(Node) Node
	visit = func(n Node) Node {
		return fn(MapChildren(n, visit))
	}
	return visit(n)
}

// ExpandStmts rebuilds n bottom-up and replaces every statement in every
// statement list with the statements fn returns for it.
func ExpandStmts(n Node, fn func(Stmt) []Stmt) Node {
	var m *mapper
	visit := func(c Node) Node { return mapChildren(c, m) }
	m = &mapper{
		f: visit,
		stmts: func(ss []Stmt) []Stmt {
			out := make([]Stmt, 0, len(ss))
			for _, s := range ss {
				out = append(out, fn(asStmt(visit(s)))...)
			}
			return out
		},
	}
	return visit(n)
}

// RewriteExpr is Rewrite for an expression root.
func RewriteExpr(e Expr, fn func(Node) Node) Expr {
	return asExpr(Rewrite(e, fn))
}
