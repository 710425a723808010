package testutil

import "github.com/roach88/incoq/internal/incast"

// Program returns a program declaring rels as relations whose module
// holds decls.
func Program(rels []string, decls ...incast.Stmt) *incast.Program {
	return &incast.Program{Relations: rels, Module: &incast.Module{Decls: decls}}
}

// Main defines the conventional entry function.
func Main(body ...incast.Stmt) *incast.Fun {
	return &incast.Fun{Name: "main", Body: body}
}

// Nums is a list literal of numbers.
func Nums(vs ...int64) *incast.List {
	l := &incast.List{}
	for _, v := range vs {
		l.Elts = append(l.Elts, incast.NewNum(v))
	}
	return l
}

// Pair is a 2-tuple of numbers.
func Pair(a, b int64) *incast.Tuple {
	return incast.NewTuple(incast.NewNum(a), incast.NewNum(b))
}

// Each loops target over iter.
func Each(target string, iter incast.Expr, body ...incast.Stmt) *incast.For {
	return &incast.For{Target: target, Iter: iter, Body: body}
}

// Add is rel.add(v).
func Add(rel string, v incast.Expr) *incast.SetUpdate {
	return &incast.SetUpdate{Target: incast.NewName(rel), Op: incast.SetAdd, Value: v}
}

// Remove is rel.remove(v).
func Remove(rel string, v incast.Expr) *incast.SetUpdate {
	return &incast.SetUpdate{Target: incast.NewName(rel), Op: incast.SetRemove, Value: v}
}

// Clear is rel.clear().
func Clear(rel string) *incast.SetClear {
	return &incast.SetClear{Target: incast.NewName(rel)}
}

// Print prints args on one line.
func Print(args ...incast.Expr) *incast.ExprStmt {
	return incast.CallStmt("print", args...)
}

// Image is the query name = {(b,) for (a, b) in rel}, the image of rel
// under its first component with a as the parameter.
func Image(name, rel string) *incast.Query {
	return &incast.Query{
		Name: name,
		Query: &incast.Comp{
			Resexp:  incast.NewTuple(incast.NewName("b")),
			Clauses: []incast.Clause{&incast.VarsMember{Vars: []string{"a", "b"}, Iter: incast.NewName(rel)}},
		},
	}
}

// Aggregate is the query name = op(value).
func Aggregate(name string, op incast.AggrOp, value incast.Expr) *incast.Query {
	return &incast.Query{Name: name, Query: &incast.Aggr{Op: op, Value: value}}
}
