package aggr

import (
	"fmt"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// names holds the local variables of one maintenance procedure.
type names struct {
	key, value, state, tree string
}

func newNames(prefix string) names {
	return names{
		key:   prefix + "key",
		value: prefix + "value",
		state: prefix + "state",
		tree:  prefix + "tree",
	}
}

func n(id string) *incast.Name { return incast.NewName(id) }

func num(v int64) *incast.Num { return incast.NewNum(v) }

func assign(target string, value incast.Expr) *incast.Assign {
	return &incast.Assign{Target: target, Value: value}
}

func binop(l incast.Expr, op incast.BinOpKind, r incast.Expr) *incast.BinOp {
	return &incast.BinOp{Left: l, Op: op, Right: r}
}

// identity returns the state of an empty group for count and sum.
func identity(op incast.AggrOp) incast.Expr {
	if op == incast.Sum {
		return incast.NewTuple(num(0), num(0))
	}
	return num(0)
}

func treeOp(op incast.AggrOp) string {
	if op == incast.Max {
		return "treemax"
	}
	return "treemin"
}

// addState returns the statements that fold the value into the group
// state.
func addState(inv *Invariant, v names) []incast.Stmt {
	lookup := &incast.MapLookup{Map: inv.Map, Key: n(v.key), Default: identity(inv.Op)}
	switch inv.Op {
	case incast.Count:
		return []incast.Stmt{
			assign(v.state, lookup),
			assign(v.state, binop(n(v.state), incast.Add, num(1))),
		}
	case incast.Sum:
		return []incast.Stmt{
			assign(v.state, lookup),
			assign(v.state, incast.NewTuple(
				binop(incast.Index(n(v.state), 0), incast.Add, incast.Index(n(v.value), 0)),
				binop(incast.Index(n(v.state), 1), incast.Add, num(1)),
			)),
		}
	}
	return []incast.Stmt{
		assign(v.tree, &incast.IfExp{
			Test:   incast.Cmp(n(v.key), incast.NotIn, n(inv.Map)),
			Body:   incast.NewCall("tree"),
			Orelse: incast.Index(&incast.MapLookup{Map: inv.Map, Key: n(v.key)}, 0),
		}),
		incast.CallStmt("treeinsert", n(v.tree), incast.Index(n(v.value), 0)),
		assign(v.state, incast.NewTuple(n(v.tree), incast.NewCall(treeOp(inv.Op), n(v.tree)))),
	}
}

// removeState returns the statements that take the value out of the
// group state, and the test for the state not being empty.
func removeState(inv *Invariant, v names) ([]incast.Stmt, incast.Expr) {
	lookup := &incast.MapLookup{Map: inv.Map, Key: n(v.key)}
	switch inv.Op {
	case incast.Count:
		return []incast.Stmt{
			assign(v.state, lookup),
			assign(v.state, binop(n(v.state), incast.Sub, num(1))),
		}, incast.NotExpr(incast.Cmp(n(v.state), incast.Eq, num(0)))
	case incast.Sum:
		return []incast.Stmt{
			assign(v.state, lookup),
			assign(v.state, incast.NewTuple(
				binop(incast.Index(n(v.state), 0), incast.Sub, incast.Index(n(v.value), 0)),
				binop(incast.Index(n(v.state), 1), incast.Sub, num(1)),
			)),
		}, incast.NotExpr(incast.Cmp(incast.Index(n(v.state), 1), incast.Eq, num(0)))
	}
	return []incast.Stmt{
		assign(v.tree, incast.Index(lookup, 0)),
		incast.CallStmt("treedelete", n(v.tree), incast.Index(n(v.value), 0)),
		assign(v.state, incast.NewTuple(n(v.tree), incast.NewCall(treeOp(inv.Op), n(v.tree)))),
	}, incast.NotExpr(incast.Cmp(incast.NewCall("len", n(v.tree)), incast.Eq, num(0)))
}

// replaceEntry stores the new state, deleting any old entry first.
func replaceEntry(inv *Invariant, v names) []incast.Stmt {
	return []incast.Stmt{
		&incast.If{
			Test: incast.Cmp(n(v.key), incast.In, n(inv.Map)),
			Body: []incast.Stmt{&incast.MapDelete{Map: inv.Map, Key: n(v.key)}},
		},
		&incast.MapAssign{Map: inv.Map, Key: n(v.key), Value: n(v.state)},
	}
}

// MakeMaintFunc returns the procedure that updates the invariant's map
// for one element added to or removed from its relation. An element of a
// group without demand is ignored.
func MakeMaintFunc(fresh *symtab.Fresh, inv *Invariant, op incast.RelUpdateOp) (*incast.Fun, error) {
	var suffix string
	switch op {
	case incast.RelAdd:
		suffix = "add"
	case incast.RelRemove:
		suffix = "remove"
	default:
		return nil, fmt.Errorf("no maintenance for %s updates", op)
	}
	v := newNames(fresh.NextPrefix())

	elemVars := make([]string, len(inv.Mask))
	for i := range elemVars {
		elemVars[i] = fmt.Sprintf("_elem_v%d", i+1)
	}
	keyVars, valueVars := inv.Mask.Split(elemVars)

	var update []incast.Stmt
	if op == incast.RelAdd {
		update = append(addState(inv, v), replaceEntry(inv, v)...)
	} else {
		stmts, nonEmpty := removeState(inv, v)
		update = append(stmts,
			&incast.MapDelete{Map: inv.Map, Key: n(v.key)},
			&incast.If{
				Test: nonEmpty,
				Body: []incast.Stmt{&incast.MapAssign{Map: inv.Map, Key: n(v.key), Value: n(v.state)}},
			},
		)
	}
	if inv.Restr != "" {
		update = []incast.Stmt{&incast.If{
			Test: incast.Cmp(n(v.key), incast.In, n(inv.Restr)),
			Body: update,
		}}
	}

	body := []incast.Stmt{
		&incast.DecompAssign{Vars: elemVars, Value: n("_elem")},
		assign(v.key, incast.Tuplify(keyVars)),
		assign(v.value, incast.Tuplify(valueVars)),
	}
	return &incast.Fun{
		Name: symtab.MaintFuncName(inv.Map, inv.Rel, suffix),
		Args: []string{"_elem"},
		Body: append(body, update...),
	}, nil
}

// MakeDemandMaintFunc returns the procedure run when a parameter tuple
// is added to the demand relation of a restricted invariant. It computes
// the new group from scratch. The operand is evaluated before the old
// entry is discarded, since evaluating it can demand other queries whose
// maintenance already reaches this group.
func MakeDemandMaintFunc(fresh *symtab.Fresh, inv *Invariant) (*incast.Fun, error) {
	if inv.Restr == "" {
		return nil, fmt.Errorf("invariant %s is not restricted", inv.Map)
	}
	prefix := fresh.NextPrefix()
	v := newNames(prefix)
	values := prefix + "values"

	rename := make(map[string]string, len(inv.Params))
	params := make([]string, len(inv.Params))
	for i, p := range inv.Params {
		params[i] = prefix + p
		rename[p] = params[i]
	}
	operand := incast.RenameVars(inv.Operand, incast.RenameMap(rename)).(incast.Expr)

	loop := append(addState(inv, v), replaceEntry(inv, v)...)
	return &incast.Fun{
		Name: symtab.MaintFuncName(inv.Map, inv.Restr, "add"),
		Args: []string{"_elem"},
		Body: []incast.Stmt{
			&incast.DecompAssign{Vars: params, Value: n("_elem")},
			assign(v.key, incast.Tuplify(params)),
			assign(values, operand),
			&incast.If{
				Test: incast.Cmp(n(v.key), incast.In, n(inv.Map)),
				Body: []incast.Stmt{&incast.MapDelete{Map: inv.Map, Key: n(v.key)}},
			},
			&incast.For{Target: v.value, Iter: n(values), Body: loop},
		},
	}, nil
}

// LookupExpr returns the expression that reads the aggregate's value for
// the group of key.
func LookupExpr(inv *Invariant, key incast.Expr) incast.Expr {
	switch inv.Op {
	case incast.Count:
		return &incast.MapLookup{Map: inv.Map, Key: key, Default: identity(inv.Op)}
	case incast.Sum:
		return incast.Index(&incast.MapLookup{Map: inv.Map, Key: key, Default: identity(inv.Op)}, 0)
	}
	return &incast.IfExp{
		Test:   incast.Cmp(key, incast.In, n(inv.Map)),
		Body:   incast.Index(&incast.MapLookup{Map: inv.Map, Key: key}, 1),
		Orelse: &incast.None{},
	}
}
