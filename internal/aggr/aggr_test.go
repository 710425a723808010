package aggr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
	"github.com/roach88/incoq/internal/types"
)

func lines(ls ...string) string { return strings.Join(ls, "\n") }

func newTable(t *testing.T) *symtab.Table {
	t.Helper()
	tab := symtab.New()
	_, err := tab.DefineRelation("R", types.MustParse("Set(Tuple(Number, Number))"))
	require.NoError(t, err)
	return tab
}

func imgR(bounds ...string) *incast.ImgLookup {
	return &incast.ImgLookup{Set: n("R"), Mask: "bu", Bounds: bounds}
}

func countInv() *Invariant {
	return &Invariant{Map: "A", Op: incast.Count, Rel: "R", Mask: "bu", Params: []string{"x"}}
}

func TestInvariantFromQuery(t *testing.T) {
	tests := []struct {
		name    string
		node    incast.Expr
		want    string
		wantErr string
	}{
		{
			name: "whole relation",
			node: &incast.Aggr{Op: incast.Count, Value: n("R")},
			want: `A_Q = count(R, "uu", ())`,
		},
		{
			name: "image",
			node: &incast.Aggr{Op: incast.Sum, Value: imgR("x")},
			want: `A_Q = sum(R, "bu", (x))`,
		},
		{
			name: "restricted",
			node: &incast.AggrRestr{Op: incast.Min, Value: imgR("x"), Params: []string{"x"}, Restr: n("_U_Q")},
			want: `A_Q = min(R, "bu", (x)) restr _U_Q`,
		},
		{
			name:    "not an aggregate",
			node:    &incast.Comp{Resexp: n("x"), Clauses: []incast.Clause{&incast.RelMember{Vars: []string{"x", "y"}, Rel: "R"}}},
			wantErr: "query Q is not an aggregate",
		},
		{
			name:    "unknown relation",
			node:    &incast.Aggr{Op: incast.Count, Value: n("S")},
			wantErr: "aggregate operand S is not a relation",
		},
		{
			name:    "sum over pairs",
			node:    &incast.Aggr{Op: incast.Sum, Value: n("R")},
			wantErr: "sum aggregate needs exactly one value position",
		},
		{
			name:    "restriction on other params",
			node:    &incast.AggrRestr{Op: incast.Count, Value: imgR("x"), Params: []string{"y"}, Restr: n("_U_Q")},
			wantErr: "must be grouped by its parameters (y,)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := newTable(t)
			sym := &symtab.QuerySymbol{Name: "Q", Node: tt.node}
			inv, err := InvariantFromQuery(tab, sym, "A_Q")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, inv.String())
		})
	}
}

func TestMapType(t *testing.T) {
	relType := types.MustParse("Set(Tuple(Number, String))")
	tests := []struct {
		op   incast.AggrOp
		want string
	}{
		{incast.Count, "Map(Tuple(Number), Number)"},
		{incast.Sum, "Map(Tuple(Number), Tuple(Number, Number))"},
		{incast.Max, "Map(Tuple(Number), Tuple(Top, String))"},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			inv := &Invariant{Map: "A", Op: tt.op, Rel: "R", Mask: "bu"}
			assert.Equal(t, types.MustParse(tt.want), inv.MapType(relType))
		})
	}
}

func TestMakeMaintFuncCount(t *testing.T) {
	fresh := &symtab.Fresh{}
	inv := countInv()

	add, err := MakeMaintFunc(fresh, inv, incast.RelAdd)
	require.NoError(t, err)
	assert.Equal(t, lines(
		"def _maint_A_for_R_add(_elem):",
		"    (_elem_v1, _elem_v2) = _elem",
		"    _v1_key = (_elem_v1,)",
		"    _v1_value = (_elem_v2,)",
		"    _v1_state = A.get(_v1_key, 0)",
		"    _v1_state = (_v1_state + 1)",
		"    if (_v1_key in A):",
		"        A.mapdelete(_v1_key)",
		"    A.mapassign(_v1_key, _v1_state)",
	), incast.Format(add))

	remove, err := MakeMaintFunc(fresh, inv, incast.RelRemove)
	require.NoError(t, err)
	assert.Equal(t, lines(
		"def _maint_A_for_R_remove(_elem):",
		"    (_elem_v1, _elem_v2) = _elem",
		"    _v2_key = (_elem_v1,)",
		"    _v2_value = (_elem_v2,)",
		"    _v2_state = A[_v2_key]",
		"    _v2_state = (_v2_state - 1)",
		"    A.mapdelete(_v2_key)",
		"    if (not (_v2_state == 0)):",
		"        A.mapassign(_v2_key, _v2_state)",
	), incast.Format(remove))

	_, err = MakeMaintFunc(fresh, inv, incast.RelIncCount)
	assert.Error(t, err)
}

func TestMakeMaintFuncSum(t *testing.T) {
	inv := countInv()
	inv.Op = incast.Sum

	add, err := MakeMaintFunc(&symtab.Fresh{}, inv, incast.RelAdd)
	require.NoError(t, err)
	assert.Contains(t, incast.Format(add), lines(
		"    _v1_state = A.get(_v1_key, (0, 0))",
		"    _v1_state = ((index(_v1_state, 0) + index(_v1_value, 0)), (index(_v1_state, 1) + 1))",
	))

	remove, err := MakeMaintFunc(&symtab.Fresh{}, inv, incast.RelRemove)
	require.NoError(t, err)
	assert.Contains(t, incast.Format(remove), lines(
		"    _v1_state = ((index(_v1_state, 0) - index(_v1_value, 0)), (index(_v1_state, 1) - 1))",
		"    A.mapdelete(_v1_key)",
		"    if (not (index(_v1_state, 1) == 0)):",
	))
}

func TestMakeMaintFuncMinMax(t *testing.T) {
	inv := countInv()
	inv.Op = incast.Max

	add, err := MakeMaintFunc(&symtab.Fresh{}, inv, incast.RelAdd)
	require.NoError(t, err)
	assert.Contains(t, incast.Format(add), lines(
		"    _v1_tree = (tree() if (_v1_key not in A) else index(A[_v1_key], 0))",
		"    treeinsert(_v1_tree, index(_v1_value, 0))",
		"    _v1_state = (_v1_tree, treemax(_v1_tree))",
	))

	inv.Op = incast.Min
	remove, err := MakeMaintFunc(&symtab.Fresh{}, inv, incast.RelRemove)
	require.NoError(t, err)
	assert.Contains(t, incast.Format(remove), lines(
		"    _v1_tree = index(A[_v1_key], 0)",
		"    treedelete(_v1_tree, index(_v1_value, 0))",
		"    _v1_state = (_v1_tree, treemin(_v1_tree))",
		"    A.mapdelete(_v1_key)",
		"    if (not (len(_v1_tree) == 0)):",
	))
}

func TestMakeMaintFuncRestricted(t *testing.T) {
	inv := countInv()
	inv.Restr = "_U_Q"
	inv.Operand = imgR("x")
	fresh := &symtab.Fresh{}

	add, err := MakeMaintFunc(fresh, inv, incast.RelAdd)
	require.NoError(t, err)
	assert.Equal(t, lines(
		"def _maint_A_for_R_add(_elem):",
		"    (_elem_v1, _elem_v2) = _elem",
		"    _v1_key = (_elem_v1,)",
		"    _v1_value = (_elem_v2,)",
		"    if (_v1_key in _U_Q):",
		"        _v1_state = A.get(_v1_key, 0)",
		"        _v1_state = (_v1_state + 1)",
		"        if (_v1_key in A):",
		"            A.mapdelete(_v1_key)",
		"        A.mapassign(_v1_key, _v1_state)",
	), incast.Format(add))

	demandAdd, err := MakeDemandMaintFunc(fresh, inv)
	require.NoError(t, err)
	assert.Equal(t, lines(
		"def _maint_A_for__U_Q_add(_elem):",
		"    (_v2_x,) = _elem",
		"    _v2_key = (_v2_x,)",
		"    _v2_values = R.imglookup('bu', (_v2_x,))",
		"    if (_v2_key in A):",
		"        A.mapdelete(_v2_key)",
		"    for _v2_value in _v2_values:",
		"        _v2_state = A.get(_v2_key, 0)",
		"        _v2_state = (_v2_state + 1)",
		"        if (_v2_key in A):",
		"            A.mapdelete(_v2_key)",
		"        A.mapassign(_v2_key, _v2_state)",
	), incast.Format(demandAdd))

	_, err = MakeDemandMaintFunc(fresh, countInv())
	assert.EqualError(t, err, "invariant A is not restricted")
}

func TestLookupExpr(t *testing.T) {
	key := incast.Tuplify([]string{"x"})
	tests := []struct {
		op   incast.AggrOp
		want string
	}{
		{incast.Count, "A.get((x,), 0)"},
		{incast.Sum, "index(A.get((x,), (0, 0)), 0)"},
		{incast.Min, "(index(A[(x,)], 1) if ((x,) in A) else None)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			inv := countInv()
			inv.Op = tt.op
			assert.Equal(t, tt.want, incast.Format(LookupExpr(inv, key)))
		})
	}
}

func TestIncrementalize(t *testing.T) {
	tab := newTable(t)
	sym := &symtab.QuerySymbol{
		Name:   "Q",
		Node:   &incast.Aggr{Op: incast.Count, Value: imgR("x")},
		Params: []string{"x"},
		Impl:   symtab.Incremental,
	}
	require.NoError(t, tab.DefineQuery(sym))

	tree := &incast.Module{Decls: []incast.Stmt{
		&incast.Fun{Name: "main", Args: []string{"x"}, Body: []incast.Stmt{
			&incast.Assign{Target: "e", Value: incast.NewTuple(n("x"), num(1))},
			&incast.RelUpdate{Rel: "R", Op: incast.RelAdd, Elem: "e"},
			incast.CallStmt("print", sym.MakeNode()),
			&incast.RelUpdate{Rel: "R", Op: incast.RelRemove, Elem: "e"},
			&incast.RelClear{Rel: "R"},
		}},
	}}

	out, err := Incrementalize(tree, tab, sym)
	require.NoError(t, err)

	text := incast.Format(out)
	assert.True(t, strings.HasPrefix(text, "def _maint_A_Q_for_R_add(_elem):\n"))
	assert.Contains(t, text, "\n\ndef _maint_A_Q_for_R_remove(_elem):\n")
	assert.Contains(t, text, lines(
		"def main(x):",
		"    e = (x, 1)",
		"    R.reladd(e)",
		"    _maint_A_Q_for_R_add(e)",
		"    print(A_Q.get((x,), 0))",
		"    _maint_A_Q_for_R_remove(e)",
		"    R.relremove(e)",
		"    A_Q.mapclear()",
		"    R.relclear()",
		"",
	))

	m, ok := tab.Map("A_Q")
	require.True(t, ok)
	assert.Equal(t, types.MustParse("Map(Tuple(Number), Number)"), m.Type)
	assert.Equal(t, "A_Q", sym.Result)
}

func TestIncrementalizeRestricted(t *testing.T) {
	tab := newTable(t)
	_, err := tab.DefineRelation("_U_Q", types.MustParse("Set(Tuple(Number))"))
	require.NoError(t, err)
	sym := &symtab.QuerySymbol{
		Name: "Q",
		Node: &incast.AggrRestr{
			Op: incast.Count, Value: imgR("x"), Params: []string{"x"}, Restr: n("_U_Q"),
		},
		Params:       []string{"x"},
		DemandParams: []string{"x"},
		Impl:         symtab.Incremental,
		UsesDemand:   true,
		DemandSet:    "_U_Q",
	}
	require.NoError(t, tab.DefineQuery(sym))

	tree := &incast.Module{Decls: []incast.Stmt{
		&incast.Fun{Name: "_demand_Q", Args: []string{"_elem"}, Body: []incast.Stmt{
			&incast.If{
				Test: incast.Cmp(n("_elem"), incast.NotIn, n("_U_Q")),
				Body: []incast.Stmt{&incast.RelUpdate{Rel: "_U_Q", Op: incast.RelAdd, Elem: "_elem"}},
			},
		}},
		&incast.Fun{Name: "main", Args: []string{"x"}, Body: []incast.Stmt{
			incast.CallStmt("print", &incast.FirstThen{
				First: incast.NewCall("_demand_Q", incast.Tuplify([]string{"x"})),
				Then:  sym.MakeNode(),
			}),
		}},
	}}

	out, err := Incrementalize(tree, tab, sym)
	require.NoError(t, err)
	text := incast.Format(out)

	assert.Contains(t, text, "def _maint_A_Q_for__U_Q_add(_elem):\n")
	assert.Contains(t, text, lines(
		"def _demand_Q(_elem):",
		"    if (_elem not in _U_Q):",
		"        _U_Q.reladd(_elem)",
		"        _maint_A_Q_for__U_Q_add(_elem)",
	))
	assert.Contains(t, text, "    print(FIRSTTHEN(_demand_Q((x,)), A_Q.get((x,), 0)))\n")
}

func TestIncrementalizeReplacesInOtherQueries(t *testing.T) {
	tab := newTable(t)
	sym := &symtab.QuerySymbol{Name: "Q", Node: &incast.Aggr{Op: incast.Count, Value: n("R")}, Impl: symtab.Incremental}
	outer := &symtab.QuerySymbol{
		Name: "P",
		Node: &incast.Comp{
			Resexp: n("x"),
			Clauses: []incast.Clause{
				&incast.RelMember{Vars: []string{"x", "y"}, Rel: "R"},
				&incast.Cond{Cond: incast.Cmp(n("x"), incast.Lt, sym.MakeNode())},
			},
		},
		Impl: symtab.Normal,
	}
	require.NoError(t, tab.DefineQuery(sym))
	require.NoError(t, tab.DefineQuery(outer))

	tree := &incast.Module{Decls: []incast.Stmt{
		&incast.Fun{Name: "main", Body: []incast.Stmt{incast.CallStmt("print", outer.MakeNode())}},
	}}
	out, err := Incrementalize(tree, tab, sym)
	require.NoError(t, err)

	assert.Equal(t, "{x for (x, y) in R if (x < A_Q.get((), 0))}", incast.Format(outer.Node))
	assert.Contains(t, incast.Format(out), "print(QUERY('P', {x for (x, y) in R if (x < A_Q.get((), 0))}))")
}
