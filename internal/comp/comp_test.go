package comp

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

func rel(r string, vars ...string) *incast.RelMember {
	return &incast.RelMember{Vars: vars, Rel: r}
}

func newTable(t *testing.T, rels map[string]string) *symtab.Table {
	t.Helper()
	tab := symtab.New()
	for _, r := range []string{"S", "E", "_U_Q"} {
		typ, ok := rels[r]
		if !ok {
			continue
		}
		_, err := tab.DefineRelation(r, types.MustParse(typ))
		require.NoError(t, err)
	}
	return tab
}

const pairs = "Set(Tuple(Number, Number))"

func TestNormalizeClause(t *testing.T) {
	tab := newTable(t, map[string]string{"S": pairs})
	tests := []struct {
		name    string
		clause  incast.Clause
		want    string
		wantErr string
	}{
		{"relation member", rel("S", "a", "b"), "for (a, b) in S", ""},
		{"iteration over relation", &incast.VarsMember{Vars: []string{"a", "b"}, Iter: name("S")}, "for (a, b) in S", ""},
		{
			"iteration over image",
			&incast.VarsMember{Vars: []string{"b"}, Iter: &incast.ImgLookup{Set: name("S"), Mask: "bu", Bounds: []string{"a"}}},
			"for (a, b) in S", "",
		},
		{"condition", &incast.Cond{Cond: incast.Cmp(name("a"), incast.Lt, name("b"))}, "if (a < b)", ""},
		{"condition reading relation", &incast.Cond{Cond: incast.Cmp(name("a"), incast.In, name("S"))}, "", "condition reads relation S"},
		{"map member", &incast.MapMember{Key: "k", Value: "v", Map: "M"}, "", "cannot incrementalize clause"},
		{"unknown relation", rel("T", "a"), "", "T is not a relation"},
		{
			"image arity",
			&incast.VarsMember{Vars: []string{"b", "c"}, Iter: &incast.ImgLookup{Set: name("S"), Mask: "bu", Bounds: []string{"a"}}},
			"", "image lookup arity does not match",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeClause(tab, tt.clause)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, incast.Format(got))
		})
	}
}

func TestNormalizeCompErrors(t *testing.T) {
	tab := newTable(t, map[string]string{"S": pairs})

	c := &incast.Comp{Resexp: name("a"), Clauses: []incast.Clause{rel("S", "a", "a")}}
	_, err := normalizeComp(tab, c, nil)
	assert.ErrorContains(t, err, "variable a occurs twice in one clause")

	c = &incast.Comp{Resexp: name("a"), Clauses: []incast.Clause{
		rel("S", "a", "b"),
		&incast.Cond{Cond: incast.Cmp(name("b"), incast.Lt, name("lim"))},
	}}
	_, err = normalizeComp(tab, c, []string{"lim"})
	assert.ErrorContains(t, err, "parameter lim is not bound by any clause")
}

func TestOccurrenceExpr(t *testing.T) {
	assert.Equal(t, "R_Q", incast.Format(OccurrenceExpr("R_Q", nil, 2, true)))
	assert.Equal(t, "unwrap(R_Q)", incast.Format(OccurrenceExpr("R_Q", nil, 1, false)))
	assert.Equal(t, "R_Q.imglookup('bbu', (p, q))", incast.Format(OccurrenceExpr("R_Q", []string{"p", "q"}, 1, true)))
	assert.Equal(t, "unwrap(R_Q.imglookup('bu', (p,)))", incast.Format(OccurrenceExpr("R_Q", []string{"p"}, 1, false)))
}

func demandComp() *incast.Comp {
	return &incast.Comp{
		Resexp:  incast.Tuplify([]string{"b"}),
		Clauses: []incast.Clause{rel("_U_Q", "p"), rel("S", "p", "b")},
	}
}

func TestMakeMaintFunc(t *testing.T) {
	fresh := &symtab.Fresh{}
	c := demandComp()

	add := makeMaintFunc(fresh, c, []string{"p"}, "R_Q", "_U_Q", incast.RelAdd)
	assert.Equal(t, lines(
		"def _maint_R_Q_for__U_Q_add(_elem):",
		"    (_v1_p,) = _elem",
		"    for (_v1_b,) in S.imglookup('bu', (_v1_p,)):",
		"        _v1_result = (_v1_p, _v1_b)",
		"        if (_v1_result not in R_Q):",
		"            R_Q.reladd(_v1_result)",
		"        else:",
		"            R_Q.inccount(_v1_result)",
	), incast.Format(add))

	remove := makeMaintFunc(fresh, c, []string{"p"}, "R_Q", "S", incast.RelRemove)
	assert.Equal(t, lines(
		"def _maint_R_Q_for_S_remove(_elem):",
		"    (_v2_p, _v2_b) = _elem",
		"    if ((_v2_p,) in _U_Q):",
		"        _v2_result = (_v2_p, _v2_b)",
		"        if (R_Q.getcount(_v2_result) == 1):",
		"            R_Q.relremove(_v2_result)",
		"        else:",
		"            R_Q.deccount(_v2_result)",
	), incast.Format(remove))

	// The comprehension itself is left unchanged.
	assert.Equal(t, "{(b,) for (p,) in _U_Q for (p, b) in S}", incast.Format(c))
}

func TestMakeMaintFuncUnboundAndCondition(t *testing.T) {
	c := &incast.Comp{
		Resexp: incast.Tuplify([]string{"a", "c"}),
		Clauses: []incast.Clause{
			rel("S", "a", "b"),
			&incast.Cond{Cond: incast.Cmp(name("a"), incast.Lt, incast.NewNum(5))},
			rel("E", "c", "d"),
		},
	}
	add := makeMaintFunc(&symtab.Fresh{}, c, nil, "R_Q", "S", incast.RelAdd)
	assert.Equal(t, lines(
		"def _maint_R_Q_for_S_add(_elem):",
		"    (_v1_a, _v1_b) = _elem",
		"    if (_v1_a < 5):",
		"        for (_v1_c, _v1_d) in E:",
		"            _v1_result = (_v1_a, _v1_c)",
		"            if (_v1_result not in R_Q):",
		"                R_Q.reladd(_v1_result)",
		"            else:",
		"                R_Q.inccount(_v1_result)",
	), incast.Format(add))
}

func TestMakeMaintFuncSelfJoin(t *testing.T) {
	c := &incast.Comp{
		Resexp:  incast.Tuplify([]string{"x", "z"}),
		Clauses: []incast.Clause{rel("E", "x", "y"), rel("E", "y", "z")},
	}
	add := makeMaintFunc(&symtab.Fresh{}, c, nil, "R_Q", "E", incast.RelAdd)
	assert.Equal(t, lines(
		"def _maint_R_Q_for_E_add(_elem):",
		"    _v1_das = set()",
		"    (_v1_x, _v1_y) = _elem",
		"    for (_v1_z,) in E.imglookup('bu', (_v1_y,)):",
		"        if ((_v1_x, _v1_y, _v1_z) not in _v1_das):",
		"            _v1_das.add((_v1_x, _v1_y, _v1_z))",
		"    (_v1_y, _v1_z) = _elem",
		"    for (_v1_x,) in E.imglookup('ub', (_v1_y,)):",
		"        if ((_v1_x, _v1_y, _v1_z) not in _v1_das):",
		"            _v1_das.add((_v1_x, _v1_y, _v1_z))",
		"    for (_v1_x, _v1_y, _v1_z) in _v1_das:",
		"        _v1_result = (_v1_x, _v1_z)",
		"        if (_v1_result not in R_Q):",
		"            R_Q.reladd(_v1_result)",
		"        else:",
		"            R_Q.inccount(_v1_result)",
	), incast.Format(add))
}

func TestIncrementalize(t *testing.T) {
	tab := newTable(t, map[string]string{"S": pairs, "_U_Q": "Set(Tuple(Number))"})
	sym := &symtab.QuerySymbol{
		Name:         "Q",
		Node:         demandComp(),
		Params:       []string{"p"},
		DemandParams: []string{"p"},
		Impl:         symtab.Incremental,
		UsesDemand:   true,
		DemandSet:    "_U_Q",
	}
	require.NoError(t, tab.DefineQuery(sym))

	tree := &incast.Module{Decls: []incast.Stmt{
		&incast.Fun{Name: "_demand_Q", Args: []string{"_elem"}, Body: []incast.Stmt{
			&incast.If{
				Test: incast.Cmp(name("_elem"), incast.NotIn, name("_U_Q")),
				Body: []incast.Stmt{&incast.RelUpdate{Rel: "_U_Q", Op: incast.RelAdd, Elem: "_elem"}},
			},
		}},
		&incast.Fun{Name: "main", Args: []string{"p"}, Body: []incast.Stmt{
			&incast.Assign{Target: "e", Value: incast.NewTuple(name("p"), incast.NewNum(1))},
			&incast.RelUpdate{Rel: "S", Op: incast.RelAdd, Elem: "e"},
			incast.CallStmt("print", &incast.FirstThen{
				First: incast.NewCall("_demand_Q", incast.Tuplify([]string{"p"})),
				Then:  sym.MakeNode(),
			}),
			&incast.RelClear{Rel: "S"},
		}},
	}}

	out, err := Incrementalize(tree, tab, sym)
	require.NoError(t, err)
	text := incast.Format(out)

	var decls []string
	for _, d := range out.(*incast.Module).Decls {
		decls = append(decls, d.(*incast.Fun).Name)
	}
	assert.Equal(t, []string{
		"_maint_R_Q_for__U_Q_add",
		"_maint_R_Q_for__U_Q_remove",
		"_maint_R_Q_for_S_add",
		"_maint_R_Q_for_S_remove",
		"_demand_Q",
		"main",
	}, decls)

	assert.Contains(t, text, lines(
		"def _demand_Q(_elem):",
		"    if (_elem not in _U_Q):",
		"        _U_Q.reladd(_elem)",
		"        _maint_R_Q_for__U_Q_add(_elem)",
	))
	assert.Contains(t, text, lines(
		"def main(p):",
		"    e = (p, 1)",
		"    S.reladd(e)",
		"    _maint_R_Q_for_S_add(e)",
		"    print(FIRSTTHEN(_demand_Q((p,)), R_Q.imglookup('bu', (p,))))",
		"    R_Q.relclear()",
		"    S.relclear()",
		"",
	))

	rs, ok := tab.Relation("R_Q")
	require.True(t, ok)
	assert.True(t, rs.Counted)
	assert.Equal(t, types.MustParse(pairs), rs.Type)
	assert.Equal(t, "R_Q", sym.Result)
}

func TestIncrementalizeNested(t *testing.T) {
	tab := newTable(t, map[string]string{"S": pairs, "E": pairs})
	inner := &symtab.QuerySymbol{
		Name:   "Q1",
		Node:   &incast.Comp{Resexp: incast.Tuplify([]string{"y"}), Clauses: []incast.Clause{rel("E", "x", "y")}},
		Params: []string{"x"},
		Impl:   symtab.Incremental,
	}
	outer := &symtab.QuerySymbol{
		Name: "Q2",
		Node: &incast.Comp{
			Resexp: name("y"),
			Clauses: []incast.Clause{
				rel("S", "x", "w"),
				&incast.VarsMember{Vars: []string{"y"}, Iter: inner.MakeNode()},
			},
		},
		Impl: symtab.Incremental,
	}
	require.NoError(t, tab.DefineQuery(inner))
	require.NoError(t, tab.DefineQuery(outer))
	tree := &incast.Module{Decls: []incast.Stmt{
		&incast.Fun{Name: "main", Body: []incast.Stmt{incast.CallStmt("print", outer.MakeNode())}},
	}}

	out, err := Incrementalize(tree, tab, inner)
	require.NoError(t, err)
	assert.Equal(t, "{y for (x, w) in S for (y,) in R_Q1.imglookup('bu', (x,))}", incast.Format(outer.Node))

	out, err = Incrementalize(out, tab, outer)
	require.NoError(t, err)
	text := incast.Format(out)
	assert.Equal(t, "{y for (x, w) in S for (x, y) in R_Q1}", incast.Format(outer.Node))
	assert.Contains(t, text, "    print(unwrap(R_Q2))\n")

	// Additions to the inner result relation are propagated to the outer one.
	assert.Contains(t, text, lines(
		"    if (_v1_result not in R_Q1):",
		"        R_Q1.reladd(_v1_result)",
		"        _maint_R_Q2_for_R_Q1_add(_v1_result)",
	))
}

func TestIncrementalizeRejectsAggregate(t *testing.T) {
	tab := newTable(t, map[string]string{"S": pairs})
	sym := &symtab.QuerySymbol{Name: "A", Node: &incast.Aggr{Op: incast.Count, Value: name("S")}}
	_, err := Incrementalize(&incast.Module{}, tab, sym)
	assert.ErrorContains(t, err, "query A is not a comprehension")
}
