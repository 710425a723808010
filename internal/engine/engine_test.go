package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/rt"
	"github.com/roach88/incoq/internal/symtab"
	"github.com/roach88/incoq/internal/types"
)

func name(id string) *incast.Name { return incast.NewName(id) }
func num(v int64) *incast.Num     { return incast.NewNum(v) }

func tup(vs ...int64) *incast.Tuple {
	t := &incast.Tuple{}
	for _, v := range vs {
		t.Elts = append(t.Elts, num(v))
	}
	return t
}

func assign(target string, v incast.Expr) *incast.Assign {
	return &incast.Assign{Target: target, Value: v}
}

func printStmt(args ...incast.Expr) incast.Stmt { return incast.CallStmt("print", args...) }

// relAdd assigns elem to _e and adds it to rel.
func relAdd(rel string, elem incast.Expr) []incast.Stmt {
	return []incast.Stmt{
		assign("_e", elem),
		&incast.RelUpdate{Rel: rel, Op: incast.RelAdd, Elem: "_e"},
	}
}

func mainModule(body ...incast.Stmt) *incast.Module {
	return &incast.Module{Decls: []incast.Stmt{&incast.Fun{Name: "main", Body: body}}}
}

func concat(parts ...[]incast.Stmt) []incast.Stmt {
	var out []incast.Stmt
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, m *incast.Module, decls Declarations, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithRunIDGenerator(NewSeqGenerator("run"))}, opts...)
	e, err := New(m, decls, opts...)
	require.NoError(t, err)
	return e
}

func run(t *testing.T, m *incast.Module, decls Declarations, opts ...Option) *Result {
	t.Helper()
	res, err := newEngine(t, m, decls, opts...).Run(context.Background(), "main")
	require.NoError(t, err)
	return res
}

func TestRunComprehension(t *testing.T) {
	comp := &incast.Comp{
		Resexp:  name("y"),
		Clauses: []incast.Clause{&incast.RelMember{Vars: []string{"x", "y"}, Rel: "R"}},
	}
	body := concat(
		relAdd("R", tup(1, 2)),
		relAdd("R", tup(1, 3)),
		relAdd("R", tup(2, 3)),
		[]incast.Stmt{printStmt(comp)},
	)
	res := run(t, mainModule(body...), Declarations{Relations: []string{"R"}})

	assert.Equal(t, []string{"{2, 3}"}, res.Output)
	assert.Equal(t, "run-1", res.RunID)
	assert.Positive(t, res.Steps)
}

func TestRunJoinAndCondition(t *testing.T) {
	// {(x, z) for (x, y) in R for (y, z) in R if z != 4}
	comp := &incast.Comp{
		Resexp: incast.NewTuple(name("x"), name("z")),
		Clauses: []incast.Clause{
			&incast.RelMember{Vars: []string{"x", "y"}, Rel: "R"},
			&incast.RelMember{Vars: []string{"y", "z"}, Rel: "R"},
			&incast.Cond{Cond: incast.Cmp(name("z"), incast.NotEq, num(4))},
		},
	}
	body := concat(
		relAdd("R", tup(1, 2)),
		relAdd("R", tup(2, 3)),
		relAdd("R", tup(2, 4)),
		relAdd("R", tup(3, 5)),
		[]incast.Stmt{printStmt(comp)},
	)
	res := run(t, mainModule(body...), Declarations{Relations: []string{"R"}})
	assert.Equal(t, []string{"{(1, 3), (2, 5)}"}, res.Output)
}

func TestParameterConstrainsClause(t *testing.T) {
	// def f(p): return {y for (p, y) in R}
	f := &incast.Fun{Name: "f", Args: []string{"p"}, Body: []incast.Stmt{
		&incast.Return{Value: &incast.Comp{
			Resexp:  name("y"),
			Clauses: []incast.Clause{&incast.RelMember{Vars: []string{"p", "y"}, Rel: "R"}},
		}},
	}}
	m := &incast.Module{Decls: []incast.Stmt{f}}
	m.Decls = append(m.Decls, concat(relAdd("R", tup(1, 2)), relAdd("R", tup(2, 5)))...)

	e := newEngine(t, m, Declarations{Relations: []string{"R"}})
	v, err := e.Call(context.Background(), "f", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "{2}", rt.Format(v))

	v, err = e.Call(context.Background(), "f", int64(3))
	require.NoError(t, err)
	assert.Equal(t, "{}", rt.Format(v))
}

func TestClauseKinds(t *testing.T) {
	tests := []struct {
		name   string
		clause incast.Clause
		want   string
	}{
		{
			name:   "singleton member",
			clause: &incast.SingMember{Vars: []string{"x", "y"}, Value: tup(7, 8)},
			want:   "{(7, 8)}",
		},
		{
			name:   "member over unwrapped scalars",
			clause: &incast.VarsMember{Vars: []string{"x"}, Iter: &incast.SetLit{Elts: []incast.Expr{num(1), num(2)}}},
			want:   "{(1, 1), (2, 2)}",
		},
		{
			name:   "map member",
			clause: &incast.MapMember{Key: "x", Value: "y", Map: "M"},
			want:   "{(1, 10), (2, 20)}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := "y"
			if _, ok := tt.clause.(*incast.VarsMember); ok {
				y = "x"
			}
			comp := &incast.Comp{Resexp: incast.NewTuple(name("x"), name(y)), Clauses: []incast.Clause{tt.clause}}
			body := []incast.Stmt{
				&incast.MapAssign{Map: "M", Key: num(1), Value: num(10)},
				&incast.MapAssign{Map: "M", Key: num(2), Value: num(20)},
				printStmt(comp),
			}
			out := run(t, mainModule(body...), Declarations{Maps: []string{"M"}})
			assert.Equal(t, []string{tt.want}, out.Output)
		})
	}
}

func TestAggregates(t *testing.T) {
	vals := &incast.Comp{
		Resexp:  name("x"),
		Clauses: []incast.Clause{&incast.RelMember{Vars: []string{"x"}, Rel: "S"}},
	}
	empty := &incast.Comp{
		Resexp:  name("x"),
		Clauses: []incast.Clause{&incast.RelMember{Vars: []string{"x"}, Rel: "T"}},
	}
	body := concat(
		relAdd("S", tup(4)),
		relAdd("S", tup(1)),
		relAdd("S", tup(6)),
		[]incast.Stmt{
			printStmt(&incast.Aggr{Op: incast.Count, Value: vals}),
			printStmt(&incast.Aggr{Op: incast.Sum, Value: vals}),
			printStmt(&incast.Aggr{Op: incast.Min, Value: vals}),
			printStmt(&incast.Aggr{Op: incast.Max, Value: name("S")}),
			printStmt(&incast.Aggr{Op: incast.Max, Value: empty}),
			printStmt(&incast.Aggr{Op: incast.Count, Value: empty}),
		},
	)
	res := run(t, mainModule(body...), Declarations{Relations: []string{"S", "T"}})
	assert.Equal(t, []string{"3", "11", "1", "6", "None", "0"}, res.Output)
}

func TestCountedRelation(t *testing.T) {
	body := concat(
		relAdd("C", tup(1)),
		[]incast.Stmt{
			&incast.RelUpdate{Rel: "C", Op: incast.RelIncCount, Elem: "_e"},
			printStmt(&incast.GetCount{Rel: "C", Elem: name("_e")}),
			&incast.RelUpdate{Rel: "C", Op: incast.RelDecCount, Elem: "_e"},
			printStmt(&incast.GetCount{Rel: "C", Elem: name("_e")}),
			&incast.RelUpdate{Rel: "C", Op: incast.RelRemove, Elem: "_e"},
			printStmt(name("C")),
		},
	)
	res := run(t, mainModule(body...), Declarations{Relations: []string{"C"}, Counted: []string{"C"}})
	assert.Equal(t, []string{"2", "1", "{}"}, res.Output)
}

func TestIncCountOnUncountedRelation(t *testing.T) {
	body := concat(relAdd("R", tup(1)), []incast.Stmt{
		&incast.RelUpdate{Rel: "R", Op: incast.RelIncCount, Elem: "_e"},
	})
	_, err := newEngine(t, mainModule(body...), Declarations{Relations: []string{"R"}}).Run(context.Background(), "main")
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeType, re.Code)
	assert.Equal(t, "main", re.Func)
}

func TestMapOperations(t *testing.T) {
	body := []incast.Stmt{
		&incast.MapAssign{Map: "M", Key: num(1), Value: num(10)},
		&incast.MapAssign{Map: "M", Key: num(1), Value: num(11)},
		printStmt(&incast.MapLookup{Map: "M", Key: num(1)}),
		printStmt(&incast.MapLookup{Map: "M", Key: num(2), Default: num(0)}),
		printStmt(incast.Cmp(num(1), incast.In, name("M"))),
		&incast.MapDelete{Map: "M", Key: num(1)},
		printStmt(name("M")),
	}
	res := run(t, mainModule(body...), Declarations{Maps: []string{"M"}})
	assert.Equal(t, []string{"11", "0", "True", "{}"}, res.Output)
}

func TestContractViolations(t *testing.T) {
	tests := []struct {
		name string
		body []incast.Stmt
	}{
		{
			name: "duplicate add",
			body: concat(relAdd("R", tup(1)), []incast.Stmt{
				&incast.RelUpdate{Rel: "R", Op: incast.RelAdd, Elem: "_e"},
			}),
		},
		{
			name: "remove missing",
			body: []incast.Stmt{
				assign("_e", tup(1)),
				&incast.RelUpdate{Rel: "R", Op: incast.RelRemove, Elem: "_e"},
			},
		},
		{
			name: "delete missing key",
			body: []incast.Stmt{&incast.MapDelete{Map: "M", Key: num(1)}},
		},
		{
			name: "strict lookup",
			body: []incast.Stmt{printStmt(&incast.MapLookup{Map: "M", Key: num(1)})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, mainModule(tt.body...), Declarations{Relations: []string{"R"}, Maps: []string{"M"}})
			_, err := e.Run(context.Background(), "main")
			require.Error(t, err)
			assert.True(t, IsContractError(err), "got %v", err)
			var re *RuntimeError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "run-1", re.RunID)
		})
	}
}

func TestFailedRunKeepsPartialResult(t *testing.T) {
	body := concat(relAdd("R", tup(1)), []incast.Stmt{
		printStmt(num(1)),
		&incast.RelUpdate{Rel: "R", Op: incast.RelAdd, Elem: "_e"},
		printStmt(num(2)),
	})
	e := newEngine(t, mainModule(body...), Declarations{Relations: []string{"R"}}, WithTrace())

	res, err := e.Run(context.Background(), "main")
	require.Error(t, err)
	assert.True(t, IsContractError(err))
	require.NotNil(t, res)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"1"}, res.Output)
	assert.Positive(t, res.Steps)
	assert.Equal(t, []Event{{Seq: 1, Op: "reladd", Target: "R", Elem: "(1,)"}}, res.Trace)
}

func TestQuotaExceeded(t *testing.T) {
	loop := &incast.While{Test: &incast.Bool{Value: true}, Body: []incast.Stmt{&incast.Pass{}}}
	e := newEngine(t, mainModule(loop), Declarations{}, WithMaxSteps(50))
	_, err := e.Run(context.Background(), "main")
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEngine(t, mainModule(printStmt(num(1))), Declarations{})
	_, err := e.Run(ctx, "main")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMaintenanceCycle(t *testing.T) {
	maint := &incast.Fun{Name: "_maint_R_Q_for_S_add", Args: []string{"_elem"}, Body: []incast.Stmt{
		incast.CallStmt("_maint_R_Q_for_S_add", name("_elem")),
	}}
	m := &incast.Module{Decls: []incast.Stmt{maint,
		&incast.Fun{Name: "main", Body: []incast.Stmt{incast.CallStmt("_maint_R_Q_for_S_add", tup(1))}},
	}}
	_, err := newEngine(t, m, Declarations{}).Run(context.Background(), "main")
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
}

func TestRecursionOutsideMaintenance(t *testing.T) {
	// def fact(n): return 1 if n <= 1 else n * fact(n - 1)
	fact := &incast.Fun{Name: "fact", Args: []string{"n"}, Body: []incast.Stmt{
		&incast.Return{Value: &incast.IfExp{
			Test: incast.Cmp(name("n"), incast.LtE, num(1)),
			Body: num(1),
			Orelse: &incast.BinOp{Left: name("n"), Op: incast.Mult, Right: incast.NewCall("fact",
				&incast.BinOp{Left: name("n"), Op: incast.Sub, Right: num(1)})},
		}},
	}}
	m := &incast.Module{Decls: []incast.Stmt{fact}}
	v, err := newEngine(t, m, Declarations{}).Call(context.Background(), "fact", int64(5))
	require.NoError(t, err)
	assert.Equal(t, int64(120), v)
}

func TestControlFlow(t *testing.T) {
	// for x in range(10):
	//     if x == 2: continue
	//     if x == 4: break
	//     print(x)
	loop := &incast.For{Target: "x", Iter: incast.NewCall("range", num(10)), Body: []incast.Stmt{
		&incast.If{Test: incast.Cmp(name("x"), incast.Eq, num(2)), Body: []incast.Stmt{&incast.Continue{}}},
		&incast.If{Test: incast.Cmp(name("x"), incast.Eq, num(4)), Body: []incast.Stmt{&incast.Break{}}},
		printStmt(name("x")),
	}}
	res := run(t, mainModule(loop, printStmt(incast.NewStr("done"))), Declarations{})
	assert.Equal(t, []string{"0", "1", "3", "done"}, res.Output)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr incast.Expr
		want rt.Value
	}{
		{"floor division", &incast.BinOp{Left: num(-7), Op: incast.Div, Right: num(2)}, int64(-4)},
		{"modulo sign", &incast.BinOp{Left: num(-7), Op: incast.Mod, Right: num(2)}, int64(1)},
		{"negate", &incast.UnaryOp{Op: incast.USub, Operand: num(3)}, int64(-3)},
		{"string concat", &incast.BinOp{Left: incast.NewStr("a"), Op: incast.Add, Right: incast.NewStr("b")}, "ab"},
		{"or returns operand", &incast.BoolOp{Op: incast.Or, Values: []incast.Expr{num(0), num(5)}}, int64(5)},
		{"and short-circuits", &incast.BoolOp{Op: incast.And, Values: []incast.Expr{num(0), name("undefined")}}, int64(0)},
		{"tuple membership", incast.Cmp(num(2), incast.In, tup(1, 2)), true},
		{"index", incast.Index(tup(4, 5), 1), int64(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, &incast.Module{}, Declarations{})
			e.ctx = context.Background()
			v, err := e.eval(e.globals, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	e := newEngine(t, &incast.Module{}, Declarations{})
	e.ctx = context.Background()
	_, err := e.eval(e.globals, &incast.BinOp{Left: num(1), Op: incast.Div, Right: num(0)})
	require.Error(t, err)
}

func TestMinMaxTrees(t *testing.T) {
	body := []incast.Stmt{
		assign("t", incast.NewCall("tree")),
		incast.CallStmt("treeinsert", name("t"), num(5)),
		incast.CallStmt("treeinsert", name("t"), num(2)),
		incast.CallStmt("treeinsert", name("t"), num(2)),
		incast.CallStmt("treedelete", name("t"), num(2)),
		printStmt(incast.NewCall("treemin", name("t")), incast.NewCall("treemax", name("t")), incast.NewCall("len", name("t"))),
	}
	res := run(t, mainModule(body...), Declarations{})
	assert.Equal(t, []string{"2 5 2"}, res.Output)
}

func TestOutputAndTrace(t *testing.T) {
	var buf bytes.Buffer
	body := concat(relAdd("R", tup(1)), []incast.Stmt{
		&incast.MapAssign{Map: "M", Key: num(1), Value: num(2)},
		&incast.RelClear{Rel: "R"},
		printStmt(incast.NewStr("x"), num(1), incast.NewStr("y")),
	})
	res := run(t, mainModule(body...), Declarations{Relations: []string{"R"}, Maps: []string{"M"}},
		WithOutput(&buf), WithTrace())

	assert.Equal(t, "x 1 y\n", buf.String())
	require.Len(t, res.Trace, 3)
	assert.Equal(t, Event{Seq: 1, Op: "reladd", Target: "R", Elem: "(1,)"}, res.Trace[0])
	assert.Equal(t, Event{Seq: 2, Op: "mapassign", Target: "M", Elem: "1"}, res.Trace[1])
	assert.Equal(t, Event{Seq: 3, Op: "clear", Target: "R"}, res.Trace[2])
}

func TestUnknownNames(t *testing.T) {
	e := newEngine(t, mainModule(printStmt(name("nope"))), Declarations{})
	_, err := e.Run(context.Background(), "main")
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownName, re.Code)

	_, err = newEngine(t, mainModule(), Declarations{}).Run(context.Background(), "missing")
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownName, re.Code)
}

func TestDuplicateFunction(t *testing.T) {
	m := &incast.Module{Decls: []incast.Stmt{&incast.Fun{Name: "f"}, &incast.Fun{Name: "f"}}}
	_, err := New(m, Declarations{})
	require.Error(t, err)
}

func TestDeclarationsFromTable(t *testing.T) {
	tab := symtab.New()
	_, err := tab.DefineRelation("S", types.NewSet(types.NewTuple(types.Number)))
	require.NoError(t, err)
	r, err := tab.DefineRelation("R_Q", types.NewSet(types.NewTuple(types.Number)))
	require.NoError(t, err)
	r.Counted = true
	_, err = tab.DefineMap("A_Q", types.Top)
	require.NoError(t, err)

	d := DeclarationsFromTable(tab)
	assert.ElementsMatch(t, []string{"S", "R_Q"}, d.Relations)
	assert.Equal(t, []string{"R_Q"}, d.Counted)
	assert.Equal(t, []string{"A_Q"}, d.Maps)

	e := newEngine(t, &incast.Module{}, d)
	rq, _ := e.Global("R_Q")
	assert.IsType(t, &rt.CSet{}, rq)
	s, _ := e.Global("S")
	assert.IsType(t, &rt.Set{}, s)
	assert.Equal(t, 3, e.Size())
}
