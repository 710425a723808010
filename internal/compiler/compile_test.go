package compiler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incoq/internal/engine"
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

const sumOfImage = "../../testdata/programs/sum_of_image.yaml"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadProgram(t *testing.T, path string) *incast.Program {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	prog, err := incast.ParseProgram(data)
	require.NoError(t, err)
	return prog
}

func loadConfig(t *testing.T, path string) *symtab.Config {
	t.Helper()
	if path == "" {
		return nil
	}
	cfg, err := symtab.LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func compile(t *testing.T, prog *incast.Program, cfg *symtab.Config) *Result {
	t.Helper()
	res, err := Compile(prog, cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	return res
}

func execute(t *testing.T, p *incast.Program) []string {
	t.Helper()
	e, err := engine.New(p.Module, engine.DeclarationsFromProgram(p),
		engine.WithLogger(quietLogger()),
		engine.WithRunIDGenerator(engine.NewSeqGenerator("run")))
	require.NoError(t, err)
	res, err := e.Run(context.Background(), "main")
	require.NoError(t, err)
	return res.Output
}

func TestCompileEndToEnd(t *testing.T) {
	want := []string{"2", "0", "7", "3", "0"}
	tests := []struct {
		name   string
		config string
	}{
		{"incremental with demand", ""},
		{"incremental without demand", "../../testdata/configs/no_demand.cue"},
		{"from scratch", "../../testdata/configs/normal.cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := loadProgram(t, sumOfImage)
			res := compile(t, prog, loadConfig(t, tt.config))
			assert.Equal(t, want, execute(t, res.Program))
		})
	}

	t.Run("input program", func(t *testing.T) {
		assert.Equal(t, want, execute(t, loadProgram(t, sumOfImage)))
	})
}

func TestCompileSumOfImageIsWellTyped(t *testing.T) {
	res := compile(t, loadProgram(t, sumOfImage), nil)
	assert.Empty(t, res.Illtyped)
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "ill-typed")
	}
}

func TestCompileDeclaresAuxiliaryState(t *testing.T) {
	res := compile(t, loadProgram(t, sumOfImage), loadConfig(t, "../../testdata/configs/no_demand.cue"))

	assert.Contains(t, res.Program.Relations, "S")
	assert.Contains(t, res.Program.Relations, "R_Q1")
	assert.Contains(t, res.Program.Counted, "R_Q1")
	assert.NotContains(t, res.Program.Counted, "S")
	assert.Contains(t, res.Program.Maps, "A_Q2")

	q1, ok := res.Table.Query("Q1")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, q1.Params)
	assert.Equal(t, "R_Q1", q1.Result)

	q2, ok := res.Table.Query("Q2")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, q2.Params)
	assert.Equal(t, "A_Q2", q2.Result)

	assert.Less(t, slices.Index(res.Order, "Q1"), slices.Index(res.Order, "Q2"))
	assert.Contains(t, res.Structures, "Q1")
	assert.NotContains(t, res.Structures, "Q2")

	// No query occurrence survives incrementalization.
	assert.Empty(t, incast.FindQueries(res.Program.Module))
	assert.Equal(t, "Set(Tuple(Number, Number))", res.Store.Get("S").String())
}

func TestCompileWithDemand(t *testing.T) {
	res := compile(t, loadProgram(t, sumOfImage), nil)

	assert.Contains(t, res.Program.Relations, "_U_Q2")
	q2, _ := res.Table.Query("Q2")
	assert.Equal(t, "_U_Q2", q2.DemandSet)

	var demandFuncs []string
	for _, d := range res.Program.Module.Decls {
		if f, ok := d.(*incast.Fun); ok && f.Name == symtab.DemandFuncName("Q2") {
			demandFuncs = append(demandFuncs, f.Name)
		}
	}
	assert.Equal(t, []string{"_demand_Q2"}, demandFuncs)
}

func TestCompileNormalLeavesQueries(t *testing.T) {
	prog := loadProgram(t, sumOfImage)
	res := compile(t, prog, loadConfig(t, "../../testdata/configs/normal.cue"))

	names := make(map[string]bool)
	for _, q := range incast.FindQueries(res.Program.Module) {
		names[q.Name] = true
	}
	assert.True(t, names["Q1"])
	assert.True(t, names["Q2"])
	assert.Equal(t, []string{"S"}, res.Program.Relations)
	assert.Empty(t, res.Structures)
}

func TestCompileDeterministic(t *testing.T) {
	first := compile(t, loadProgram(t, sumOfImage), nil)
	second := compile(t, loadProgram(t, sumOfImage), nil)

	assert.Equal(t, first.InputHash, second.InputHash)
	assert.Equal(t, first.OutputHash, second.OutputHash)
	assert.Equal(t, incast.Format(first.Program.Module), incast.Format(second.Program.Module))
	assert.NotEqual(t, first.InputHash, first.OutputHash)
}

func TestCompileInputHashCoversConfig(t *testing.T) {
	prog := loadProgram(t, sumOfImage)
	byDefault := compile(t, prog, nil)
	noDemand := compile(t, prog, loadConfig(t, "../../testdata/configs/no_demand.cue"))
	normal := compile(t, prog, loadConfig(t, "../../testdata/configs/normal.cue"))

	assert.NotEqual(t, byDefault.InputHash, noDemand.InputHash)
	assert.NotEqual(t, byDefault.InputHash, normal.InputHash)
	assert.NotEqual(t, noDemand.InputHash, normal.InputHash)
	assert.Equal(t, byDefault.InputHash, compile(t, prog, symtab.DefaultConfig()).InputHash)
}

func TestCompileDoesNotModifyInput(t *testing.T) {
	prog := loadProgram(t, sumOfImage)
	before := incast.Format(prog.Module)
	compile(t, prog, nil)
	assert.Equal(t, before, incast.Format(prog.Module))
	assert.Equal(t, []string{"S"}, prog.Relations)
}

func mainProgram(rels []string, body ...incast.Stmt) *incast.Program {
	return &incast.Program{
		Relations: rels,
		Module:    &incast.Module{Decls: []incast.Stmt{&incast.Fun{Name: "main", Body: body}}},
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		prog  *incast.Program
		phase Phase
		code  string
		msg   string
	}{
		{
			"undeclared relation",
			mainProgram(nil, &incast.RelUpdate{Rel: "S", Op: incast.RelAdd, Elem: "x"}),
			PhaseValidate, ErrValidation, "undeclared relation",
		},
		{
			"attribute",
			mainProgram(nil, incast.CallStmt("print", &incast.Attribute{Value: name("o"), Attr: "f"})),
			PhasePreprocess, ErrDialect, "attribute access",
		},
		{
			"bulk update",
			mainProgram([]string{"S"}, &incast.SetUpdate{Target: name("S"), Op: incast.SetSymmetricDifferenceUpdate, Value: name("T")}),
			PhasePreprocess, ErrDialect, "symmetric_difference_update",
		},
		{
			"relation reassigned",
			mainProgram([]string{"S"}, &incast.Assign{Target: "S", Value: &incast.SetLit{}}),
			PhasePreprocess, ErrDialect, "cannot be reassigned",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.prog, nil, WithLogger(quietLogger()))
			require.Error(t, err)
			ce, ok := AsCompileError(err)
			require.True(t, ok)
			assert.Equal(t, tt.phase, ce.Phase)
			assert.Equal(t, tt.code, ce.Code)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCompileValidationCollectsAll(t *testing.T) {
	prog := mainProgram([]string{"S"},
		&incast.RelUpdate{Rel: "T", Op: incast.RelAdd, Elem: "x"},
		&incast.MapClear{Map: "M"},
	)
	_, err := Compile(prog, nil, WithLogger(quietLogger()))
	ce, ok := AsCompileError(err)
	require.True(t, ok)
	require.Len(t, ce.Errors, 2)
	assert.Equal(t, ErrUnknownRelation, ce.Errors[0].Code)
	assert.Equal(t, ErrUnknownMap, ce.Errors[1].Code)
	assert.Contains(t, err.Error(), "2 validation error(s)")
}

// conditionOnlyProgram prints {b for (b,) in S if b > a} for a in 1, 7.
// Only the condition mentions the parameter a.
func conditionOnlyProgram() *incast.Program {
	q := &incast.Query{Name: "Q", Query: &incast.Comp{
		Resexp: name("b"),
		Clauses: []incast.Clause{
			&incast.VarsMember{Vars: []string{"b"}, Iter: name("S")},
			&incast.Cond{Cond: incast.Cmp(name("b"), incast.Gt, name("a"))},
		},
	}}
	return mainProgram([]string{"S"},
		&incast.SetUpdate{Target: name("S"), Op: incast.SetAdd, Value: incast.NewTuple(num(5))},
		&incast.For{Target: "a", Iter: &incast.List{Elts: []incast.Expr{num(1), num(7)}}, Body: []incast.Stmt{
			incast.CallStmt("print", q),
		}},
	)
}

func TestCompileConditionOnlyParameter(t *testing.T) {
	tests := []struct {
		name       string
		usesDemand bool
		strategy   symtab.Strategy
		wantErr    bool
	}{
		{"without demand", false, symtab.Unconstrained, true},
		{"unconstrained demand params", true, symtab.Unconstrained, true},
		{"every parameter demanded", true, symtab.All, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := conditionOnlyProgram()
			cfg := symtab.DefaultConfig()
			cfg.UsesDemand = tt.usesDemand
			cfg.Queries["Q"] = &symtab.QueryConfig{Strategy: tt.strategy}

			res, err := Compile(prog, cfg, WithLogger(quietLogger()))
			if tt.wantErr {
				require.Error(t, err)
				ce, ok := AsCompileError(err)
				require.True(t, ok)
				assert.Equal(t, PhaseIncremental, ce.Phase)
				assert.Equal(t, ErrIncrementalize, ce.Code)
				assert.Contains(t, err.Error(), "parameter a is not bound by any clause")
				assert.Contains(t, err.Error(), `demand_param_strat "all"`)
				return
			}
			require.NoError(t, err)
			q, _ := res.Table.Query("Q")
			assert.Equal(t, []string{"a"}, q.DemandParams)
			assert.Equal(t, []string{"{5}", "{}"}, execute(t, res.Program))
			assert.Equal(t, execute(t, prog), execute(t, res.Program))
		})
	}
}
