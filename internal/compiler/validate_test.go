package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

func countQuery(qname, rel string) *incast.Query {
	return &incast.Query{Name: qname, Query: &incast.Aggr{Op: incast.Count, Value: name(rel)}}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidProgram(t *testing.T) {
	prog := &incast.Program{
		Relations: []string{"S", "T"},
		Counted:   []string{"T"},
		Maps:      []string{"M"},
		Module: &incast.Module{Decls: []incast.Stmt{
			&incast.Fun{Name: "main", Body: []incast.Stmt{
				&incast.RelUpdate{Rel: "S", Op: incast.RelAdd, Elem: "x"},
				&incast.MapAssign{Map: "M", Key: num(1), Value: num(2)},
				incast.CallStmt("print", countQuery("Q", "S")),
				incast.CallStmt("print", countQuery("Q", "S")),
			}},
		}},
	}
	cfg := symtab.DefaultConfig()
	cfg.Queries["Q"] = &symtab.QueryConfig{Impl: symtab.Incremental, Strategy: symtab.All}
	cfg.Relations["S"] = &symtab.SymbolConfig{}

	assert.Empty(t, Validate(prog, cfg))
	assert.Empty(t, Validate(prog, nil))
}

func TestValidateDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		prog  *incast.Program
		code  string
		field string
		msg   string
	}{
		{
			"duplicate relation",
			&incast.Program{Relations: []string{"S", "S"}, Module: &incast.Module{}},
			ErrDuplicateDecl, "relations[1]", `relation "S" declared twice`,
		},
		{
			"duplicate map",
			&incast.Program{Maps: []string{"M", "M"}, Module: &incast.Module{}},
			ErrDuplicateDecl, "maps[1]", `map "M" declared twice`,
		},
		{
			"relation and map",
			&incast.Program{Relations: []string{"X"}, Maps: []string{"X"}, Module: &incast.Module{}},
			ErrDuplicateDecl, "maps[0]", "both a relation and a map",
		},
		{
			"counted but undeclared",
			&incast.Program{Counted: []string{"R"}, Module: &incast.Module{}},
			ErrUnknownRelation, "counted[0]", `counted relation "R" is not declared`,
		},
		{
			"duplicate function",
			&incast.Program{Module: &incast.Module{Decls: []incast.Stmt{
				&incast.Fun{Name: "f"}, &incast.Fun{Name: "f"},
			}}},
			ErrDuplicateFunction, "decls[1]", `function "f" defined twice`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.prog, nil)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Contains(t, errs[0].Message, tt.msg)
		})
	}
}

func TestValidateReferences(t *testing.T) {
	tests := []struct {
		name string
		stmt incast.Stmt
		code string
		msg  string
	}{
		{"rel update", &incast.RelUpdate{Rel: "Edges", Op: incast.RelAdd, Elem: "x"}, ErrUnknownRelation, `undeclared relation "Edges" (did you mean "Edge"?)`},
		{"rel clear", &incast.RelClear{Rel: "Nope"}, ErrUnknownRelation, `undeclared relation "Nope"`},
		{"map assign", &incast.MapAssign{Map: "Wieghts", Key: num(1), Value: num(1)}, ErrUnknownMap, `(did you mean "Weights"?)`},
		{"map clear", &incast.MapClear{Map: "N"}, ErrUnknownMap, `undeclared map "N"`},
		{
			"clause in query",
			incast.CallStmt("print", &incast.Query{Name: "Q", Query: &incast.Comp{
				Resexp:  name("x"),
				Clauses: []incast.Clause{&incast.RelMember{Vars: []string{"x"}, Rel: "Missing"}},
			}}),
			ErrUnknownRelation, `undeclared relation "Missing"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := &incast.Program{
				Relations: []string{"Edge"},
				Maps:      []string{"Weights"},
				Module:    &incast.Module{Decls: []incast.Stmt{&incast.Fun{Name: "main", Body: []incast.Stmt{tt.stmt}}}},
			}
			errs := Validate(prog, nil)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, "main", errs[0].Field)
			assert.Contains(t, errs[0].Message, tt.msg)
		})
	}
}

func TestValidateQueries(t *testing.T) {
	t.Run("name clash", func(t *testing.T) {
		prog := &incast.Program{
			Relations: []string{"S"},
			Module: &incast.Module{Decls: []incast.Stmt{
				&incast.Fun{Name: "main", Body: []incast.Stmt{incast.CallStmt("print", countQuery("S", "S"))}},
			}},
		}
		errs := Validate(prog, nil)
		assert.Equal(t, []string{ErrQueryNameClash}, codes(errs))
		assert.Equal(t, "main: query S", errs[0].Field)
	})

	t.Run("redefined", func(t *testing.T) {
		prog := &incast.Program{
			Relations: []string{"S", "T"},
			Module: &incast.Module{Decls: []incast.Stmt{
				&incast.Fun{Name: "main", Body: []incast.Stmt{
					incast.CallStmt("print", countQuery("Q", "S")),
					incast.CallStmt("print", countQuery("Q", "T")),
				}},
			}},
		}
		errs := Validate(prog, nil)
		require.Equal(t, []string{ErrQueryRedefined}, codes(errs))
		assert.Contains(t, errs[0].Message, "count(S) and count(T)")
	})
}

func TestValidateConfig(t *testing.T) {
	prog := &incast.Program{
		Relations: []string{"Edge"},
		Module: &incast.Module{Decls: []incast.Stmt{
			&incast.Fun{Name: "main", Body: []incast.Stmt{incast.CallStmt("print", countQuery("Reach", "Edge"))}},
		}},
	}
	cfg := symtab.DefaultConfig()
	cfg.Queries["Reech"] = &symtab.QueryConfig{Strategy: symtab.Unconstrained}
	cfg.Queries["Reach"] = &symtab.QueryConfig{Strategy: symtab.All, DemandParams: []string{"x"}}
	cfg.Relations["Edges"] = &symtab.SymbolConfig{}
	cfg.Maps["W"] = &symtab.SymbolConfig{}

	errs := Validate(prog, cfg)
	require.Len(t, errs, 4)

	assert.Equal(t, ErrConfigDemandParams, errs[0].Code)
	assert.Equal(t, "query.Reach.demand_params", errs[0].Field)

	assert.Equal(t, ErrConfigUnknownQuery, errs[1].Code)
	assert.Equal(t, "query.Reech", errs[1].Field)
	assert.Contains(t, errs[1].Message, `(did you mean "Reach"?)`)

	assert.Equal(t, ErrConfigUnknownSymbol, errs[2].Code)
	assert.Contains(t, errs[2].Message, `(did you mean "Edge"?)`)

	assert.Equal(t, ErrConfigUnknownSymbol, errs[3].Code)
	assert.Equal(t, "map.W", errs[3].Field)
}

func TestValidateExplicitStrategyNeedsParams(t *testing.T) {
	prog := &incast.Program{
		Relations: []string{"S"},
		Module: &incast.Module{Decls: []incast.Stmt{
			&incast.Fun{Name: "main", Body: []incast.Stmt{incast.CallStmt("print", countQuery("Q", "S"))}},
		}},
	}
	cfg := symtab.DefaultConfig()
	cfg.Queries["Q"] = &symtab.QueryConfig{Strategy: symtab.Explicit}

	errs := Validate(prog, cfg)
	require.Equal(t, []string{ErrConfigDemandParams}, codes(errs))
	assert.Contains(t, errs[0].Message, "requires demand_params")
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "relations[1]", Message: "relation \"S\" declared twice", Code: ErrDuplicateDecl}
	assert.Equal(t, `[E100] relations[1]: relation "S" declared twice`, e.Error())
}
