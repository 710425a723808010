package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// Validation error codes (E100-E199)
const (
	// Declaration errors (E100-E109)
	ErrDuplicateDecl     = "E100" // relation or map declared twice
	ErrDuplicateFunction = "E101" // function defined twice
	ErrQueryNameClash    = "E102" // query named like a relation, map or function
	ErrQueryRedefined    = "E103" // two occurrences of a query disagree

	// Reference errors (E110-E119)
	ErrUnknownRelation = "E110" // relation update or clause on an undeclared relation
	ErrUnknownMap      = "E111" // map operation on an undeclared map

	// Configuration errors (E120-E129)
	ErrConfigUnknownQuery  = "E120" // config for a query the program does not contain
	ErrConfigUnknownSymbol = "E121" // config for an undeclared relation or map
	ErrConfigDemandParams  = "E122" // demand params without the explicit strategy, or vice versa
)

// ValidationError represents a program or configuration error found
// before compilation starts.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

func didYouMean(name string, candidates []string) string {
	if s := symtab.Suggest(name, candidates); s != "" {
		return fmt.Sprintf(" (did you mean %q?)", s)
	}
	return ""
}

// Validate checks a program and its configuration. It returns all errors
// found (does not fail-fast). cfg may be nil.
func Validate(prog *incast.Program, cfg *symtab.Config) []ValidationError {
	v := &validator{
		relations: make(map[string]bool),
		maps:      make(map[string]bool),
		funcs:     make(map[string]bool),
		queries:   make(map[string]*incast.Query),
	}
	v.declarations(prog)
	v.module(prog.Module)
	if cfg != nil {
		v.config(cfg)
	}
	return v.errs
}

type validator struct {
	errs      []ValidationError
	relations map[string]bool
	maps      map[string]bool
	funcs     map[string]bool
	queries   map[string]*incast.Query
	qOrder    []string
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) declarations(prog *incast.Program) {
	for i, r := range prog.Relations {
		if v.relations[r] {
			v.add(fmt.Sprintf("relations[%d]", i), ErrDuplicateDecl, "relation %q declared twice", r)
		}
		v.relations[r] = true
	}
	for i, m := range prog.Maps {
		field := fmt.Sprintf("maps[%d]", i)
		switch {
		case v.maps[m]:
			v.add(field, ErrDuplicateDecl, "map %q declared twice", m)
		case v.relations[m]:
			v.add(field, ErrDuplicateDecl, "%q declared as both a relation and a map", m)
		}
		v.maps[m] = true
	}
	for i, c := range prog.Counted {
		if !v.relations[c] {
			v.add(fmt.Sprintf("counted[%d]", i), ErrUnknownRelation, "counted relation %q is not declared", c)
		}
	}
	for i, d := range prog.Module.Decls {
		if f, ok := d.(*incast.Fun); ok {
			if v.funcs[f.Name] {
				v.add(fmt.Sprintf("decls[%d]", i), ErrDuplicateFunction, "function %q defined twice", f.Name)
			}
			v.funcs[f.Name] = true
		}
	}
}

func (v *validator) names(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (v *validator) relation(field, name string) {
	if !v.relations[name] {
		v.add(field, ErrUnknownRelation, "undeclared relation %q%s", name, didYouMean(name, v.names(v.relations)))
	}
}

func (v *validator) mapRef(field, name string) {
	if !v.maps[name] {
		v.add(field, ErrUnknownMap, "undeclared map %q%s", name, didYouMean(name, v.names(v.maps)))
	}
}

func (v *validator) module(m *incast.Module) {
	for _, d := range m.Decls {
		field := "module"
		if f, ok := d.(*incast.Fun); ok {
			field = f.Name
		}
		incast.Walk(d, func(n incast.Node) bool {
			v.node(field, n)
			return true
		})
	}
}

func (v *validator) node(field string, n incast.Node) {
	switch n := n.(type) {
	case *incast.RelUpdate:
		v.relation(field, n.Rel)
	case *incast.RelClear:
		v.relation(field, n.Rel)
	case *incast.RelMember:
		v.relation(field, n.Rel)
	case *incast.GetCount:
		v.relation(field, n.Rel)
	case *incast.MapAssign:
		v.mapRef(field, n.Map)
	case *incast.MapDelete:
		v.mapRef(field, n.Map)
	case *incast.MapClear:
		v.mapRef(field, n.Map)
	case *incast.MapLookup:
		v.mapRef(field, n.Map)
	case *incast.SetFromMap:
		v.mapRef(field, n.Map)
	case *incast.MapMember:
		v.mapRef(field, n.Map)
	case *incast.Query:
		qfield := field + ": query " + n.Name
		if v.relations[n.Name] || v.maps[n.Name] || v.funcs[n.Name] {
			v.add(qfield, ErrQueryNameClash, "query %q has the name of a relation, map or function", n.Name)
		}
		prev, seen := v.queries[n.Name]
		if !seen {
			v.queries[n.Name] = n
			v.qOrder = append(v.qOrder, n.Name)
			return
		}
		if !incast.Equal(prev.Query, n.Query) {
			v.add(qfield, ErrQueryRedefined, "query %q is defined as both %s and %s",
				n.Name, incast.Format(prev.Query), incast.Format(n.Query))
		}
	}
}

func (v *validator) config(cfg *symtab.Config) {
	for _, name := range cfg.QueryNames() {
		qc := cfg.Queries[name]
		field := "query." + name
		if _, ok := v.queries[name]; !ok {
			v.add(field, ErrConfigUnknownQuery, "no query %q in the program%s", name, didYouMean(name, v.qOrder))
		}
		switch {
		case qc.DemandParams != nil && qc.Strategy != symtab.Explicit:
			v.add(field+".demand_params", ErrConfigDemandParams,
				"demand_params given but demand_param_strat is %q, not %q", qc.Strategy, symtab.Explicit)
		case qc.DemandParams == nil && qc.Strategy == symtab.Explicit:
			v.add(field+".demand_params", ErrConfigDemandParams,
				"demand_param_strat %q requires demand_params", symtab.Explicit)
		}
	}
	for _, name := range sortedKeys(cfg.Relations) {
		if !v.relations[name] {
			v.add("relation."+name, ErrConfigUnknownSymbol, "no relation %q declared%s", name, didYouMean(name, v.names(v.relations)))
		}
	}
	for _, name := range sortedKeys(cfg.Maps) {
		if !v.maps[name] {
			v.add("map."+name, ErrConfigUnknownSymbol, "no map %q declared%s", name, didYouMean(name, v.names(v.maps)))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
