package symtab

import (
	"fmt"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/typecheck"
	"github.com/roach88/incoq/internal/types"
)

// Table is the symbol table of one compilation. Symbols of each kind are
// kept in definition order.
type Table struct {
	relations map[string]*RelationSymbol
	relOrder  []string
	maps      map[string]*MapSymbol
	mapOrder  []string
	vars      map[string]*VarSymbol
	varOrder  []string
	queries   map[string]*QuerySymbol
	qOrder    []string

	// Fresh generates variable names for every pass of the compilation.
	Fresh *Fresh
}

// New returns an empty table.
func New() *Table {
	return &Table{
		relations: make(map[string]*RelationSymbol),
		maps:      make(map[string]*MapSymbol),
		vars:      make(map[string]*VarSymbol),
		queries:   make(map[string]*QuerySymbol),
		Fresh:     &Fresh{},
	}
}

// Kind returns "relation", "map", "var", "query" or "" for name.
func (t *Table) Kind(name string) string {
	switch {
	case t.relations[name] != nil:
		return "relation"
	case t.maps[name] != nil:
		return "map"
	case t.queries[name] != nil:
		return "query"
	case t.vars[name] != nil:
		return "var"
	}
	return ""
}

func (t *Table) checkFree(name string) error {
	if k := t.Kind(name); k != "" {
		return fmt.Errorf("symbol %q already defined as a %s", name, k)
	}
	return nil
}

// DefineRelation adds a relation symbol. A nil type means Bottom.
func (t *Table) DefineRelation(name string, typ types.Type) (*RelationSymbol, error) {
	if err := t.checkFree(name); err != nil {
		return nil, err
	}
	if typ == nil {
		typ = types.Bottom
	}
	sym := &RelationSymbol{Name: name, Type: typ}
	t.relations[name] = sym
	t.relOrder = append(t.relOrder, name)
	return sym, nil
}

// DefineMap adds a map symbol. A nil type means Bottom.
func (t *Table) DefineMap(name string, typ types.Type) (*MapSymbol, error) {
	if err := t.checkFree(name); err != nil {
		return nil, err
	}
	if typ == nil {
		typ = types.Bottom
	}
	sym := &MapSymbol{Name: name, Type: typ}
	t.maps[name] = sym
	t.mapOrder = append(t.mapOrder, name)
	return sym, nil
}

// DefineVar adds a variable symbol, or returns the existing one. Names
// already taken by relations, maps or queries are not variables and
// yield nil.
func (t *Table) DefineVar(name string) *VarSymbol {
	if v, ok := t.vars[name]; ok {
		return v
	}
	if t.Kind(name) != "" {
		return nil
	}
	sym := &VarSymbol{Name: name, Type: types.Bottom}
	t.vars[name] = sym
	t.varOrder = append(t.varOrder, name)
	return sym
}

// DefineQuery adds a query symbol. Unset strategy and impl fields take
// their defaults.
func (t *Table) DefineQuery(sym *QuerySymbol) error {
	if err := t.checkFree(sym.Name); err != nil {
		return err
	}
	if sym.Type == nil {
		sym.Type = types.Bottom
	}
	if sym.DemandParamStrat == "" {
		sym.DemandParamStrat = Unconstrained
	}
	if sym.Impl == "" {
		sym.Impl = Normal
	}
	t.queries[sym.Name] = sym
	t.qOrder = append(t.qOrder, sym.Name)
	return nil
}

// Relation returns the named relation symbol.
func (t *Table) Relation(name string) (*RelationSymbol, bool) {
	r, ok := t.relations[name]
	return r, ok
}

// Map returns the named map symbol.
func (t *Table) Map(name string) (*MapSymbol, bool) {
	m, ok := t.maps[name]
	return m, ok
}

// Var returns the named variable symbol.
func (t *Table) Var(name string) (*VarSymbol, bool) {
	v, ok := t.vars[name]
	return v, ok
}

// Query returns the named query symbol.
func (t *Table) Query(name string) (*QuerySymbol, bool) {
	q, ok := t.queries[name]
	return q, ok
}

// Relations returns all relation symbols in definition order.
func (t *Table) Relations() []*RelationSymbol {
	out := make([]*RelationSymbol, len(t.relOrder))
	for i, n := range t.relOrder {
		out[i] = t.relations[n]
	}
	return out
}

// Maps returns all map symbols in definition order.
func (t *Table) Maps() []*MapSymbol {
	out := make([]*MapSymbol, len(t.mapOrder))
	for i, n := range t.mapOrder {
		out[i] = t.maps[n]
	}
	return out
}

// Vars returns all variable symbols in definition order.
func (t *Table) Vars() []*VarSymbol {
	out := make([]*VarSymbol, len(t.varOrder))
	for i, n := range t.varOrder {
		out[i] = t.vars[n]
	}
	return out
}

// Queries returns all query symbols in definition order.
func (t *Table) Queries() []*QuerySymbol {
	out := make([]*QuerySymbol, len(t.qOrder))
	for i, n := range t.qOrder {
		out[i] = t.queries[n]
	}
	return out
}

// Store returns the current types of relations, maps and variables as an
// analysis store.
func (t *Table) Store() typecheck.Store {
	s := make(typecheck.Store)
	for _, v := range t.vars {
		s[v.Name] = v.Type
	}
	for _, r := range t.relations {
		s[r.Name] = r.Type
	}
	for _, m := range t.maps {
		s[m.Name] = m.Type
	}
	return s
}

// ApplyStore copies analysed types back onto the symbols and recomputes
// the types of queries from their defining expressions.
func (t *Table) ApplyStore(s typecheck.Store) error {
	for _, v := range t.vars {
		v.Type = s.Get(v.Name)
	}
	for _, r := range t.relations {
		r.Type = s.Get(r.Name)
	}
	for _, m := range t.maps {
		m.Type = s.Get(m.Name)
	}
	for _, q := range t.Queries() {
		if q.Node == nil {
			continue
		}
		typ, err := typecheck.ExprType(q.Node, s)
		if err != nil {
			return fmt.Errorf("query %s: %w", q.Name, err)
		}
		q.Type = typ
	}
	return nil
}

// AnalyzeExprType returns the type of e under the current symbol types.
func (t *Table) AnalyzeExprType(e incast.Expr) (types.Type, error) {
	return typecheck.ExprType(e, t.Store())
}
