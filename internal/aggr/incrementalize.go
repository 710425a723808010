package aggr

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/maint"
	"github.com/roach88/incoq/internal/symtab"
)

// Incrementalize maintains the aggregate query sym as a map. It defines
// the map, adds its maintenance procedures to the module, inserts calls
// to them around the updates of the operand relation and its demand
// relation, and replaces every occurrence of the query by a map lookup.
func Incrementalize(tree incast.Node, tab *symtab.Table, sym *symtab.QuerySymbol) (incast.Node, error) {
	inv, err := InvariantFromQuery(tab, sym, symtab.AggrMapName(sym.Name))
	if err != nil {
		return nil, err
	}
	rel, _ := tab.Relation(inv.Rel)
	if _, err := tab.DefineMap(inv.Map, inv.MapType(rel.Type)); err != nil {
		return nil, incast.Errorf(sym.Node, "%v", err)
	}

	add, err := MakeMaintFunc(tab.Fresh, inv, incast.RelAdd)
	if err != nil {
		return nil, err
	}
	remove, err := MakeMaintFunc(tab.Fresh, inv, incast.RelRemove)
	if err != nil {
		return nil, err
	}
	funcs := []incast.Stmt{add, remove}
	maintainers := []*maint.Maintainer{{
		Rel:    inv.Rel,
		Add:    add.Name,
		Remove: remove.Name,
		Clear:  []incast.Stmt{&incast.MapClear{Map: inv.Map}},
	}}
	if inv.Restr != "" {
		demandAdd, err := MakeDemandMaintFunc(tab.Fresh, inv)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, demandAdd)
		maintainers = append(maintainers, &maint.Maintainer{Rel: inv.Restr, Add: demandAdd.Name})
	}

	for _, m := range maintainers {
		tree = m.Run(tree)
	}
	module, ok := maint.Prepend(tree, funcs...)
	if !ok {
		return nil, incast.Errorf(sym.Node, "aggregate %s must be incrementalized in a module", sym.Name)
	}

	key := incast.Tuplify(inv.Params)
	out := maint.ReplaceQuery(module, tab, sym.Name, func(*incast.Query) incast.Expr {
		return LookupExpr(inv, key)
	})
	sym.Result = inv.Map
	return out, nil
}
