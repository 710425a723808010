// Package aggr maintains aggregate queries incrementally. An aggregate
// over a relation becomes a map from group keys to running state, kept
// up to date by procedures called around every update of the relation.
package aggr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
	"github.com/roach88/incoq/internal/types"
)

// Invariant describes one maintained aggregate: Map holds, for every
// group of Rel's tuples that agree on the bound positions of Mask, the
// state of Op over the unbound positions. Params name the bound
// positions at the query's occurrences.
type Invariant struct {
	Map    string
	Op     incast.AggrOp
	Rel    string
	Mask   incast.Mask
	Params []string

	// Restr names the demand relation of a restricted aggregate. Only the
	// groups of its members are maintained. Empty when unrestricted.
	Restr string
	// Operand evaluates to the elements of one group, with Params free.
	// It is used to compute a group from scratch when it gains demand.
	Operand incast.Expr
}

func (inv *Invariant) String() string {
	s := fmt.Sprintf("%s = %s(%s, %q, (%s))", inv.Map, inv.Op, inv.Rel, inv.Mask, strings.Join(inv.Params, ", "))
	if inv.Restr != "" {
		s += " restr " + inv.Restr
	}
	return s
}

// stripFirstThen returns the value part of nested FirstThen wrappers.
func stripFirstThen(e incast.Expr) incast.Expr {
	for {
		ft, ok := e.(*incast.FirstThen)
		if !ok {
			return e
		}
		e = ft.Then
	}
}

// relArity returns the tuple arity of a relation's element type.
func relArity(tab *symtab.Table, rel string) (int, error) {
	sym, ok := tab.Relation(rel)
	if !ok {
		return 0, fmt.Errorf("aggregate operand %s is not a relation", rel)
	}
	if st, ok := sym.Type.(types.Set); ok {
		if tt, ok := st.Elt.(types.Tuple); ok {
			return len(tt.Elts), nil
		}
	}
	return 0, fmt.Errorf("cannot determine tuple arity of relation %s of type %s", rel, sym.Type)
}

// InvariantFromQuery recognises the aggregate forms
//
//	op(R)
//	op(R.imglookup(mask, params))
//
// and their restricted forms produced by demand transformation, where
// the restriction is a demand set. A restriction by a demand query is
// ignored and the aggregate is maintained for every group.
func InvariantFromQuery(tab *symtab.Table, sym *symtab.QuerySymbol, mapName string) (*Invariant, error) {
	inv := &Invariant{Map: mapName}
	var value incast.Expr
	var restrParams []string
	switch node := sym.Node.(type) {
	case *incast.Aggr:
		inv.Op, value = node.Op, node.Value
	case *incast.AggrRestr:
		inv.Op, value = node.Op, node.Value
		if n, ok := node.Restr.(*incast.Name); ok {
			inv.Restr = n.Ident
			inv.Operand = node.Value
			restrParams = node.Params
		}
	default:
		return nil, incast.Errorf(sym.Node, "query %s is not an aggregate", sym.Name)
	}

	switch operand := stripFirstThen(value).(type) {
	case *incast.Name:
		arity, err := relArity(tab, operand.Ident)
		if err != nil {
			return nil, incast.Errorf(sym.Node, "%v", err)
		}
		inv.Rel = operand.Ident
		inv.Mask = incast.Mask(strings.Repeat("u", arity))
		inv.Params = []string{}
	case *incast.ImgLookup:
		n, ok := operand.Set.(*incast.Name)
		if !ok || tab.Kind(n.Ident) != "relation" {
			return nil, incast.Errorf(operand, "aggregate image lookup must be over a relation")
		}
		inv.Rel = n.Ident
		inv.Mask = operand.Mask
		inv.Params = append([]string{}, operand.Bounds...)
	default:
		return nil, incast.Errorf(sym.Node, "unsupported aggregate operand in query %s", sym.Name)
	}

	if inv.Restr != "" && !slices.Equal(restrParams, inv.Params) {
		return nil, incast.Errorf(sym.Node, "restricted aggregate %s must be grouped by its parameters %s",
			sym.Name, incast.Format(incast.Tuplify(restrParams)))
	}
	if inv.Op != incast.Count && inv.Mask.Unbound() != 1 {
		return nil, incast.Errorf(sym.Node, "%s aggregate needs exactly one value position, mask is %q", inv.Op, inv.Mask)
	}
	return inv, nil
}

// MapType returns the type of the invariant's map given the element
// type of its relation.
func (inv *Invariant) MapType(relType types.Type) types.Type {
	var elts []types.Type
	if st, ok := relType.(types.Set); ok {
		if tt, ok := st.Elt.(types.Tuple); ok && len(tt.Elts) == len(inv.Mask) {
			elts = tt.Elts
		}
	}
	var keys, vals []types.Type
	for i, c := range inv.Mask {
		t := types.Top
		if elts != nil {
			t = elts[i]
		}
		if c == 'b' {
			keys = append(keys, t)
		} else {
			vals = append(vals, t)
		}
	}
	key := types.NewTuple(keys...)
	switch inv.Op {
	case incast.Count:
		return types.NewMap(key, types.Number)
	case incast.Sum:
		return types.NewMap(key, types.NewTuple(types.Number, types.Number))
	}
	return types.NewMap(key, types.NewTuple(types.Top, types.Join(types.Bottom, vals...)))
}
