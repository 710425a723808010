// Package comp maintains comprehension queries incrementally. The value
// of a comprehension with parameters is kept in a counted result
// relation R_Q holding, for every derivation, the parameter values
// followed by the result components. Occurrences of the query become
// image lookups on R_Q.
package comp

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// normalizeClause rewrites a clause into the forms incrementalization
// handles: membership in a relation, or a condition. Iteration over a
// relation name or over an image of a relation becomes relation
// membership.
func normalizeClause(tab *symtab.Table, cl incast.Clause) (incast.Clause, error) {
	switch c := cl.(type) {
	case *incast.RelMember:
		if tab.Kind(c.Rel) != "relation" {
			return nil, incast.Errorf(c, "%s is not a relation", c.Rel)
		}
		return c, nil
	case *incast.Cond:
		for _, v := range incast.FindVars(c.Cond) {
			if k := tab.Kind(v); k == "relation" || k == "map" {
				return nil, incast.Errorf(c, "condition reads %s %s", k, v)
			}
		}
		if len(incast.FindQueries(c.Cond)) > 0 {
			return nil, incast.Errorf(c, "condition contains a query")
		}
		return c, nil
	case *incast.VarsMember:
		switch it := c.Iter.(type) {
		case *incast.Name:
			if tab.Kind(it.Ident) == "relation" {
				return &incast.RelMember{Vars: c.Vars, Rel: it.Ident}, nil
			}
		case *incast.ImgLookup:
			n, ok := it.Set.(*incast.Name)
			if !ok || tab.Kind(n.Ident) != "relation" {
				break
			}
			if len(c.Vars) != it.Mask.Unbound() || len(it.Bounds) != it.Mask.Bound() {
				return nil, incast.Errorf(c, "image lookup arity does not match its mask %q", it.Mask)
			}
			vars := make([]string, 0, len(it.Mask))
			bi, ui := 0, 0
			for _, m := range it.Mask {
				if m == 'b' {
					vars = append(vars, it.Bounds[bi])
					bi++
				} else {
					vars = append(vars, c.Vars[ui])
					ui++
				}
			}
			return &incast.RelMember{Vars: vars, Rel: n.Ident}, nil
		}
	}
	return nil, incast.Errorf(cl, "cannot incrementalize clause")
}

// normalizeComp normalizes every clause of comp and checks that each
// membership clause binds distinct variables and that every parameter
// is bound by some clause.
func normalizeComp(tab *symtab.Table, comp *incast.Comp, params []string) (*incast.Comp, error) {
	clauses := make([]incast.Clause, len(comp.Clauses))
	bound := make(map[string]bool)
	for i, cl := range comp.Clauses {
		nc, err := normalizeClause(tab, cl)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, v := range symtab.LHSVars(nc) {
			if seen[v] {
				return nil, incast.Errorf(cl, "variable %s occurs twice in one clause", v)
			}
			seen[v] = true
			bound[v] = true
		}
		clauses[i] = nc
	}
	for _, p := range params {
		if !bound[p] {
			return nil, incast.Errorf(comp, "parameter %s is not bound by any clause; demand it with demand_param_strat %q", p, symtab.All)
		}
	}
	return &incast.Comp{Resexp: comp.Resexp, Clauses: clauses}, nil
}

// resultElts returns the components of a result tuple: the parameters
// followed by the components of the result expression.
func resultElts(comp *incast.Comp, params []string) []incast.Expr {
	elts := make([]incast.Expr, 0, len(params)+1)
	for _, p := range params {
		elts = append(elts, incast.NewName(p))
	}
	if t, ok := comp.Resexp.(*incast.Tuple); ok {
		return append(elts, t.Elts...)
	}
	return append(elts, comp.Resexp)
}

// relations returns the distinct relations of comp's membership clauses
// in clause order.
func relations(comp *incast.Comp) []string {
	var out []string
	seen := make(map[string]bool)
	for _, cl := range comp.Clauses {
		if rm, ok := cl.(*incast.RelMember); ok && !seen[rm.Rel] {
			seen[rm.Rel] = true
			out = append(out, rm.Rel)
		}
	}
	return out
}

func maskFor(vars []string, bound map[string]bool) (incast.Mask, []string, []string) {
	mask := make([]byte, len(vars))
	var bs, us []string
	for i, v := range vars {
		if bound[v] {
			mask[i] = 'b'
			bs = append(bs, v)
		} else {
			mask[i] = 'u'
			us = append(us, v)
		}
	}
	return incast.Mask(mask), bs, us
}
