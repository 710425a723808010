package symtab

import (
	"github.com/roach88/incoq/internal/incast"
)

// LHSVars returns the variables a clause binds, in order.
func LHSVars(c incast.Clause) []string {
	switch c := c.(type) {
	case *incast.RelMember:
		return c.Vars
	case *incast.SingMember:
		return c.Vars
	case *incast.VarsMember:
		return c.Vars
	case *incast.MapMember:
		return []string{c.Key, c.Value}
	}
	return nil
}

// UnconLHSVars returns the variables a clause can enumerate without any
// other variable being bound. For a map it is only the key.
func UnconLHSVars(c incast.Clause) []string {
	switch c := c.(type) {
	case *incast.RelMember:
		return c.Vars
	case *incast.VarsMember:
		return c.Vars
	case *incast.MapMember:
		return []string{c.Key}
	}
	return nil
}

// UnconLHSVarsFromComp returns the union of the unconstrained variables of
// comp's clauses, in order of first appearance.
func UnconLHSVarsFromComp(comp *incast.Comp) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range comp.Clauses {
		for _, v := range UnconLHSVars(c) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// LHSVarsFromComp returns every variable bound by comp's clauses.
func LHSVarsFromComp(comp *incast.Comp) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range comp.Clauses {
		for _, v := range LHSVars(c) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// RenameLHSVars renames every clause-bound variable of comp, including
// its uses in conditions and the result expression. Free variables are
// left alone.
func RenameLHSVars(comp *incast.Comp, rename func(string) string) *incast.Comp {
	bound := make(map[string]string)
	for _, v := range LHSVarsFromComp(comp) {
		bound[v] = rename(v)
	}
	return incast.RenameVars(comp, incast.RenameMap(bound)).(*incast.Comp)
}

// ClauseRel returns the relation kind of a clause: the relation or map
// name, the iterated variable's name, or "vars" for other iterables.
func ClauseRel(c incast.Clause) string {
	switch c := c.(type) {
	case *incast.RelMember:
		return c.Rel
	case *incast.MapMember:
		return c.Map
	case *incast.VarsMember:
		if n, ok := c.Iter.(*incast.Name); ok {
			return n.Ident
		}
		return "vars"
	case *incast.SingMember:
		return "sing"
	}
	return "cond"
}
