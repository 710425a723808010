package comp

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

func name(id string) *incast.Name { return incast.NewName(id) }

// wrapper nests a body inside one clause's enumeration.
type wrapper func(body []incast.Stmt) []incast.Stmt

// enumerate returns the statements that run leaf once for every
// assignment satisfying the clauses other than skip, given that the
// variables in bound are already assigned. Clauses are enumerated in
// order; bound is updated with the variables they bind.
func enumerate(clauses []incast.Clause, skip int, bound map[string]bool, leaf []incast.Stmt) []incast.Stmt {
	var wrappers []wrapper
	for i, cl := range clauses {
		if i == skip {
			continue
		}
		switch c := cl.(type) {
		case *incast.Cond:
			wrappers = append(wrappers, func(body []incast.Stmt) []incast.Stmt {
				return []incast.Stmt{&incast.If{Test: incast.Clone(c.Cond), Body: body}}
			})
		case *incast.RelMember:
			mask, bs, us := maskFor(c.Vars, bound)
			for _, v := range us {
				bound[v] = true
			}
			switch {
			case len(us) == 0:
				wrappers = append(wrappers, func(body []incast.Stmt) []incast.Stmt {
					return []incast.Stmt{&incast.If{
						Test: incast.Cmp(incast.Tuplify(c.Vars), incast.In, name(c.Rel)),
						Body: body,
					}}
				})
			case len(bs) == 0:
				wrappers = append(wrappers, func(body []incast.Stmt) []incast.Stmt {
					return []incast.Stmt{&incast.DecompFor{Vars: c.Vars, Iter: name(c.Rel), Body: body}}
				})
			default:
				wrappers = append(wrappers, func(body []incast.Stmt) []incast.Stmt {
					return []incast.Stmt{&incast.DecompFor{
						Vars: us,
						Iter: &incast.ImgLookup{Set: name(c.Rel), Mask: mask, Bounds: bs},
						Body: body,
					}}
				})
			}
		}
	}
	body := leaf
	for i := len(wrappers) - 1; i >= 0; i-- {
		body = wrappers[i](body)
	}
	return body
}

// updateResult returns the statements that add or remove one derivation
// of result in the counted relation rel.
func updateResult(rel string, result string, op incast.RelUpdateOp) []incast.Stmt {
	if op == incast.RelAdd {
		return []incast.Stmt{&incast.If{
			Test:   incast.Cmp(name(result), incast.NotIn, name(rel)),
			Body:   []incast.Stmt{&incast.RelUpdate{Rel: rel, Op: incast.RelAdd, Elem: result}},
			Orelse: []incast.Stmt{&incast.RelUpdate{Rel: rel, Op: incast.RelIncCount, Elem: result}},
		}}
	}
	return []incast.Stmt{&incast.If{
		Test:   incast.Cmp(&incast.GetCount{Rel: rel, Elem: name(result)}, incast.Eq, incast.NewNum(1)),
		Body:   []incast.Stmt{&incast.RelUpdate{Rel: rel, Op: incast.RelRemove, Elem: result}},
		Orelse: []incast.Stmt{&incast.RelUpdate{Rel: rel, Op: incast.RelDecCount, Elem: result}},
	}}
}

// makeMaintFunc returns the procedure that updates result relation
// resultRel for one element added to or removed from rel. Additions are
// handled after the element is inserted and removals before it is
// deleted, so in both cases the derivations to count are those that use
// the element in at least one occurrence of rel.
//
// When rel occurs more than once, a derivation using the element in
// several occurrences would be found several times. The derivations are
// then first collected in a local set.
func makeMaintFunc(fresh *symtab.Fresh, comp *incast.Comp, params []string, resultRel, rel string, op incast.RelUpdateOp) *incast.Fun {
	prefix := fresh.NextPrefix()
	rename := func(v string) string { return prefix + v }
	comp = symtab.RenameLHSVars(comp, rename)
	renamed := make([]string, len(params))
	for i, p := range params {
		renamed[i] = rename(p)
	}

	result := prefix + "result"
	update := append([]incast.Stmt{
		&incast.Assign{Target: result, Value: &incast.Tuple{Elts: resultElts(comp, renamed)}},
	}, updateResult(resultRel, result, op)...)

	var occurrences []int
	for i, cl := range comp.Clauses {
		if rm, ok := cl.(*incast.RelMember); ok && rm.Rel == rel {
			occurrences = append(occurrences, i)
		}
	}

	occurrence := func(i int, leaf []incast.Stmt) []incast.Stmt {
		vars := comp.Clauses[i].(*incast.RelMember).Vars
		bound := make(map[string]bool, len(vars))
		for _, v := range vars {
			bound[v] = true
		}
		return append([]incast.Stmt{
			&incast.DecompAssign{Vars: vars, Value: name("_elem")},
		}, enumerate(comp.Clauses, i, bound, leaf)...)
	}

	var body []incast.Stmt
	if len(occurrences) == 1 {
		body = occurrence(occurrences[0], update)
	} else {
		das := prefix + "das"
		vars := symtab.LHSVarsFromComp(comp)
		collect := func() []incast.Stmt {
			return []incast.Stmt{&incast.If{
				Test: incast.Cmp(incast.Tuplify(vars), incast.NotIn, name(das)),
				Body: []incast.Stmt{&incast.SetUpdate{Target: name(das), Op: incast.SetAdd, Value: incast.Tuplify(vars)}},
			}}
		}
		body = []incast.Stmt{&incast.Assign{Target: das, Value: &incast.SetLit{}}}
		for _, i := range occurrences {
			body = append(body, occurrence(i, collect())...)
		}
		body = append(body, &incast.DecompFor{Vars: vars, Iter: name(das), Body: update})
	}

	return &incast.Fun{
		Name: symtab.MaintFuncName(resultRel, rel, string(op)),
		Args: []string{"_elem"},
		Body: body,
	}
}
