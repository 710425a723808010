package demand

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// StructureKind distinguishes tags from filters.
type StructureKind string

const (
	TagKind    StructureKind = "tag"
	FilterKind StructureKind = "filter"
)

// Structure is one node of the tag/filter chain of a comprehension.
//
// A tag at Index i holds the values a variable takes in clause i. A
// filter at Index i holds the part of the relation of clause i whose
// bound positions appear in the tags named by Deps.
type Structure struct {
	Kind   StructureKind
	Index  int
	Name   string
	Var    string // tags only
	Clause incast.Clause
	Deps   []string // filters only
}

func (s *Structure) String() string {
	if s.Kind == TagKind {
		return fmt.Sprintf("Tag(%d, %s, %s, %s)", s.Index, s.Name, s.Var, incast.Format(s.Clause))
	}
	return fmt.Sprintf("Filter(%d, %s, %s, [%s])", s.Index, s.Name, incast.Format(s.Clause), strings.Join(s.Deps, ", "))
}

// Rel returns the relation that holds the contents of s: R_<name> for a
// tag, the filter itself for a filter.
func (s *Structure) Rel() string {
	if s.Kind == TagKind {
		return symtab.ResultRelName(s.Name)
	}
	return s.Name
}

// StructureGenerator decomposes the clauses of a comprehension into
// tags and filters.
type StructureGenerator struct {
	comp  *incast.Comp
	query string

	Structs []*Structure
	// filterAt maps a clause index to the filter restricting it.
	filterAt map[int]*Structure
}

// NewStructureGenerator returns a generator for comp, naming its
// structures after query.
func NewStructureGenerator(comp *incast.Comp, query string) *StructureGenerator {
	return &StructureGenerator{comp: comp, query: query}
}

// filterable reports whether a clause can be restricted by a filter, and
// returns the variables whose tags restrict it.
func filterable(c incast.Clause) ([]string, bool) {
	switch c.(type) {
	case *incast.RelMember, *incast.MapMember:
		return symtab.UnconLHSVars(c), true
	}
	return nil, false
}

// MakeStructs fills Structs. The first clause is never filtered. Every
// later membership clause whose unconstrained variables are already
// tagged gets a filter depending on all of their tags, and each of its
// remaining variables is tagged over the filter. A structure identical
// to an earlier one, up to its counter, is not repeated.
func (g *StructureGenerator) MakeStructs() {
	g.Structs = nil
	g.filterAt = make(map[int]*Structure)
	tags := make(map[string][]string)
	counters := make(map[string]int)
	next := func(base string) int {
		counters[base]++
		return counters[base]
	}

	addTag := func(i int, v string, cl incast.Clause) {
		for _, s := range g.Structs {
			if s.Kind == TagKind && s.Var == v && incast.Equal(s.Clause, cl) {
				return
			}
		}
		name := symtab.TagName(g.query, v, next("T_"+v))
		g.Structs = append(g.Structs, &Structure{Kind: TagKind, Index: i, Name: name, Var: v, Clause: cl})
		tags[v] = append(tags[v], name)
	}

	for i, cl := range g.comp.Clauses {
		vars := symtab.LHSVars(cl)
		if len(vars) == 0 {
			continue
		}
		uncon, ok := filterable(cl)
		var deps []string
		depVars := make(map[string]bool)
		if ok && i > 0 {
			for _, v := range uncon {
				if len(tags[v]) > 0 {
					depVars[v] = true
					deps = append(deps, tags[v]...)
				}
			}
		}
		if len(deps) == 0 {
			for _, v := range vars {
				addTag(i, v, cl)
			}
			continue
		}

		rel := symtab.ClauseRel(cl)
		var filter *Structure
		for _, s := range g.Structs {
			if s.Kind == FilterKind && incast.Equal(s.Clause, cl) && slices.Equal(s.Deps, deps) {
				filter = s
			}
		}
		if filter == nil {
			name := symtab.FilterName(g.query, rel, next("d_"+rel))
			filter = &Structure{Kind: FilterKind, Index: i, Name: name, Clause: cl, Deps: deps}
			g.Structs = append(g.Structs, filter)
		}
		g.filterAt[i] = filter
		filtered := &incast.RelMember{Vars: vars, Rel: filter.Name}
		for _, v := range vars {
			if !depVars[v] {
				addTag(i, v, filtered)
			}
		}
	}
}

// SimplifyNames drops the counter suffix of every structure name that
// is the only one with its base, and updates references to it.
func (g *StructureGenerator) SimplifyNames() {
	bases := make(map[string]int)
	for _, s := range g.Structs {
		bases[symtab.TrimCounter(s.Name)]++
	}
	rename := make(map[string]string)
	for _, s := range g.Structs {
		if base := symtab.TrimCounter(s.Name); bases[base] == 1 && base != s.Name {
			rename[s.Name] = base
		}
	}
	if len(rename) == 0 {
		return
	}
	for _, s := range g.Structs {
		if r, ok := rename[s.Name]; ok {
			s.Name = r
		}
		for i, d := range s.Deps {
			if r, ok := rename[d]; ok {
				s.Deps[i] = r
			}
		}
		if rm, ok := s.Clause.(*incast.RelMember); ok {
			if r, ok := rename[rm.Rel]; ok {
				s.Clause = &incast.RelMember{Vars: rm.Vars, Rel: r}
			}
		}
	}
}

// Lookup returns the structure with the given name.
func (g *StructureGenerator) Lookup(name string) (*Structure, bool) {
	for _, s := range g.Structs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// MakeComp returns the comprehension that computes the contents of s
// from scratch. Tag relations are referenced through their result
// relations R_<tag>.
func (g *StructureGenerator) MakeComp(s *Structure) (*incast.Comp, error) {
	switch s.Kind {
	case TagKind:
		return &incast.Comp{
			Resexp:  incast.Tuplify([]string{s.Var}),
			Clauses: []incast.Clause{s.Clause},
		}, nil
	case FilterKind:
		var clauses []incast.Clause
		for _, d := range s.Deps {
			tag, ok := g.Lookup(d)
			if !ok || tag.Kind != TagKind {
				return nil, fmt.Errorf("filter %s depends on unknown tag %s", s.Name, d)
			}
			clauses = append(clauses, &incast.RelMember{Vars: []string{tag.Var}, Rel: symtab.ResultRelName(tag.Name)})
		}
		clauses = append(clauses, s.Clause)
		return &incast.Comp{
			Resexp:  incast.Tuplify(symtab.LHSVars(s.Clause)),
			Clauses: clauses,
		}, nil
	}
	return nil, fmt.Errorf("unknown structure kind %q", s.Kind)
}

// MakeFilterList returns the clauses of the comprehension with every
// filtered clause replaced by membership in its filter.
func (g *StructureGenerator) MakeFilterList() []incast.Clause {
	out := make([]incast.Clause, len(g.comp.Clauses))
	for i, cl := range g.comp.Clauses {
		if f, ok := g.filterAt[i]; ok {
			out[i] = &incast.RelMember{Vars: symtab.LHSVars(cl), Rel: f.Name}
		} else {
			out[i] = cl
		}
	}
	return out
}

// FilterComp returns the comprehension rewritten to range over its
// filters, in the order MakeFilterList gives.
func (g *StructureGenerator) FilterComp() *incast.Comp {
	return &incast.Comp{Resexp: g.comp.Resexp, Clauses: g.MakeFilterList()}
}
