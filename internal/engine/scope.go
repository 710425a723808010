package engine

import (
	"fmt"

	"github.com/roach88/incoq/internal/rt"
)

// scope is one level of variable bindings. The module scope holds the
// globals; a function call gets a scope whose parent is the module
// scope, and a comprehension gets a scope whose parent is the scope it
// is evaluated in.
type scope struct {
	vars   map[string]rt.Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]rt.Value), parent: parent}
}

// lookup finds name in this scope or an enclosing one.
func (s *scope) lookup(name string) (rt.Value, bool) {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// set binds name in this scope.
func (s *scope) set(name string, v rt.Value) {
	s.vars[name] = v
}

// bindPattern binds vars to the components of a tuple value. A variable
// already bound in s or an enclosing scope is a constraint: the value
// must equal the bound one. It reports whether the value matched.
func bindPattern(s *scope, vars []string, v rt.Value) (bool, error) {
	t, ok := v.(rt.Tuple)
	if !ok || len(t) != len(vars) {
		return false, &RuntimeError{
			Code:    ErrCodeType,
			Message: fmt.Sprintf("cannot match %s against a pattern of arity %d", rt.Format(v), len(vars)),
		}
	}
	for i, name := range vars {
		if old, ok := s.lookup(name); ok {
			if !rt.Equal(old, t[i]) {
				return false, nil
			}
			continue
		}
		s.set(name, t[i])
	}
	return true, nil
}

// assignPattern destructures a tuple into vars, overwriting any previous
// bindings.
func assignPattern(s *scope, vars []string, v rt.Value) error {
	t, ok := v.(rt.Tuple)
	if !ok || len(t) != len(vars) {
		return &RuntimeError{
			Code:    ErrCodeType,
			Message: fmt.Sprintf("cannot unpack %s into %d variables", rt.Format(v), len(vars)),
		}
	}
	for i, name := range vars {
		s.set(name, t[i])
	}
	return nil
}
