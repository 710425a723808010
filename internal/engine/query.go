package engine

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/rt"
)

// evalComp evaluates a comprehension from scratch by nested-loop join.
//
// Each clause binds its enumeration variables in a fresh child scope. A
// variable already bound in an enclosing scope, whether by an earlier
// clause or as a query parameter, constrains the clause instead of being
// rebound.
func (e *Engine) evalComp(s *scope, comp *incast.Comp) (rt.Value, error) {
	result := rt.NewSet()
	err := e.enumerate(s, comp.Clauses, func(inner *scope) error {
		v, err := e.eval(inner, comp.Resexp)
		if err != nil {
			return err
		}
		result.Update([]rt.Value{v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) enumerate(s *scope, clauses []incast.Clause, emit func(*scope) error) error {
	if len(clauses) == 0 {
		return emit(s)
	}
	rest := clauses[1:]

	switch cl := clauses[0].(type) {
	case *incast.Cond:
		v, err := e.eval(s, cl.Cond)
		if err != nil {
			return err
		}
		if !rt.Truthy(v) {
			return nil
		}
		return e.enumerate(s, rest, emit)

	case *incast.SingMember:
		v, err := e.eval(s, cl.Value)
		if err != nil {
			return err
		}
		return e.bindEach(s, cl.Vars, []rt.Value{v}, rest, emit)

	case *incast.RelMember:
		rel, ok := e.globals.lookup(cl.Rel)
		if !ok {
			return e.errorf(ErrCodeUnknownName, "undefined relation %s", cl.Rel)
		}
		elems, err := rt.Elements(rel)
		if err != nil {
			return e.errorf(ErrCodeType, "%v", err)
		}
		return e.bindEach(s, cl.Vars, elems, rest, emit)

	case *incast.VarsMember:
		elems, err := e.iterate(s, cl.Iter)
		if err != nil {
			return err
		}
		if len(cl.Vars) == 1 {
			for i, el := range elems {
				if _, ok := el.(rt.Tuple); !ok {
					elems[i] = rt.Tuple{el}
				}
			}
		}
		return e.bindEach(s, cl.Vars, elems, rest, emit)

	case *incast.MapMember:
		m, err := e.globalMap(cl.Map)
		if err != nil {
			return err
		}
		keys := m.Keys()
		pairs := make([]rt.Value, len(keys))
		for i, k := range keys {
			v, _ := m.Get(k)
			pairs[i] = rt.Tuple{k, v}
		}
		return e.bindEach(s, []string{cl.Key, cl.Value}, pairs, rest, emit)
	}
	return e.errorf(ErrCodeUnsupported, "cannot enumerate clause %T", clauses[0])
}

func (e *Engine) bindEach(s *scope, vars []string, elems []rt.Value, rest []incast.Clause, emit func(*scope) error) error {
	for _, el := range elems {
		child := newScope(s)
		ok, err := bindPattern(child, vars, el)
		if err != nil {
			re := err.(*RuntimeError)
			re.Func = e.curFunc
			return re
		}
		if !ok {
			continue
		}
		if err := e.enumerate(child, rest, emit); err != nil {
			return err
		}
	}
	return nil
}

// evalAggr evaluates an aggregate from scratch. A restricted aggregate
// has the same value as the plain one for the keys it is demanded at.
func (e *Engine) evalAggr(s *scope, op incast.AggrOp, operand incast.Expr) (rt.Value, error) {
	v, err := e.eval(s, operand)
	if err != nil {
		return nil, err
	}
	var r rt.Value
	switch op {
	case incast.Count:
		r, err = rt.Count(v)
	case incast.Sum:
		r, err = rt.Sum(v)
	case incast.Min:
		r, err = rt.Min(v)
	case incast.Max:
		r, err = rt.Max(v)
	default:
		return nil, e.errorf(ErrCodeUnsupported, "aggregate %s", op)
	}
	if err != nil {
		return nil, e.errorf(ErrCodeType, "%v", err)
	}
	return r, nil
}
