package engine

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/rt"
)

func (e *Engine) eval(s *scope, x incast.Expr) (rt.Value, error) {
	switch n := x.(type) {
	case *incast.Name:
		v, ok := s.lookup(n.Ident)
		if !ok {
			return nil, e.errorf(ErrCodeUnknownName, "undefined variable %s", n.Ident)
		}
		return v, nil
	case *incast.Num:
		return n.Value, nil
	case *incast.Str:
		return n.Value, nil
	case *incast.Bool:
		return n.Value, nil
	case *incast.None:
		return rt.None, nil
	case *incast.Tuple:
		return e.evalAll(s, n.Elts)
	case *incast.List:
		return e.evalAll(s, n.Elts)
	case *incast.SetLit:
		elts, err := e.evalAll(s, n.Elts)
		if err != nil {
			return nil, err
		}
		return rt.NewSet(elts...), nil

	case *incast.UnaryOp:
		v, err := e.eval(s, n.Operand)
		if err != nil {
			return nil, err
		}
		if n.Op == incast.Not {
			return !rt.Truthy(v), nil
		}
		i, err := e.intOf(v)
		if err != nil {
			return nil, err
		}
		return -i, nil

	case *incast.BoolOp:
		var v rt.Value = true
		for _, operand := range n.Values {
			var err error
			if v, err = e.eval(s, operand); err != nil {
				return nil, err
			}
			if rt.Truthy(v) == (n.Op == incast.Or) {
				return v, nil
			}
		}
		return v, nil

	case *incast.BinOp:
		l, r, err := e.evalPair(s, n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return e.binop(n.Op, l, r)

	case *incast.Compare:
		l, r, err := e.evalPair(s, n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return e.compare(n.Op, l, r)

	case *incast.IfExp:
		t, err := e.eval(s, n.Test)
		if err != nil {
			return nil, err
		}
		if rt.Truthy(t) {
			return e.eval(s, n.Body)
		}
		return e.eval(s, n.Orelse)

	case *incast.Call:
		args, err := e.evalAll(s, n.Args)
		if err != nil {
			return nil, err
		}
		return e.callFunc(n.Func, args)

	case *incast.Attribute:
		v, err := e.eval(s, n.Value)
		if err != nil {
			return nil, err
		}
		o, ok := v.(*rt.Object)
		if !ok {
			return nil, e.errorf(ErrCodeType, "%s has no attribute %s", rt.Format(v), n.Attr)
		}
		f, ok := o.Get(n.Attr)
		if !ok {
			return nil, e.errorf(ErrCodeUnknownName, "object has no field %s", n.Attr)
		}
		return f, nil

	case *incast.Subscript:
		v, i, err := e.evalPair(s, n.Value, n.Index)
		if err != nil {
			return nil, err
		}
		return e.subscript(v, i)

	case *incast.DictLookup:
		m, err := e.evalMap(s, n.Value)
		if err != nil {
			return nil, err
		}
		return e.lookup(s, m, n.Key, n.Default)

	case *incast.MapLookup:
		m, err := e.globalMap(n.Map)
		if err != nil {
			return nil, err
		}
		return e.lookup(s, m, n.Key, n.Default)

	case *incast.ImgLookup:
		return e.imgLookup(s, n)

	case *incast.SetFromMap:
		m, err := e.globalMap(n.Map)
		if err != nil {
			return nil, err
		}
		set, err := m.SetFromMap(string(n.Mask))
		if err != nil {
			return nil, e.fail(err)
		}
		return set, nil

	case *incast.Unwrap:
		v, err := e.eval(s, n.Value)
		if err != nil {
			return nil, err
		}
		set, err := rt.Unwrap(v)
		if err != nil {
			return nil, e.fail(err)
		}
		return set, nil

	case *incast.GetCount:
		rel, ok := e.globals.lookup(n.Rel)
		if !ok {
			return nil, e.errorf(ErrCodeUnknownName, "undefined relation %s", n.Rel)
		}
		cs, ok := rel.(*rt.CSet)
		if !ok {
			return nil, e.errorf(ErrCodeType, "%s is not a counted relation", n.Rel)
		}
		elem, err := e.eval(s, n.Elem)
		if err != nil {
			return nil, err
		}
		return int64(cs.GetCount(elem)), nil

	case *incast.Comp:
		return e.evalComp(s, n)
	case *incast.Aggr:
		return e.evalAggr(s, n.Op, n.Value)
	case *incast.AggrRestr:
		return e.evalAggr(s, n.Op, n.Value)
	case *incast.Query:
		return e.eval(s, n.Query)

	case *incast.FirstThen:
		if _, err := e.eval(s, n.First); err != nil {
			return nil, err
		}
		return e.eval(s, n.Then)
	}
	return nil, e.errorf(ErrCodeUnsupported, "cannot evaluate %T", x)
}

func (e *Engine) evalAll(s *scope, xs []incast.Expr) (rt.Tuple, error) {
	out := make(rt.Tuple, len(xs))
	for i, x := range xs {
		v, err := e.eval(s, x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Engine) intOf(v rt.Value) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, e.errorf(ErrCodeType, "%s is not a number", rt.Format(v))
}

func (e *Engine) binop(op incast.BinOpKind, l, r rt.Value) (rt.Value, error) {
	if op == incast.Add {
		switch a := l.(type) {
		case string:
			if b, ok := r.(string); ok {
				return a + b, nil
			}
		case rt.Tuple:
			if b, ok := r.(rt.Tuple); ok {
				return append(append(rt.Tuple{}, a...), b...), nil
			}
		}
	}
	a, err := e.intOf(l)
	if err != nil {
		return nil, err
	}
	b, err := e.intOf(r)
	if err != nil {
		return nil, err
	}
	switch op {
	case incast.Add:
		return a + b, nil
	case incast.Sub:
		return a - b, nil
	case incast.Mult:
		return a * b, nil
	case incast.Div, incast.Mod:
		if b == 0 {
			return nil, e.errorf(ErrCodeType, "integer division by zero")
		}
		q, m := a/b, a%b
		// Floor semantics: the remainder takes the sign of the divisor.
		if m != 0 && (m < 0) != (b < 0) {
			q--
			m += b
		}
		if op == incast.Div {
			return q, nil
		}
		return m, nil
	}
	return nil, e.errorf(ErrCodeUnsupported, "operator %s", op)
}

func (e *Engine) compare(op incast.CmpOp, l, r rt.Value) (rt.Value, error) {
	switch op {
	case incast.Eq:
		return rt.Equal(l, r), nil
	case incast.NotEq:
		return !rt.Equal(l, r), nil
	case incast.Lt:
		return rt.Compare(l, r) < 0, nil
	case incast.LtE:
		return rt.Compare(l, r) <= 0, nil
	case incast.Gt:
		return rt.Compare(l, r) > 0, nil
	case incast.GtE:
		return rt.Compare(l, r) >= 0, nil
	case incast.In, incast.NotIn:
		in, err := e.contains(r, l)
		if err != nil {
			return nil, err
		}
		return in == (op == incast.In), nil
	}
	return nil, e.errorf(ErrCodeUnsupported, "comparison %s", op)
}

func (e *Engine) contains(coll, v rt.Value) (bool, error) {
	switch c := coll.(type) {
	case *rt.Set:
		return c.Contains(v), nil
	case *rt.CSet:
		return c.Contains(v), nil
	case *rt.Map:
		return c.Has(v), nil
	case rt.Tuple:
		for _, x := range c {
			if rt.Equal(x, v) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, e.errorf(ErrCodeType, "%s is not a collection", rt.Format(coll))
}

func (e *Engine) subscript(v, i rt.Value) (rt.Value, error) {
	switch c := v.(type) {
	case rt.Tuple:
		idx, err := e.intOf(i)
		if err != nil {
			return nil, err
		}
		x, err := rt.Index(c, idx)
		if err != nil {
			return nil, e.errorf(ErrCodeType, "%v", err)
		}
		return x, nil
	case *rt.Map:
		x, ok := c.Get(i)
		if !ok {
			return nil, e.errorf(ErrCodeContract, "key %s not in map", rt.Format(i))
		}
		return x, nil
	}
	return nil, e.errorf(ErrCodeType, "%s is not subscriptable", rt.Format(v))
}

// lookup reads key from m. A nil default makes a missing key an error.
func (e *Engine) lookup(s *scope, m *rt.Map, key, def incast.Expr) (rt.Value, error) {
	k, err := e.eval(s, key)
	if err != nil {
		return nil, err
	}
	if def == nil {
		v, ok := m.Get(k)
		if !ok {
			return nil, e.errorf(ErrCodeContract, "key %s not in map", rt.Format(k))
		}
		return v, nil
	}
	d, err := e.eval(s, def)
	if err != nil {
		return nil, err
	}
	return m.Lookup(k, d), nil
}

func (e *Engine) imgLookup(s *scope, n *incast.ImgLookup) (rt.Value, error) {
	v, err := e.eval(s, n.Set)
	if err != nil {
		return nil, err
	}
	bounds := make(rt.Tuple, len(n.Bounds))
	for i, b := range n.Bounds {
		bv, ok := s.lookup(b)
		if !ok {
			return nil, e.errorf(ErrCodeUnknownName, "undefined variable %s", b)
		}
		bounds[i] = bv
	}
	var img *rt.Set
	switch c := v.(type) {
	case *rt.Set:
		img, err = c.ImgLookup(string(n.Mask), bounds)
	case *rt.CSet:
		img, err = c.ImgLookup(string(n.Mask), bounds)
	default:
		return nil, e.errorf(ErrCodeType, "%s is not a relation", rt.Format(v))
	}
	if err != nil {
		return nil, e.fail(err)
	}
	return img, nil
}
