package typecheck

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/types"
)

var (
	setOfTop  = types.NewSet(types.Top)
	listOfTop = types.NewList(types.Top)
	mapOfTop  = types.NewMap(types.Top, types.Top)
)

// stepper performs one pass over the tree.
type stepper struct {
	store       Store
	heightLimit int
	funs        map[string]*incast.Fun

	changed  bool
	illtyped []incast.Node
	marked   map[incast.NodeID]bool
	err      error
}

func newStepper(store Store, heightLimit int) *stepper {
	return &stepper{
		store:       store,
		heightLimit: heightLimit,
		funs:        make(map[string]*incast.Fun),
		marked:      make(map[incast.NodeID]bool),
	}
}

// update joins t into the type of name and returns the new type.
func (s *stepper) update(name string, t types.Type) types.Type {
	old := s.store.Get(name)
	nt := types.Join(old, t)
	if s.heightLimit > 0 {
		nt = types.Widen(nt, s.heightLimit)
	}
	if !nt.Equal(old) {
		s.store[name] = nt
		s.changed = true
	}
	return nt
}

func (s *stepper) mark(n incast.Node) {
	if s.marked[n.ID()] {
		return
	}
	s.marked[n.ID()] = true
	s.illtyped = append(s.illtyped, n)
}

// check marks n unless t <= upper.
func (s *stepper) check(n incast.Node, t, upper types.Type) {
	if !types.IsSmaller(t, upper) {
		s.mark(n)
	}
}

func (s *stepper) fail(n incast.Node, format string, args ...any) {
	if s.err == nil {
		s.err = incast.Errorf(n, format, args...)
	}
}

// refines reports whether t claims to be below upper without being Bottom
// or an instance of the constructor named by isInstance.
func refines(t, upper types.Type, isInstance func(types.Type) bool) bool {
	return !t.Equal(types.Bottom) && !isInstance(t) && types.IsSmaller(t, upper)
}

func isSet(t types.Type) bool {
	_, ok := t.(types.Set)
	return ok
}

func isList(t types.Type) bool {
	_, ok := t.(types.List)
	return ok
}

func isMap(t types.Type) bool {
	_, ok := t.(types.Map)
	return ok
}

func isTuple(t types.Type) bool {
	_, ok := t.(types.Tuple)
	return ok
}

func tupleOfTop(n int) types.Type {
	elts := make([]types.Type, n)
	for i := range elts {
		elts[i] = types.Top
	}
	return types.NewTuple(elts...)
}

// elementOf returns the element type of an iterated value of type t. With
// setOnly, Lists are treated like any other non-collection type.
func (s *stepper) elementOf(n incast.Node, t types.Type, setOnly bool) types.Type {
	switch tt := t.(type) {
	case types.Set:
		return tt.Elt
	case types.List:
		if !setOnly {
			return tt.Elt
		}
	}
	if t.Equal(types.Bottom) {
		return types.Bottom
	}
	if refines(t, setOfTop, isSet) || (!setOnly && refines(t, listOfTop, isList)) {
		s.fail(n, "type %s is a subtype of a collection type but not an instance of it", t)
		return types.Top
	}
	s.mark(n)
	return types.Top
}

// decompose assigns the components of a tuple type t to vars.
func (s *stepper) decompose(n incast.Node, vars []string, t types.Type) {
	if t.Equal(types.Bottom) {
		for _, v := range vars {
			s.update(v, types.Bottom)
		}
		return
	}
	if tt, ok := t.(types.Tuple); ok && len(tt.Elts) == len(vars) {
		for i, v := range vars {
			s.update(v, tt.Elts[i])
		}
		return
	}
	if refines(t, tupleOfTop(len(vars)), isTuple) {
		s.fail(n, "type %s is a subtype of Tuple but not an instance of it", t)
	}
	s.mark(n)
	for _, v := range vars {
		s.update(v, types.Top)
	}
}

func (s *stepper) node(n incast.Node) {
	switch n := n.(type) {
	case *incast.Module:
		for _, d := range n.Decls {
			if f, ok := d.(*incast.Fun); ok {
				s.funs[f.Name] = f
			}
		}
		s.stmts(n.Decls)
	case incast.Stmt:
		s.stmt(n)
	case incast.Expr:
		s.read(n)
	case incast.Clause:
		s.clause(n)
	}
}

func (s *stepper) stmts(ss []incast.Stmt) {
	for _, st := range ss {
		s.stmt(st)
	}
}

func (s *stepper) stmt(n incast.Stmt) {
	switch n := n.(type) {
	case *incast.Fun:
		s.stmts(n.Body)
	case *incast.For:
		s.update(n.Target, s.elementOf(n, s.read(n.Iter), false))
		s.stmts(n.Body)
	case *incast.DecompFor:
		s.decompose(n, n.Vars, s.elementOf(n, s.read(n.Iter), false))
		s.stmts(n.Body)
	case *incast.While:
		s.check(n, s.read(n.Test), types.Bool)
		s.stmts(n.Body)
	case *incast.If:
		s.check(n, s.read(n.Test), types.Bool)
		s.stmts(n.Body)
		s.stmts(n.Orelse)
	case *incast.Pass, *incast.Break, *incast.Continue:
	case *incast.Return:
		if n.Value != nil {
			s.read(n.Value)
		}
	case *incast.ExprStmt:
		s.read(n.Value)
	case *incast.Assign:
		s.update(n.Target, s.read(n.Value))
	case *incast.DecompAssign:
		s.decompose(n, n.Vars, s.read(n.Value))
	case *incast.SetUpdate:
		val := s.read(n.Value)
		if n.Op.Bulk() {
			s.check(n, val, setOfTop)
			s.check(n, s.writeTarget(n.Target, val), setOfTop)
		} else {
			s.check(n, s.writeTarget(n.Target, types.NewSet(val)), setOfTop)
		}
	case *incast.SetClear:
		s.check(n, s.read(n.Target), setOfTop)
	case *incast.RelUpdate:
		s.update(n.Rel, types.NewSet(s.store.Get(n.Elem)))
	case *incast.RelClear:
		s.check(n, s.store.Get(n.Rel), setOfTop)
	case *incast.DictAssign:
		k := s.read(n.Key)
		v := s.read(n.Value)
		s.check(n, s.writeTarget(n.Target, types.NewMap(k, v)), mapOfTop)
	case *incast.DictDelete:
		k := s.read(n.Key)
		s.check(n, s.writeTarget(n.Target, types.NewMap(k, types.Bottom)), mapOfTop)
	case *incast.DictClear:
		s.check(n, s.read(n.Target), mapOfTop)
	case *incast.MapAssign:
		k := s.read(n.Key)
		v := s.read(n.Value)
		s.check(n, s.update(n.Map, types.NewMap(k, v)), mapOfTop)
	case *incast.MapDelete:
		k := s.read(n.Key)
		s.check(n, s.update(n.Map, types.NewMap(k, types.Bottom)), mapOfTop)
	case *incast.MapClear:
		s.check(n, s.store.Get(n.Map), mapOfTop)
	default:
		s.fail(n, "no type rule for statement %T", n)
	}
}

// writeTarget writes t into e when e may appear in write context.
// Anything else is marked and only read.
func (s *stepper) writeTarget(e incast.Expr, t types.Type) types.Type {
	w, ok := e.(incast.Writable)
	if !ok {
		s.mark(e)
		return s.read(e)
	}
	return s.write(w, t)
}

// write propagates t into w and returns the target's resulting type.
func (s *stepper) write(w incast.Writable, t types.Type) types.Type {
	switch w := w.(type) {
	case *incast.Name:
		return s.update(w.Ident, t)
	case *incast.DictLookup:
		s.read(w.Key)
		s.writeTarget(w.Value, types.NewMap(types.Bottom, t))
		return s.read(w)
	}
	s.fail(w, "no write rule for expression %T", w)
	return types.Top
}

func (s *stepper) exprs(es []incast.Expr) []types.Type {
	out := make([]types.Type, len(es))
	for i, e := range es {
		out[i] = s.read(e)
	}
	return out
}

func joinAll(ts []types.Type) types.Type {
	return types.Join(types.Bottom, ts...)
}

// read returns the type of an expression evaluated in the current store.
func (s *stepper) read(e incast.Expr) types.Type {
	switch e := e.(type) {
	case *incast.Name:
		return s.store.Get(e.Ident)
	case *incast.Num:
		return types.Number
	case *incast.Str:
		return types.String
	case *incast.Bool:
		return types.Bool
	case *incast.None:
		return types.Top
	case *incast.Tuple:
		return types.NewTuple(s.exprs(e.Elts)...)
	case *incast.List:
		return types.NewList(joinAll(s.exprs(e.Elts)))
	case *incast.SetLit:
		return types.NewSet(joinAll(s.exprs(e.Elts)))

	case *incast.UnaryOp:
		t := s.read(e.Operand)
		if e.Op == incast.Not {
			s.check(e, t, types.Bool)
			return types.Bool
		}
		s.check(e, t, types.Number)
		return types.Number
	case *incast.BoolOp:
		for _, t := range s.exprs(e.Values) {
			s.check(e, t, types.Bool)
		}
		return types.Bool
	case *incast.BinOp:
		return types.Join(s.read(e.Left), s.read(e.Right))
	case *incast.Compare:
		s.read(e.Left)
		s.read(e.Right)
		return types.Bool
	case *incast.IfExp:
		s.check(e, s.read(e.Test), types.Bool)
		return types.Join(s.read(e.Body), s.read(e.Orelse))

	case *incast.Call:
		return s.call(e)
	case *incast.GeneralCall:
		s.read(e.Func)
		s.exprs(e.Args)
		return types.Top
	case *incast.Attribute:
		s.read(e.Value)
		return types.Top
	case *incast.Subscript:
		return s.subscript(e, s.read(e.Value), e.Index)
	case *incast.DictLookup:
		return s.lookup(e, s.read(e.Value), e.Key, e.Default)
	case *incast.MapLookup:
		return s.lookup(e, s.store.Get(e.Map), e.Key, e.Default)

	case *incast.ImgLookup:
		return s.imgLookup(e, s.read(e.Set))
	case *incast.SetFromMap:
		return s.setFromMap(e, s.store.Get(e.Map))
	case *incast.Unwrap:
		t := s.read(e.Value)
		if t.Equal(types.Bottom) {
			return types.Bottom
		}
		if st, ok := t.(types.Set); ok {
			if tt, ok := st.Elt.(types.Tuple); ok && len(tt.Elts) == 1 {
				return types.NewSet(tt.Elts[0])
			}
			if st.Elt.Equal(types.Bottom) {
				return st
			}
		}
		s.mark(e)
		return setOfTop
	case *incast.GetCount:
		s.read(e.Elem)
		s.check(e, s.store.Get(e.Rel), setOfTop)
		return types.Number

	case *incast.Comp:
		for _, c := range e.Clauses {
			s.clause(c)
		}
		return types.NewSet(s.read(e.Resexp))
	case *incast.Aggr:
		return s.aggr(e, e.Op, s.read(e.Value))
	case *incast.AggrRestr:
		s.read(e.Restr)
		return s.aggr(e, e.Op, s.read(e.Value))
	case *incast.Query:
		return s.read(e.Query)
	case *incast.FirstThen:
		s.read(e.First)
		return s.read(e.Then)
	}
	s.fail(e, "no type rule for expression %T", e)
	return types.Top
}

func (s *stepper) call(e *incast.Call) types.Type {
	args := s.exprs(e.Args)
	if f, ok := s.funs[e.Func]; ok {
		for i, a := range f.Args {
			if i < len(args) {
				s.update(a, args[i])
			}
		}
		return types.Top
	}
	switch e.Func {
	case "len", "count", "sum":
		return types.Number
	case "min", "max":
		if len(args) == 1 {
			return s.elementOf(e, args[0], false)
		}
		return joinAll(args)
	case "index":
		if len(e.Args) == 2 {
			return s.subscript(e, args[0], e.Args[1])
		}
	}
	return types.Top
}

func (s *stepper) subscript(e incast.Expr, t types.Type, index incast.Expr) types.Type {
	s.check(e, s.read(index), types.Number)
	switch tt := t.(type) {
	case types.List:
		return tt.Elt
	case types.Tuple:
		if num, ok := index.(*incast.Num); ok && num.Value >= 0 && int(num.Value) < len(tt.Elts) {
			return tt.Elts[num.Value]
		}
		return joinAll(tt.Elts)
	}
	if t.Equal(types.Bottom) {
		return types.Bottom
	}
	if refines(t, listOfTop, isList) {
		s.fail(e, "type %s is a subtype of List but not an instance of it", t)
		return types.Top
	}
	s.mark(e)
	return types.Top
}

func (s *stepper) lookup(e incast.Expr, t types.Type, key, dflt incast.Expr) types.Type {
	s.read(key)
	var res types.Type
	switch {
	case t.Equal(types.Bottom):
		res = types.Bottom
	case isMap(t):
		res = t.(types.Map).Value
	case refines(t, mapOfTop, isMap):
		s.fail(e, "type %s is a subtype of Map but not an instance of it", t)
		return types.Top
	default:
		s.mark(e)
		res = types.Top
	}
	if dflt != nil {
		res = types.Join(res, s.read(dflt))
	}
	return res
}

func (s *stepper) imgLookup(e *incast.ImgLookup, t types.Type) types.Type {
	elt := s.elementOf(e, t, true)
	if elt.Equal(types.Bottom) {
		return types.NewSet(types.Bottom)
	}
	tt, ok := elt.(types.Tuple)
	if !ok || len(tt.Elts) != len(e.Mask) {
		s.mark(e)
		out := make([]types.Type, e.Mask.Unbound())
		for i := range out {
			out[i] = types.Top
		}
		return types.NewSet(types.NewTuple(out...))
	}
	var out []types.Type
	for i, c := range e.Mask {
		if c == 'u' {
			out = append(out, tt.Elts[i])
		}
	}
	return types.NewSet(types.NewTuple(out...))
}

func (s *stepper) setFromMap(e *incast.SetFromMap, t types.Type) types.Type {
	if t.Equal(types.Bottom) {
		return types.NewSet(types.Bottom)
	}
	m, ok := t.(types.Map)
	if !ok {
		s.check(e, t, mapOfTop)
		return setOfTop
	}
	var keys []types.Type
	switch k := m.Key.(type) {
	case types.Tuple:
		keys = k.Elts
	default:
		if !m.Key.Equal(types.Bottom) {
			s.mark(e)
			return setOfTop
		}
		keys = make([]types.Type, e.Mask.Bound())
		for i := range keys {
			keys[i] = types.Bottom
		}
	}
	if len(keys) != e.Mask.Bound() || e.Mask.Unbound() != 1 {
		s.mark(e)
		return setOfTop
	}
	out := make([]types.Type, 0, len(e.Mask))
	next := 0
	for _, c := range e.Mask {
		if c == 'u' {
			out = append(out, m.Value)
			continue
		}
		out = append(out, keys[next])
		next++
	}
	return types.NewSet(types.NewTuple(out...))
}

func (s *stepper) aggr(e incast.Expr, op incast.AggrOp, t types.Type) types.Type {
	s.check(e, t, setOfTop)
	elt := types.ElementOf(t)
	switch op {
	case incast.Count:
		return types.Number
	case incast.Sum:
		if tt, ok := elt.(types.Tuple); ok && len(tt.Elts) == 1 {
			elt = tt.Elts[0]
		}
		s.check(e, elt, types.Number)
		return types.Number
	}
	return elt
}

func (s *stepper) clause(c incast.Clause) {
	switch c := c.(type) {
	case *incast.RelMember:
		t := s.store.Get(c.Rel)
		s.decompose(c, c.Vars, s.elementOf(c, t, true))
	case *incast.SingMember:
		s.decompose(c, c.Vars, s.read(c.Value))
	case *incast.VarsMember:
		s.decompose(c, c.Vars, s.elementOf(c, s.read(c.Iter), true))
	case *incast.MapMember:
		t := s.store.Get(c.Map)
		switch {
		case t.Equal(types.Bottom):
			s.update(c.Key, types.Bottom)
			s.update(c.Value, types.Bottom)
		case isMap(t):
			s.update(c.Key, t.(types.Map).Key)
			s.update(c.Value, t.(types.Map).Value)
		default:
			s.mark(c)
			s.update(c.Key, types.Top)
			s.update(c.Value, types.Top)
		}
	case *incast.Cond:
		s.check(c, s.read(c.Cond), types.Bool)
	default:
		s.fail(c, "no type rule for clause %T", c)
	}
}
