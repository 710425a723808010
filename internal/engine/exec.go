package engine

import (
	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/rt"
)

type flowKind int

const (
	flowNext flowKind = iota
	flowBreak
	flowContinue
	flowReturn
)

// flow is the control-flow outcome of executing a statement.
type flow struct {
	kind  flowKind
	value rt.Value
}

var next = flow{}

// callFunc calls a module function or a builtin.
func (e *Engine) callFunc(name string, args []rt.Value) (rt.Value, error) {
	f, ok := e.funcs[name]
	if !ok {
		v, found, err := e.builtin(name, args)
		if !found {
			return nil, e.errorf(ErrCodeUnknownName, "undefined function %s", name)
		}
		if err != nil {
			return nil, e.fail(err)
		}
		return v, nil
	}
	if len(args) != len(f.Args) {
		return nil, e.errorf(ErrCodeType, "%s takes %d arguments, got %d", name, len(f.Args), len(args))
	}
	if !e.guard.Enter(name, args) {
		return nil, e.errorf(ErrCodeCycle, "%s re-entered for %s", name, rt.Format(rt.Tuple(args)))
	}
	defer e.guard.Exit(name, args)

	e.logger.Debug("call", "func", name, "depth", e.guard.Depth())
	caller := e.curFunc
	e.curFunc = name
	defer func() { e.curFunc = caller }()

	local := newScope(e.globals)
	for i, a := range f.Args {
		local.set(a, args[i])
	}
	fl, err := e.execBlock(local, f.Body)
	if err != nil {
		return nil, err
	}
	if fl.kind == flowReturn {
		return fl.value, nil
	}
	return rt.None, nil
}

func (e *Engine) execBlock(s *scope, stmts []incast.Stmt) (flow, error) {
	for _, st := range stmts {
		fl, err := e.exec(s, st)
		if err != nil || fl.kind != flowNext {
			return fl, err
		}
	}
	return next, nil
}

// loopBody runs one iteration and reports whether the loop should stop.
func (e *Engine) loopBody(s *scope, body []incast.Stmt) (stop bool, fl flow, err error) {
	fl, err = e.execBlock(s, body)
	if err != nil {
		return true, fl, err
	}
	switch fl.kind {
	case flowBreak:
		return true, next, nil
	case flowReturn:
		return true, fl, nil
	}
	return false, next, nil
}

func (e *Engine) exec(s *scope, st incast.Stmt) (flow, error) {
	if err := e.step(); err != nil {
		return next, err
	}
	switch n := st.(type) {
	case *incast.Pass:
		return next, nil
	case *incast.Break:
		return flow{kind: flowBreak}, nil
	case *incast.Continue:
		return flow{kind: flowContinue}, nil
	case *incast.Return:
		if n.Value == nil {
			return flow{kind: flowReturn, value: rt.None}, nil
		}
		v, err := e.eval(s, n.Value)
		if err != nil {
			return next, err
		}
		return flow{kind: flowReturn, value: v}, nil

	case *incast.ExprStmt:
		_, err := e.eval(s, n.Value)
		return next, err

	case *incast.Assign:
		v, err := e.eval(s, n.Value)
		if err != nil {
			return next, err
		}
		s.set(n.Target, v)
		return next, nil

	case *incast.DecompAssign:
		v, err := e.eval(s, n.Value)
		if err != nil {
			return next, err
		}
		return next, assignPattern(s, n.Vars, v)

	case *incast.If:
		v, err := e.eval(s, n.Test)
		if err != nil {
			return next, err
		}
		if rt.Truthy(v) {
			return e.execBlock(s, n.Body)
		}
		return e.execBlock(s, n.Orelse)

	case *incast.While:
		for {
			v, err := e.eval(s, n.Test)
			if err != nil {
				return next, err
			}
			if !rt.Truthy(v) {
				return next, nil
			}
			if stop, fl, err := e.loopBody(s, n.Body); stop {
				return fl, err
			}
			if err := e.step(); err != nil {
				return next, err
			}
		}

	case *incast.For:
		elems, err := e.iterate(s, n.Iter)
		if err != nil {
			return next, err
		}
		for _, el := range elems {
			s.set(n.Target, el)
			if stop, fl, err := e.loopBody(s, n.Body); stop {
				return fl, err
			}
		}
		return next, nil

	case *incast.DecompFor:
		elems, err := e.iterate(s, n.Iter)
		if err != nil {
			return next, err
		}
		for _, el := range elems {
			if err := assignPattern(s, n.Vars, el); err != nil {
				return next, err
			}
			if stop, fl, err := e.loopBody(s, n.Body); stop {
				return fl, err
			}
		}
		return next, nil

	case *incast.SetUpdate:
		return next, e.execSetUpdate(s, n)
	case *incast.SetClear:
		return next, e.execClear(s, n.Target)
	case *incast.DictClear:
		return next, e.execClear(s, n.Target)
	case *incast.RelUpdate:
		return next, e.execRelUpdate(s, n)
	case *incast.RelClear:
		return next, e.clearGlobal(n.Rel)
	case *incast.MapClear:
		return next, e.clearGlobal(n.Map)

	case *incast.DictAssign:
		m, err := e.evalMap(s, n.Target)
		if err != nil {
			return next, err
		}
		k, v, err := e.evalPair(s, n.Key, n.Value)
		if err != nil {
			return next, err
		}
		m.MapAssign(k, v)
		e.record("dictassign", targetName(n.Target), k)
		return next, nil

	case *incast.DictDelete:
		m, err := e.evalMap(s, n.Target)
		if err != nil {
			return next, err
		}
		k, err := e.eval(s, n.Key)
		if err != nil {
			return next, err
		}
		if err := m.MapDelete(k); err != nil {
			return next, e.fail(err)
		}
		e.record("dictdelete", targetName(n.Target), k)
		return next, nil

	case *incast.MapAssign:
		m, err := e.globalMap(n.Map)
		if err != nil {
			return next, err
		}
		k, v, err := e.evalPair(s, n.Key, n.Value)
		if err != nil {
			return next, err
		}
		m.MapAssign(k, v)
		e.record("mapassign", n.Map, k)
		return next, nil

	case *incast.MapDelete:
		m, err := e.globalMap(n.Map)
		if err != nil {
			return next, err
		}
		k, err := e.eval(s, n.Key)
		if err != nil {
			return next, err
		}
		if err := m.MapDelete(k); err != nil {
			return next, e.fail(err)
		}
		e.record("mapdelete", n.Map, k)
		return next, nil
	}
	return next, e.errorf(ErrCodeUnsupported, "cannot execute %T", st)
}

func (e *Engine) evalPair(s *scope, a, b incast.Expr) (rt.Value, rt.Value, error) {
	x, err := e.eval(s, a)
	if err != nil {
		return nil, nil, err
	}
	y, err := e.eval(s, b)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// iterate evaluates a loop iterable to a snapshot of its elements, so the
// loop body may update the collection.
func (e *Engine) iterate(s *scope, iter incast.Expr) ([]rt.Value, error) {
	v, err := e.eval(s, iter)
	if err != nil {
		return nil, err
	}
	elems, err := rt.Elements(v)
	if err != nil {
		return nil, e.errorf(ErrCodeType, "%v", err)
	}
	return elems, nil
}

func targetName(t incast.Expr) string {
	if n, ok := t.(*incast.Name); ok {
		return n.Ident
	}
	return incast.Format(t)
}

func (e *Engine) execSetUpdate(s *scope, n *incast.SetUpdate) error {
	target, err := e.eval(s, n.Target)
	if err != nil {
		return err
	}
	v, err := e.eval(s, n.Value)
	if err != nil {
		return err
	}
	name := targetName(n.Target)

	switch n.Op {
	case incast.SetAdd, incast.SetRemove:
		var err error
		switch set := target.(type) {
		case *rt.Set:
			if n.Op == incast.SetAdd {
				err = set.Add(v)
			} else {
				err = set.Remove(v)
			}
		case *rt.CSet:
			if n.Op == incast.SetAdd {
				err = set.Add(v)
			} else {
				err = set.Remove(v)
			}
		default:
			return e.errorf(ErrCodeType, "%s is not a set", name)
		}
		if err != nil {
			return e.fail(err)
		}
		e.record("set"+string(n.Op), name, v)
		return nil
	}

	set, ok := target.(*rt.Set)
	if !ok {
		return e.errorf(ErrCodeType, "%s is not a set", name)
	}
	if n.Op == incast.SetCopyUpdate {
		if other, ok := v.(*rt.Set); ok {
			set.CopyUpdate(other)
			e.record(string(n.Op), name, nil)
			return nil
		}
	}
	other, err := rt.Elements(v)
	if err != nil {
		return e.errorf(ErrCodeType, "%v", err)
	}
	switch n.Op {
	case incast.SetUnion:
		set.Update(other)
	case incast.SetIntersectionUpdate:
		set.IntersectionUpdate(other)
	case incast.SetDifferenceUpdate:
		set.DifferenceUpdate(other)
	case incast.SetSymmetricDifferenceUpdate:
		set.SymmetricDifferenceUpdate(other)
	case incast.SetCopyUpdate:
		set.Clear()
		set.Update(other)
	default:
		return e.errorf(ErrCodeUnsupported, "set operation %s", n.Op)
	}
	e.record(string(n.Op), name, nil)
	return nil
}

func (e *Engine) execClear(s *scope, target incast.Expr) error {
	v, err := e.eval(s, target)
	if err != nil {
		return err
	}
	if err := clearValue(v); err != nil {
		return e.errorf(ErrCodeType, "%s %v", targetName(target), err)
	}
	e.record("clear", targetName(target), nil)
	return nil
}

func (e *Engine) clearGlobal(name string) error {
	v, ok := e.globals.lookup(name)
	if !ok {
		return e.errorf(ErrCodeUnknownName, "undefined collection %s", name)
	}
	if err := clearValue(v); err != nil {
		return e.errorf(ErrCodeType, "%s %v", name, err)
	}
	e.record("clear", name, nil)
	return nil
}

func clearValue(v rt.Value) error {
	switch c := v.(type) {
	case *rt.Set:
		c.Clear()
	case *rt.CSet:
		c.Clear()
	case *rt.Map:
		c.DictClear()
	default:
		return errNotCollection
	}
	return nil
}

func (e *Engine) execRelUpdate(s *scope, n *incast.RelUpdate) error {
	rel, ok := e.globals.lookup(n.Rel)
	if !ok {
		return e.errorf(ErrCodeUnknownName, "undefined relation %s", n.Rel)
	}
	elem, ok := s.lookup(n.Elem)
	if !ok {
		return e.errorf(ErrCodeUnknownName, "undefined variable %s", n.Elem)
	}

	var err error
	switch r := rel.(type) {
	case *rt.Set:
		switch n.Op {
		case incast.RelAdd:
			err = r.Add(elem)
		case incast.RelRemove:
			err = r.Remove(elem)
		default:
			return e.errorf(ErrCodeType, "%s on uncounted relation %s", n.Op, n.Rel)
		}
	case *rt.CSet:
		switch n.Op {
		case incast.RelAdd:
			err = r.Add(elem)
		case incast.RelRemove:
			err = r.Remove(elem)
		case incast.RelIncCount:
			err = r.IncCount(elem)
		case incast.RelDecCount:
			err = r.DecCount(elem)
		}
	default:
		return e.errorf(ErrCodeType, "%s is not a relation", n.Rel)
	}
	if err != nil {
		return e.fail(err)
	}
	e.record("rel"+string(n.Op), n.Rel, elem)
	return nil
}

func (e *Engine) globalMap(name string) (*rt.Map, error) {
	v, ok := e.globals.lookup(name)
	if !ok {
		return nil, e.errorf(ErrCodeUnknownName, "undefined map %s", name)
	}
	m, ok := v.(*rt.Map)
	if !ok {
		return nil, e.errorf(ErrCodeType, "%s is not a map", name)
	}
	return m, nil
}

func (e *Engine) evalMap(s *scope, target incast.Expr) (*rt.Map, error) {
	v, err := e.eval(s, target)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*rt.Map)
	if !ok {
		return nil, e.errorf(ErrCodeType, "%s is not a map", targetName(target))
	}
	return m, nil
}
