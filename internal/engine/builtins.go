package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/incoq/internal/rt"
)

// Builtins lists the functions every program may call.
var Builtins = []string{
	"print", "len", "count", "sum", "min", "max", "index", "unwrap",
	"set", "Set", "dict", "Map", "Obj",
	"tree", "treeinsert", "treedelete", "treemin", "treemax",
	"range",
}

// builtin runs a builtin function. found is false if name is not one.
func (e *Engine) builtin(name string, args []rt.Value) (v rt.Value, found bool, err error) {
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d arguments, got %d", name, n, len(args))
		}
		return nil
	}

	switch name {
	case "print":
		e.print(args)
		return rt.None, true, nil

	case "len", "count":
		if err := arity(1); err != nil {
			return nil, true, err
		}
		if s, ok := args[0].(string); ok {
			return int64(len(s)), true, nil
		}
		v, err = rt.Count(args[0])
		return v, true, err
	case "sum":
		if err := arity(1); err != nil {
			return nil, true, err
		}
		v, err = rt.Sum(args[0])
		return v, true, err
	case "min", "max":
		if len(args) > 1 {
			args = []rt.Value{rt.Tuple(args)}
		}
		if err := arity(1); err != nil {
			return nil, true, err
		}
		if name == "min" {
			v, err = rt.Min(args[0])
		} else {
			v, err = rt.Max(args[0])
		}
		return v, true, err

	case "index":
		if err := arity(2); err != nil {
			return nil, true, err
		}
		i, err := e.intOf(args[1])
		if err != nil {
			return nil, true, err
		}
		v, err = rt.Index(args[0], i)
		return v, true, err
	case "unwrap":
		if err := arity(1); err != nil {
			return nil, true, err
		}
		v, err = rt.Unwrap(args[0])
		return v, true, err

	case "set", "Set":
		if len(args) == 0 {
			return rt.NewSet(), true, nil
		}
		if err := arity(1); err != nil {
			return nil, true, err
		}
		elems, err := rt.Elements(args[0])
		if err != nil {
			return nil, true, err
		}
		return rt.NewSet(elems...), true, nil
	case "dict", "Map":
		if err := arity(0); err != nil {
			return nil, true, err
		}
		return rt.NewMap(), true, nil
	case "Obj":
		if err := arity(0); err != nil {
			return nil, true, err
		}
		return rt.NewObject(map[string]rt.Value{}), true, nil

	case "tree":
		if err := arity(0); err != nil {
			return nil, true, err
		}
		return rt.NewTree(), true, nil
	case "treeinsert", "treedelete":
		if err := arity(2); err != nil {
			return nil, true, err
		}
		t, ok := args[0].(*rt.Tree)
		if !ok {
			return nil, true, fmt.Errorf("%s: %s is not a tree", name, rt.Format(args[0]))
		}
		if name == "treeinsert" {
			t.Insert(args[1])
			return rt.None, true, nil
		}
		return rt.None, true, t.Delete(args[1])
	case "treemin", "treemax":
		if err := arity(1); err != nil {
			return nil, true, err
		}
		t, ok := args[0].(*rt.Tree)
		if !ok {
			return nil, true, fmt.Errorf("%s: %s is not a tree", name, rt.Format(args[0]))
		}
		if name == "treemin" {
			return t.Min(), true, nil
		}
		return t.Max(), true, nil

	case "range":
		if err := arity(1); err != nil {
			return nil, true, err
		}
		n, err := e.intOf(args[0])
		if err != nil {
			return nil, true, err
		}
		out := make(rt.Tuple, 0, max(n, 0))
		for i := int64(0); i < n; i++ {
			out = append(out, i)
		}
		return out, true, nil
	}
	return nil, false, nil
}

// print records one output line. Strings print without quotes.
func (e *Engine) print(args []rt.Value) {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = s
		} else {
			parts[i] = rt.Format(a)
		}
	}
	line := strings.Join(parts, " ")
	e.output = append(e.output, line)
	if e.out != nil {
		fmt.Fprintln(e.out, line)
	}
}
