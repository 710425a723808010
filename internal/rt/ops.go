package rt

import (
	"fmt"
	"sort"
)

// Relation is implemented by Set and CSet.
type Relation interface {
	Container
	Len() int
	Contains(v Value) bool
	Elems() []Value
	ImgLookup(mask string, bounds Tuple) (*Set, error)
}

func countMask(mask string) (bound, unbound int) {
	for _, c := range mask {
		if c == 'b' {
			bound++
		} else {
			unbound++
		}
	}
	return bound, unbound
}

// imgLookup is a linear scan returning the unbound components of every
// tuple whose bound components equal bounds.
func imgLookup(op string, elems []Value, mask string, bounds Tuple) (*Set, error) {
	nb, _ := countMask(mask)
	if nb != len(bounds) {
		return nil, contractf(op, bounds, "mask %q has %d bound positions, got %d values", mask, nb, len(bounds))
	}
	want := Key(bounds)
	result := NewSet()
	for _, e := range elems {
		t, ok := e.(Tuple)
		if !ok || len(t) != len(mask) {
			return nil, contractf(op, e, "element is not a tuple of arity %d", len(mask))
		}
		var bs, us Tuple
		for i, c := range mask {
			if c == 'b' {
				bs = append(bs, t[i])
			} else {
				us = append(us, t[i])
			}
		}
		if Key(bs) == want && !result.Contains(us) {
			result.store.put(Key(us), us)
		}
	}
	return result, nil
}

// Elements returns the elements of a collection value for iteration.
func Elements(v Value) ([]Value, error) {
	switch c := v.(type) {
	case *Set:
		return c.Elems(), nil
	case *CSet:
		return c.Elems(), nil
	case Tuple:
		return append([]Value(nil), c...), nil
	case *Map:
		return c.Keys(), nil
	case *Tree:
		return c.Values(), nil
	}
	return nil, fmt.Errorf("value %s is not iterable", Format(v))
}

// Count returns the number of elements in a collection.
func Count(v Value) (int64, error) {
	elems, err := Elements(v)
	if err != nil {
		return 0, err
	}
	return int64(len(elems)), nil
}

// Sum adds the elements of a collection. Singleton tuples contribute
// their component.
func Sum(v Value) (int64, error) {
	elems, err := Elements(v)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range elems {
		n, err := number(scalar(e))
		if err != nil {
			return 0, fmt.Errorf("sum: %w", err)
		}
		total += n
	}
	return total, nil
}

// Min returns the smallest element, or None for an empty collection.
func Min(v Value) (Value, error) {
	return extremum(v, -1)
}

// Max returns the largest element, or None for an empty collection.
func Max(v Value) (Value, error) {
	return extremum(v, 1)
}

func extremum(v Value, sign int) (Value, error) {
	elems, err := Elements(v)
	if err != nil {
		return nil, err
	}
	best := None
	for i, e := range elems {
		e = scalar(e)
		if i == 0 || Compare(e, best)*sign > 0 {
			best = e
		}
	}
	return best, nil
}

// Unwrap converts a collection of singleton tuples into a set of their
// components.
func Unwrap(v Value) (*Set, error) {
	elems, err := Elements(v)
	if err != nil {
		return nil, err
	}
	result := NewSet()
	for _, e := range elems {
		t, ok := e.(Tuple)
		if !ok || len(t) != 1 {
			return nil, contractf("unwrap", e, "element is not a singleton tuple")
		}
		result.Update([]Value{t[0]})
	}
	return result, nil
}

// Index returns the i-th component of a tuple.
func Index(v Value, i int64) (Value, error) {
	t, ok := v.(Tuple)
	if !ok {
		return nil, fmt.Errorf("index: %s is not a tuple", Format(v))
	}
	if i < 0 || int(i) >= len(t) {
		return nil, fmt.Errorf("index: %d out of range for %s", i, Format(v))
	}
	return t[i], nil
}

func scalar(v Value) Value {
	if t, ok := v.(Tuple); ok && len(t) == 1 {
		return t[0]
	}
	return v
}

func number(v Value) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	}
	return 0, fmt.Errorf("%s is not a number", Format(v))
}

// Size returns the abstract size of v: 1 for scalars and tuples, and for
// containers 1 plus the sizes of their contents. A container already
// visited through memo counts as 1.
func Size(v Value) int {
	return sizeOf(v, make(map[uint64]bool))
}

// SizeOfNamespace sums Size over the containers in ns, sharing one memo so
// that data reachable from several names is counted once.
func SizeOfNamespace(ns map[string]Value) int {
	memo := make(map[uint64]bool)
	total := 0
	for _, name := range sortedNames(ns) {
		if c, ok := ns[name].(Container); ok {
			total += sizeOf(c, memo)
		}
	}
	return total
}

func sizeOf(v Value, memo map[uint64]bool) int {
	c, ok := v.(Container)
	if !ok || memo[c.Identity()] {
		return 1
	}
	memo[c.Identity()] = true
	return c.size(memo)
}

func sortedNames(ns map[string]Value) []string {
	names := make([]string, 0, len(ns))
	for k := range ns {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
