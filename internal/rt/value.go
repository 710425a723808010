// Package rt implements the runtime collections that generated maintenance
// code operates on.
//
// Scalars are int64, string and bool, plus None. Tuples are immutable and
// compared by value. Set, CSet, Map, Object and Tree are mutable and have
// identity semantics: two distinct containers are never equal, and a
// container's hash key never depends on its contents.
package rt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Value is any runtime value.
type Value = any

type noneType struct{}

func (noneType) String() string { return "None" }

// None is the absent value.
var None Value = noneType{}

// Tuple is an immutable ordered sequence of values.
type Tuple []Value

// Container is implemented by every identity-keyed collection.
type Container interface {
	// Identity returns the container's opaque identity token.
	Identity() uint64
	size(memo map[uint64]bool) int
}

var identities atomic.Uint64

func nextIdentity() uint64 {
	return identities.Add(1)
}

// Key returns a comparable encoding of v. Values with equal keys are equal.
// Containers are encoded by identity only.
func Key(v Value) string {
	var b strings.Builder
	writeKey(&b, v)
	return b.String()
}

func writeKey(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case int64:
		b.WriteByte('i')
		b.WriteString(strconv.FormatInt(val, 10))
	case int:
		b.WriteByte('i')
		b.WriteString(strconv.Itoa(val))
	case string:
		b.WriteByte('s')
		b.WriteString(strconv.Itoa(len(val)))
		b.WriteByte(':')
		b.WriteString(val)
	case bool:
		if val {
			b.WriteString("b1")
		} else {
			b.WriteString("b0")
		}
	case noneType:
		b.WriteByte('n')
	case Tuple:
		b.WriteByte('(')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, e)
		}
		b.WriteByte(')')
	case Container:
		b.WriteByte('#')
		b.WriteString(strconv.FormatUint(val.Identity(), 10))
	default:
		fmt.Fprintf(b, "?%T:%v", v, v)
	}
}

// Equal reports whether a and b are the same value.
func Equal(a, b Value) bool {
	return Key(a) == Key(b)
}

// Compare orders values: None < bool < numbers < strings < tuples <
// containers. Tuples compare lexicographically, containers by identity.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case int64, int:
		x, y := toInt(a), toInt(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case Tuple:
		bv := b.(Tuple)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return len(av) - len(bv)
	case Container:
		x, y := av.Identity(), b.(Container).Identity()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func rank(v Value) int {
	switch v.(type) {
	case noneType:
		return 0
	case bool:
		return 1
	case int64, int:
		return 2
	case string:
		return 3
	case Tuple:
		return 4
	case Container:
		return 5
	default:
		return 6
	}
}

func toInt(v Value) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// Truthy reports the boolean interpretation of v.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != ""
	case noneType:
		return false
	case Tuple:
		return len(val) > 0
	case interface{ Len() int }:
		return val.Len() > 0
	}
	return true
}

// Format renders v for program output. Set elements and map entries are
// sorted so that output does not depend on insertion history.
func Format(v Value) string {
	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case string:
		return strconv.Quote(val)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case noneType:
		return "None"
	case Tuple:
		parts := formatAll(val)
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Set:
		return "{" + strings.Join(sortedFormat(val.Elems()), ", ") + "}"
	case *CSet:
		return "{" + strings.Join(sortedFormat(val.Elems()), ", ") + "}"
	case *Map:
		entries := make([]string, 0, val.Len())
		for _, k := range sortedValues(val.Keys()) {
			mv, _ := val.Get(k)
			entries = append(entries, Format(k)+": "+Format(mv))
		}
		return "{" + strings.Join(entries, ", ") + "}"
	case *Object:
		parts := []string{}
		for _, f := range val.Fields() {
			parts = append(parts, f+"="+Format(val.fields[f]))
		}
		return "Obj(" + strings.Join(parts, ", ") + ")"
	case *Tree:
		return "Tree(" + strings.Join(formatAll(val.Values()), ", ") + ")"
	}
	return fmt.Sprint(v)
}

func formatAll(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = Format(v)
	}
	return out
}

func sortedValues(vs []Value) []Value {
	sorted := append([]Value(nil), vs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

func sortedFormat(vs []Value) []string {
	return formatAll(sortedValues(vs))
}
