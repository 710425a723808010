// Package types implements the type lattice used by the type analyzer.
//
// The lattice is generated by Top, Bottom, the primitives Bool, Number and
// String, and the composites Tuple, Set, List and Map. The order is the
// smallest partial order closed under reflexivity and transitivity in which
// Bottom is below everything, Top is above everything, and composites of
// the same shape are ordered covariantly in their components.
package types

import "strings"

// Type is an immutable lattice element.
//
// Comparison is delegated first to the left operand's CmpSmaller, then to
// the right operand's CmpBigger. A comparator reports ok=false when it has
// no opinion, in which case the next comparator is consulted. If neither has
// an opinion the two types are incomparable.
//
// Type is deliberately open so that callers can plug in refinements of the
// built-in constructors; the analyzer rejects refinements that claim to be
// below a container constructor without being an instance of it.
type Type interface {
	String() string
	Equal(other Type) bool

	// CmpSmaller reports whether the receiver is below other.
	CmpSmaller(other Type) (result, ok bool)

	// CmpBigger reports whether the receiver is above other.
	CmpBigger(other Type) (result, ok bool)

	// JoinHelper combines the receiver with an incomparable type.
	// When inverted is true it computes the meet instead.
	JoinHelper(other Type, inverted bool) Type
}

// Base provides default comparator and combinator behavior for Type
// implementations. Embed it and supply String and Equal.
type Base struct{}

func (Base) CmpSmaller(Type) (bool, bool) { return false, false }
func (Base) CmpBigger(Type) (bool, bool)  { return false, false }

func (Base) JoinHelper(_ Type, inverted bool) Type {
	if inverted {
		return Bottom
	}
	return Top
}

type topType struct{ Base }

func (topType) String() string              { return "Top" }
func (topType) CmpBigger(Type) (bool, bool) { return true, true }

func (topType) Equal(other Type) bool {
	_, ok := other.(topType)
	return ok
}

type bottomType struct{ Base }

func (bottomType) String() string               { return "Bottom" }
func (bottomType) CmpSmaller(Type) (bool, bool) { return true, true }

func (bottomType) Equal(other Type) bool {
	_, ok := other.(bottomType)
	return ok
}

// Primitive is a built-in scalar type.
type Primitive struct {
	Base
	Name string
}

func (p Primitive) String() string { return p.Name }

func (p Primitive) Equal(other Type) bool {
	o, ok := other.(Primitive)
	return ok && o.Name == p.Name
}

var (
	// Top is the greatest element: any value.
	Top Type = topType{}
	// Bottom is the least element: no value.
	Bottom Type = bottomType{}

	Bool   Type = Primitive{Name: "Bool"}
	Number Type = Primitive{Name: "Number"}
	String Type = Primitive{Name: "String"}
)

// Tuple is covariant in its components for tuples of the same arity.
type Tuple struct {
	Base
	Elts []Type
}

// NewTuple returns the tuple type with the given component types.
func NewTuple(elts ...Type) Tuple {
	return Tuple{Elts: append([]Type(nil), elts...)}
}

func (t Tuple) String() string {
	parts := make([]string, len(t.Elts))
	for i, e := range t.Elts {
		parts[i] = e.String()
	}
	return "Tuple(" + strings.Join(parts, ", ") + ")"
}

func (t Tuple) Equal(other Type) bool {
	o, ok := other.(Tuple)
	if !ok || len(o.Elts) != len(t.Elts) {
		return false
	}
	for i := range t.Elts {
		if !t.Elts[i].Equal(o.Elts[i]) {
			return false
		}
	}
	return true
}

func (t Tuple) CmpSmaller(other Type) (bool, bool) {
	o, ok := other.(Tuple)
	if !ok || len(o.Elts) != len(t.Elts) {
		return false, false
	}
	for i := range t.Elts {
		if !IsSmaller(t.Elts[i], o.Elts[i]) {
			return false, true
		}
	}
	return true, true
}

func (t Tuple) JoinHelper(other Type, inverted bool) Type {
	o, ok := other.(Tuple)
	if !ok || len(o.Elts) != len(t.Elts) {
		return t.Base.JoinHelper(other, inverted)
	}
	elts := make([]Type, len(t.Elts))
	for i := range t.Elts {
		elts[i] = joinOne(t.Elts[i], o.Elts[i], inverted)
	}
	return Tuple{Elts: elts}
}

// Set is covariant in its element type.
type Set struct {
	Base
	Elt Type
}

// NewSet returns the set type with the given element type.
func NewSet(elt Type) Set { return Set{Elt: elt} }

func (s Set) String() string { return "Set(" + s.Elt.String() + ")" }

func (s Set) Equal(other Type) bool {
	o, ok := other.(Set)
	return ok && s.Elt.Equal(o.Elt)
}

func (s Set) CmpSmaller(other Type) (bool, bool) {
	o, ok := other.(Set)
	if !ok {
		return false, false
	}
	return IsSmaller(s.Elt, o.Elt), true
}

func (s Set) JoinHelper(other Type, inverted bool) Type {
	o, ok := other.(Set)
	if !ok {
		return s.Base.JoinHelper(other, inverted)
	}
	return Set{Elt: joinOne(s.Elt, o.Elt, inverted)}
}

// List is covariant in its element type.
type List struct {
	Base
	Elt Type
}

// NewList returns the list type with the given element type.
func NewList(elt Type) List { return List{Elt: elt} }

func (l List) String() string { return "List(" + l.Elt.String() + ")" }

func (l List) Equal(other Type) bool {
	o, ok := other.(List)
	return ok && l.Elt.Equal(o.Elt)
}

func (l List) CmpSmaller(other Type) (bool, bool) {
	o, ok := other.(List)
	if !ok {
		return false, false
	}
	return IsSmaller(l.Elt, o.Elt), true
}

func (l List) JoinHelper(other Type, inverted bool) Type {
	o, ok := other.(List)
	if !ok {
		return l.Base.JoinHelper(other, inverted)
	}
	return List{Elt: joinOne(l.Elt, o.Elt, inverted)}
}

// Map is covariant in both its key and value types.
type Map struct {
	Base
	Key   Type
	Value Type
}

// NewMap returns the map type with the given key and value types.
func NewMap(key, value Type) Map { return Map{Key: key, Value: value} }

func (m Map) String() string {
	return "Map(" + m.Key.String() + ", " + m.Value.String() + ")"
}

func (m Map) Equal(other Type) bool {
	o, ok := other.(Map)
	return ok && m.Key.Equal(o.Key) && m.Value.Equal(o.Value)
}

func (m Map) CmpSmaller(other Type) (bool, bool) {
	o, ok := other.(Map)
	if !ok {
		return false, false
	}
	return IsSmaller(m.Key, o.Key) && IsSmaller(m.Value, o.Value), true
}

func (m Map) JoinHelper(other Type, inverted bool) Type {
	o, ok := other.(Map)
	if !ok {
		return m.Base.JoinHelper(other, inverted)
	}
	return Map{
		Key:   joinOne(m.Key, o.Key, inverted),
		Value: joinOne(m.Value, o.Value, inverted),
	}
}
