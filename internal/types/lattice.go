package types

// IsSmaller reports whether a <= b.
func IsSmaller(a, b Type) bool {
	return order(a, b, a.CmpSmaller, b.CmpBigger)
}

// IsBigger reports whether b <= a.
func IsBigger(a, b Type) bool {
	return order(a, b, a.CmpBigger, b.CmpSmaller)
}

func order(a, b Type, left, right func(Type) (bool, bool)) bool {
	if a.Equal(b) {
		return true
	}
	if r, ok := left(b); ok {
		return r
	}
	if r, ok := right(a); ok {
		return r
	}
	return false
}

// Join returns the least upper bound of t and each of others.
func Join(t Type, others ...Type) Type {
	for _, o := range others {
		t = joinOne(t, o, false)
	}
	return t
}

// Meet returns the greatest lower bound of t and each of others.
func Meet(t Type, others ...Type) Type {
	for _, o := range others {
		t = joinOne(t, o, true)
	}
	return t
}

func joinOne(a, b Type, inverted bool) Type {
	switch {
	case IsSmaller(a, b):
		if inverted {
			return a
		}
		return b
	case IsSmaller(b, a):
		if inverted {
			return b
		}
		return a
	default:
		return a.JoinHelper(b, inverted)
	}
}

// Height returns the nesting depth of composite constructors in t.
// Top, Bottom and primitives have height 0.
func Height(t Type) int {
	switch t := t.(type) {
	case Tuple:
		h := 0
		for _, e := range t.Elts {
			h = max(h, Height(e))
		}
		return h + 1
	case Set:
		return Height(t.Elt) + 1
	case List:
		return Height(t.Elt) + 1
	case Map:
		return max(Height(t.Key), Height(t.Value)) + 1
	default:
		return 0
	}
}

// Widen forces every composite nested deeper than limit up to Top.
// The result is always bigger than or equal to t.
func Widen(t Type, limit int) Type {
	switch tt := t.(type) {
	case Tuple:
		if limit <= 0 {
			return Top
		}
		elts := make([]Type, len(tt.Elts))
		for i, e := range tt.Elts {
			elts[i] = Widen(e, limit-1)
		}
		return Tuple{Elts: elts}
	case Set:
		if limit <= 0 {
			return Top
		}
		return Set{Elt: Widen(tt.Elt, limit-1)}
	case List:
		if limit <= 0 {
			return Top
		}
		return List{Elt: Widen(tt.Elt, limit-1)}
	case Map:
		if limit <= 0 {
			return Top
		}
		return Map{Key: Widen(tt.Key, limit-1), Value: Widen(tt.Value, limit-1)}
	default:
		return t
	}
}

// ElementOf returns the element type of a Set or List type, Bottom for
// Bottom, and Top otherwise.
func ElementOf(t Type) Type {
	switch tt := t.(type) {
	case Set:
		return tt.Elt
	case List:
		return tt.Elt
	}
	if t.Equal(Bottom) {
		return Bottom
	}
	return Top
}
