package rt

// elemStore holds distinct values in insertion order with O(1) membership.
// Removal moves the last element into the vacated slot.
type elemStore struct {
	elems []Value
	index map[string]int
}

func newElemStore() elemStore {
	return elemStore{index: make(map[string]int)}
}

func (s *elemStore) has(k string) bool {
	_, ok := s.index[k]
	return ok
}

func (s *elemStore) put(k string, v Value) {
	s.index[k] = len(s.elems)
	s.elems = append(s.elems, v)
}

func (s *elemStore) del(k string) {
	i := s.index[k]
	last := len(s.elems) - 1
	if i != last {
		moved := s.elems[last]
		s.elems[i] = moved
		s.index[Key(moved)] = i
	}
	s.elems = s.elems[:last]
	delete(s.index, k)
}

func (s *elemStore) clear() {
	s.elems = nil
	s.index = make(map[string]int)
}

func (s *elemStore) snapshot() []Value {
	return append([]Value(nil), s.elems...)
}

// Set is an identity-keyed set of values.
type Set struct {
	id    uint64
	store elemStore
}

// NewSet returns a set holding the given elements.
func NewSet(elems ...Value) *Set {
	s := &Set{id: nextIdentity(), store: newElemStore()}
	for _, e := range elems {
		if k := Key(e); !s.store.has(k) {
			s.store.put(k, e)
		}
	}
	return s
}

func (s *Set) Identity() uint64 { return s.id }
func (s *Set) Len() int         { return len(s.store.elems) }

// Contains reports membership.
func (s *Set) Contains(v Value) bool { return s.store.has(Key(v)) }

// Elems returns the elements in a deterministic order.
func (s *Set) Elems() []Value { return s.store.snapshot() }

// Add strictly inserts v, which must not already be present.
func (s *Set) Add(v Value) error {
	k := Key(v)
	if s.store.has(k) {
		return contractf("Set.add", v, "element already present")
	}
	s.store.put(k, v)
	return nil
}

// Remove strictly deletes v, which must be present.
func (s *Set) Remove(v Value) error {
	k := Key(v)
	if !s.store.has(k) {
		return contractf("Set.remove", v, "element not present")
	}
	s.store.del(k)
	return nil
}

// Clear removes all elements.
func (s *Set) Clear() { s.store.clear() }

// Update adds every element of other (union).
func (s *Set) Update(other []Value) {
	for _, v := range other {
		if k := Key(v); !s.store.has(k) {
			s.store.put(k, v)
		}
	}
}

// IntersectionUpdate keeps only elements also in other.
func (s *Set) IntersectionUpdate(other []Value) {
	keep := keySet(other)
	for _, v := range s.Elems() {
		if k := Key(v); !keep[k] {
			s.store.del(k)
		}
	}
}

// DifferenceUpdate removes every element of other.
func (s *Set) DifferenceUpdate(other []Value) {
	for _, v := range other {
		if k := Key(v); s.store.has(k) {
			s.store.del(k)
		}
	}
}

// SymmetricDifferenceUpdate toggles membership of every element of other.
func (s *Set) SymmetricDifferenceUpdate(other []Value) {
	seen := make(map[string]bool, len(other))
	for _, v := range other {
		k := Key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		if s.store.has(k) {
			s.store.del(k)
		} else {
			s.store.put(k, v)
		}
	}
}

// CopyUpdate replaces the contents of s with those of other.
// Copying a set onto itself is a no-op.
func (s *Set) CopyUpdate(other *Set) {
	if s == other {
		return
	}
	s.Clear()
	s.Update(other.Elems())
}

// ImgLookup returns the image of bounds under mask.
func (s *Set) ImgLookup(mask string, bounds Tuple) (*Set, error) {
	return imgLookup("Set.imglookup", s.Elems(), mask, bounds)
}

func (s *Set) size(memo map[uint64]bool) int {
	n := 1
	for _, e := range s.store.elems {
		n += sizeOf(e, memo)
	}
	return n
}

func keySet(vs []Value) map[string]bool {
	m := make(map[string]bool, len(vs))
	for _, v := range vs {
		m[Key(v)] = true
	}
	return m
}
