package rt

// CSet is a reference-counted set. Each element carries a positive count
// of the independent derivations that justify its membership.
type CSet struct {
	id     uint64
	store  elemStore
	counts map[string]int
}

// NewCSet returns an empty refcounted set.
func NewCSet() *CSet {
	return &CSet{id: nextIdentity(), store: newElemStore(), counts: make(map[string]int)}
}

func (s *CSet) Identity() uint64 { return s.id }
func (s *CSet) Len() int         { return len(s.store.elems) }

// Contains reports membership regardless of count.
func (s *CSet) Contains(v Value) bool { return s.store.has(Key(v)) }

// Elems returns the elements, ignoring counts.
func (s *CSet) Elems() []Value { return s.store.snapshot() }

// Add inserts v with count 1. v must not be present.
func (s *CSet) Add(v Value) error {
	k := Key(v)
	if s.store.has(k) {
		return contractf("CSet.add", v, "element already present with count %d", s.counts[k])
	}
	s.store.put(k, v)
	s.counts[k] = 1
	return nil
}

// Remove deletes v, whose count must be exactly 1.
func (s *CSet) Remove(v Value) error {
	k := Key(v)
	if c := s.counts[k]; c != 1 {
		return contractf("CSet.remove", v, "count is %d, want 1", c)
	}
	s.store.del(k)
	delete(s.counts, k)
	return nil
}

// GetCount returns the count of v, or 0 if absent.
func (s *CSet) GetCount(v Value) int {
	return s.counts[Key(v)]
}

// IncCount increments the count of an existing element.
func (s *CSet) IncCount(v Value) error {
	k := Key(v)
	if !s.store.has(k) {
		return contractf("CSet.inccount", v, "element not present")
	}
	s.counts[k]++
	return nil
}

// DecCount decrements the count of an element whose count exceeds 1.
func (s *CSet) DecCount(v Value) error {
	k := Key(v)
	if c := s.counts[k]; c <= 1 {
		return contractf("CSet.deccount", v, "count is %d, want > 1", c)
	}
	s.counts[k]--
	return nil
}

// Clear removes all elements and counts.
func (s *CSet) Clear() {
	s.store.clear()
	s.counts = make(map[string]int)
}

// ImgLookup returns the image of bounds under mask, discarding counts.
func (s *CSet) ImgLookup(mask string, bounds Tuple) (*Set, error) {
	return imgLookup("CSet.imglookup", s.Elems(), mask, bounds)
}

// Counts are not part of the abstract size.
func (s *CSet) size(memo map[uint64]bool) int {
	n := 1
	for _, e := range s.store.elems {
		n += sizeOf(e, memo)
	}
	return n
}
