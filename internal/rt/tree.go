package rt

import "github.com/google/btree"

// The degree of the btree backing each Tree.
const treeDegree = 8

// treeEntry is one distinct value and its multiplicity.
type treeEntry struct {
	value Value
	count int
}

// Less implements the btree.Item interface.
func (e *treeEntry) Less(than btree.Item) bool {
	return Compare(e.value, than.(*treeEntry).value) < 0
}

// Tree is an ordered multiset. It backs the running state of min and max
// aggregates, where removing the current extremum must expose the next one.
type Tree struct {
	id  uint64
	t   *btree.BTree
	len int
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{id: nextIdentity(), t: btree.New(treeDegree)}
}

func (t *Tree) Identity() uint64 { return t.id }

// Len returns the number of values, counting duplicates.
func (t *Tree) Len() int { return t.len }

// Insert adds one occurrence of v.
func (t *Tree) Insert(v Value) {
	key := &treeEntry{value: v}
	if item := t.t.Get(key); item != nil {
		item.(*treeEntry).count++
	} else {
		key.count = 1
		t.t.ReplaceOrInsert(key)
	}
	t.len++
}

// Delete removes one occurrence of v, which must be present.
func (t *Tree) Delete(v Value) error {
	item := t.t.Get(&treeEntry{value: v})
	if item == nil {
		return contractf("Tree.delete", v, "value not present")
	}
	e := item.(*treeEntry)
	e.count--
	if e.count == 0 {
		t.t.Delete(e)
	}
	t.len--
	return nil
}

// Min returns the smallest value, or None if the tree is empty.
func (t *Tree) Min() Value {
	if item := t.t.Min(); item != nil {
		return item.(*treeEntry).value
	}
	return None
}

// Max returns the largest value, or None if the tree is empty.
func (t *Tree) Max() Value {
	if item := t.t.Max(); item != nil {
		return item.(*treeEntry).value
	}
	return None
}

// Values returns every occurrence in ascending order.
func (t *Tree) Values() []Value {
	out := make([]Value, 0, t.len)
	t.t.Ascend(func(i btree.Item) bool {
		e := i.(*treeEntry)
		for n := 0; n < e.count; n++ {
			out = append(out, e.value)
		}
		return true
	})
	return out
}

func (t *Tree) size(memo map[uint64]bool) int {
	n := 1
	for _, v := range t.Values() {
		n += sizeOf(v, memo)
	}
	return n
}
