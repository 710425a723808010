package rt

import "sort"

// Map is an identity-keyed key/value store.
type Map struct {
	id     uint64
	keys   elemStore
	values map[string]Value
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{id: nextIdentity(), keys: newElemStore(), values: make(map[string]Value)}
}

func (m *Map) Identity() uint64 { return m.id }
func (m *Map) Len() int         { return len(m.keys.elems) }

// Keys returns the keys in a deterministic order.
func (m *Map) Keys() []Value { return m.keys.snapshot() }

// Has reports whether key is present.
func (m *Map) Has(key Value) bool { return m.keys.has(Key(key)) }

// Get returns the value for key.
func (m *Map) Get(key Value) (Value, bool) {
	v, ok := m.values[Key(key)]
	return v, ok
}

// Lookup returns the value for key, or def if absent.
func (m *Map) Lookup(key, def Value) Value {
	if v, ok := m.values[Key(key)]; ok {
		return v
	}
	return def
}

// MapAssign binds key to value, replacing any previous binding.
func (m *Map) MapAssign(key, value Value) {
	k := Key(key)
	if !m.keys.has(k) {
		m.keys.put(k, key)
	}
	m.values[k] = value
}

// MapDelete strictly removes key, which must be present.
func (m *Map) MapDelete(key Value) error {
	k := Key(key)
	if !m.keys.has(k) {
		return contractf("Map.mapdelete", key, "key not present")
	}
	m.keys.del(k)
	delete(m.values, k)
	return nil
}

// DictClear removes every entry.
func (m *Map) DictClear() {
	m.keys.clear()
	m.values = make(map[string]Value)
}

// SetFromMap reshapes the map into a set of tuples. The mask has one
// position per key component plus exactly one unbound position, which
// receives the value. Every key must be a tuple of the bound arity.
func (m *Map) SetFromMap(mask string) (*Set, error) {
	nb, nu := countMask(mask)
	if nu != 1 {
		return nil, contractf("Map.setfrommap", mask, "mask must have exactly one unbound position")
	}
	result := NewSet()
	for _, key := range m.Keys() {
		kt, ok := key.(Tuple)
		if !ok || len(kt) != nb {
			return nil, contractf("Map.setfrommap", key, "key is not a tuple of arity %d", nb)
		}
		entry := make(Tuple, 0, len(mask))
		ki := 0
		for _, c := range mask {
			if c == 'b' {
				entry = append(entry, kt[ki])
				ki++
			} else {
				entry = append(entry, m.values[Key(key)])
			}
		}
		result.Update([]Value{entry})
	}
	return result, nil
}

func (m *Map) size(memo map[uint64]bool) int {
	n := 1
	for _, k := range m.keys.elems {
		n += sizeOf(k, memo) + sizeOf(m.values[Key(k)], memo)
	}
	return n
}

// Object is a mutable record with identity semantics.
type Object struct {
	id     uint64
	fields map[string]Value
}

// NewObject returns an object with the given initial fields.
func NewObject(fields map[string]Value) *Object {
	o := &Object{id: nextIdentity(), fields: make(map[string]Value, len(fields))}
	for k, v := range fields {
		o.fields[k] = v
	}
	return o
}

func (o *Object) Identity() uint64 { return o.id }

// Get returns a field value.
func (o *Object) Get(field string) (Value, bool) {
	v, ok := o.fields[field]
	return v, ok
}

// Set assigns a field.
func (o *Object) Set(field string, v Value) { o.fields[field] = v }

// Fields returns the field names in alphabetical order.
func (o *Object) Fields() []string {
	names := make([]string, 0, len(o.fields))
	for k := range o.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (o *Object) size(memo map[uint64]bool) int {
	n := 1
	for _, f := range o.Fields() {
		n += sizeOf(o.fields[f], memo)
	}
	return n
}
