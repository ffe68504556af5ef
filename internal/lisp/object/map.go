package object

import "strings"

// Map is an immutable, insertion-ordered association Value -> Value,
// backed by a slice of entries plus a hash index for O(1) lookup, with
// copy-on-write Assoc/Dissoc. Equality is key-wise and ignores
// insertion order.
type Map struct {
	keys   []Value
	vals   []Value
	index  map[uint32][]int // hash -> indices into keys/vals with that hash
}

// NewMap builds a Map from alternating key, value Values.
func NewMap(kvs ...Value) *Map {
	m := &Map{index: make(map[uint32][]int)}
	for i := 0; i+1 < len(kvs); i += 2 {
		m = m.Assoc(kvs[i], kvs[i+1])
	}
	return m
}

func EmptyMap() *Map { return &Map{index: make(map[uint32][]int)} }

func (m *Map) findIndex(key Value) (int, bool) {
	for _, i := range m.index[key.Hash()] {
		if m.keys[i].Equal(key) {
			return i, true
		}
	}
	return -1, false
}

// Assoc returns a new Map with key bound to val (copy-on-write).
func (m *Map) Assoc(key, val Value) *Map {
	next := &Map{
		keys:  append([]Value(nil), m.keys...),
		vals:  append([]Value(nil), m.vals...),
		index: make(map[uint32][]int, len(m.index)),
	}
	for h, ix := range m.index {
		next.index[h] = append([]int(nil), ix...)
	}
	if i, ok := next.findIndex(key); ok {
		next.vals[i] = val
		return next
	}
	i := len(next.keys)
	next.keys = append(next.keys, key)
	next.vals = append(next.vals, val)
	h := key.Hash()
	next.index[h] = append(next.index[h], i)
	return next
}

// Dissoc returns a new Map without key.
func (m *Map) Dissoc(key Value) *Map {
	i, ok := m.findIndex(key)
	if !ok {
		return m
	}
	next := EmptyMap()
	for j := range m.keys {
		if j == i {
			continue
		}
		next = next.Assoc(m.keys[j], m.vals[j])
	}
	return next
}

// Get returns the value bound to key, or (nil, false).
func (m *Map) Get(key Value) (Value, bool) {
	i, ok := m.findIndex(key)
	if !ok {
		return nil, false
	}
	return m.vals[i], true
}

func (m *Map) Len() int { return len(m.keys) }

// Keys returns keys in insertion order.
func (m *Map) Keys() []Value { return append([]Value(nil), m.keys...) }

// Range calls fn for each entry in insertion order.
func (m *Map) Range(fn func(k, v Value) bool) {
	for i := range m.keys {
		if !fn(m.keys[i], m.vals[i]) {
			return
		}
	}
}

func (m *Map) Kind() Kind { return KindMap }

func (m *Map) String() string {
	parts := make([]string, len(m.keys))
	for i := range m.keys {
		parts[i] = m.keys[i].String() + " " + m.vals[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (m *Map) Equal(o Value) bool {
	om, ok := o.(*Map)
	if !ok || om.Len() != m.Len() {
		return false
	}
	for i := range m.keys {
		ov, ok := om.Get(m.keys[i])
		if !ok || !ov.Equal(m.vals[i]) {
			return false
		}
	}
	return true
}

func (m *Map) Hash() uint32 {
	var sum uint32
	for i := range m.keys {
		sum += m.keys[i].Hash()*31 + m.vals[i].Hash()
	}
	return sum
}
