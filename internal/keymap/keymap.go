// Package keymap provides a two-level map keyed by (K1, K2) pairs.
//
// Removing the last entry under a first-level key removes that key as well,
// so the number of first-level keys always reflects live content. A Map is not
// safe for concurrent use; callers serialize access themselves.
package keymap

import "iter"

// Entry is a single (K1, K2, V) triple stored in a Map.
type Entry[K1, K2 comparable, V comparable] struct {
	Key1  K1
	Key2  K2
	Value V
}

// Map maps (K1, K2) pairs to values.
type Map[K1, K2 comparable, V comparable] struct {
	outer map[K1]map[K2]V
	n     int
}

// New returns an empty map.
func New[K1, K2 comparable, V comparable]() *Map[K1, K2, V] {
	return &Map[K1, K2, V]{outer: make(map[K1]map[K2]V)}
}

// Add inserts or overwrites the value stored under (k1, k2).
func (m *Map[K1, K2, V]) Add(k1 K1, k2 K2, v V) {
	inner, ok := m.outer[k1]
	if !ok {
		inner = make(map[K2]V)
		m.outer[k1] = inner
	}
	if _, exists := inner[k2]; !exists {
		m.n++
	}
	inner[k2] = v
}

// Remove deletes (k1, k2), dropping k1 entirely once it has no entries left.
// It reports whether anything was removed.
func (m *Map[K1, K2, V]) Remove(k1 K1, k2 K2) bool {
	inner, ok := m.outer[k1]
	if !ok {
		return false
	}
	if _, ok := inner[k2]; !ok {
		return false
	}
	delete(inner, k2)
	m.n--
	if len(inner) == 0 {
		delete(m.outer, k1)
	}
	return true
}

// TryGet returns the value under (k1, k2) and whether it was present.
func (m *Map[K1, K2, V]) TryGet(k1 K1, k2 K2) (V, bool) {
	v, ok := m.outer[k1][k2]
	return v, ok
}

// Contains reports whether (k1, k2) is present.
func (m *Map[K1, K2, V]) Contains(k1 K1, k2 K2) bool {
	_, ok := m.TryGet(k1, k2)
	return ok
}

// ContainsKey1 reports whether any entry is stored under k1.
func (m *Map[K1, K2, V]) ContainsKey1(k1 K1) bool {
	_, ok := m.outer[k1]
	return ok
}

// Len returns the total number of (k1, k2) entries.
func (m *Map[K1, K2, V]) Len() int { return m.n }

// Key1Len returns the number of distinct first-level keys.
func (m *Map[K1, K2, V]) Key1Len() int { return len(m.outer) }

// Values returns a sequence over every stored value. Each call to the
// returned sequence walks the map afresh, so it can be ranged over more than
// once. The map must not be modified while a walk is in progress.
func (m *Map[K1, K2, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, inner := range m.outer {
			for _, v := range inner {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// All returns a sequence over every stored triple, in no particular order.
func (m *Map[K1, K2, V]) All() iter.Seq[Entry[K1, K2, V]] {
	return func(yield func(Entry[K1, K2, V]) bool) {
		for k1, inner := range m.outer {
			for k2, v := range inner {
				if !yield(Entry[K1, K2, V]{Key1: k1, Key2: k2, Value: v}) {
					return
				}
			}
		}
	}
}

// Clear removes every entry.
func (m *Map[K1, K2, V]) Clear() {
	clear(m.outer)
	m.n = 0
}

// Equal reports whether m and o hold the same set of triples, independent of
// insertion order.
func (m *Map[K1, K2, V]) Equal(o *Map[K1, K2, V]) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil {
		return false
	}
	if m.n != o.n || len(m.outer) != len(o.outer) {
		return false
	}
	for k1, inner := range m.outer {
		other, ok := o.outer[k1]
		if !ok || len(other) != len(inner) {
			return false
		}
		for k2, v := range inner {
			if ov, ok := other[k2]; !ok || ov != v {
				return false
			}
		}
	}
	return true
}
