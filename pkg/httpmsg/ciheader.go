package httpmsg

import "strings"

// ciMap is a string->string map with ASCII-case-insensitive keys,
// keyed by a canonical-case form rather than a custom comparator
// (Go maps can't take one). Serialization walks headers in insertion
// order and skips Connection explicitly, so that order is preserved
// here rather than left to native map iteration.
type ciMap struct {
	data map[string]entry
	// order preserves insertion order for deterministic serialization.
	order []string
}

type entry struct {
	origKey string
	value   string
}

func newCIMap() *ciMap { return &ciMap{data: make(map[string]entry)} }

func foldKey(key string) string { return strings.ToLower(key) }

func (m *ciMap) Get(key string) (string, bool) {
	e, ok := m.data[foldKey(key)]
	if !ok {
		return "", false
	}
	return e.value, true
}

func (m *ciMap) Has(key string) bool {
	_, ok := m.data[foldKey(key)]
	return ok
}

func (m *ciMap) Set(key, value string) {
	fk := foldKey(key)
	if _, exists := m.data[fk]; !exists {
		m.order = append(m.order, fk)
	}
	m.data[fk] = entry{origKey: key, value: value}
}

func (m *ciMap) Del(key string) {
	fk := foldKey(key)
	if _, exists := m.data[fk]; !exists {
		return
	}
	delete(m.data, fk)
	for i, k := range m.order {
		if k == fk {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Range visits every entry in insertion order, yielding the
// originally-cased key.
func (m *ciMap) Range(f func(key, value string)) {
	for _, fk := range m.order {
		e := m.data[fk]
		f(e.origKey, e.value)
	}
}

func (m *ciMap) Len() int { return len(m.order) }
