package crdt

import (
	"slices"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"
)

// Map is a mapping from string keys to registers.
type Map struct {
	id   clock.OpID
	keys map[string]*Register
}

// NewMap returns an empty map with the given object id.
func NewMap(id clock.OpID) *Map {
	return &Map{
		id:   id,
		keys: make(map[string]*Register),
	}
}

func (m *Map) ID() clock.OpID {
	return m.id
}

func (m *Map) Kind() object.Kind {
	return object.KindMap
}

// Register returns the register for the given key or nil if the key was never written.
func (m *Map) Register(key string) *Register {
	return m.keys[key]
}

func (m *Map) register(key string) (*Register, bool) {
	r, ok := m.keys[key]
	if ok {
		return r, false
	}
	r = &Register{}
	m.keys[key] = r
	return r, true
}

// Get returns the winning entry for the key if it is visible.
func (m *Map) Get(key string) (Entry, bool) {
	r, ok := m.keys[key]
	if !ok {
		return Entry{}, false
	}
	e, ok := r.Current()
	if !ok || e.Deleted {
		return Entry{}, false
	}
	return e, true
}

// Conflicts returns every concurrent value written to the key, excluding deletes.
func (m *Map) Conflicts(key string) []Entry {
	r, ok := m.keys[key]
	if !ok {
		return nil
	}
	var out []Entry
	for _, e := range r.entries {
		if !e.Deleted {
			out = append(out, e)
		}
	}
	return out
}

// Keys returns the sorted visible keys.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.keys))
	for k := range m.keys {
		if _, ok := m.Get(k); ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// AllKeys returns every key that has a register, including deleted keys.
func (m *Map) AllKeys() []string {
	keys := make([]string, 0, len(m.keys))
	for k := range m.keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of visible keys.
func (m *Map) Len() int {
	return len(m.Keys())
}

// RestoreRegister replaces the register for key with the given entries.
func (m *Map) RestoreRegister(key string, entries []Entry) {
	r, _ := m.register(key)
	r.Restore(entries)
}
