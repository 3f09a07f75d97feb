package value

import (
	"bytes"
	"errors"
)

var errNotObject = errors.New("value: expected a JSON object")

// Map is an insertion-ordered mapping from text keys to Values. Go's
// built-in map has no stable iteration order, which would make hashing and
// serializing a scenario's parameters/variables nondeterministic across
// runs, so Map keeps an explicit key slice alongside the backing map.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Get returns the value for name and whether it was present.
func (m *Map) Get(name string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[name]
	return v, ok
}

// Set inserts or overwrites name, appending to the key order on first
// insertion only.
func (m *Map) Set(name string, v Value) {
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = v
}

// ContainsKey reports whether name is present.
func (m *Map) ContainsKey(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[name]
	return ok
}

// Delete removes name, preserving the order of remaining keys.
func (m *Map) Delete(name string) {
	if _, ok := m.values[name]; !ok {
		return
	}
	delete(m.values, name)
	for i, k := range m.keys {
		if k == name {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, k := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := Text(k).MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := m.values[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving document key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	if v.kind != KindObject {
		return errNotObject
	}
	*m = *v.obj
	return nil
}

// Merge overlays other on top of m, returning a new map where keys present
// in other win. Used to layer an OS overlay over the global parameter map.
func Merge(base, overlay *Map) *Map {
	out := base.Clone()
	if overlay == nil {
		return out
	}
	for _, k := range overlay.keys {
		out.Set(k, overlay.values[k])
	}
	return out
}
