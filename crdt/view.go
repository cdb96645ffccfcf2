package crdt

import (
	"fmt"
	"strconv"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"
)

// View returns a read-only projection of the document.
//
// Maps become map[string]any, lists []any, text string, and scalars their Go value.
func (s *State) View() map[string]any {
	return s.mapView(s.Root())
}

// ViewOf returns the projection of the given container.
func (s *State) ViewOf(o Object) any {
	switch t := o.(type) {
	case *Map:
		return s.mapView(t)
	case *Sequence:
		if t.Kind() == object.KindText {
			return t.Text()
		}
		return s.listView(t)
	default:
		return nil
	}
}

func (s *State) mapView(m *Map) map[string]any {
	out := make(map[string]any)
	for _, k := range m.Keys() {
		e, _ := m.Get(k)
		out[k] = s.valueView(e.ID, e.Value)
	}
	return out
}

func (s *State) listView(q *Sequence) []any {
	ids := q.Visible()
	out := make([]any, len(ids))
	for i, id := range ids {
		n, _ := q.Node(id)
		out[i] = s.valueView(id, n.Value)
	}
	return out
}

func (s *State) valueView(id clock.OpID, v object.Value) any {
	if !v.IsObject() {
		return v.Interface()
	}
	o, ok := s.objects[id]
	if !ok {
		return nil
	}
	return s.ViewOf(o)
}

// PathIndex converts a path step into a sequence index.
//
// Decimal strings are accepted so paths parsed from text can address sequences.
func PathIndex(step any) (int, bool) {
	switch t := step.(type) {
	case string:
		i, err := strconv.Atoi(t)
		if err != nil || i < 0 {
			return 0, false
		}
		return i, true
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	default:
		return 0, false
	}
}

// Child returns the id and value stored under step in the given container.
func (s *State) Child(o Object, step any) (clock.OpID, object.Value, error) {
	switch t := o.(type) {
	case *Map:
		key, ok := step.(string)
		if !ok {
			return clock.OpID{}, object.Value{}, fmt.Errorf("%w: map key must be a string, got %T", ErrInvalidPath, step)
		}
		e, ok := t.Get(key)
		if !ok {
			return clock.OpID{}, object.Value{}, fmt.Errorf("%w: key %q not found", ErrInvalidPath, key)
		}
		return e.ID, e.Value, nil
	case *Sequence:
		index, ok := PathIndex(step)
		if !ok {
			return clock.OpID{}, object.Value{}, fmt.Errorf("%w: sequence index must be an int, got %T", ErrInvalidPath, step)
		}
		id, ok := t.ElemAt(index)
		if !ok {
			return clock.OpID{}, object.Value{}, fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
		}
		n, _ := t.Node(id)
		return id, n.Value, nil
	default:
		return clock.OpID{}, object.Value{}, fmt.Errorf("%w: unknown object", ErrInvalidPath)
	}
}

// ObjectAt returns the container at the given path.
func (s *State) ObjectAt(path []any) (Object, error) {
	var o Object = s.Root()
	for i, step := range path {
		id, v, err := s.Child(o, step)
		if err != nil {
			return nil, err
		}
		if !v.IsObject() {
			return nil, fmt.Errorf("%w: %v is not a container", ErrInvalidPath, path[:i+1])
		}
		next, ok := s.objects[id]
		if !ok {
			return nil, fmt.Errorf("%w: missing object %s", ErrInvalidPath, id)
		}
		o = next
	}
	return o, nil
}

// ValueAt returns the projection of the value at the given path.
func (s *State) ValueAt(path []any) (any, error) {
	if len(path) == 0 {
		return s.View(), nil
	}
	parent, err := s.ObjectAt(path[:len(path)-1])
	if err != nil {
		return nil, err
	}
	id, v, err := s.Child(parent, path[len(path)-1])
	if err != nil {
		return nil, err
	}
	return s.valueView(id, v), nil
}
