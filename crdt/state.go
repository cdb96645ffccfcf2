package crdt

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"
)

var (
	// ErrInvalidOperation is returned when an operation cannot be applied to the current state.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidPath is returned when a path does not resolve to a value.
	ErrInvalidPath = errors.New("invalid path")
)

// Object is a container in the document tree.
type Object interface {
	// ID returns the id of the operation that created the object.
	ID() clock.OpID
	// Kind returns the container kind.
	Kind() object.Kind
}

// State holds every container of a document keyed by object id.
type State struct {
	objects map[clock.OpID]Object
}

// NewState returns a state containing an empty root map.
func NewState() *State {
	return &State{
		objects: map[clock.OpID]Object{
			clock.Head: NewMap(clock.Head),
		},
	}
}

// Root returns the root map.
func (s *State) Root() *Map {
	return s.objects[clock.Head].(*Map)
}

// Object returns the container with the given id.
func (s *State) Object(id clock.OpID) (Object, bool) {
	o, ok := s.objects[id]
	return o, ok
}

// Map returns the map with the given id.
func (s *State) Map(id clock.OpID) (*Map, bool) {
	m, ok := s.objects[id].(*Map)
	return m, ok
}

// Sequence returns the list or text with the given id.
func (s *State) Sequence(id clock.OpID) (*Sequence, bool) {
	q, ok := s.objects[id].(*Sequence)
	return q, ok
}

// Objects returns every container sorted by id.
func (s *State) Objects() []Object {
	out := make([]Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b Object) int {
		return a.ID().Compare(b.ID())
	})
	return out
}

// AddObject adds a container to the state, replacing any with the same id.
func (s *State) AddObject(o Object) {
	s.objects[o.ID()] = o
}

func newObject(id clock.OpID, kind object.Kind) Object {
	if kind == object.KindMap {
		return NewMap(id)
	}
	return NewSequence(id, kind)
}

func invalid(op object.Operation, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidOperation, op, fmt.Sprintf(format, args...))
}

// Validate checks that every operation in the batch can be applied in order.
//
// Operations may reference containers and elements created earlier in the same batch.
func (s *State) Validate(ops []object.Operation) error {
	created := make(map[clock.OpID]object.Kind)
	inserted := make(map[clock.OpID]clock.OpID)
	for _, op := range ops {
		if err := s.validate(op, created, inserted); err != nil {
			return err
		}
		if (op.Action == object.ActionSet || op.Action == object.ActionInsert) && op.Value.IsObject() {
			created[op.ID] = op.Value.Kind
		}
		if op.Action == object.ActionInsert {
			inserted[op.ID] = op.Obj
		}
	}
	return nil
}

func (s *State) validate(op object.Operation, created map[clock.OpID]object.Kind, inserted map[clock.OpID]clock.OpID) error {
	if !op.Action.Valid() {
		return invalid(op, "unknown action")
	}
	if op.Value.Kind > object.KindText {
		return invalid(op, "unknown value kind")
	}
	kind, ok := created[op.Obj]
	if !ok {
		obj, exists := s.objects[op.Obj]
		if !exists {
			return invalid(op, "unknown object")
		}
		kind = obj.Kind()
	}
	if op.Action.IsMapAction() {
		if kind != object.KindMap {
			return invalid(op, "object is a %s", kind)
		}
		if op.Action == object.ActionIncrement && op.Value.Kind != object.KindInt {
			return invalid(op, "increment requires an int amount")
		}
		return nil
	}
	if !kind.IsSequence() {
		return invalid(op, "object is a %s", kind)
	}
	// elements inserted earlier in the batch are only known to their own sequence
	known := func(id clock.OpID) bool {
		if obj, ok := inserted[id]; ok {
			return obj == op.Obj
		}
		seq, ok := s.objects[op.Obj].(*Sequence)
		return ok && seq.State(id) != NodeUnknown
	}
	switch op.Action {
	case object.ActionInsert:
		if kind == object.KindText && op.Value.Kind != object.KindString {
			return invalid(op, "text elements must be strings")
		}
		if !op.Elem.IsHead() && !known(op.Elem) {
			return invalid(op, "unknown reference element")
		}
	case object.ActionRemove:
		if !known(op.Elem) {
			return invalid(op, "unknown element")
		}
	}
	return nil
}

// Apply validates and applies a single operation.
//
// The returned function reverts the operation. It must be called in reverse
// order of application and only for operations that were never published.
func (s *State) Apply(op object.Operation) (func(), error) {
	if err := s.Validate([]object.Operation{op}); err != nil {
		return nil, err
	}
	return s.apply(op), nil
}

// ApplyAll validates the whole batch and then applies every operation.
//
// Either all operations are applied or none are.
func (s *State) ApplyAll(ops []object.Operation) error {
	if err := s.Validate(ops); err != nil {
		return err
	}
	for _, op := range ops {
		s.apply(op)
	}
	return nil
}

func (s *State) apply(op object.Operation) func() {
	var revert func()
	switch op.Action {
	case object.ActionSet, object.ActionDelete:
		m := s.objects[op.Obj].(*Map)
		reg, created := m.register(op.Key)
		prev := reg.Values()
		reg.Apply(Entry{ID: op.ID, Value: op.Value, Deleted: op.Action == object.ActionDelete}, op.Pred)
		revert = func() {
			if created {
				delete(m.keys, op.Key)
				return
			}
			reg.Restore(prev)
		}

	case object.ActionIncrement:
		m := s.objects[op.Obj].(*Map)
		reg, created := m.register(op.Key)
		applied := reg.Increment(op.ID, op.Pred, op.Value.Int)
		revert = func() {
			if created {
				delete(m.keys, op.Key)
				return
			}
			if applied {
				reg.unincrement(op.ID, op.Pred, op.Value.Int)
			}
		}

	case object.ActionInsert:
		seq := s.objects[op.Obj].(*Sequence)
		seq.Insert(op.ID, op.Elem, op.Value)
		revert = func() {
			seq.unlink(op.ID)
		}

	case object.ActionRemove:
		seq := s.objects[op.Obj].(*Sequence)
		removed := seq.Remove(op.Elem)
		revert = func() {
			if removed {
				seq.untombstone(op.Elem)
			}
		}
	}
	if (op.Action == object.ActionSet || op.Action == object.ActionInsert) && op.Value.IsObject() {
		if _, ok := s.objects[op.ID]; !ok {
			s.objects[op.ID] = newObject(op.ID, op.Value.Kind)
			inner := revert
			revert = func() {
				delete(s.objects, op.ID)
				inner()
			}
		}
	}
	return revert
}
