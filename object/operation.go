package object

import (
	"fmt"

	"github.com/nasdf/crdoc/clock"
)

// Action is the kind of edit an Operation performs.
type Action uint8

const (
	// ActionSet writes a value to a map key.
	ActionSet Action = iota + 1
	// ActionDelete writes the absent value to a map key.
	ActionDelete
	// ActionInsert adds an element to a sequence after the element in Elem.
	ActionInsert
	// ActionRemove tombstones the sequence element in Elem.
	ActionRemove
	// ActionIncrement adds Value.Int to the counters listed in Pred.
	ActionIncrement
)

var actionNames = map[Action]string{
	ActionSet:       "set",
	ActionDelete:    "del",
	ActionInsert:    "ins",
	ActionRemove:    "rem",
	ActionIncrement: "inc",
}

func (a Action) String() string {
	name, ok := actionNames[a]
	if !ok {
		return fmt.Sprintf("action(%d)", a)
	}
	return name
}

// Valid returns true if the action is one of the known actions.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// IsMapAction returns true if the action targets a map key.
func (a Action) IsMapAction() bool {
	return a == ActionSet || a == ActionDelete || a == ActionIncrement
}

// Operation is a single atomic edit.
type Operation struct {
	// ID is assigned when the operation is committed.
	ID clock.OpID
	// Action is the kind of edit.
	Action Action
	// Obj is the id of the container being edited.
	Obj clock.OpID
	// Key is the map key for map actions.
	Key string
	// Elem is the insert-after reference or the removed element for sequence actions.
	Elem clock.OpID
	// Value is the written value, or the increment amount.
	Value Value
	// Pred lists the register entries this operation supersedes.
	Pred []clock.OpID
}

func (op Operation) String() string {
	switch op.Action {
	case ActionSet:
		return fmt.Sprintf("%s %s %s[%q]=%s", op.ID, op.Action, op.Obj, op.Key, op.Value)
	case ActionDelete:
		return fmt.Sprintf("%s %s %s[%q]", op.ID, op.Action, op.Obj, op.Key)
	case ActionIncrement:
		return fmt.Sprintf("%s %s %s[%q]+=%d", op.ID, op.Action, op.Obj, op.Key, op.Value.Int)
	case ActionInsert:
		return fmt.Sprintf("%s %s %s after %s=%s", op.ID, op.Action, op.Obj, op.Elem, op.Value)
	default:
		return fmt.Sprintf("%s %s %s %s", op.ID, op.Action, op.Obj, op.Elem)
	}
}
