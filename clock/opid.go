package clock

import (
	"cmp"
	"fmt"
)

// OpID uniquely identifies an operation.
//
// The zero OpID is reserved: it names the root map and the start of every sequence.
type OpID struct {
	Counter uint64
	Actor   ActorID
}

// Head is the reserved id of the root object and the start of a sequence.
var Head = OpID{}

// IsHead returns true if the id is the reserved zero id.
func (id OpID) IsHead() bool {
	return id == Head
}

// Compare orders ids by counter and then by actor.
func (id OpID) Compare(other OpID) int {
	if c := cmp.Compare(id.Counter, other.Counter); c != 0 {
		return c
	}
	return id.Actor.Compare(other.Actor)
}

// Less returns true if id sorts before other.
func (id OpID) Less(other OpID) bool {
	return id.Compare(other) < 0
}

func (id OpID) String() string {
	if id.IsHead() {
		return "_head"
	}
	return fmt.Sprintf("%d@%s", id.Counter, id.Actor)
}
