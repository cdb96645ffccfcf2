package object

import (
	"slices"
	"strings"

	"github.com/nasdf/crdoc/clock"

	"github.com/ipfs/go-cid"
)

// Change is an immutable batch of operations authored by one actor.
type Change struct {
	// Hash is the content hash of the change.
	Hash cid.Cid
	// Actor is the author of the change.
	Actor clock.ActorID
	// Seq is the number of this change in the actor's history, starting at 1.
	Seq uint64
	// StartOp is the counter of the first operation.
	StartOp uint64
	// Deps are the hashes of the changes this change was authored on top of.
	Deps []cid.Cid
	// Message is an optional description.
	Message string
	// Ops is the ordered list of operations.
	Ops []Operation
}

// MaxOp returns the counter of the last operation in the change.
func (c *Change) MaxOp() uint64 {
	if len(c.Ops) == 0 {
		return c.StartOp
	}
	return c.StartOp + uint64(len(c.Ops)) - 1
}

// OpID returns the id of the operation at index i.
func (c *Change) OpID(i int) clock.OpID {
	return clock.OpID{Counter: c.StartOp + uint64(i), Actor: c.Actor}
}

// AssignIDs sets the id of every operation from the change actor and start op.
func (c *Change) AssignIDs() {
	for i := range c.Ops {
		c.Ops[i].ID = c.OpID(i)
	}
}

// CompareHashes orders hashes by their binary representation.
func CompareHashes(a, b cid.Cid) int {
	return strings.Compare(a.KeyString(), b.KeyString())
}

// SortHashes sorts the given hashes in place and returns them.
func SortHashes(hashes []cid.Cid) []cid.Cid {
	slices.SortFunc(hashes, CompareHashes)
	return hashes
}
