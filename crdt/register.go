package crdt

import (
	"slices"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"
)

// Entry is one value in a register conflict set.
type Entry struct {
	// ID is the id of the operation that wrote the value.
	ID clock.OpID
	// Value is the written value.
	Value object.Value
	// Deleted is true if the entry is the absent value written by a delete.
	Deleted bool
}

// Register is a multi-value register.
//
// Entries are kept sorted by id. A write removes the entries its author had
// seen (its preds) so only concurrent writes remain side by side.
type Register struct {
	entries []Entry
	incs    map[clock.OpID]struct{}
}

// Has returns true if an entry with the given id is present.
func (r *Register) Has(id clock.OpID) bool {
	_, ok := r.index(id)
	return ok
}

func (r *Register) index(id clock.OpID) (int, bool) {
	return slices.BinarySearchFunc(r.entries, id, func(e Entry, id clock.OpID) int {
		return e.ID.Compare(id)
	})
}

// Apply removes the entries listed in pred and adds the given entry.
//
// Returns false if the entry was already applied.
func (r *Register) Apply(e Entry, pred []clock.OpID) bool {
	if r.Has(e.ID) {
		return false
	}
	r.entries = slices.DeleteFunc(r.entries, func(x Entry) bool {
		return slices.Contains(pred, x.ID)
	})
	i, _ := r.index(e.ID)
	r.entries = slices.Insert(r.entries, i, e)
	return true
}

// Increment adds amount to every counter entry listed in pred.
//
// The increment is identified by id so applying it twice has no effect.
func (r *Register) Increment(id clock.OpID, pred []clock.OpID, amount int64) bool {
	if _, ok := r.incs[id]; ok {
		return false
	}
	if r.incs == nil {
		r.incs = make(map[clock.OpID]struct{})
	}
	r.incs[id] = struct{}{}
	r.add(pred, amount)
	return true
}

func (r *Register) add(pred []clock.OpID, amount int64) {
	for i, e := range r.entries {
		if e.Value.IsCounter() && slices.Contains(pred, e.ID) {
			r.entries[i].Value.Int += amount
		}
	}
}

func (r *Register) unincrement(id clock.OpID, pred []clock.OpID, amount int64) {
	delete(r.incs, id)
	r.add(pred, -amount)
}

// Current returns the entry with the greatest id.
func (r *Register) Current() (Entry, bool) {
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Values returns a copy of the full conflict set.
func (r *Register) Values() []Entry {
	return slices.Clone(r.entries)
}

// IDs returns the ids of every entry in the conflict set.
func (r *Register) IDs() []clock.OpID {
	ids := make([]clock.OpID, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.ID
	}
	return ids
}

// Len returns the number of entries in the conflict set.
func (r *Register) Len() int {
	return len(r.entries)
}

// Restore replaces the conflict set with the given entries.
func (r *Register) Restore(entries []Entry) {
	r.entries = slices.Clone(entries)
	slices.SortFunc(r.entries, func(a, b Entry) int {
		return a.ID.Compare(b.ID)
	})
}
