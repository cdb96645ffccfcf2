package clock

import (
	"fmt"
	"slices"
	"strings"
)

// VersionVector maps each actor to the highest counter seen from it.
type VersionVector map[ActorID]uint64

// Get returns the highest counter seen for the actor.
func (v VersionVector) Get(actor ActorID) uint64 {
	return v[actor]
}

// Observe records the given counter for the actor if it is newer.
func (v VersionVector) Observe(actor ActorID, counter uint64) {
	if counter > v[actor] {
		v[actor] = counter
	}
}

// Merge raises every entry to the maximum of both vectors.
func (v VersionVector) Merge(other VersionVector) {
	for a, c := range other {
		v.Observe(a, c)
	}
}

// Covers returns true if v has seen everything other has seen.
func (v VersionVector) Covers(other VersionVector) bool {
	for a, c := range other {
		if v[a] < c {
			return false
		}
	}
	return true
}

// Equal returns true if both vectors contain the same non-zero entries.
func (v VersionVector) Equal(other VersionVector) bool {
	return v.Covers(other) && other.Covers(v)
}

// Clone returns a copy of the vector.
func (v VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(v))
	for a, c := range v {
		out[a] = c
	}
	return out
}

// Actors returns the actors in the vector sorted by id.
func (v VersionVector) Actors() []ActorID {
	actors := make([]ActorID, 0, len(v))
	for a := range v {
		actors = append(actors, a)
	}
	slices.SortFunc(actors, ActorID.Compare)
	return actors
}

func (v VersionVector) String() string {
	parts := make([]string, 0, len(v))
	for _, a := range v.Actors() {
		parts = append(parts, fmt.Sprintf("%s:%d", a, v[a]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
