package clock

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ActorID identifies one independent editing session.
type ActorID [16]byte

// NewActorID returns a new random actor id.
func NewActorID() ActorID {
	return ActorID(uuid.New())
}

// ParseActorID parses the hex representation of an actor id.
func ParseActorID(s string) (ActorID, error) {
	var id ActorID
	data, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	return ActorIDFromBytes(data)
}

// ActorIDFromBytes returns the actor id contained in the given bytes.
func ActorIDFromBytes(data []byte) (ActorID, error) {
	var id ActorID
	if len(data) != len(id) {
		return id, fmt.Errorf("invalid actor id length %d", len(data))
	}
	copy(id[:], data)
	return id, nil
}

// Bytes returns a copy of the raw actor id bytes.
func (a ActorID) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// IsZero returns true if the actor id has not been set.
func (a ActorID) IsZero() bool {
	return a == ActorID{}
}

// Compare returns -1, 0, or 1 comparing the raw bytes of both ids.
func (a ActorID) Compare(other ActorID) int {
	return bytes.Compare(a[:], other[:])
}

// String returns the hex representation of the actor id.
func (a ActorID) String() string {
	return hex.EncodeToString(a[:])
}
