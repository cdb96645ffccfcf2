package core

import (
	"errors"

	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/crdt"
)

var (
	// ErrDependencyGap is returned when a change references changes that are not known yet.
	ErrDependencyGap = errors.New("dependency gap")
	// ErrMalformedChange is returned when a change can never be applied.
	ErrMalformedChange = errors.New("malformed change")
	// ErrEmptyChange is returned when a local commit contains no operations.
	ErrEmptyChange = errors.New("empty change")
	// ErrBufferFull is returned when the receive buffer is at capacity.
	ErrBufferFull = errors.New("receive buffer full")
	// ErrNothingToUndo is returned when the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo is returned when the redo stack is empty.
	ErrNothingToRedo = errors.New("nothing to redo")
	// ErrCodecVersionMismatch is returned when persisted data uses an unsupported format version.
	ErrCodecVersionMismatch = codec.ErrVersionMismatch
	// ErrInvalidPath is returned when a path does not resolve to a value.
	ErrInvalidPath = crdt.ErrInvalidPath
)
