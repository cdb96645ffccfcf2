package core

import (
	"io"
	"log/slog"

	"github.com/nasdf/crdoc/clock"
)

const (
	// DefaultBufferCapacity is the number of out of order changes held by default.
	DefaultBufferCapacity = 1024
	// DefaultUndoLimit is the default depth of the undo stack.
	DefaultUndoLimit = 100
)

type options struct {
	actor          clock.ActorID
	logger         *slog.Logger
	bufferCapacity int
	undoLimit      int
}

// Option configures a Document.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		bufferCapacity: DefaultBufferCapacity,
		undoLimit:      DefaultUndoLimit,
	}
}

// WithActor sets the actor id of the replica.
// A random actor is used when this is not set.
func WithActor(actor clock.ActorID) Option {
	return func(o *options) {
		o.actor = actor
	}
}

// WithLogger sets the logger for the document.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBufferCapacity sets how many changes with missing dependencies are held.
// Zero disables buffering.
func WithBufferCapacity(n int) Option {
	return func(o *options) {
		o.bufferCapacity = max(n, 0)
	}
}

// WithUndoLimit sets the maximum depth of the undo and redo stacks.
func WithUndoLimit(n int) Option {
	return func(o *options) {
		o.undoLimit = max(n, 0)
	}
}

type commitOptions struct {
	message string
}

// CommitOption configures a single local change.
type CommitOption func(*commitOptions)

// WithMessage attaches a message to the change. The message is part of the hashed content.
func WithMessage(message string) CommitOption {
	return func(o *commitOptions) {
		o.message = message
	}
}
