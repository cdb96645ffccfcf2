package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nasdf/crdoc"
	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/storage"
)

var errDocumentNotFound = errors.New("document not found")

// documentOptions returns the document options from the config.
func documentOptions() []core.Option {
	opts := []core.Option{core.WithLogger(slog.Default())}
	if cfg.Buffer > 0 {
		opts = append(opts, core.WithBufferCapacity(cfg.Buffer))
	}
	if cfg.UndoLimit > 0 {
		opts = append(opts, core.WithUndoLimit(cfg.UndoLimit))
	}
	return opts
}

// actorOption returns the option that sets the actor of new documents.
func actorOption() (core.Option, bool, error) {
	if cfg.Actor == "" {
		return nil, false, nil
	}
	actor, err := clock.ParseActorID(cfg.Actor)
	if err != nil {
		return nil, false, fmt.Errorf("invalid actor %q: %w", cfg.Actor, err)
	}
	return core.WithActor(actor), true, nil
}

// newActorOptions returns the options for a document created on this replica.
//
// Documents created from another replica's file must not reuse its actor.
func newActorOptions() ([]core.Option, error) {
	actor, ok, err := actorOption()
	if err != nil {
		return nil, err
	}
	if !ok {
		actor = core.WithActor(clock.NewActorID())
	}
	return append(documentOptions(), actor), nil
}

// withWorkspace opens the workspace for the duration of fn.
func withWorkspace(fn func(store *storage.Bolt) error) error {
	store, err := storage.NewBolt(cfg.Workspace)
	if err != nil {
		return fmt.Errorf("failed to open workspace %s: %w", cfg.Workspace, err)
	}
	defer store.Close()
	return fn(store)
}

// openDocument loads an existing document from the workspace.
func openDocument(ctx context.Context, store storage.Storage, name string) (*core.Document, error) {
	ok, err := store.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errDocumentNotFound, name)
	}
	return crdoc.Open(ctx, store, name, documentOptions()...)
}

// editDocument loads a document, runs fn, and saves the document if fn succeeds.
func editDocument(ctx context.Context, name string, fn func(doc *core.Document) error) error {
	return withWorkspace(func(store *storage.Bolt) error {
		doc, err := openDocument(ctx, store, name)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		return crdoc.Save(ctx, store, name, doc)
	})
}

// readDocument loads a document and runs fn without saving.
func readDocument(ctx context.Context, name string, fn func(doc *core.Document) error) error {
	return withWorkspace(func(store *storage.Bolt) error {
		doc, err := openDocument(ctx, store, name)
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

// parsePath splits a slash separated path into its steps.
func parsePath(s string) []any {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "/")
	path := make([]any, len(parts))
	for i, p := range parts {
		path[i] = p
	}
	return path
}
