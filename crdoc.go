package crdoc

import (
	"context"
	"errors"
	"slices"

	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/query"
	"github.com/nasdf/crdoc/storage"
)

// Open loads the document saved under name from the given store.
//
// If no document has been saved under name a new empty document is returned.
func Open(ctx context.Context, store storage.Storage, name string, opts ...core.Option) (*core.Document, error) {
	data, err := store.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return core.New(opts...), nil
	}
	if err != nil {
		return nil, err
	}
	return core.Load(ctx, data, opts...)
}

// Save writes a snapshot of the document under name in the given store.
func Save(ctx context.Context, store storage.Storage, name string, doc *core.Document) error {
	data, err := doc.Save(ctx)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}

// Execute runs a query against the document and saves it
// under name if the query changed it.
func Execute(ctx context.Context, store storage.Storage, name string, doc *core.Document, params query.Params) (query.Response, error) {
	heads := doc.Heads()
	res := query.Execute(ctx, doc, params)
	if slices.Equal(heads, doc.Heads()) {
		return res, nil
	}
	return res, Save(ctx, store, name, doc)
}
