package crdoc

import (
	"context"
	"testing"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/query"
	"github.com/nasdf/crdoc/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNew(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	doc, err := Open(ctx, store, "notes", core.WithActor(clock.ActorID{1}))
	require.NoError(t, err)
	assert.Equal(t, clock.ActorID{1}, doc.Actor())
	assert.Empty(t, doc.View())

	ok, err := store.Has(ctx, "notes")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAndOpen(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	doc := core.New(core.WithActor(clock.ActorID{1}))
	_, err := doc.Change(ctx, func(tx *core.Transaction) error {
		return tx.Set([]any{"title"}, core.Text("hello"))
	})
	require.NoError(t, err)
	require.NoError(t, Save(ctx, store, "notes", doc))

	loaded, err := Open(ctx, store, "notes")
	require.NoError(t, err)
	assert.Equal(t, doc.Actor(), loaded.Actor())
	assert.Equal(t, doc.View(), loaded.View())
	assert.Equal(t, doc.Heads(), loaded.Heads())
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	doc := core.New()

	res, err := Execute(ctx, store, "notes", doc, query.Params{Query: `{ title }`})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	ok, err := store.Has(ctx, "notes")
	require.NoError(t, err)
	assert.False(t, ok, "queries must not save")

	res, err = Execute(ctx, store, "notes", doc, query.Params{
		Query: `mutation { set(path: ["title"], value: "hello") }`,
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	loaded, err := Open(ctx, store, "notes")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "hello"}, loaded.View())
}
