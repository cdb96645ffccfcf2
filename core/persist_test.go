package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/object"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(t *testing.T) (*Document, *Document) {
	a := newDoc(1)
	b := newDoc(2)
	set(t, a, []any{"list"}, []any{"a", "b", "c"})
	set(t, a, []any{"note"}, Text("hello"))
	set(t, a, []any{"hits"}, object.Counter(3))
	merge(t, a, b)

	set(t, a, []any{"status"}, "open")
	set(t, b, []any{"status"}, "closed")
	change(t, b, func(tx *Transaction) error {
		if err := tx.Delete([]any{"list", 1}); err != nil {
			return err
		}
		return tx.Increment([]any{"hits"}, 2)
	})
	merge(t, a, b)
	return a, b
}

func TestSaveLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	a, _ := testDocument(t)

	data, err := a.Save(ctx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(codec.Magic)))

	loaded, err := Load(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, a.Actor(), loaded.Actor())
	assertConverged(t, a, loaded)

	conflicts, err := loaded.Conflicts("status")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"open", "closed"}, conflicts)

	// the loaded replica continues the counter sequence
	c := set(t, loaded, []any{"after"}, true)
	assert.Greater(t, c.StartOp, a.Clock().Get(a.Actor()))

	n, err := a.Merge(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assertConverged(t, a, loaded)
}

func TestSaveLoadChanges(t *testing.T) {
	ctx := context.Background()
	a, b := testDocument(t)

	data, err := b.SaveChanges(ctx)
	require.NoError(t, err)

	loaded, err := Load(ctx, data, WithActor(clock.ActorID{9}))
	require.NoError(t, err)
	assert.Equal(t, clock.ActorID{9}, loaded.Actor())
	assertConverged(t, a, b, loaded)
}

func TestSaveIncremental(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	set(t, a, []any{"k"}, 1)

	snapshot, err := a.Save(ctx)
	require.NoError(t, err)
	b, err := Load(ctx, snapshot, WithActor(clock.ActorID{2}))
	require.NoError(t, err)

	set(t, a, []any{"k"}, 2)
	set(t, a, []any{"j"}, 3)
	inc, err := a.SaveIncremental(ctx)
	require.NoError(t, err)

	n, err := b.LoadIncremental(ctx, inc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assertConverged(t, a, b)

	// nothing new since the last save
	inc, err = a.SaveIncremental(ctx)
	require.NoError(t, err)
	n, err = b.LoadIncremental(ctx, inc)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoadIncompleteChanges(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	set(t, a, []any{"k"}, 1)
	_, err := a.Save(ctx)
	require.NoError(t, err)

	set(t, a, []any{"k"}, 2)
	inc, err := a.SaveIncremental(ctx)
	require.NoError(t, err)

	_, err = Load(ctx, inc)
	assert.ErrorIs(t, err, ErrDependencyGap)
}

func TestLoadVersionMismatch(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	set(t, a, []any{"k"}, 1)

	data, err := a.Save(ctx)
	require.NoError(t, err)

	// the header is a dag-cbor map where "version" is followed by its small int value
	i := bytes.Index(data, []byte("version"))
	require.Greater(t, i, 0)
	data[i+len("version")] = codec.FormatVersion + 1

	_, err = Load(ctx, data)
	assert.ErrorIs(t, err, ErrCodecVersionMismatch)
}

func TestLoadCorruptedChange(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	_, err := a.Change(ctx, func(tx *Transaction) error {
		return tx.Set([]any{"k"}, 1)
	}, WithMessage("hello"))
	require.NoError(t, err)

	data, err := a.SaveChanges(ctx)
	require.NoError(t, err)

	i := bytes.Index(data, []byte("hello"))
	require.Greater(t, i, 0)
	data[i] = 'j'

	_, err = Load(ctx, data)
	assert.ErrorIs(t, err, ErrMalformedChange)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(context.Background(), []byte("not a document"))
	assert.ErrorIs(t, err, codec.ErrInvalidFormat)
}
