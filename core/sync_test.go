package core

import (
	"context"
	"testing"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/object"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func merge(t *testing.T, docs ...*Document) {
	ctx := context.Background()
	for _, a := range docs {
		for _, b := range docs {
			if a == b {
				continue
			}
			_, err := a.Merge(ctx, b)
			require.NoError(t, err)
		}
	}
}

func assertConverged(t *testing.T, docs ...*Document) {
	first, err := docs[0].EncodeState()
	require.NoError(t, err)
	for _, d := range docs[1:] {
		assert.Equal(t, docs[0].View(), d.View())
		assert.Equal(t, docs[0].Clock(), d.Clock())
		assert.Equal(t, docs[0].Heads(), d.Heads())

		state, err := d.EncodeState()
		require.NoError(t, err)
		assert.Equal(t, first, state)
	}
}

func TestConcurrentTextInsert(t *testing.T) {
	a := newDoc(1)
	b := newDoc(2)
	set(t, a, []any{"note"}, Text(""))
	merge(t, a, b)

	change(t, a, func(tx *Transaction) error {
		return tx.SpliceText([]any{"note"}, 0, 0, "hello")
	})
	change(t, b, func(tx *Transaction) error {
		return tx.SpliceText([]any{"note"}, 0, 0, "world")
	})
	merge(t, a, b)

	text, err := a.Text("note")
	require.NoError(t, err)
	assert.Equal(t, "worldhello", text)
	assertConverged(t, a, b)
}

func TestConcurrentMapSet(t *testing.T) {
	a := newDoc(1)
	b := newDoc(2)
	set(t, a, []any{"status"}, "open")
	set(t, b, []any{"status"}, "closed")
	merge(t, a, b)

	for _, d := range []*Document{a, b} {
		v, err := d.Get("status")
		require.NoError(t, err)
		assert.Equal(t, "closed", v)

		values, err := d.Conflicts("status")
		require.NoError(t, err)
		assert.ElementsMatch(t, []any{"open", "closed"}, values)
	}
	assertConverged(t, a, b)

	// a later write that saw both values resolves the conflict
	set(t, a, []any{"status"}, "done")
	merge(t, a, b)
	values, err := b.Conflicts("status")
	require.NoError(t, err)
	assert.Equal(t, []any{"done"}, values)
}

func TestConcurrentDeleteAndUnrelatedEdit(t *testing.T) {
	a := newDoc(1)
	b := newDoc(2)
	set(t, a, []any{"list"}, []any{"d", "e", "f"})
	merge(t, a, b)

	change(t, a, func(tx *Transaction) error {
		return tx.Delete([]any{"list", 1})
	})
	set(t, b, []any{"title"}, "unrelated")
	merge(t, a, b)

	v, err := b.Get("list")
	require.NoError(t, err)
	assert.Equal(t, []any{"d", "f"}, v)
	assertConverged(t, a, b)
}

func TestConcurrentSetAfterDelete(t *testing.T) {
	a := newDoc(1)
	b := newDoc(2)
	set(t, a, []any{"k"}, "v")
	merge(t, a, b)

	change(t, a, func(tx *Transaction) error {
		return tx.Delete([]any{"k"})
	})
	set(t, b, []any{"k"}, "w")
	merge(t, a, b)

	// both writes have the same counter so the greater actor wins
	v, err := a.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "w", v)
	assertConverged(t, a, b)
}

func TestTombstoneStability(t *testing.T) {
	a := newDoc(1)
	b := newDoc(2)
	c := newDoc(3)
	set(t, a, []any{"list"}, []any{"a", "b"})
	merge(t, a, b, c)

	change(t, a, func(tx *Transaction) error {
		return tx.Delete([]any{"list", 1})
	})
	change(t, b, func(tx *Transaction) error {
		return tx.Insert([]any{"list", 2}, "c")
	})
	change(t, c, func(tx *Transaction) error {
		return tx.Insert([]any{"list", 2}, "d")
	})
	merge(t, c, b, a)

	v, err := a.Get("list")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "d", "c"}, v)
	assertConverged(t, a, b, c)
}

func TestReceiveCommutative(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	b := newDoc(2)
	set(t, a, []any{"list"}, []any{"x"})
	merge(t, a, b)

	x := change(t, a, func(tx *Transaction) error {
		return tx.Insert([]any{"list", 1}, "from a")
	})
	y := change(t, b, func(tx *Transaction) error {
		if err := tx.Insert([]any{"list", 1}, "from b"); err != nil {
			return err
		}
		return tx.Set([]any{"k"}, 1)
	})
	base := a.Changes()[:1]

	xy := newDoc(3)
	_, err := xy.MergeRemote(ctx, append(base, x, y)...)
	require.NoError(t, err)

	yx := newDoc(4)
	_, err = yx.MergeRemote(ctx, append(base, y, x)...)
	require.NoError(t, err)

	assertConverged(t, xy, yx)
}

func TestReceiveIdempotent(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	c := set(t, a, []any{"k"}, "v")

	b := newDoc(2)
	res, err := b.Receive(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	before, err := b.EncodeState()
	require.NoError(t, err)

	res, err = b.Receive(ctx, c, c)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 2, res.Duplicates)

	after, err := b.EncodeState()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReceiveBuffersDependencyGap(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	c1 := set(t, a, []any{"n"}, 1)
	c2 := set(t, a, []any{"n"}, 2)
	c3 := set(t, a, []any{"n"}, 3)

	b := newDoc(2)
	res, err := b.Receive(ctx, c3, c2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Len(t, res.Buffered, 2)
	assert.Len(t, b.Pending(), 2)
	assert.Empty(t, b.View())

	// buffered changes are duplicates until they are applied
	res, err = b.Receive(ctx, c3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)

	res, err = b.Receive(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Empty(t, res.Buffered)
	assert.Empty(t, b.Pending())
	assertConverged(t, a, b)
}

func TestReceiveBufferFull(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	c1 := set(t, a, []any{"n"}, 1)
	c2 := set(t, a, []any{"n"}, 2)
	c3 := set(t, a, []any{"n"}, 3)

	b := newDoc(2, WithBufferCapacity(1))
	_, err := b.Receive(ctx, c3)
	require.NoError(t, err)

	_, err = b.Receive(ctx, c2)
	assert.ErrorIs(t, err, ErrBufferFull)

	res, err := b.Receive(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Len(t, res.Buffered, 1)

	res, err = b.Receive(ctx, c2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assertConverged(t, a, b)
}

func TestReceiveMalformed(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	c1 := set(t, a, []any{"k"}, "v")

	tampered := *c1
	tampered.Message = "tampered"

	empty := &object.Change{Actor: a.Actor(), Seq: 1, StartOp: 1}
	hash, err := codec.HashChange(empty)
	require.NoError(t, err)
	empty.Hash = hash

	b := newDoc(2)
	res, err := b.Receive(ctx, &tampered, empty)
	assert.ErrorIs(t, err, ErrMalformedChange)
	assert.Equal(t, 0, res.Applied)
	assert.Empty(t, b.View())
	assert.Empty(t, b.Pending())

	// a second change from the same actor reusing seq 1
	_, err = b.Receive(ctx, c1)
	require.NoError(t, err)
	reused := &object.Change{Actor: a.Actor(), Seq: 1, StartOp: 1, Ops: []object.Operation{
		{Action: object.ActionSet, Key: "k", Value: object.String("other")},
	}}
	reused.Hash, err = codec.HashChange(reused)
	require.NoError(t, err)
	_, err = b.Receive(ctx, reused)
	assert.ErrorIs(t, err, ErrMalformedChange)

	// an operation targeting an object that does not exist
	invalid := &object.Change{Actor: a.Actor(), Seq: 2, StartOp: 2, Deps: []cid.Cid{c1.Hash}, Ops: []object.Operation{
		{Action: object.ActionInsert, Obj: c1.Ops[0].ID, Value: object.String("x")},
	}}
	invalid.Hash, err = codec.HashChange(invalid)
	require.NoError(t, err)
	_, err = b.Receive(ctx, invalid)
	assert.ErrorIs(t, err, ErrMalformedChange)

	assert.Equal(t, map[string]any{"k": "v"}, b.View())
}

func TestReceiveBytes(t *testing.T) {
	ctx := context.Background()
	a := newDoc(1)
	set(t, a, []any{"list"}, []any{1, 2})
	b := newDoc(2)

	data, err := a.EncodeChangesSince(b.Clock())
	require.NoError(t, err)
	res, err := b.ReceiveBytes(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assertConverged(t, a, b)

	_, err = b.ReceiveBytes(ctx, []byte{0xff})
	assert.ErrorIs(t, err, ErrMalformedChange)
}

func TestChangesSince(t *testing.T) {
	a := newDoc(1)
	b := newDoc(2)
	c1 := set(t, a, []any{"a"}, 1)
	merge(t, a, b)
	c2 := set(t, a, []any{"a"}, 2)
	c3 := set(t, b, []any{"b"}, 3)
	merge(t, a, b)

	assert.Empty(t, a.ChangesSince(a.Clock()))
	assert.Len(t, a.ChangesSince(nil), 3)

	since := a.ChangesSince(clock.VersionVector{a.Actor(): c1.MaxOp()})
	assert.Equal(t, []cid.Cid{c2.Hash, c3.Hash}, hashes(since))
}

func hashes(changes []*object.Change) []cid.Cid {
	out := make([]cid.Cid, len(changes))
	for i, c := range changes {
		out[i] = c.Hash
	}
	return out
}
