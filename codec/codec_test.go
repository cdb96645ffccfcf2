package codec

import (
	"bytes"
	"context"
	"testing"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/crdt"
	"github.com/nasdf/crdoc/object"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	actorA = clock.ActorID{1}
	actorB = clock.ActorID{2}
)

func opID(counter uint64, actor clock.ActorID) clock.OpID {
	return clock.OpID{Counter: counter, Actor: actor}
}

func testChange(t *testing.T) *object.Change {
	c := &object.Change{
		Actor:   actorA,
		Seq:     1,
		StartOp: 1,
		Message: "add note",
		Ops: []object.Operation{
			{Action: object.ActionSet, Obj: clock.Head, Key: "note", Value: object.NewText()},
			{Action: object.ActionInsert, Obj: opID(1, actorA), Elem: clock.Head, Value: object.String("h")},
			{Action: object.ActionSet, Obj: clock.Head, Key: "hits", Value: object.Counter(3)},
			{Action: object.ActionIncrement, Obj: clock.Head, Key: "hits", Value: object.Int(2), Pred: []clock.OpID{opID(3, actorA)}},
			{Action: object.ActionSet, Obj: clock.Head, Key: "raw", Value: object.Bytes([]byte{1, 2})},
			{Action: object.ActionSet, Obj: clock.Head, Key: "pi", Value: object.Float(3.5)},
		},
	}
	c.AssignIDs()
	h, err := HashChange(c)
	require.NoError(t, err)
	c.Hash = h
	return c
}

func TestChangeRoundTrip(t *testing.T) {
	c := testChange(t)

	data, err := EncodeChange(c)
	require.NoError(t, err)

	out, err := DecodeChange(data)
	require.NoError(t, err)
	assert.Equal(t, c, out)
	assert.True(t, c.Hash.Equals(out.Hash))
}

func TestChangeHashCoversDeps(t *testing.T) {
	a := testChange(t)

	b := testChange(t)
	b.Seq = 2
	b.Deps = []cid.Cid{a.Hash}
	hb, err := HashChange(b)
	require.NoError(t, err)
	assert.False(t, hb.Equals(a.Hash))

	data, err := EncodeChange(b)
	require.NoError(t, err)
	out, err := DecodeChange(data)
	require.NoError(t, err)
	require.Len(t, out.Deps, 1)
	assert.True(t, out.Deps[0].Equals(a.Hash))
}

func TestVerifyChange(t *testing.T) {
	c := testChange(t)
	require.NoError(t, VerifyChange(c))

	c.Message = "tampered"
	assert.ErrorIs(t, VerifyChange(c), ErrHashMismatch)
}

func TestDecodeChangeInvalid(t *testing.T) {
	_, err := DecodeChange([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestChangesBatch(t *testing.T) {
	a := testChange(t)
	b := &object.Change{Actor: actorB, Seq: 1, StartOp: 7, Deps: []cid.Cid{a.Hash}, Ops: []object.Operation{
		{Action: object.ActionDelete, Obj: clock.Head, Key: "pi", Pred: []clock.OpID{opID(6, actorA)}},
	}}
	b.AssignIDs()
	hb, err := HashChange(b)
	require.NoError(t, err)
	b.Hash = hb

	data, err := EncodeChanges([]*object.Change{a, b})
	require.NoError(t, err)
	out, err := DecodeChanges(data)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Hash.Equals(a.Hash))
	assert.Equal(t, opID(7, actorB), out[1].Ops[0].ID)
	assert.Equal(t, object.ActionDelete, out[1].Ops[0].Action)
	require.NoError(t, VerifyChange(out[1]))
}

func TestVersionVectorRoundTrip(t *testing.T) {
	vv := clock.VersionVector{actorA: 4, actorB: 9}
	data, err := EncodeVersionVector(vv)
	require.NoError(t, err)
	out, err := DecodeVersionVector(data)
	require.NoError(t, err)
	assert.True(t, vv.Equal(out))
}

func testState(t *testing.T) *crdt.State {
	s := crdt.NewState()
	text := opID(1, actorA)
	ops := []object.Operation{
		{ID: text, Action: object.ActionSet, Obj: clock.Head, Key: "note", Value: object.NewText()},
		{ID: opID(2, actorA), Action: object.ActionInsert, Obj: text, Elem: clock.Head, Value: object.String("a")},
		{ID: opID(3, actorA), Action: object.ActionInsert, Obj: text, Elem: opID(2, actorA), Value: object.String("b")},
		{ID: opID(3, actorB), Action: object.ActionInsert, Obj: text, Elem: opID(2, actorA), Value: object.String("c")},
		{ID: opID(4, actorA), Action: object.ActionRemove, Obj: text, Elem: opID(3, actorA)},
		{ID: opID(5, actorA), Action: object.ActionSet, Obj: clock.Head, Key: "title", Value: object.String("x")},
		{ID: opID(5, actorB), Action: object.ActionSet, Obj: clock.Head, Key: "title", Value: object.String("y")},
		{ID: opID(6, actorA), Action: object.ActionDelete, Obj: clock.Head, Key: "gone"},
	}
	require.NoError(t, s.ApplyAll(ops))

	// an element whose reference has not arrived, and a remove that beat its insert
	_, err := s.Apply(object.Operation{ID: opID(9, actorB), Action: object.ActionInsert, Obj: text, Elem: clock.Head, Value: object.String("z")})
	require.NoError(t, err)
	seq, _ := s.Sequence(text)
	seq.Insert(opID(11, actorB), opID(10, actorB), object.String("w"))
	seq.Remove(opID(12, actorB))
	return s
}

func TestStateRoundTrip(t *testing.T) {
	s := testState(t)

	data, err := EncodeState(s)
	require.NoError(t, err)
	out, err := DecodeState(data)
	require.NoError(t, err)

	assert.Equal(t, s.View(), out.View())

	again, err := EncodeState(out)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	seq, ok := out.Sequence(opID(1, actorA))
	require.True(t, ok)
	assert.Equal(t, crdt.NodePending, seq.State(opID(11, actorB)))
	assert.Equal(t, []clock.OpID{opID(12, actorB)}, seq.Removed())

	m := out.Root()
	assert.Len(t, m.Conflicts("title"), 2)
	assert.Contains(t, m.AllKeys(), "gone")
}

func TestFileSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := testChange(t)
	f := &File{
		Header:  Header{Actor: actorA, Counter: c.MaxOp(), Kind: KindSnapshot},
		State:   testState(t),
		Clock:   clock.VersionVector{actorA: c.MaxOp()},
		Heads:   []cid.Cid{c.Hash},
		Changes: []*object.Change{c},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(ctx, f, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte(Magic)))

	out, err := DecodeBytes(ctx, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f.Header, out.Header)
	assert.Equal(t, f.State.View(), out.State.View())
	assert.True(t, f.Clock.Equal(out.Clock))
	require.Len(t, out.Heads, 1)
	assert.True(t, out.Heads[0].Equals(c.Hash))
	require.Len(t, out.Changes, 1)
	assert.Equal(t, c, out.Changes[0])
}

func TestFileChangesRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := testChange(t)
	f := &File{
		Header:  Header{Actor: actorA, Counter: c.MaxOp(), Kind: KindChanges},
		Changes: []*object.Change{c},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(ctx, f, &buf))

	out, err := Decode(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, KindChanges, out.Header.Kind)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, c, out.Changes[0])
	assert.Nil(t, out.State)
}

func TestFileVersionMismatch(t *testing.T) {
	hn, err := headerNode(Header{Version: FormatVersion + 1, Actor: actorA, Kind: KindChanges})
	require.NoError(t, err)
	header, err := encode(hn)
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.Write(varint.ToUvarint(uint64(len(header))))
	buf.Write(header)
	buf.WriteString("garbage that is never read")

	_, err = DecodeBytes(context.Background(), buf.Bytes())
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestFileInvalid(t *testing.T) {
	_, err := DecodeBytes(context.Background(), []byte("nope"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
