package crdt

import (
	"testing"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insert struct {
	id     clock.OpID
	parent clock.OpID
	value  string
}

func buildText(inserts []insert) *Sequence {
	seq := NewSequence(opID(1, actorA), object.KindText)
	for _, in := range inserts {
		seq.Insert(in.id, in.parent, object.String(in.value))
	}
	return seq
}

func TestSequenceInsertOrder(t *testing.T) {
	// "ab" typed by A, then concurrently A types "c" after "a" and B types "x" after "a"
	inserts := []insert{
		{opID(2, actorA), clock.Head, "a"},
		{opID(3, actorA), opID(2, actorA), "b"},
		{opID(4, actorA), opID(2, actorA), "c"},
		{opID(4, actorB), opID(2, actorA), "x"},
	}
	seq := buildText(inserts)
	assert.Equal(t, "axcb", seq.Text())

	reversed := []insert{inserts[0], inserts[3], inserts[2], inserts[1]}
	assert.Equal(t, "axcb", buildText(reversed).Text())
}

func TestSequenceConcurrentHeadInserts(t *testing.T) {
	hello := insert{opID(1, actorA), clock.Head, "hello"}
	world := insert{opID(1, actorB), clock.Head, "world"}

	a := buildText([]insert{hello, world})
	b := buildText([]insert{world, hello})

	assert.Equal(t, a.Text(), b.Text())
	assert.Equal(t, "worldhello", a.Text())
}

func TestSequencePending(t *testing.T) {
	seq := NewSequence(opID(1, actorA), object.KindList)

	child := opID(3, actorB)
	parent := opID(2, actorA)

	require.True(t, seq.Insert(child, parent, object.Int(2)))
	assert.Equal(t, NodePending, seq.State(child))
	assert.Equal(t, 0, seq.Len())
	assert.Len(t, seq.Waiting(), 1)

	require.True(t, seq.Insert(parent, clock.Head, object.Int(1)))
	assert.Equal(t, NodeLinked, seq.State(child))
	assert.Equal(t, []object.Value{object.Int(1), object.Int(2)}, seq.Values())
	assert.Empty(t, seq.Waiting())
}

func TestSequenceTombstoneStability(t *testing.T) {
	a := opID(1, actorA)
	b := opID(2, actorA)
	late := opID(3, actorB)

	// one replica removes b before the insert after b arrives, the other after
	first := buildText([]insert{{a, clock.Head, "a"}, {b, a, "b"}})
	first.Remove(b)
	first.Insert(late, b, object.String("z"))

	second := buildText([]insert{{a, clock.Head, "a"}, {b, a, "b"}})
	second.Insert(late, b, object.String("z"))
	second.Remove(b)

	assert.Equal(t, "az", first.Text())
	assert.Equal(t, first.Text(), second.Text())
	assert.Equal(t, NodeTombstoned, first.State(b))
	assert.False(t, first.Remove(b))
	assert.Len(t, first.Elements(), 3)
}

func TestSequenceRemoveBeforeInsert(t *testing.T) {
	seq := NewSequence(opID(1, actorA), object.KindList)
	id := opID(2, actorB)

	assert.True(t, seq.Remove(id))
	assert.Equal(t, []clock.OpID{id}, seq.Removed())

	seq.Insert(id, clock.Head, object.Int(1))
	assert.Equal(t, NodeTombstoned, seq.State(id))
	assert.Equal(t, 0, seq.Len())
	assert.Empty(t, seq.Removed())
}

func TestSequencePositions(t *testing.T) {
	seq := buildText([]insert{
		{opID(1, actorA), clock.Head, "a"},
		{opID(2, actorA), opID(1, actorA), "b"},
	})

	pos, ok := seq.InsertPosition(0)
	require.True(t, ok)
	assert.Equal(t, clock.Head, pos)

	pos, ok = seq.InsertPosition(2)
	require.True(t, ok)
	assert.Equal(t, opID(2, actorA), pos)

	_, ok = seq.InsertPosition(3)
	assert.False(t, ok)

	i, ok := seq.IndexOf(opID(2, actorA))
	require.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestSequenceUnlink(t *testing.T) {
	seq := buildText([]insert{{opID(1, actorA), clock.Head, "a"}})
	seq.Insert(opID(2, actorA), opID(1, actorA), object.String("b"))
	assert.Equal(t, "ab", seq.Text())

	seq.unlink(opID(2, actorA))
	assert.Equal(t, "a", seq.Text())
	assert.Equal(t, NodeUnknown, seq.State(opID(2, actorA)))
}
