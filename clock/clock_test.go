package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNext(t *testing.T) {
	actor := NewActorID()
	c := New(actor, 0)

	first := c.Next()
	second := c.Next()

	assert.Equal(t, OpID{Counter: 1, Actor: actor}, first)
	assert.Equal(t, OpID{Counter: 2, Actor: actor}, second)
	assert.True(t, first.Less(second))
}

func TestClockObserve(t *testing.T) {
	c := New(NewActorID(), 3)

	c.Observe(10)
	assert.Equal(t, uint64(11), c.Peek().Counter)

	c.Observe(2)
	assert.Equal(t, uint64(11), c.Next().Counter)
	assert.Equal(t, uint64(11), c.Max())
}

func TestOpIDCompare(t *testing.T) {
	a := ActorID{1}
	b := ActorID{2}

	assert.Equal(t, -1, OpID{Counter: 1, Actor: b}.Compare(OpID{Counter: 2, Actor: a}))
	assert.Equal(t, -1, OpID{Counter: 2, Actor: a}.Compare(OpID{Counter: 2, Actor: b}))
	assert.Equal(t, 0, OpID{Counter: 2, Actor: a}.Compare(OpID{Counter: 2, Actor: a}))
	assert.True(t, Head.IsHead())
	assert.Equal(t, "_head", Head.String())
}

func TestParseActorID(t *testing.T) {
	actor := NewActorID()

	parsed, err := ParseActorID(actor.String())
	require.NoError(t, err)
	assert.Equal(t, actor, parsed)

	_, err = ParseActorID("abcd")
	require.Error(t, err)
}

func TestVersionVector(t *testing.T) {
	a := ActorID{1}
	b := ActorID{2}

	v := VersionVector{}
	v.Observe(a, 3)
	v.Observe(a, 1)
	assert.Equal(t, uint64(3), v.Get(a))

	other := VersionVector{b: 4}
	assert.False(t, v.Covers(other))

	v.Merge(other)
	assert.True(t, v.Covers(other))
	assert.Equal(t, []ActorID{a, b}, v.Actors())

	clone := v.Clone()
	clone.Observe(b, 9)
	assert.Equal(t, uint64(4), v.Get(b))
	assert.False(t, v.Equal(clone))
	assert.True(t, v.Equal(v.Clone()))
}
