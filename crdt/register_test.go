package crdt

import (
	"testing"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"

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

func TestRegisterConcurrentWrites(t *testing.T) {
	open := Entry{ID: opID(1, actorA), Value: object.String("open")}
	closed := Entry{ID: opID(1, actorB), Value: object.String("closed")}

	var r1, r2 Register
	r1.Apply(open, nil)
	r1.Apply(closed, nil)
	r2.Apply(closed, nil)
	r2.Apply(open, nil)

	assert.Equal(t, r1.Values(), r2.Values())

	cur, ok := r1.Current()
	require.True(t, ok)
	assert.Equal(t, "closed", cur.Value.Str)
	assert.Len(t, r1.Values(), 2)
}

func TestRegisterOverwrite(t *testing.T) {
	var r Register
	r.Apply(Entry{ID: opID(1, actorA), Value: object.Int(1)}, nil)
	r.Apply(Entry{ID: opID(2, actorA), Value: object.Int(2)}, []clock.OpID{opID(1, actorA)})

	assert.Equal(t, 1, r.Len())
	cur, _ := r.Current()
	assert.Equal(t, int64(2), cur.Value.Int)
}

func TestRegisterIdempotent(t *testing.T) {
	var r Register
	e := Entry{ID: opID(1, actorA), Value: object.Int(1)}

	assert.True(t, r.Apply(e, nil))
	assert.False(t, r.Apply(e, nil))
	assert.Equal(t, 1, r.Len())
}

func TestRegisterIncrement(t *testing.T) {
	var r Register
	r.Apply(Entry{ID: opID(1, actorA), Value: object.Counter(10)}, nil)

	pred := []clock.OpID{opID(1, actorA)}
	assert.True(t, r.Increment(opID(2, actorB), pred, 5))
	assert.False(t, r.Increment(opID(2, actorB), pred, 5))
	assert.True(t, r.Increment(opID(3, actorA), pred, -2))

	cur, _ := r.Current()
	assert.Equal(t, int64(13), cur.Value.Int)

	r.unincrement(opID(3, actorA), pred, -2)
	cur, _ = r.Current()
	assert.Equal(t, int64(15), cur.Value.Int)
}

func TestMapDeleteConflict(t *testing.T) {
	m := NewMap(clock.Head)
	set := opID(1, actorA)
	reg, _ := m.register("status")
	reg.Apply(Entry{ID: set, Value: object.String("open")}, nil)

	// a delete and a concurrent set that both saw the first write
	reg.Apply(Entry{ID: opID(2, actorA), Deleted: true}, []clock.OpID{set})
	reg.Apply(Entry{ID: opID(2, actorB), Value: object.String("closed")}, []clock.OpID{set})

	e, ok := m.Get("status")
	require.True(t, ok)
	assert.Equal(t, "closed", e.Value.Str)
	assert.Len(t, m.Conflicts("status"), 1)
	assert.Equal(t, []string{"status"}, m.Keys())

	reg.Apply(Entry{ID: opID(3, actorA), Deleted: true}, []clock.OpID{opID(2, actorA), opID(2, actorB)})
	_, ok = m.Get("status")
	assert.False(t, ok)
	assert.Empty(t, m.Keys())
	assert.Equal(t, []string{"status"}, m.AllKeys())
}
