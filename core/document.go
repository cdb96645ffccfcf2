package core

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/crdt"
	"github.com/nasdf/crdoc/object"

	"github.com/ipfs/go-cid"
)

// Document is one replica of a replicated document.
//
// A Document is safe to share between goroutines, but every local edit is
// applied under a single lock so there is only ever one writer.
type Document struct {
	mu     sync.Mutex
	opts   *options
	logger *slog.Logger
	clock  *clock.Clock
	state  *crdt.State
	graph  *Graph
	buffer []*object.Change
	undo   []*undoEntry
	redo   []*undoEntry
	// saved is the number of changes written by the last save.
	saved int
}

// New returns an empty document.
func New(opts ...Option) *Document {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.actor.IsZero() {
		o.actor = clock.NewActorID()
	}
	return &Document{
		opts:   o,
		logger: o.logger.With("actor", o.actor.String()),
		clock:  clock.New(o.actor, 0),
		state:  crdt.NewState(),
		graph:  NewGraph(),
	}
}

// Actor returns the actor id of this replica.
func (d *Document) Actor() clock.ActorID {
	return d.opts.actor
}

// Clock returns the version vector of every applied change.
func (d *Document) Clock() clock.VersionVector {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.graph.Clock()
}

// Heads returns the hashes of the changes with no known successor.
func (d *Document) Heads() []cid.Cid {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.graph.Heads()
}

// Changes returns every applied change in application order.
func (d *Document) Changes() []*object.Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.graph.Changes()
}

// GetChange returns the applied change with the given hash.
func (d *Document) GetChange(hash cid.Cid) (*object.Change, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.graph.Get(hash)
}

// Read calls fn with the document state while holding the document lock.
// The state must not be modified or retained.
func (d *Document) Read(fn func(s *crdt.State) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fn(d.state)
}

// Graph calls fn with the causal graph while holding the document lock.
func (d *Document) Graph(fn func(g *Graph) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fn(d.graph)
}

// View returns a read-only projection of the whole document.
func (d *Document) View() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state.View()
}

// Get returns the projection of the value at the given path.
func (d *Document) Get(path ...any) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state.ValueAt(path)
}

// Conflicts returns every concurrent value of the map key at the given path.
//
// Values are sorted by the id of the operation that wrote them, the winner last.
func (d *Document) Conflicts(path ...any) ([]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, key, err := d.mapKey(path)
	if err != nil {
		return nil, err
	}
	entries := m.Conflicts(key)
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = d.entryView(e)
	}
	return out, nil
}

func (d *Document) entryView(e crdt.Entry) any {
	if !e.Value.IsObject() {
		return e.Value.Interface()
	}
	o, ok := d.state.Object(e.ID)
	if !ok {
		return nil
	}
	return d.state.ViewOf(o)
}

// Text returns the contents of the text object at the given path.
func (d *Document) Text(path ...any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, err := d.sequenceAt(path)
	if err != nil {
		return "", err
	}
	if q.Kind() != object.KindText {
		return "", fmt.Errorf("%w: %v is a %s", ErrInvalidPath, path, q.Kind())
	}
	return q.Text(), nil
}

// Len returns the number of visible entries in the container at the given path.
func (d *Document) Len(path ...any) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, err := d.state.ObjectAt(path)
	if err != nil {
		return 0, err
	}
	switch t := o.(type) {
	case *crdt.Map:
		return t.Len(), nil
	case *crdt.Sequence:
		return t.Len(), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrInvalidPath, path)
}

// EncodeState returns the canonical encoding of the current state.
//
// Replicas that applied the same changes return identical bytes.
func (d *Document) EncodeState() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return codec.EncodeState(d.state)
}

func (d *Document) mapKey(path []any) (*crdt.Map, string, error) {
	if len(path) == 0 {
		return nil, "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	o, err := d.state.ObjectAt(path[:len(path)-1])
	if err != nil {
		return nil, "", err
	}
	m, ok := o.(*crdt.Map)
	if !ok {
		return nil, "", fmt.Errorf("%w: %v is not a map", ErrInvalidPath, path[:len(path)-1])
	}
	key, ok := path[len(path)-1].(string)
	if !ok {
		return nil, "", fmt.Errorf("%w: map key must be a string, got %T", ErrInvalidPath, path[len(path)-1])
	}
	return m, key, nil
}

func (d *Document) sequenceAt(path []any) (*crdt.Sequence, error) {
	o, err := d.state.ObjectAt(path)
	if err != nil {
		return nil, err
	}
	q, ok := o.(*crdt.Sequence)
	if !ok {
		return nil, fmt.Errorf("%w: %v is not a list or text", ErrInvalidPath, path)
	}
	return q, nil
}
