package core

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/crdt"
	"github.com/nasdf/crdoc/object"
)

// Text is a value that creates a text object with the given contents.
type Text string

// container is a container value together with the contents to fill it with.
type container struct {
	kind    object.Kind
	content any
}

// Transaction batches local edits into a single change.
//
// Every edit is applied as soon as it is made so later edits see earlier ones.
// If the transaction fails all edits are rolled back.
type Transaction struct {
	doc     *Document
	ops     []object.Operation
	reverts []func()
	intents []intent
	created map[clock.OpID]struct{}
}

// Change runs fn in a transaction and commits the resulting operations as a new change.
//
// If fn returns an error the document is left unchanged. If fn makes no edits
// ErrEmptyChange is returned.
func (d *Document) Change(ctx context.Context, fn func(tx *Transaction) error, opts ...CommitOption) (*object.Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, intents, err := d.transact(ctx, fn, opts)
	if err != nil {
		return nil, err
	}
	d.undo = pushEntry(d.undo, &undoEntry{intents: intents}, d.opts.undoLimit)
	d.redo = nil
	return c, nil
}

// Commit applies the given operations as a new change.
//
// Operation ids are assigned by the document.
func (d *Document) Commit(ctx context.Context, ops []object.Operation, opts ...CommitOption) (*object.Change, error) {
	return d.Change(ctx, func(tx *Transaction) error {
		for _, op := range ops {
			if _, err := tx.Apply(op); err != nil {
				return err
			}
		}
		return nil
	}, opts...)
}

func (d *Document) transact(ctx context.Context, fn func(tx *Transaction) error, opts []CommitOption) (*object.Change, []intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	start := d.clock.Max()
	tx := &Transaction{
		doc:     d,
		created: make(map[clock.OpID]struct{}),
	}
	if err := fn(tx); err != nil {
		tx.rollback(start)
		return nil, nil, err
	}
	if len(tx.ops) == 0 {
		return nil, nil, ErrEmptyChange
	}
	o := &commitOptions{}
	for _, opt := range opts {
		opt(o)
	}
	c := &object.Change{
		Actor:   d.Actor(),
		Seq:     d.graph.Seq(d.Actor()) + 1,
		StartOp: tx.ops[0].ID.Counter,
		Deps:    d.graph.Heads(),
		Message: o.message,
		Ops:     tx.ops,
	}
	hash, err := codec.HashChange(c)
	if err != nil {
		tx.rollback(start)
		return nil, nil, err
	}
	c.Hash = hash
	if err := d.graph.Record(c); err != nil {
		tx.rollback(start)
		return nil, nil, err
	}
	d.logger.Debug("committed local change", "hash", c.Hash.String(), "seq", c.Seq, "ops", len(c.Ops))
	return c, tx.intents, nil
}

func (t *Transaction) rollback(start uint64) {
	for i := len(t.reverts) - 1; i >= 0; i-- {
		t.reverts[i]()
	}
	t.doc.clock = clock.New(t.doc.Actor(), start)
}

// Operations returns the operations made so far.
func (t *Transaction) Operations() []object.Operation {
	return slices.Clone(t.ops)
}

// Apply applies a raw operation and returns the id it was assigned.
func (t *Transaction) Apply(op object.Operation) (clock.OpID, error) {
	return t.apply(op)
}

func (t *Transaction) apply(op object.Operation) (clock.OpID, error) {
	d := t.doc
	op.ID = d.clock.Peek()

	var in []intent
	if _, ok := t.created[op.Obj]; !ok {
		in = d.inverse(op)
	}
	revert, err := d.state.Apply(op)
	if err != nil {
		return clock.OpID{}, err
	}
	d.clock.Next()

	t.ops = append(t.ops, op)
	t.reverts = append(t.reverts, revert)
	t.intents = append(t.intents, in...)
	if (op.Action == object.ActionSet || op.Action == object.ActionInsert) && op.Value.IsObject() {
		t.created[op.ID] = struct{}{}
	}
	return op.ID, nil
}

func (t *Transaction) target(path []any) (crdt.Object, any, error) {
	if len(path) == 0 {
		return nil, nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	o, err := t.doc.state.ObjectAt(path[:len(path)-1])
	if err != nil {
		return nil, nil, err
	}
	return o, path[len(path)-1], nil
}

func (t *Transaction) sequence(path []any) (*crdt.Sequence, int, error) {
	o, step, err := t.target(path)
	if err != nil {
		return nil, 0, err
	}
	q, ok := o.(*crdt.Sequence)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %v is not a list or text", ErrInvalidPath, path[:len(path)-1])
	}
	index, ok := crdt.PathIndex(step)
	if !ok {
		return nil, 0, fmt.Errorf("%w: sequence index must be an int, got %T", ErrInvalidPath, step)
	}
	return q, index, nil
}

// Set writes a value at the given path.
//
// The last step is a map key or the index of an existing list element.
// Go maps, slices and Text values create nested containers.
func (t *Transaction) Set(path []any, value any) error {
	o, step, err := t.target(path)
	if err != nil {
		return err
	}
	switch c := o.(type) {
	case *crdt.Map:
		key, ok := step.(string)
		if !ok {
			return fmt.Errorf("%w: map key must be a string, got %T", ErrInvalidPath, step)
		}
		return t.setKey(c, key, value)
	case *crdt.Sequence:
		index, ok := crdt.PathIndex(step)
		if !ok {
			return fmt.Errorf("%w: sequence index must be an int, got %T", ErrInvalidPath, step)
		}
		elem, ok := c.ElemAt(index)
		if !ok {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
		}
		if err := t.removeElem(c, elem); err != nil {
			return err
		}
		_, err := t.insertAfter(c, elem, value)
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidPath, path)
}

// Delete removes the map key or list element at the given path.
func (t *Transaction) Delete(path []any) error {
	o, step, err := t.target(path)
	if err != nil {
		return err
	}
	switch c := o.(type) {
	case *crdt.Map:
		key, ok := step.(string)
		if !ok {
			return fmt.Errorf("%w: map key must be a string, got %T", ErrInvalidPath, step)
		}
		if _, ok := c.Get(key); !ok {
			return fmt.Errorf("%w: key %q not found", ErrInvalidPath, key)
		}
		_, err := t.apply(object.Operation{
			Action: object.ActionDelete,
			Obj:    c.ID(),
			Key:    key,
			Pred:   registerPred(c, key),
		})
		return err
	case *crdt.Sequence:
		index, ok := crdt.PathIndex(step)
		if !ok {
			return fmt.Errorf("%w: sequence index must be an int, got %T", ErrInvalidPath, step)
		}
		elem, ok := c.ElemAt(index)
		if !ok {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
		}
		return t.removeElem(c, elem)
	}
	return fmt.Errorf("%w: %v", ErrInvalidPath, path)
}

// Insert inserts a value into a list or text so it ends up at the index in the last path step.
func (t *Transaction) Insert(path []any, value any) error {
	q, index, err := t.sequence(path)
	if err != nil {
		return err
	}
	after, ok := q.InsertPosition(index)
	if !ok {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
	}
	_, err = t.insertAfter(q, after, value)
	return err
}

// Increment adds n to the counter at the given path.
func (t *Transaction) Increment(path []any, n int64) error {
	o, step, err := t.target(path)
	if err != nil {
		return err
	}
	m, ok := o.(*crdt.Map)
	if !ok {
		return fmt.Errorf("%w: counters can only be stored in maps", ErrInvalidPath)
	}
	key, ok := step.(string)
	if !ok {
		return fmt.Errorf("%w: map key must be a string, got %T", ErrInvalidPath, step)
	}
	pred := counterPred(m, key)
	if len(pred) == 0 {
		return fmt.Errorf("%w: %q is not a counter", ErrInvalidPath, key)
	}
	_, err = t.apply(object.Operation{
		Action: object.ActionIncrement,
		Obj:    m.ID(),
		Key:    key,
		Value:  object.Int(n),
		Pred:   pred,
	})
	return err
}

// SpliceText removes deleteCount characters at index from the text at path and inserts text in their place.
func (t *Transaction) SpliceText(path []any, index, deleteCount int, text string) error {
	o, err := t.doc.state.ObjectAt(path)
	if err != nil {
		return err
	}
	q, ok := o.(*crdt.Sequence)
	if !ok || q.Kind() != object.KindText {
		return fmt.Errorf("%w: %v is not text", ErrInvalidPath, path)
	}
	if index < 0 || deleteCount < 0 || index+deleteCount > q.Len() {
		return fmt.Errorf("%w: splice %d+%d out of range", ErrInvalidPath, index, deleteCount)
	}
	for range deleteCount {
		elem, _ := q.ElemAt(index)
		if err := t.removeElem(q, elem); err != nil {
			return err
		}
	}
	after, _ := q.InsertPosition(index)
	for _, r := range text {
		if after, err = t.insertAfter(q, after, string(r)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transaction) setKey(m *crdt.Map, key string, value any) error {
	v, content, err := toValue(value)
	if err != nil {
		return err
	}
	id, err := t.apply(object.Operation{
		Action: object.ActionSet,
		Obj:    m.ID(),
		Key:    key,
		Value:  v,
		Pred:   registerPred(m, key),
	})
	if err != nil {
		return err
	}
	return t.fill(id, v.Kind, content)
}

func (t *Transaction) insertAfter(q *crdt.Sequence, after clock.OpID, value any) (clock.OpID, error) {
	v, content, err := toValue(value)
	if err != nil {
		return clock.OpID{}, err
	}
	id, err := t.apply(object.Operation{
		Action: object.ActionInsert,
		Obj:    q.ID(),
		Elem:   after,
		Value:  v,
	})
	if err != nil {
		return clock.OpID{}, err
	}
	return id, t.fill(id, v.Kind, content)
}

func (t *Transaction) removeElem(q *crdt.Sequence, elem clock.OpID) error {
	_, err := t.apply(object.Operation{
		Action: object.ActionRemove,
		Obj:    q.ID(),
		Elem:   elem,
	})
	return err
}

// fill writes the contents of a freshly created container.
func (t *Transaction) fill(id clock.OpID, kind object.Kind, content any) error {
	if content == nil {
		return nil
	}
	switch kind {
	case object.KindMap:
		m, _ := t.doc.state.Map(id)
		values, ok := content.(map[string]any)
		if !ok {
			return fmt.Errorf("map contents must be a map[string]any, got %T", content)
		}
		for _, k := range slices.Sorted(maps.Keys(values)) {
			if err := t.setKey(m, k, values[k]); err != nil {
				return err
			}
		}
	case object.KindList:
		q, _ := t.doc.state.Sequence(id)
		values, ok := content.([]any)
		if !ok {
			return fmt.Errorf("list contents must be a []any, got %T", content)
		}
		after := clock.Head
		for _, v := range values {
			var err error
			if after, err = t.insertAfter(q, after, v); err != nil {
				return err
			}
		}
	case object.KindText:
		q, _ := t.doc.state.Sequence(id)
		text, ok := content.(string)
		if !ok {
			return fmt.Errorf("text contents must be a string, got %T", content)
		}
		after := clock.Head
		for _, r := range text {
			var err error
			if after, err = t.insertAfter(q, after, string(r)); err != nil {
				return err
			}
		}
	}
	return nil
}

// toValue converts a Go value into an operation value and the contents of the container it creates.
func toValue(x any) (object.Value, any, error) {
	switch v := x.(type) {
	case map[string]any:
		return object.NewMap(), v, nil
	case []any:
		return object.NewList(), v, nil
	case Text:
		return object.NewText(), string(v), nil
	case container:
		return object.Value{Kind: v.kind}, v.content, nil
	}
	v, err := object.ValueOf(x)
	if err != nil {
		return object.Value{}, nil, err
	}
	return v, nil, nil
}

func registerPred(m *crdt.Map, key string) []clock.OpID {
	r := m.Register(key)
	if r == nil {
		return nil
	}
	return r.IDs()
}

func counterPred(m *crdt.Map, key string) []clock.OpID {
	r := m.Register(key)
	if r == nil {
		return nil
	}
	var pred []clock.OpID
	for _, e := range r.Values() {
		if e.Value.IsCounter() {
			pred = append(pred, e.ID)
		}
	}
	return pred
}
