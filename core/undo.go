package core

import (
	"context"
	"errors"
	"slices"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/crdt"
	"github.com/nasdf/crdoc/object"
)

type intentAction uint8

const (
	// restoreKey writes value back to a map key, or deletes it if deleted is set.
	restoreKey intentAction = iota
	// removeElem removes a sequence element.
	removeElem
	// insertElem inserts value directly after the tombstone of the removed element.
	insertElem
	// incrementKey adds amount to a counter.
	incrementKey
)

// intent is a single step of undoing a local edit.
//
// Intents are resolved against the state at undo time so they only revert
// what the local actor did and keep concurrent remote edits.
type intent struct {
	action  intentAction
	obj     clock.OpID
	key     string
	elem    clock.OpID
	value   any
	deleted bool
	amount  int64
}

type undoEntry struct {
	intents []intent
}

func pushEntry(stack []*undoEntry, e *undoEntry, limit int) []*undoEntry {
	if len(e.intents) == 0 || limit == 0 {
		return stack
	}
	stack = append(stack, e)
	if len(stack) > limit {
		stack = slices.Delete(stack, 0, len(stack)-limit)
	}
	return stack
}

// valueOf returns the Go value that recreates the entry.
//
// Containers are rebuilt from the objects themselves so nested text keeps its
// kind and counters keep their counter kind.
func (d *Document) valueOf(id clock.OpID, v object.Value) any {
	if !v.IsObject() {
		return v
	}
	o, ok := d.state.Object(id)
	if !ok {
		return v
	}
	switch t := o.(type) {
	case *crdt.Map:
		content := make(map[string]any)
		for _, k := range t.Keys() {
			e, _ := t.Get(k)
			content[k] = d.valueOf(e.ID, e.Value)
		}
		return container{kind: v.Kind, content: content}
	case *crdt.Sequence:
		if t.Kind() == object.KindText {
			return container{kind: v.Kind, content: t.Text()}
		}
		ids := t.Visible()
		content := make([]any, len(ids))
		for i, elem := range ids {
			n, _ := t.Node(elem)
			content[i] = d.valueOf(elem, n.Value)
		}
		return container{kind: v.Kind, content: content}
	}
	return v
}

// inverse returns the intents that undo op. It must be called before op is applied.
func (d *Document) inverse(op object.Operation) []intent {
	switch op.Action {
	case object.ActionSet, object.ActionDelete:
		m, ok := d.state.Map(op.Obj)
		if !ok {
			return nil
		}
		e, ok := m.Get(op.Key)
		if !ok {
			return []intent{{action: restoreKey, obj: op.Obj, key: op.Key, deleted: true}}
		}
		return []intent{{action: restoreKey, obj: op.Obj, key: op.Key, value: d.valueOf(e.ID, e.Value)}}

	case object.ActionIncrement:
		return []intent{{action: incrementKey, obj: op.Obj, key: op.Key, amount: -op.Value.Int}}

	case object.ActionInsert:
		return []intent{{action: removeElem, obj: op.Obj, elem: op.ID}}

	case object.ActionRemove:
		q, ok := d.state.Sequence(op.Obj)
		if !ok || q.State(op.Elem) != crdt.NodeLinked {
			return nil
		}
		n, _ := q.Node(op.Elem)
		return []intent{{action: insertElem, obj: op.Obj, elem: op.Elem, value: d.valueOf(n.ID, n.Value)}}
	}
	return nil
}

// replay applies the intents in reverse order. Intents whose target no longer exists are skipped.
func (t *Transaction) replay(intents []intent) error {
	s := t.doc.state
	for i := len(intents) - 1; i >= 0; i-- {
		in := intents[i]
		var err error
		switch in.action {
		case restoreKey:
			m, ok := s.Map(in.obj)
			if !ok {
				continue
			}
			if !in.deleted {
				err = t.setKey(m, in.key, in.value)
				break
			}
			if _, ok := m.Get(in.key); ok {
				_, err = t.apply(object.Operation{
					Action: object.ActionDelete,
					Obj:    in.obj,
					Key:    in.key,
					Pred:   registerPred(m, in.key),
				})
			}

		case incrementKey:
			m, ok := s.Map(in.obj)
			if !ok {
				continue
			}
			if pred := counterPred(m, in.key); len(pred) > 0 {
				_, err = t.apply(object.Operation{
					Action: object.ActionIncrement,
					Obj:    in.obj,
					Key:    in.key,
					Value:  object.Int(in.amount),
					Pred:   pred,
				})
			}

		case removeElem:
			q, ok := s.Sequence(in.obj)
			if ok && q.State(in.elem) == crdt.NodeLinked {
				err = t.removeElem(q, in.elem)
			}

		case insertElem:
			q, ok := s.Sequence(in.obj)
			if ok && q.State(in.elem) != crdt.NodeUnknown {
				_, err = t.insertAfter(q, in.elem, in.value)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CanUndo returns true if there is a local change to undo.
func (d *Document) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.undo) > 0
}

// CanRedo returns true if there is an undone change to redo.
func (d *Document) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.redo) > 0
}

// Undo commits a new change that reverts the last local change not yet undone.
//
// Entries whose edits were entirely overwritten by later changes are skipped.
func (d *Document) Undo(ctx context.Context) (*object.Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.step(ctx, &d.undo, &d.redo)
	if errors.Is(err, errStackEmpty) {
		return nil, ErrNothingToUndo
	}
	return c, err
}

// Redo commits a new change that reapplies the last undone change.
func (d *Document) Redo(ctx context.Context) (*object.Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.step(ctx, &d.redo, &d.undo)
	if errors.Is(err, errStackEmpty) {
		return nil, ErrNothingToRedo
	}
	return c, err
}

var errStackEmpty = errors.New("stack empty")

func (d *Document) step(ctx context.Context, from, to *[]*undoEntry) (*object.Change, error) {
	for len(*from) > 0 {
		entry := (*from)[len(*from)-1]
		*from = (*from)[:len(*from)-1]

		c, intents, err := d.transact(ctx, func(tx *Transaction) error {
			return tx.replay(entry.intents)
		}, nil)
		if errors.Is(err, ErrEmptyChange) {
			continue
		}
		if err != nil {
			*from = append(*from, entry)
			return nil, err
		}
		*to = pushEntry(*to, &undoEntry{intents: intents}, d.opts.undoLimit)
		return c, nil
	}
	return nil, errStackEmpty
}
