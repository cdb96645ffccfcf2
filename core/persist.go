package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/object"

	"github.com/ipfs/go-cid"
)

// Save returns a snapshot of the document: state, version vector, heads and full history.
func (d *Document) Save(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := &codec.File{
		Header:  d.header(codec.KindSnapshot),
		State:   d.state,
		Clock:   d.graph.Clock(),
		Heads:   d.graph.Heads(),
		Changes: d.graph.Changes(),
	}
	return d.encode(ctx, f)
}

// SaveChanges returns the full change log of the document.
func (d *Document) SaveChanges(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := &codec.File{
		Header:  d.header(codec.KindChanges),
		Changes: d.graph.Changes(),
	}
	return d.encode(ctx, f)
}

// SaveIncremental returns the changes applied since the last save.
func (d *Document) SaveIncremental(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := &codec.File{
		Header:  d.header(codec.KindChanges),
		Changes: d.graph.Changes()[d.saved:],
	}
	return d.encode(ctx, f)
}

func (d *Document) header(kind string) codec.Header {
	return codec.Header{
		Actor:   d.Actor(),
		Counter: d.clock.Max(),
		Kind:    kind,
	}
}

func (d *Document) encode(ctx context.Context, f *codec.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.Encode(ctx, f, &buf); err != nil {
		return nil, err
	}
	d.saved = d.graph.Len()
	d.logger.Debug("saved document", "kind", f.Header.Kind, "changes", len(f.Changes), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// Load returns a document restored from data written by Save or SaveChanges.
//
// The saved actor is reused unless WithActor is given.
func Load(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	f, err := decodeFile(ctx, data)
	if err != nil {
		return nil, err
	}
	d := New(append([]Option{WithActor(f.Header.Actor)}, opts...)...)
	d.clock.Observe(f.Header.Counter)

	if f.Header.Kind == codec.KindChanges {
		res, err := d.Receive(ctx, f.Changes...)
		if err != nil {
			return nil, err
		}
		if len(res.Buffered) > 0 {
			return nil, fmt.Errorf("%w: %d changes are missing their dependencies", ErrDependencyGap, len(res.Buffered))
		}
		d.saved = d.graph.Len()
		return d, nil
	}
	for _, c := range f.Changes {
		c.AssignIDs()
		if err := d.graph.Record(c); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedChange, err)
		}
		d.clock.Observe(c.MaxOp())
	}
	if !d.graph.Clock().Equal(f.Clock) || !equalHashes(d.graph.Heads(), object.SortHashes(f.Heads)) {
		return nil, fmt.Errorf("%w: snapshot history does not match its clock", codec.ErrInvalidFormat)
	}
	d.state = f.State
	d.saved = d.graph.Len()
	d.logger.Debug("loaded snapshot", "changes", d.graph.Len())
	return d, nil
}

// LoadIncremental applies the changes contained in data written by any save method.
func (d *Document) LoadIncremental(ctx context.Context, data []byte) (int, error) {
	f, err := decodeFile(ctx, data)
	if err != nil {
		return 0, err
	}
	return d.MergeRemote(ctx, f.Changes...)
}

func decodeFile(ctx context.Context, data []byte) (*codec.File, error) {
	f, err := codec.DecodeBytes(ctx, data)
	if errors.Is(err, codec.ErrHashMismatch) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedChange, err)
	}
	return f, err
}

func equalHashes(a, b []cid.Cid) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}
