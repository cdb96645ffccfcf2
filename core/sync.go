package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/object"

	"github.com/ipfs/go-cid"
)

// ReceiveResult describes what happened to a batch of received changes.
type ReceiveResult struct {
	// Applied is the number of changes applied, including buffered changes released by this batch.
	Applied int `json:"applied"`
	// Duplicates is the number of changes that were already known or buffered.
	Duplicates int `json:"duplicates"`
	// Buffered are the hashes of changes waiting for their dependencies after this batch.
	Buffered []cid.Cid `json:"buffered,omitempty"`
}

// ChangesSince returns the changes the holder of the given version vector has not seen,
// in an order where every change comes after its dependencies.
func (d *Document) ChangesSince(vv clock.VersionVector) []*object.Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.graph.Since(vv)
}

// EncodeChangesSince returns the wire encoding of ChangesSince.
func (d *Document) EncodeChangesSince(vv clock.VersionVector) ([]byte, error) {
	return codec.EncodeChanges(d.ChangesSince(vv))
}

// Pending returns the buffered changes that are waiting for their dependencies.
func (d *Document) Pending() []*object.Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.buffer)
}

// MergeRemote applies remote changes and returns how many were applied.
func (d *Document) MergeRemote(ctx context.Context, changes ...*object.Change) (int, error) {
	res, err := d.Receive(ctx, changes...)
	return res.Applied, err
}

// Merge applies every change from other that this document has not seen.
func (d *Document) Merge(ctx context.Context, other *Document) (int, error) {
	return d.MergeRemote(ctx, other.ChangesSince(d.Clock())...)
}

// ReceiveBytes decodes a batch produced by EncodeChangesSince and receives it.
func (d *Document) ReceiveBytes(ctx context.Context, data []byte) (ReceiveResult, error) {
	changes, err := codec.DecodeChanges(data)
	if err != nil {
		d.logger.Warn("rejected malformed change batch", "err", err)
		return ReceiveResult{}, fmt.Errorf("%w: %w", ErrMalformedChange, err)
	}
	return d.Receive(ctx, changes...)
}

// Receive applies remote changes in causal order.
//
// Changes whose dependencies are missing are buffered and applied once the
// dependencies arrive. Malformed changes are rejected and never applied.
// Errors for individual changes are joined; the rest of the batch is still processed.
func (d *Document) Receive(ctx context.Context, changes ...*object.Change) (ReceiveResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res ReceiveResult
	var errs []error
	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := checkChange(c); err != nil {
			d.logger.Warn("rejected malformed change", "hash", c.Hash.String(), "err", err)
			errs = append(errs, err)
			continue
		}
		if !d.graph.IsNew(c) || d.buffered(c.Hash) {
			res.Duplicates++
			continue
		}
		if !d.graph.CanApply(c) {
			if len(d.buffer) >= d.opts.bufferCapacity {
				d.logger.Warn("receive buffer full", "hash", c.Hash.String(), "capacity", d.opts.bufferCapacity)
				errs = append(errs, fmt.Errorf("%w: dropped change %s", ErrBufferFull, c.Hash))
				continue
			}
			d.logger.Debug("buffered change", "hash", c.Hash.String(), "missing", len(d.graph.Missing(c)))
			d.buffer = append(d.buffer, copyChange(c))
			continue
		}
		if err := d.applyRemote(copyChange(c)); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Applied++
		n, err := d.drain()
		res.Applied += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range d.buffer {
		res.Buffered = append(res.Buffered, c.Hash)
	}
	return res, errors.Join(errs...)
}

func (d *Document) buffered(hash cid.Cid) bool {
	return slices.ContainsFunc(d.buffer, func(c *object.Change) bool {
		return c.Hash.Equals(hash)
	})
}

// drain applies buffered changes until none of the remaining ones can be applied.
func (d *Document) drain() (int, error) {
	var applied int
	var errs []error
	for {
		i := slices.IndexFunc(d.buffer, d.graph.CanApply)
		if i < 0 {
			return applied, errors.Join(errs...)
		}
		c := d.buffer[i]
		d.buffer = slices.Delete(d.buffer, i, i+1)
		if err := d.applyRemote(c); err != nil {
			errs = append(errs, err)
			continue
		}
		applied++
	}
}

// checkChange verifies the parts of a change that do not depend on document state.
func checkChange(c *object.Change) error {
	if len(c.Ops) == 0 {
		return fmt.Errorf("%w: change %s has no operations", ErrMalformedChange, c.Hash)
	}
	if c.Seq == 0 || c.StartOp == 0 {
		return fmt.Errorf("%w: change %s has a zero seq or start op", ErrMalformedChange, c.Hash)
	}
	if err := codec.VerifyChange(c); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedChange, err)
	}
	return nil
}

// copyChange returns a copy of c whose operation ids are derived from its header.
func copyChange(c *object.Change) *object.Change {
	out := *c
	out.Deps = slices.Clone(c.Deps)
	out.Ops = slices.Clone(c.Ops)
	out.AssignIDs()
	return &out
}

// applyRemote applies a change whose dependencies are known.
func (d *Document) applyRemote(c *object.Change) error {
	if seq := d.graph.Seq(c.Actor); c.Seq != seq+1 {
		return d.reject(c, fmt.Errorf("%w: change %s has seq %d, expected %d", ErrMalformedChange, c.Hash, c.Seq, seq+1))
	}
	if last := d.graph.clock.Get(c.Actor); c.StartOp <= last {
		return d.reject(c, fmt.Errorf("%w: change %s reuses counter %d", ErrMalformedChange, c.Hash, c.StartOp))
	}
	if err := d.state.ApplyAll(c.Ops); err != nil {
		return d.reject(c, fmt.Errorf("%w: %w", ErrMalformedChange, err))
	}
	if err := d.graph.Record(c); err != nil {
		return err
	}
	d.clock.Observe(c.MaxOp())
	d.logger.Debug("applied change", "hash", c.Hash.String(), "from", c.Actor.String(), "seq", c.Seq)
	return nil
}

func (d *Document) reject(c *object.Change, err error) error {
	d.logger.Warn("rejected malformed change", "hash", c.Hash.String(), "err", err)
	return err
}
