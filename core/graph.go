package core

import (
	"fmt"
	"slices"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"

	"github.com/ipfs/go-cid"
)

// Graph tracks the known changes of a document and their causal order.
type Graph struct {
	changes map[string]*object.Change
	order   []*object.Change
	heads   map[string]cid.Cid
	clock   clock.VersionVector
	seqs    map[clock.ActorID]uint64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		changes: make(map[string]*object.Change),
		heads:   make(map[string]cid.Cid),
		clock:   make(clock.VersionVector),
		seqs:    make(map[clock.ActorID]uint64),
	}
}

// Has returns true if the change with the given hash is known.
func (g *Graph) Has(hash cid.Cid) bool {
	_, ok := g.changes[hash.KeyString()]
	return ok
}

// Get returns the change with the given hash.
func (g *Graph) Get(hash cid.Cid) (*object.Change, bool) {
	c, ok := g.changes[hash.KeyString()]
	return c, ok
}

// IsNew returns true if the change is not known yet.
func (g *Graph) IsNew(c *object.Change) bool {
	return !g.Has(c.Hash)
}

// CanApply returns true if every dependency of the change is known.
func (g *Graph) CanApply(c *object.Change) bool {
	return len(g.Missing(c)) == 0
}

// Missing returns the dependencies of the change that are not known.
func (g *Graph) Missing(c *object.Change) []cid.Cid {
	var missing []cid.Cid
	for _, d := range c.Deps {
		if !g.Has(d) {
			missing = append(missing, d)
		}
	}
	return missing
}

// Record adds the change to the graph and moves the heads forward.
//
// Recording a known change has no effect.
func (g *Graph) Record(c *object.Change) error {
	if !g.IsNew(c) {
		return nil
	}
	if missing := g.Missing(c); len(missing) > 0 {
		return fmt.Errorf("%w: change %s is missing %v", ErrDependencyGap, c.Hash, missing)
	}
	key := c.Hash.KeyString()
	g.changes[key] = c
	g.order = append(g.order, c)
	for _, d := range c.Deps {
		delete(g.heads, d.KeyString())
	}
	g.heads[key] = c.Hash
	g.clock.Observe(c.Actor, c.MaxOp())
	g.seqs[c.Actor] = max(g.seqs[c.Actor], c.Seq)
	return nil
}

// Heads returns the sorted hashes of the changes with no known successor.
func (g *Graph) Heads() []cid.Cid {
	heads := make([]cid.Cid, 0, len(g.heads))
	for _, h := range g.heads {
		heads = append(heads, h)
	}
	return object.SortHashes(heads)
}

// Changes returns every known change in application order.
func (g *Graph) Changes() []*object.Change {
	return slices.Clone(g.order)
}

// Len returns the number of known changes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Clock returns the version vector of the known changes.
func (g *Graph) Clock() clock.VersionVector {
	return g.clock.Clone()
}

// Seq returns the sequence number of the last known change by the actor.
func (g *Graph) Seq(actor clock.ActorID) uint64 {
	return g.seqs[actor]
}

// Since returns the changes the holder of the given version vector has not seen,
// in application order.
func (g *Graph) Since(vv clock.VersionVector) []*object.Change {
	var out []*object.Change
	for _, c := range g.order {
		if c.MaxOp() > vv.Get(c.Actor) {
			out = append(out, c)
		}
	}
	return out
}

// ParentIterator walks the ancestors of a change breadth first.
type ParentIterator struct {
	graph *Graph
	next  []cid.Cid
	seen  map[string]struct{}
}

// ParentIterator returns an iterator over the given change and all of its ancestors.
func (g *Graph) ParentIterator(hash cid.Cid) *ParentIterator {
	return &ParentIterator{
		graph: g,
		next:  []cid.Cid{hash},
		seen:  map[string]struct{}{hash.KeyString(): {}},
	}
}

// Done returns true if the iterator has no items left.
func (i *ParentIterator) Done() bool {
	return len(i.next) == 0
}

// Next returns the next change from the iterator.
func (i *ParentIterator) Next() (*object.Change, error) {
	hash := i.next[0]
	i.next = i.next[1:]

	c, ok := i.graph.Get(hash)
	if !ok {
		return nil, fmt.Errorf("%w: change %s not found", ErrDependencyGap, hash)
	}
	for _, d := range c.Deps {
		if _, ok := i.seen[d.KeyString()]; ok {
			continue
		}
		i.seen[d.KeyString()] = struct{}{}
		i.next = append(i.next, d)
	}
	return c, nil
}

// Ancestors returns the hashes of every ancestor of the change, nearest first.
func (g *Graph) Ancestors(hash cid.Cid) ([]cid.Cid, error) {
	var out []cid.Cid
	iter := g.ParentIterator(hash)
	for !iter.Done() {
		c, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if !c.Hash.Equals(hash) {
			out = append(out, c.Hash)
		}
	}
	return out, nil
}

// IsAncestor returns true if the old change is an ancestor of the new change.
func (g *Graph) IsAncestor(oldHash, newHash cid.Cid) (bool, error) {
	if oldHash.Equals(newHash) {
		return false, nil
	}
	iter := g.ParentIterator(newHash)
	for !iter.Done() {
		c, err := iter.Next()
		if err != nil {
			return false, err
		}
		if c.Hash.Equals(oldHash) {
			return true, nil
		}
	}
	return false, nil
}

// Independents returns the hashes that are not an ancestor of any other given hash.
func (g *Graph) Independents(hashes []cid.Cid) ([]cid.Cid, error) {
	keep := make(map[string]struct{})
	for _, h := range hashes {
		keep[h.KeyString()] = struct{}{}
	}
	for _, h := range hashes {
		if _, ok := keep[h.KeyString()]; !ok {
			continue
		}
		iter := g.ParentIterator(h)
		for !iter.Done() {
			c, err := iter.Next()
			if err != nil {
				return nil, err
			}
			if !c.Hash.Equals(h) {
				delete(keep, c.Hash.KeyString())
			}
		}
	}
	result := make([]cid.Cid, 0, len(keep))
	for _, h := range hashes {
		if _, ok := keep[h.KeyString()]; ok {
			result = append(result, h)
		}
	}
	return result, nil
}
