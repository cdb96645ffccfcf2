package crdt

import (
	"slices"
	"strings"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"
)

// NodeState is the lifecycle state of a sequence element.
type NodeState uint8

const (
	// NodeUnknown means the element has never been inserted.
	NodeUnknown NodeState = iota
	// NodePending means the element is waiting for its insert-after reference.
	NodePending
	// NodeLinked means the element is part of the visible sequence.
	NodeLinked
	// NodeTombstoned means the element was removed.
	NodeTombstoned
)

func (s NodeState) String() string {
	switch s {
	case NodePending:
		return "pending"
	case NodeLinked:
		return "linked"
	case NodeTombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

// Node is a sequence element.
type Node struct {
	// ID is the id of the insert operation.
	ID clock.OpID
	// Parent is the element this node was inserted after.
	Parent clock.OpID
	// Value is the element value.
	Value object.Value
	// Deleted marks a tombstone.
	Deleted bool

	children []clock.OpID
}

// Sequence is an ordered list of elements used for lists and text.
//
// Nodes live in an arena keyed by id. Every node hangs off the node it was
// inserted after, siblings sorted by descending id, and the sequence order is
// the pre-order walk of that tree.
type Sequence struct {
	id       clock.OpID
	kind     object.Kind
	nodes    map[clock.OpID]*Node
	head     []clock.OpID
	waiting  map[clock.OpID]*Node
	pending  map[clock.OpID][]clock.OpID
	removed  map[clock.OpID]struct{}
	order    []clock.OpID
	visible  []clock.OpID
	outdated bool
}

// NewSequence returns an empty sequence of the given kind.
func NewSequence(id clock.OpID, kind object.Kind) *Sequence {
	return &Sequence{
		id:      id,
		kind:    kind,
		nodes:   make(map[clock.OpID]*Node),
		waiting: make(map[clock.OpID]*Node),
		pending: make(map[clock.OpID][]clock.OpID),
		removed: make(map[clock.OpID]struct{}),
	}
}

func (s *Sequence) ID() clock.OpID {
	return s.id
}

func (s *Sequence) Kind() object.Kind {
	return s.kind
}

// State returns the lifecycle state of the element with the given id.
func (s *Sequence) State(id clock.OpID) NodeState {
	if n, ok := s.nodes[id]; ok {
		if n.Deleted {
			return NodeTombstoned
		}
		return NodeLinked
	}
	if _, ok := s.waiting[id]; ok {
		return NodePending
	}
	return NodeUnknown
}

// Node returns the linked node with the given id.
func (s *Sequence) Node(id clock.OpID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Insert adds an element after the given parent.
//
// Returns false if the element was already inserted.
func (s *Sequence) Insert(id, parent clock.OpID, value object.Value) bool {
	if s.State(id) != NodeUnknown {
		return false
	}
	n := &Node{ID: id, Parent: parent, Value: value}
	if _, ok := s.removed[id]; ok {
		n.Deleted = true
		delete(s.removed, id)
	}
	if !parent.IsHead() {
		if _, ok := s.nodes[parent]; !ok {
			s.waiting[id] = n
			s.pending[parent] = append(s.pending[parent], id)
			return true
		}
	}
	s.link(n)
	return true
}

func (s *Sequence) link(n *Node) {
	queue := []*Node{n}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		s.nodes[n.ID] = n
		delete(s.waiting, n.ID)
		s.attach(n)

		for _, id := range s.pending[n.ID] {
			queue = append(queue, s.waiting[id])
		}
		delete(s.pending, n.ID)
	}
	s.outdated = true
}

func (s *Sequence) attach(n *Node) {
	siblings := &s.head
	if !n.Parent.IsHead() {
		siblings = &s.nodes[n.Parent].children
	}
	i := slices.IndexFunc(*siblings, func(c clock.OpID) bool {
		return c.Less(n.ID)
	})
	if i < 0 {
		i = len(*siblings)
	}
	*siblings = slices.Insert(*siblings, i, n.ID)
}

// Remove tombstones the element with the given id.
//
// Removing an element that has not arrived yet is remembered until it does.
func (s *Sequence) Remove(id clock.OpID) bool {
	if n, ok := s.nodes[id]; ok {
		if n.Deleted {
			return false
		}
		n.Deleted = true
		s.outdated = true
		return true
	}
	if n, ok := s.waiting[id]; ok {
		if n.Deleted {
			return false
		}
		n.Deleted = true
		return true
	}
	if _, ok := s.removed[id]; ok {
		return false
	}
	s.removed[id] = struct{}{}
	return true
}

// unlink removes an element that has no children. It is only used to roll
// back local operations that were never committed.
func (s *Sequence) unlink(id clock.OpID) {
	if n, ok := s.waiting[id]; ok {
		delete(s.waiting, id)
		s.pending[n.Parent] = slices.DeleteFunc(s.pending[n.Parent], func(c clock.OpID) bool {
			return c == id
		})
		return
	}
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	siblings := &s.head
	if !n.Parent.IsHead() {
		siblings = &s.nodes[n.Parent].children
	}
	*siblings = slices.DeleteFunc(*siblings, func(c clock.OpID) bool {
		return c == id
	})
	delete(s.nodes, id)
	s.outdated = true
}

func (s *Sequence) untombstone(id clock.OpID) {
	if n, ok := s.nodes[id]; ok {
		n.Deleted = false
		s.outdated = true
	}
}

func (s *Sequence) update() {
	if !s.outdated && s.order != nil {
		return
	}
	s.order = s.order[:0]
	s.visible = s.visible[:0]

	stack := slices.Clone(s.head)
	slices.Reverse(stack)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := s.nodes[id]
		s.order = append(s.order, id)
		if !n.Deleted {
			s.visible = append(s.visible, id)
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
	if s.order == nil {
		s.order = []clock.OpID{}
	}
	s.outdated = false
}

// Elements returns every linked node in sequence order, tombstones included.
func (s *Sequence) Elements() []*Node {
	s.update()
	out := make([]*Node, len(s.order))
	for i, id := range s.order {
		out[i] = s.nodes[id]
	}
	return out
}

// Waiting returns the nodes that are waiting for their insert-after reference, sorted by id.
func (s *Sequence) Waiting() []*Node {
	out := make([]*Node, 0, len(s.waiting))
	for _, n := range s.waiting {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int {
		return a.ID.Compare(b.ID)
	})
	return out
}

// Removed returns the ids of removes that arrived before their element, sorted.
func (s *Sequence) Removed() []clock.OpID {
	out := make([]clock.OpID, 0, len(s.removed))
	for id := range s.removed {
		out = append(out, id)
	}
	slices.SortFunc(out, clock.OpID.Compare)
	return out
}

// Visible returns the ids of the visible elements in order.
func (s *Sequence) Visible() []clock.OpID {
	s.update()
	return slices.Clone(s.visible)
}

// Len returns the number of visible elements.
func (s *Sequence) Len() int {
	s.update()
	return len(s.visible)
}

// ElemAt returns the id of the visible element at the given index.
func (s *Sequence) ElemAt(index int) (clock.OpID, bool) {
	s.update()
	if index < 0 || index >= len(s.visible) {
		return clock.OpID{}, false
	}
	return s.visible[index], true
}

// InsertPosition returns the id to insert after so the new element lands at index.
func (s *Sequence) InsertPosition(index int) (clock.OpID, bool) {
	s.update()
	if index < 0 || index > len(s.visible) {
		return clock.OpID{}, false
	}
	if index == 0 {
		return clock.Head, true
	}
	return s.visible[index-1], true
}

// IndexOf returns the visible index of the element with the given id.
func (s *Sequence) IndexOf(id clock.OpID) (int, bool) {
	s.update()
	i := slices.Index(s.visible, id)
	return i, i >= 0
}

// Values returns the values of the visible elements in order.
func (s *Sequence) Values() []object.Value {
	s.update()
	out := make([]object.Value, len(s.visible))
	for i, id := range s.visible {
		out[i] = s.nodes[id].Value
	}
	return out
}

// Text returns the concatenated string values of the visible elements.
func (s *Sequence) Text() string {
	var sb strings.Builder
	for _, v := range s.Values() {
		sb.WriteString(v.Str)
	}
	return sb.String()
}
