package codec

import (
	"fmt"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/crdt"
	"github.com/nasdf/crdoc/object"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// StateNode returns the IPLD node for a materialized state.
//
// Objects are written in id order and sequence elements in pre-order so equal
// states always produce identical nodes.
func StateNode(s *crdt.State) (datamodel.Node, error) {
	objects := s.Objects()
	return qp.BuildList(basicnode.Prototype.Any, int64(len(objects)), func(la datamodel.ListAssembler) {
		for _, o := range objects {
			switch t := o.(type) {
			case *crdt.Map:
				qp.ListEntry(la, assembleMap(t))
			case *crdt.Sequence:
				qp.ListEntry(la, assembleSequence(t))
			}
		}
	})
}

func assembleEntry(e crdt.Entry) qp.Assemble {
	return qp.List(3, func(la datamodel.ListAssembler) {
		qp.ListEntry(la, assembleOpID(e.ID))
		qp.ListEntry(la, assembleValue(e.Value))
		qp.ListEntry(la, qp.Bool(e.Deleted))
	})
}

func assembleMap(m *crdt.Map) qp.Assemble {
	keys := m.AllKeys()
	return qp.Map(3, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "id", assembleOpID(m.ID()))
		qp.MapEntry(ma, "kind", qp.Int(int64(m.Kind())))
		qp.MapEntry(ma, "keys", qp.Map(int64(len(keys)), func(ma datamodel.MapAssembler) {
			for _, k := range keys {
				entries := m.Register(k).Values()
				qp.MapEntry(ma, k, qp.List(int64(len(entries)), func(la datamodel.ListAssembler) {
					for _, e := range entries {
						qp.ListEntry(la, assembleEntry(e))
					}
				}))
			}
		}))
	})
}

func assembleNodes(nodes []*crdt.Node) qp.Assemble {
	return qp.List(int64(len(nodes)), func(la datamodel.ListAssembler) {
		for _, n := range nodes {
			qp.ListEntry(la, qp.List(4, func(la datamodel.ListAssembler) {
				qp.ListEntry(la, assembleOpID(n.ID))
				qp.ListEntry(la, assembleOpID(n.Parent))
				qp.ListEntry(la, assembleValue(n.Value))
				qp.ListEntry(la, qp.Bool(n.Deleted))
			}))
		}
	})
}

func assembleSequence(q *crdt.Sequence) qp.Assemble {
	return qp.Map(5, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "id", assembleOpID(q.ID()))
		qp.MapEntry(ma, "kind", qp.Int(int64(q.Kind())))
		qp.MapEntry(ma, "nodes", assembleNodes(q.Elements()))
		qp.MapEntry(ma, "waiting", assembleNodes(q.Waiting()))
		qp.MapEntry(ma, "removed", assembleOpIDs(q.Removed()))
	})
}

// ParseState rebuilds a state from its IPLD node.
func ParseState(n datamodel.Node) (*crdt.State, error) {
	items, err := listItems(n)
	if err != nil {
		return nil, err
	}
	s := crdt.NewState()
	for _, item := range items {
		idNode, err := field(item, "id")
		if err != nil {
			return nil, err
		}
		id, err := readOpID(idNode)
		if err != nil {
			return nil, err
		}
		kind, err := intField(item, "kind")
		if err != nil {
			return nil, err
		}
		var o crdt.Object
		switch object.Kind(kind) {
		case object.KindMap:
			o, err = parseMap(id, item)
		case object.KindList, object.KindText:
			o, err = parseSequence(id, object.Kind(kind), item)
		default:
			err = invalidf("object %s has kind %d", id, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", id, err)
		}
		s.AddObject(o)
	}
	if _, ok := s.Object(clock.Head); !ok {
		return nil, invalidf("missing root object")
	}
	return s, nil
}

func readEntry(n datamodel.Node) (crdt.Entry, error) {
	parts, err := listItems(n)
	if err != nil {
		return crdt.Entry{}, err
	}
	if len(parts) != 3 {
		return crdt.Entry{}, invalidf("entry has %d parts", len(parts))
	}
	var e crdt.Entry
	if e.ID, err = readOpID(parts[0]); err != nil {
		return e, err
	}
	if e.Value, err = readValue(parts[1]); err != nil {
		return e, err
	}
	if e.Deleted, err = parts[2].AsBool(); err != nil {
		return e, invalidf("entry deleted flag: %v", err)
	}
	return e, nil
}

func parseMap(id clock.OpID, n datamodel.Node) (*crdt.Map, error) {
	keys, err := field(n, "keys")
	if err != nil {
		return nil, err
	}
	if keys.Kind() != datamodel.Kind_Map {
		return nil, invalidf("keys must be a map")
	}
	m := crdt.NewMap(id)
	iter := keys.MapIterator()
	for !iter.Done() {
		k, v, err := iter.Next()
		if err != nil {
			return nil, invalidf("%v", err)
		}
		key, err := k.AsString()
		if err != nil {
			return nil, invalidf("%v", err)
		}
		items, err := listItems(v)
		if err != nil {
			return nil, err
		}
		entries := make([]crdt.Entry, len(items))
		for i, item := range items {
			if entries[i], err = readEntry(item); err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
		}
		m.RestoreRegister(key, entries)
	}
	return m, nil
}

func readNodes(n datamodel.Node, key string) ([]crdt.Node, error) {
	items, err := listField(n, key)
	if err != nil {
		return nil, err
	}
	nodes := make([]crdt.Node, len(items))
	for i, item := range items {
		parts, err := listItems(item)
		if err != nil {
			return nil, err
		}
		if len(parts) != 4 {
			return nil, invalidf("element has %d parts", len(parts))
		}
		nd := &nodes[i]
		if nd.ID, err = readOpID(parts[0]); err != nil {
			return nil, err
		}
		if nd.ID.IsHead() {
			return nil, invalidf("element id is null")
		}
		if nd.Parent, err = readOpID(parts[1]); err != nil {
			return nil, err
		}
		if nd.Value, err = readValue(parts[2]); err != nil {
			return nil, err
		}
		if nd.Deleted, err = parts[3].AsBool(); err != nil {
			return nil, invalidf("element deleted flag: %v", err)
		}
	}
	return nodes, nil
}

// parseSequence replays the stored elements. Pre-order guarantees every
// parent is linked before its children.
func parseSequence(id clock.OpID, kind object.Kind, n datamodel.Node) (*crdt.Sequence, error) {
	linked, err := readNodes(n, "nodes")
	if err != nil {
		return nil, err
	}
	waiting, err := readNodes(n, "waiting")
	if err != nil {
		return nil, err
	}
	removedNode, err := field(n, "removed")
	if err != nil {
		return nil, err
	}
	removed, err := readOpIDs(removedNode)
	if err != nil {
		return nil, err
	}
	q := crdt.NewSequence(id, kind)
	for _, nd := range linked {
		if !nd.Parent.IsHead() && q.State(nd.Parent) == crdt.NodeUnknown {
			return nil, invalidf("element %s stored before its parent", nd.ID)
		}
		if !q.Insert(nd.ID, nd.Parent, nd.Value) {
			return nil, invalidf("duplicate element %s", nd.ID)
		}
	}
	for _, nd := range waiting {
		if !q.Insert(nd.ID, nd.Parent, nd.Value) {
			return nil, invalidf("duplicate element %s", nd.ID)
		}
	}
	for _, nd := range append(linked, waiting...) {
		if nd.Deleted {
			q.Remove(nd.ID)
		}
	}
	for _, r := range removed {
		q.Remove(r)
	}
	return q, nil
}

// EncodeState returns the canonical encoding of a state.
//
// Two replicas that applied the same set of changes produce identical bytes.
func EncodeState(s *crdt.State) ([]byte, error) {
	n, err := StateNode(s)
	if err != nil {
		return nil, err
	}
	return encode(n)
}

// DecodeState parses a state produced by EncodeState.
func DecodeState(data []byte) (*crdt.State, error) {
	n, err := decode(data)
	if err != nil {
		return nil, err
	}
	return ParseState(n)
}
