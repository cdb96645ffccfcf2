package codec

import (
	"fmt"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/link"
	"github.com/nasdf/crdoc/object"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// ChangeNode returns the IPLD node for a change. The hash is not part of the node.
func ChangeNode(c *object.Change) (datamodel.Node, error) {
	return qp.BuildMap(basicnode.Prototype.Any, 6, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "actor", qp.Bytes(c.Actor.Bytes()))
		qp.MapEntry(ma, "seq", qp.Int(int64(c.Seq)))
		qp.MapEntry(ma, "startOp", qp.Int(int64(c.StartOp)))
		qp.MapEntry(ma, "deps", qp.List(int64(len(c.Deps)), func(la datamodel.ListAssembler) {
			for _, d := range c.Deps {
				qp.ListEntry(la, qp.Link(link.Link(d)))
			}
		}))
		qp.MapEntry(ma, "message", qp.String(c.Message))
		qp.MapEntry(ma, "ops", qp.List(int64(len(c.Ops)), func(la datamodel.ListAssembler) {
			for _, op := range c.Ops {
				qp.ListEntry(la, assembleOperation(op))
			}
		}))
	})
}

func assembleOperation(op object.Operation) qp.Assemble {
	return qp.Map(6, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "action", qp.Int(int64(op.Action)))
		qp.MapEntry(ma, "obj", assembleOpID(op.Obj))
		qp.MapEntry(ma, "key", qp.String(op.Key))
		qp.MapEntry(ma, "elem", assembleOpID(op.Elem))
		qp.MapEntry(ma, "value", assembleValue(op.Value))
		qp.MapEntry(ma, "pred", assembleOpIDs(op.Pred))
	})
}

// ParseChange reads a change from its IPLD node. The hash is left unset.
func ParseChange(n datamodel.Node) (*object.Change, error) {
	actorBytes, err := bytesField(n, "actor")
	if err != nil {
		return nil, err
	}
	actor, err := clock.ActorIDFromBytes(actorBytes)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	seq, err := uintField(n, "seq")
	if err != nil {
		return nil, err
	}
	startOp, err := uintField(n, "startOp")
	if err != nil {
		return nil, err
	}
	message, err := stringField(n, "message")
	if err != nil {
		return nil, err
	}
	depNodes, err := listField(n, "deps")
	if err != nil {
		return nil, err
	}
	var deps []cid.Cid
	for _, d := range depNodes {
		lnk, err := d.AsLink()
		if err != nil {
			return nil, invalidf("dep: %v", err)
		}
		id, ok := link.Cid(lnk)
		if !ok {
			return nil, invalidf("dep is not a cid link")
		}
		deps = append(deps, id)
	}
	opNodes, err := listField(n, "ops")
	if err != nil {
		return nil, err
	}
	c := &object.Change{
		Actor:   actor,
		Seq:     seq,
		StartOp: startOp,
		Deps:    deps,
		Message: message,
		Ops:     make([]object.Operation, len(opNodes)),
	}
	for i, on := range opNodes {
		op, err := parseOperation(on)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		op.ID = c.OpID(i)
		c.Ops[i] = op
	}
	return c, nil
}

func parseOperation(n datamodel.Node) (object.Operation, error) {
	var op object.Operation

	action, err := intField(n, "action")
	if err != nil {
		return op, err
	}
	op.Action = object.Action(action)
	if op.Key, err = stringField(n, "key"); err != nil {
		return op, err
	}
	for _, ref := range []struct {
		key string
		dst *clock.OpID
	}{{"obj", &op.Obj}, {"elem", &op.Elem}} {
		v, err := field(n, ref.key)
		if err != nil {
			return op, err
		}
		if *ref.dst, err = readOpID(v); err != nil {
			return op, err
		}
	}
	v, err := field(n, "value")
	if err != nil {
		return op, err
	}
	if op.Value, err = readValue(v); err != nil {
		return op, err
	}
	p, err := field(n, "pred")
	if err != nil {
		return op, err
	}
	if op.Pred, err = readOpIDs(p); err != nil {
		return op, err
	}
	return op, nil
}

// EncodeChange returns the canonical dag-cbor encoding of a change.
func EncodeChange(c *object.Change) ([]byte, error) {
	n, err := ChangeNode(c)
	if err != nil {
		return nil, err
	}
	return encode(n)
}

// HashChange returns the content hash of a change.
func HashChange(c *object.Change) (cid.Cid, error) {
	data, err := EncodeChange(c)
	if err != nil {
		return cid.Undef, err
	}
	return link.Sum(data)
}

// VerifyChange returns an error if the change hash does not match its content.
func VerifyChange(c *object.Change) error {
	h, err := HashChange(c)
	if err != nil {
		return err
	}
	if !h.Equals(c.Hash) {
		return fmt.Errorf("%w: change %s hashes to %s", ErrHashMismatch, c.Hash, h)
	}
	return nil
}

// DecodeChange parses an encoded change and computes its hash.
func DecodeChange(data []byte) (*object.Change, error) {
	n, err := decode(data)
	if err != nil {
		return nil, err
	}
	c, err := ParseChange(n)
	if err != nil {
		return nil, err
	}
	c.Hash, err = HashChange(c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeChanges encodes a batch of changes for transport.
//
// Every change travels with its hash so receivers can detect corruption.
func EncodeChanges(changes []*object.Change) ([]byte, error) {
	nodes := make([]datamodel.Node, len(changes))
	for i, c := range changes {
		n, err := ChangeNode(c)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	n, err := qp.BuildList(basicnode.Prototype.Any, int64(len(nodes)), func(la datamodel.ListAssembler) {
		for i, cn := range nodes {
			qp.ListEntry(la, qp.List(2, func(la datamodel.ListAssembler) {
				qp.ListEntry(la, qp.Link(link.Link(changes[i].Hash)))
				qp.ListEntry(la, qp.Node(cn))
			}))
		}
	})
	if err != nil {
		return nil, err
	}
	return encode(n)
}

// DecodeChanges parses a batch produced by EncodeChanges.
//
// Hashes are taken from the batch and are not verified.
func DecodeChanges(data []byte) ([]*object.Change, error) {
	n, err := decode(data)
	if err != nil {
		return nil, err
	}
	items, err := listItems(n)
	if err != nil {
		return nil, err
	}
	changes := make([]*object.Change, len(items))
	for i, item := range items {
		parts, err := listItems(item)
		if err != nil {
			return nil, err
		}
		if len(parts) != 2 {
			return nil, invalidf("batch entry has %d parts", len(parts))
		}
		lnk, err := parts[0].AsLink()
		if err != nil {
			return nil, invalidf("change hash: %v", err)
		}
		hash, ok := link.Cid(lnk)
		if !ok {
			return nil, invalidf("change hash is not a cid link")
		}
		c, err := ParseChange(parts[1])
		if err != nil {
			return nil, err
		}
		c.Hash = hash
		changes[i] = c
	}
	return changes, nil
}
