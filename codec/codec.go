package codec

import (
	"errors"
	"fmt"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/object"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
)

// FormatVersion is the newest persisted format this package reads and writes.
const FormatVersion = 1

var (
	// ErrInvalidFormat is returned when data cannot be parsed.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrVersionMismatch is returned when data uses an unsupported format version.
	ErrVersionMismatch = errors.New("unsupported format version")
	// ErrHashMismatch is returned when content does not match its hash.
	ErrHashMismatch = errors.New("hash mismatch")
)

func encode(n datamodel.Node) ([]byte, error) {
	return ipld.Encode(n, dagcbor.Encode)
}

func decode(data []byte) (datamodel.Node, error) {
	n, err := ipld.Decode(data, dagcbor.Decode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return n, nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFormat, fmt.Sprintf(format, args...))
}

func field(n datamodel.Node, key string) (datamodel.Node, error) {
	if n.Kind() != datamodel.Kind_Map {
		return nil, invalidf("expected map reading %s, got %s", key, n.Kind())
	}
	v, err := n.LookupByString(key)
	if err != nil {
		return nil, invalidf("field %s: %v", key, err)
	}
	return v, nil
}

func intField(n datamodel.Node, key string) (int64, error) {
	v, err := field(n, key)
	if err != nil {
		return 0, err
	}
	i, err := v.AsInt()
	if err != nil {
		return 0, invalidf("field %s: %v", key, err)
	}
	return i, nil
}

func uintField(n datamodel.Node, key string) (uint64, error) {
	i, err := intField(n, key)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, invalidf("field %s is negative", key)
	}
	return uint64(i), nil
}

func stringField(n datamodel.Node, key string) (string, error) {
	v, err := field(n, key)
	if err != nil {
		return "", err
	}
	s, err := v.AsString()
	if err != nil {
		return "", invalidf("field %s: %v", key, err)
	}
	return s, nil
}

func bytesField(n datamodel.Node, key string) ([]byte, error) {
	v, err := field(n, key)
	if err != nil {
		return nil, err
	}
	b, err := v.AsBytes()
	if err != nil {
		return nil, invalidf("field %s: %v", key, err)
	}
	return b, nil
}

func listItems(n datamodel.Node) ([]datamodel.Node, error) {
	if n.Kind() != datamodel.Kind_List {
		return nil, invalidf("expected list, got %s", n.Kind())
	}
	items := make([]datamodel.Node, 0, n.Length())
	iter := n.ListIterator()
	for !iter.Done() {
		_, v, err := iter.Next()
		if err != nil {
			return nil, invalidf("%v", err)
		}
		items = append(items, v)
	}
	return items, nil
}

func listField(n datamodel.Node, key string) ([]datamodel.Node, error) {
	v, err := field(n, key)
	if err != nil {
		return nil, err
	}
	return listItems(v)
}

func assembleOpID(id clock.OpID) qp.Assemble {
	if id.IsHead() {
		return qp.Null()
	}
	return qp.List(2, func(la datamodel.ListAssembler) {
		qp.ListEntry(la, qp.Int(int64(id.Counter)))
		qp.ListEntry(la, qp.Bytes(id.Actor.Bytes()))
	})
}

func readOpID(n datamodel.Node) (clock.OpID, error) {
	if n.IsNull() {
		return clock.Head, nil
	}
	items, err := listItems(n)
	if err != nil {
		return clock.OpID{}, err
	}
	if len(items) != 2 {
		return clock.OpID{}, invalidf("op id has %d parts", len(items))
	}
	counter, err := items[0].AsInt()
	if err != nil || counter <= 0 {
		return clock.OpID{}, invalidf("op id counter")
	}
	data, err := items[1].AsBytes()
	if err != nil {
		return clock.OpID{}, invalidf("op id actor: %v", err)
	}
	actor, err := clock.ActorIDFromBytes(data)
	if err != nil {
		return clock.OpID{}, invalidf("%v", err)
	}
	return clock.OpID{Counter: uint64(counter), Actor: actor}, nil
}

func assembleOpIDs(ids []clock.OpID) qp.Assemble {
	return qp.List(int64(len(ids)), func(la datamodel.ListAssembler) {
		for _, id := range ids {
			qp.ListEntry(la, assembleOpID(id))
		}
	})
}

func readOpIDs(n datamodel.Node) ([]clock.OpID, error) {
	items, err := listItems(n)
	if err != nil {
		return nil, err
	}
	var ids []clock.OpID
	for _, item := range items {
		id, err := readOpID(item)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func assembleValue(v object.Value) qp.Assemble {
	return qp.List(2, func(la datamodel.ListAssembler) {
		qp.ListEntry(la, qp.Int(int64(v.Kind)))
		switch v.Kind {
		case object.KindBool:
			qp.ListEntry(la, qp.Bool(v.Bool))
		case object.KindInt, object.KindCounter:
			qp.ListEntry(la, qp.Int(v.Int))
		case object.KindFloat:
			qp.ListEntry(la, qp.Float(v.Float))
		case object.KindString:
			qp.ListEntry(la, qp.String(v.Str))
		case object.KindBytes:
			qp.ListEntry(la, qp.Bytes(v.Bytes))
		default:
			qp.ListEntry(la, qp.Null())
		}
	})
}

func readValue(n datamodel.Node) (object.Value, error) {
	items, err := listItems(n)
	if err != nil {
		return object.Value{}, err
	}
	if len(items) != 2 {
		return object.Value{}, invalidf("value has %d parts", len(items))
	}
	k, err := items[0].AsInt()
	if err != nil || k < 0 || object.Kind(k) > object.KindText {
		return object.Value{}, invalidf("value kind")
	}
	v := object.Value{Kind: object.Kind(k)}
	p := items[1]
	switch v.Kind {
	case object.KindBool:
		v.Bool, err = p.AsBool()
	case object.KindInt, object.KindCounter:
		v.Int, err = p.AsInt()
	case object.KindFloat:
		v.Float, err = p.AsFloat()
	case object.KindString:
		v.Str, err = p.AsString()
	case object.KindBytes:
		v.Bytes, err = p.AsBytes()
	}
	if err != nil {
		return object.Value{}, invalidf("%s value: %v", v.Kind, err)
	}
	return v, nil
}
