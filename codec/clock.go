package codec

import (
	"github.com/nasdf/crdoc/clock"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

func assembleVersionVector(vv clock.VersionVector) qp.Assemble {
	return qp.Map(int64(len(vv)), func(ma datamodel.MapAssembler) {
		for _, a := range vv.Actors() {
			qp.MapEntry(ma, a.String(), qp.Int(int64(vv[a])))
		}
	})
}

func readVersionVector(n datamodel.Node) (clock.VersionVector, error) {
	if n.Kind() != datamodel.Kind_Map {
		return nil, invalidf("version vector must be a map")
	}
	vv := make(clock.VersionVector, n.Length())
	iter := n.MapIterator()
	for !iter.Done() {
		k, v, err := iter.Next()
		if err != nil {
			return nil, invalidf("%v", err)
		}
		key, err := k.AsString()
		if err != nil {
			return nil, invalidf("%v", err)
		}
		actor, err := clock.ParseActorID(key)
		if err != nil {
			return nil, invalidf("actor %q: %v", key, err)
		}
		counter, err := v.AsInt()
		if err != nil || counter < 0 {
			return nil, invalidf("counter for %s", key)
		}
		vv[actor] = uint64(counter)
	}
	return vv, nil
}

// EncodeVersionVector returns the wire encoding of a version vector.
func EncodeVersionVector(vv clock.VersionVector) ([]byte, error) {
	n, err := qp.BuildMap(basicnode.Prototype.Any, int64(len(vv)), func(ma datamodel.MapAssembler) {
		for _, a := range vv.Actors() {
			qp.MapEntry(ma, a.String(), qp.Int(int64(vv[a])))
		}
	})
	if err != nil {
		return nil, err
	}
	return encode(n)
}

// DecodeVersionVector parses a version vector produced by EncodeVersionVector.
func DecodeVersionVector(data []byte) (clock.VersionVector, error) {
	n, err := decode(data)
	if err != nil {
		return nil, err
	}
	return readVersionVector(n)
}
