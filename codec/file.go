package codec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/crdt"
	"github.com/nasdf/crdoc/link"
	"github.com/nasdf/crdoc/object"
	"github.com/nasdf/crdoc/storage"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/multiformats/go-varint"
)

// Magic is the prefix of every persisted document.
const Magic = "CRDC"

// maxHeaderSize bounds the header length read from untrusted input.
const maxHeaderSize = 1 << 16

const (
	// KindSnapshot is a full document: state, clock, heads and history.
	KindSnapshot = "snapshot"
	// KindChanges is a list of changes for incremental saves.
	KindChanges = "changes"
)

// Header describes the persisted payload.
type Header struct {
	// Version is the format version the payload was written with.
	Version int64
	// Actor is the actor of the replica that wrote the payload.
	Actor clock.ActorID
	// Counter is the highest op counter the writer had seen.
	Counter uint64
	// Kind is either KindSnapshot or KindChanges.
	Kind string
}

// File is a decoded persisted document.
type File struct {
	Header Header
	// State is the materialized state. Only set for snapshots.
	State *crdt.State
	// Clock is the version vector of the writer. Only set for snapshots.
	Clock clock.VersionVector
	// Heads are the current heads of the writer. Only set for snapshots.
	Heads []cid.Cid
	// Changes holds the full history for snapshots, or the saved changes.
	Changes []*object.Change
}

func headerNode(h Header) (datamodel.Node, error) {
	return qp.BuildMap(basicnode.Prototype.Any, 4, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "version", qp.Int(h.Version))
		qp.MapEntry(ma, "actor", qp.Bytes(h.Actor.Bytes()))
		qp.MapEntry(ma, "counter", qp.Int(int64(h.Counter)))
		qp.MapEntry(ma, "kind", qp.String(h.Kind))
	})
}

func parseHeader(n datamodel.Node) (Header, error) {
	var h Header
	var err error
	if h.Version, err = intField(n, "version"); err != nil {
		return h, err
	}
	// the version is checked before anything else is interpreted
	if h.Version != FormatVersion {
		return h, fmt.Errorf("%w: %d", ErrVersionMismatch, h.Version)
	}
	actor, err := bytesField(n, "actor")
	if err != nil {
		return h, err
	}
	if h.Actor, err = clock.ActorIDFromBytes(actor); err != nil {
		return h, invalidf("%v", err)
	}
	if h.Counter, err = uintField(n, "counter"); err != nil {
		return h, err
	}
	if h.Kind, err = stringField(n, "kind"); err != nil {
		return h, err
	}
	if h.Kind != KindSnapshot && h.Kind != KindChanges {
		return h, invalidf("unknown payload kind %q", h.Kind)
	}
	return h, nil
}

// Encode writes the file to w.
//
// Snapshots are written as a CAR rooted at a node linking the state block and
// every change block. Change files carry an inline change list.
func Encode(ctx context.Context, f *File, w io.Writer) error {
	f.Header.Version = FormatVersion
	hn, err := headerNode(f.Header)
	if err != nil {
		return err
	}
	header, err := encode(hn)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	if _, err := w.Write(varint.ToUvarint(uint64(len(header)))); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	switch f.Header.Kind {
	case KindSnapshot:
		return encodeSnapshot(ctx, f, w)
	case KindChanges:
		data, err := EncodeChanges(f.Changes)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return invalidf("unknown payload kind %q", f.Header.Kind)
	}
}

func encodeSnapshot(ctx context.Context, f *File, w io.Writer) error {
	store := link.NewStore(storage.NewMemory())

	sn, err := StateNode(f.State)
	if err != nil {
		return err
	}
	stateLink, err := store.Store(ctx, sn)
	if err != nil {
		return err
	}
	changeLinks := make([]datamodel.Link, len(f.Changes))
	for i, c := range f.Changes {
		cn, err := ChangeNode(c)
		if err != nil {
			return err
		}
		if changeLinks[i], err = store.Store(ctx, cn); err != nil {
			return err
		}
	}
	root, err := qp.BuildMap(basicnode.Prototype.Any, 4, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "state", qp.Link(stateLink))
		qp.MapEntry(ma, "clock", assembleVersionVector(f.Clock))
		qp.MapEntry(ma, "heads", qp.List(int64(len(f.Heads)), func(la datamodel.ListAssembler) {
			for _, h := range f.Heads {
				qp.ListEntry(la, qp.Link(link.Link(h)))
			}
		}))
		qp.MapEntry(ma, "changes", qp.List(int64(len(changeLinks)), func(la datamodel.ListAssembler) {
			for _, l := range changeLinks {
				qp.ListEntry(la, qp.Link(l))
			}
		}))
	})
	if err != nil {
		return err
	}
	rootLink, err := store.Store(ctx, root)
	if err != nil {
		return err
	}
	return store.Export(ctx, rootLink, w)
}

// Decode reads a file from r.
//
// The format version is checked before the payload is read.
func Decode(ctx context.Context, r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != Magic {
		return nil, invalidf("missing magic prefix")
	}
	size, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, invalidf("header length: %v", err)
	}
	if size > maxHeaderSize {
		return nil, invalidf("header length %d too large", size)
	}
	header := make([]byte, size)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, invalidf("header: %v", err)
	}
	hn, err := decode(header)
	if err != nil {
		return nil, err
	}
	h, err := parseHeader(hn)
	if err != nil {
		return nil, err
	}
	f := &File{Header: h}
	switch h.Kind {
	case KindSnapshot:
		err = decodeSnapshot(ctx, f, br)
	case KindChanges:
		var data []byte
		if data, err = io.ReadAll(br); err == nil {
			f.Changes, err = DecodeChanges(data)
		}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(ctx context.Context, data []byte) (*File, error) {
	return Decode(ctx, bytes.NewReader(data))
}

func decodeSnapshot(ctx context.Context, f *File, r io.Reader) error {
	store := link.NewStore(storage.NewMemory())
	roots, err := store.Import(ctx, r)
	if err != nil {
		return invalidf("car: %v", err)
	}
	if len(roots) != 1 {
		return invalidf("snapshot has %d roots", len(roots))
	}
	root, err := store.Load(ctx, roots[0], basicnode.Prototype.Any)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHashMismatch, err)
	}
	load := func(n datamodel.Node) (datamodel.Node, cid.Cid, error) {
		lnk, err := n.AsLink()
		if err != nil {
			return nil, cid.Undef, invalidf("%v", err)
		}
		id, ok := link.Cid(lnk)
		if !ok {
			return nil, cid.Undef, invalidf("not a cid link")
		}
		v, err := store.Load(ctx, lnk, basicnode.Prototype.Any)
		if err != nil {
			return nil, cid.Undef, fmt.Errorf("%w: block %s: %v", ErrHashMismatch, id, err)
		}
		return v, id, nil
	}

	stateLink, err := field(root, "state")
	if err != nil {
		return err
	}
	sn, _, err := load(stateLink)
	if err != nil {
		return err
	}
	if f.State, err = ParseState(sn); err != nil {
		return err
	}
	cn, err := field(root, "clock")
	if err != nil {
		return err
	}
	if f.Clock, err = readVersionVector(cn); err != nil {
		return err
	}
	heads, err := listField(root, "heads")
	if err != nil {
		return err
	}
	for _, h := range heads {
		lnk, err := h.AsLink()
		if err != nil {
			return invalidf("head: %v", err)
		}
		id, ok := link.Cid(lnk)
		if !ok {
			return invalidf("head is not a cid link")
		}
		f.Heads = append(f.Heads, id)
	}
	changes, err := listField(root, "changes")
	if err != nil {
		return err
	}
	for _, item := range changes {
		n, id, err := load(item)
		if err != nil {
			return err
		}
		c, err := ParseChange(n)
		if err != nil {
			return err
		}
		c.Hash = id
		f.Changes = append(f.Changes, c)
	}
	return nil
}
