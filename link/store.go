package link

import (
	"context"

	"github.com/nasdf/crdoc/storage"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/linking"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"

	// codecs need to be initialized and registered
	_ "github.com/ipld/go-ipld-prime/codec/dagcbor"
)

// Prototype is the link prototype used for every block.
var Prototype = cidlink.LinkPrototype{Prefix: cid.Prefix{
	Version:  1,    // Usually '1'.
	Codec:    0x71, // dag-cbor -- See the multicodecs table: https://github.com/multiformats/multicodec/
	MhType:   0x12, // sha2-256 -- See the multicodecs table: https://github.com/multiformats/multicodec/
	MhLength: 32,   // sha2-256 hash has a 32-byte sum.
}}

// Sum returns the content id of the given encoded block.
func Sum(data []byte) (cid.Cid, error) {
	return Prototype.Prefix.Sum(data)
}

// Store is a content addressable data store.
type Store struct {
	lsys    linking.LinkSystem
	storage storage.Storage
}

// NewStore returns a new Store that uses the given storage to read and write content addressable data.
func NewStore(store storage.Storage) *Store {
	lsys := cidlink.DefaultLinkSystem()
	lsys.SetReadStorage(store)
	lsys.SetWriteStorage(store)

	return &Store{
		lsys:    lsys,
		storage: store,
	}
}

// Load returns the node matching the given link and built using the given prototype.
//
// The loaded bytes are hashed and compared to the link.
func (s *Store) Load(ctx context.Context, lnk datamodel.Link, np datamodel.NodePrototype) (datamodel.Node, error) {
	return s.lsys.Load(linking.LinkContext{Ctx: ctx}, lnk, np)
}

// Store writes the given node to the store and returns its link.
func (s *Store) Store(ctx context.Context, node datamodel.Node) (datamodel.Link, error) {
	return s.lsys.Store(linking.LinkContext{Ctx: ctx}, Prototype, node)
}

// Put writes a raw block under the key the link system expects for the given cid.
func (s *Store) Put(ctx context.Context, id cid.Cid, data []byte) error {
	return s.storage.Put(ctx, cidlink.Link{Cid: id}.Binary(), data)
}
