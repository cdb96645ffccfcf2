package link

import (
	"context"
	"errors"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car/v2"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/ipld/go-ipld-prime/traversal/selector"
	"github.com/ipld/go-ipld-prime/traversal/selector/builder"
)

// Export writes a CAR containing the DAG starting from the given root link to the given io.Writer.
func (s *Store) Export(ctx context.Context, rootLink datamodel.Link, out io.Writer) error {
	root := rootLink.(cidlink.Link).Cid
	ssb := builder.NewSelectorSpecBuilder(basicnode.Prototype.Any)
	sel := ssb.ExploreRecursive(selector.RecursionLimitNone(), ssb.ExploreAll(ssb.ExploreRecursiveEdge()))

	w, err := car.NewSelectiveWriter(ctx, &s.lsys, root, sel.Node())
	if err != nil {
		return err
	}
	_, err = w.WriteTo(out)
	return err
}

// Import reads every block of a CAR into the store and returns the CAR roots.
func (s *Store) Import(ctx context.Context, in io.Reader) ([]datamodel.Link, error) {
	br, err := car.NewBlockReader(in)
	if err != nil {
		return nil, err
	}
	for {
		blk, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := s.Put(ctx, blk.Cid(), blk.RawData()); err != nil {
			return nil, err
		}
	}
	roots := make([]datamodel.Link, len(br.Roots))
	for i, r := range br.Roots {
		roots[i] = Link(r)
	}
	return roots, nil
}

// Link wraps a cid in a datamodel.Link.
func Link(id cid.Cid) datamodel.Link {
	return cidlink.Link{Cid: id}
}

// Cid returns the cid of a link created by this package.
func Cid(lnk datamodel.Link) (cid.Cid, bool) {
	cl, ok := lnk.(cidlink.Link)
	if !ok {
		return cid.Undef, false
	}
	return cl.Cid, true
}
