package storage

import (
	"context"
	"errors"

	"github.com/ipld/go-ipld-prime/storage"
)

var ErrNotFound = errors.New("key not found")

// Storage is a byte-addressable key value store.
//
// It satisfies the IPLD storage interfaces so it can back a link system directly.
type Storage interface {
	storage.ReadableStorage
	storage.WritableStorage
}

// Lister is implemented by storages that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Deleter is implemented by storages that can remove keys.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}
