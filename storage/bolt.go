//go:build !js

package storage

import (
	"context"
	"slices"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("crdoc")

// Bolt is a Storage backed by a bbolt database file.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens or creates the bbolt database at the given path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Close releases the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Has(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(boltBucket).Get([]byte(key)) != nil
		return nil
	})
	return ok, err
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(boltBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// bolt values are only valid for the life of the transaction
		value = slices.Clone(data)
		return nil
	})
	return value, err
}

func (b *Bolt) Put(ctx context.Context, key string, content []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), content)
	})
}

func (b *Bolt) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

func (b *Bolt) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
