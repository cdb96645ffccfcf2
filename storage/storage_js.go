//go:build js

package storage

import (
	"context"
	"syscall/js"

	"github.com/nasdf/crdoc/jsutil"
)

// jsStorage wraps a JavaScript key value store.
//
//	interface Storage {
//	  has(key: string): Promise<boolean>
//	  get(key: string): Promise<Uint8Array | undefined>
//	  put(key: string, val: Uint8Array): Promise<void>
//	}
type jsStorage js.Value

// NewJS returns a Storage that is backed by a JavaScript implementation.
func NewJS(v js.Value) Storage {
	return jsStorage(v)
}

func (s jsStorage) Has(ctx context.Context, key string) (bool, error) {
	res, err := jsutil.AwaitPromise(js.Value(s).Call("has", key))
	if err != nil {
		return false, err
	}
	return res[0].Truthy(), nil
}

func (s jsStorage) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := jsutil.AwaitPromise(js.Value(s).Call("get", key))
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || res[0].IsUndefined() || res[0].IsNull() {
		return nil, ErrNotFound
	}
	return jsutil.BytesFromUint8Array(res[0]), nil
}

func (s jsStorage) Put(ctx context.Context, key string, value []byte) error {
	_, err := jsutil.AwaitPromise(js.Value(s).Call("put", key, jsutil.Uint8ArrayFromBytes(value)))
	return err
}
