//go:build js

package jsutil

import (
	"encoding/json"
	"errors"
	"sync"
	"syscall/js"
)

// NewError returns a new JavaScript error containing the message in the given error.
func NewError(err error) js.Value {
	return js.Global().Get("Error").New(err.Error())
}

// NewPromise returns a new promise that calls the given function on a new goroutine.
//
// Blocking calls such as AwaitPromise must not run on the JavaScript event
// loop so the work is always moved off of it.
func NewPromise(fn func() (any, error)) js.Value {
	var executor js.Func
	executor = js.FuncOf(func(this js.Value, args []js.Value) any {
		executor.Release()
		resolve, reject := args[0], args[1]
		go func() {
			res, err := fn()
			if err != nil {
				reject.Invoke(NewError(err))
				return
			}
			resolve.Invoke(ValueOf(res))
		}()
		return js.Undefined()
	})
	return js.Global().Get("Promise").New(executor)
}

// AwaitPromise waits for a promise to resolve or reject
// and returns the results and an error value.
func AwaitPromise(v js.Value) (res []js.Value, err error) {
	var wait sync.WaitGroup

	onFulfilled := js.FuncOf(func(this js.Value, args []js.Value) any {
		defer wait.Done()
		res = args
		return js.Undefined()
	})
	onRejected := js.FuncOf(func(this js.Value, args []js.Value) any {
		defer wait.Done()
		err = errors.New(args[0].String())
		return js.Undefined()
	})

	wait.Add(1)
	v.Call("then", onFulfilled, onRejected)
	wait.Wait()

	onFulfilled.Release()
	onRejected.Release()

	return
}

// ValueOf converts a document view into a JavaScript value.
//
// Byte slices become Uint8Arrays; everything else follows js.ValueOf.
func ValueOf(v any) js.Value {
	switch t := v.(type) {
	case js.Value:
		return t
	case []byte:
		return Uint8ArrayFromBytes(t)
	case map[string]any:
		obj := js.Global().Get("Object").New()
		for k, item := range t {
			obj.Set(k, ValueOf(item))
		}
		return obj
	case []any:
		arr := js.Global().Get("Array").New(len(t))
		for i, item := range t {
			arr.SetIndex(i, ValueOf(item))
		}
		return arr
	default:
		return js.ValueOf(v)
	}
}

// Decode converts a plain JavaScript value into out using its JSON representation.
func Decode(v js.Value, out any) error {
	if v.IsUndefined() || v.IsNull() {
		return nil
	}
	data := js.Global().Get("JSON").Call("stringify", v).String()
	return json.Unmarshal([]byte(data), out)
}

// Uint8ArrayFromBytes copies the given byte slice into a new Uint8Array.
func Uint8ArrayFromBytes(src []byte) js.Value {
	dst := js.Global().Get("Uint8Array").New(len(src))
	js.CopyBytesToJS(dst, src)
	return dst
}

// BytesFromUint8Array copies the given Uint8Array into a new byte slice.
func BytesFromUint8Array(src js.Value) []byte {
	dst := make([]byte, src.Length())
	js.CopyBytesToGo(dst, src)
	return dst
}
