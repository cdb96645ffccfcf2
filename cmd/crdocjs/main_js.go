package main

import (
	"context"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/nasdf/crdoc"
	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/jsutil"
	"github.com/nasdf/crdoc/query"
	"github.com/nasdf/crdoc/storage"
)

// GOOS=js GOARCH=wasm go build -o crdoc.wasm ./cmd/crdocjs

// documents are kept open so undo history lasts for the lifetime of the page.
var (
	mu        sync.Mutex
	documents = make(map[string]*core.Document)
)

func main() {
	js.Global().Set("crdoc", js.ValueOf(map[string]any{
		"execute":      js.FuncOf(execute),
		"clock":        js.FuncOf(clockOf),
		"changesSince": js.FuncOf(changesSince),
		"receive":      js.FuncOf(receive),
		"save":         js.FuncOf(save),
		"undo":         js.FuncOf(undo),
		"redo":         js.FuncOf(redo),
	}))
	fmt.Println("crdoc initialized...")
	select {}
}

// open returns the named document, loading it from storage the first time.
func open(ctx context.Context, store storage.Storage, name string) (*core.Document, error) {
	mu.Lock()
	defer mu.Unlock()

	if doc, ok := documents[name]; ok {
		return doc, nil
	}
	doc, err := crdoc.Open(ctx, store, name)
	if err != nil {
		return nil, err
	}
	documents[name] = doc
	return doc, nil
}

// withDocument returns a promise that runs fn with the document named by the first two arguments.
//
//	fn(storage: Storage, name: string, ...args)
func withDocument(args []js.Value, fn func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error)) js.Value {
	return jsutil.NewPromise(func() (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expected storage and document name")
		}
		ctx := context.Background()
		store := storage.NewJS(args[0])
		name := args[1].String()
		doc, err := open(ctx, store, name)
		if err != nil {
			return nil, err
		}
		return fn(ctx, store, name, doc)
	})
}

// execute(storage, name, query, operationName?, variables?)
func execute(this js.Value, args []js.Value) any {
	return withDocument(args, func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error) {
		params := query.Params{Query: args[2].String()}
		if len(args) > 3 && args[3].Type() == js.TypeString {
			params.OperationName = args[3].String()
		}
		if len(args) > 4 {
			if err := jsutil.Decode(args[4], &params.Variables); err != nil {
				return nil, err
			}
		}
		res, err := crdoc.Execute(ctx, store, name, doc, params)
		if err != nil {
			return nil, err
		}
		out := map[string]any{"data": res.Data}
		if len(res.Errors) > 0 {
			errs := make([]any, len(res.Errors))
			for i, e := range res.Errors {
				errs[i] = e.Message
			}
			out["errors"] = errs
		}
		return out, nil
	})
}

// clock(storage, name) returns the encoded version vector.
func clockOf(this js.Value, args []js.Value) any {
	return withDocument(args, func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error) {
		return codec.EncodeVersionVector(doc.Clock())
	})
}

// changesSince(storage, name, clock) returns the encoded changes missing from the given clock.
func changesSince(this js.Value, args []js.Value) any {
	return withDocument(args, func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error) {
		vv, err := codec.DecodeVersionVector(jsutil.BytesFromUint8Array(args[2]))
		if err != nil {
			return nil, err
		}
		return doc.EncodeChangesSince(vv)
	})
}

// receive(storage, name, changes) merges encoded changes and saves the document.
func receive(this js.Value, args []js.Value) any {
	return withDocument(args, func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error) {
		res, err := doc.ReceiveBytes(ctx, jsutil.BytesFromUint8Array(args[2]))
		if err != nil {
			return nil, err
		}
		if res.Applied > 0 {
			if err := crdoc.Save(ctx, store, name, doc); err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"applied":    res.Applied,
			"duplicates": res.Duplicates,
			"buffered":   len(res.Buffered),
		}, nil
	})
}

// save(storage, name) returns a snapshot of the document.
func save(this js.Value, args []js.Value) any {
	return withDocument(args, func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error) {
		return doc.Save(ctx)
	})
}

func undo(this js.Value, args []js.Value) any {
	return withDocument(args, func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error) {
		if _, err := doc.Undo(ctx); err != nil {
			return nil, err
		}
		return doc.View(), crdoc.Save(ctx, store, name, doc)
	})
}

func redo(this js.Value, args []js.Value) any {
	return withDocument(args, func(ctx context.Context, store storage.Storage, name string, doc *core.Document) (any, error) {
		if _, err := doc.Redo(ctx); err != nil {
			return nil, err
		}
		return doc.View(), crdoc.Save(ctx, store, name, doc)
	})
}
