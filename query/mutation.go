package query

import (
	"context"
	"fmt"

	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/object"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	setMutation       = "set"
	deleteMutation    = "delete"
	insertMutation    = "insert"
	incrementMutation = "increment"
	spliceMutation    = "splice"
)

// executeMutation applies every mutation field in a single change.
//
// Each field returns the value at its path after the change, or null if the
// value was deleted.
func (r *Request) executeMutation(ctx context.Context, doc *core.Document) (any, error) {
	fields := r.collectFields(r.operation.SelectionSet)
	paths := make([][]any, len(fields))
	_, err := doc.Change(ctx, func(tx *core.Transaction) error {
		for i, f := range fields {
			args := r.arguments(f)
			path, err := pathArg(args)
			if err != nil {
				return gqlerror.ErrorPosf(f.Position, "%s: %v", f.Name, err)
			}
			paths[i] = path
			if err := r.mutate(tx, f.Name, path, args); err != nil {
				return gqlerror.ErrorPosf(f.Position, "%s: %v", f.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for i, f := range fields {
		v, err := doc.Get(paths[i]...)
		if err != nil {
			out[f.Alias] = nil
			continue
		}
		if out[f.Alias], err = r.selectValue(v, f.Field); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Request) mutate(tx *core.Transaction, name string, path []any, args map[string]any) error {
	switch name {
	case setMutation:
		if v, ok := args["text"].(string); ok {
			return tx.Set(path, core.Text(v))
		}
		if _, ok := args["counter"]; ok {
			n, err := intArg(args, "counter", 0)
			if err != nil {
				return err
			}
			return tx.Set(path, object.Counter(n))
		}
		return tx.Set(path, args["value"])
	case deleteMutation:
		return tx.Delete(path)
	case insertMutation:
		return tx.Insert(path, args["value"])
	case incrementMutation:
		by, err := intArg(args, "by", 1)
		if err != nil {
			return err
		}
		return tx.Increment(path, by)
	case spliceMutation:
		index, err := intArg(args, "index", 0)
		if err != nil {
			return err
		}
		count, err := intArg(args, "delete", 0)
		if err != nil {
			return err
		}
		text, _ := args["text"].(string)
		return tx.SpliceText(path, int(index), int(count), text)
	default:
		return fmt.Errorf("unknown mutation")
	}
}

// arguments resolves the raw field arguments. Documents have no schema so
// argument definitions are not available.
func (r *Request) arguments(f graphql.CollectedField) map[string]any {
	args := make(map[string]any, len(f.Arguments))
	for _, arg := range f.Arguments {
		v, err := arg.Value.Value(r.params.Variables)
		if err != nil {
			continue
		}
		args[arg.Name] = v
	}
	return args
}

func pathArg(args map[string]any) ([]any, error) {
	switch p := args["path"].(type) {
	case []any:
		return p, nil
	case string:
		return []any{p}, nil
	default:
		return nil, fmt.Errorf("path argument must be a list of keys and indexes")
	}
}

func intArg(args map[string]any, name string, fallback int64) (int64, error) {
	switch v := args[name].(type) {
	case nil:
		return fallback, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%s must be an int", name)
	}
}
