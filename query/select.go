package query

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// selectFields projects the selected keys of a map value.
func (r *Request) selectFields(value map[string]any, sel ast.SelectionSet) (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range r.collectFields(sel) {
		if f.Name == "__typename" {
			out[f.Alias] = "Map"
			continue
		}
		v, ok := value[f.Name]
		if !ok {
			out[f.Alias] = nil
			continue
		}
		res, err := r.selectValue(v, f.Field)
		if err != nil {
			return nil, err
		}
		out[f.Alias] = res
	}
	return out, nil
}

func (r *Request) selectValue(value any, field *ast.Field) (any, error) {
	if len(field.SelectionSet) == 0 {
		return value, nil
	}
	switch v := value.(type) {
	case map[string]any:
		return r.selectFields(v, field.SelectionSet)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			res, err := r.selectValue(item, field)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, gqlerror.ErrorPosf(field.Position, "field %s is a scalar and has no fields", field.Name)
	}
}
