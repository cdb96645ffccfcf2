package query

import (
	"context"
	"testing"

	"github.com/nasdf/crdoc/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(t *testing.T) *core.Document {
	doc := core.New()
	_, err := doc.Change(context.Background(), func(tx *core.Transaction) error {
		if err := tx.Set([]any{"title"}, "groceries"); err != nil {
			return err
		}
		return tx.Set([]any{"todos"}, []any{
			map[string]any{"title": "milk", "done": false},
			map[string]any{"title": "eggs", "done": true},
		})
	})
	require.NoError(t, err)
	return doc
}

func TestQuerySelection(t *testing.T) {
	doc := testDocument(t)
	res := Execute(context.Background(), doc, Params{
		Query: `query { title todos { name: title } missing }`,
	})
	require.Empty(t, res.Errors)

	expect := map[string]any{
		"title":   "groceries",
		"todos":   []any{map[string]any{"name": "milk"}, map[string]any{"name": "eggs"}},
		"missing": nil,
	}
	assert.Equal(t, expect, res.Data)
}

func TestQueryFragments(t *testing.T) {
	doc := testDocument(t)
	res := Execute(context.Background(), doc, Params{
		Query: `query { todos { ...todo } } fragment todo on Todo { done }`,
	})
	require.Empty(t, res.Errors)
	expect := map[string]any{
		"todos": []any{map[string]any{"done": false}, map[string]any{"done": true}},
	}
	assert.Equal(t, expect, res.Data)
}

func TestQueryScalarSelection(t *testing.T) {
	doc := testDocument(t)
	res := Execute(context.Background(), doc, Params{Query: `{ title { length } }`})
	assert.NotEmpty(t, res.Errors)
}

func TestQueryParseError(t *testing.T) {
	res := Execute(context.Background(), core.New(), Params{Query: `query {`})
	assert.NotEmpty(t, res.Errors)
	assert.Nil(t, res.Data)
}

func TestMutation(t *testing.T) {
	doc := testDocument(t)
	res := Execute(context.Background(), doc, Params{
		Query: `mutation($title: String) {
			set(path: ["title"], value: $title)
			done: set(path: ["todos", 0, "done"], value: true)
			insert(path: ["todos", 2], value: {title: "bread"}) { title }
			note: set(path: "note", text: "hello")
			splice(path: ["note"], index: 5, text: " world")
		}`,
		Variables: map[string]any{"title": "shopping"},
	})
	require.Empty(t, res.Errors)

	data := res.Data.(map[string]any)
	assert.Equal(t, "shopping", data["set"])
	assert.Equal(t, true, data["done"])
	assert.Equal(t, map[string]any{"title": "bread"}, data["insert"])
	assert.Equal(t, "hello world", data["splice"])

	// every field was committed as one change
	assert.Len(t, doc.Changes(), 2)

	text, err := doc.Text("note")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestMutationRollback(t *testing.T) {
	doc := testDocument(t)
	res := Execute(context.Background(), doc, Params{
		Query: `mutation {
			set(path: ["title"], value: "changed")
			delete(path: ["todos", 9])
		}`,
	})
	assert.NotEmpty(t, res.Errors)

	v, err := doc.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "groceries", v)
	assert.Len(t, doc.Changes(), 1)
}
