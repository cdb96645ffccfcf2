package query

import (
	"context"

	"github.com/nasdf/crdoc/core"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// Params contains all of the parameters for a query.
type Params struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Response contains the fields expected from a GraphQL http response.
type Response struct {
	Data   any           `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// Request is a parsed query or mutation over a document.
//
// Documents have no schema so queries are only parsed, never validated.
// Every field selects the map key of the same name.
type Request struct {
	doc       *ast.QueryDocument
	operation *ast.OperationDefinition
	params    Params
}

// Parse parses the query in params and picks the operation to run.
func Parse(params Params) (*Request, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: params.Query})
	if err != nil {
		return nil, err
	}
	var operation *ast.OperationDefinition
	if params.OperationName != "" {
		operation = doc.Operations.ForName(params.OperationName)
	} else if len(doc.Operations) == 1 {
		operation = doc.Operations[0]
	}
	if operation == nil {
		return nil, gqlerror.Errorf("operation is not defined")
	}
	return &Request{
		doc:       doc,
		operation: operation,
		params:    params,
	}, nil
}

// Execute runs the request against the document.
func (r *Request) Execute(ctx context.Context, doc *core.Document) (any, error) {
	switch r.operation.Operation {
	case ast.Query:
		return r.selectFields(doc.View(), r.operation.SelectionSet)
	case ast.Mutation:
		return r.executeMutation(ctx, doc)
	default:
		return nil, gqlerror.Errorf("unsupported operation %s", r.operation.Operation)
	}
}

// Execute parses and runs a query against the document.
func Execute(ctx context.Context, doc *core.Document, params Params) Response {
	req, err := Parse(params)
	if err != nil {
		return Response{Errors: gqlerror.List{gqlerror.WrapIfUnwrapped(err)}}
	}
	data, err := req.Execute(ctx, doc)
	if err != nil {
		return Response{Errors: gqlerror.List{gqlerror.WrapIfUnwrapped(err)}}
	}
	return Response{Data: data}
}

// collectFields flattens the selection set. Every named fragment applies
// since document values carry no type.
func (r *Request) collectFields(sel ast.SelectionSet) []graphql.CollectedField {
	var satisfies []string
	for _, f := range r.doc.Fragments {
		satisfies = append(satisfies, f.TypeCondition)
	}
	reqCtx := &graphql.OperationContext{
		RawQuery:  r.params.Query,
		Variables: r.params.Variables,
		Doc:       r.doc,
	}
	return graphql.CollectFields(reqCtx, sel, satisfies)
}
