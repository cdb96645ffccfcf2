package main

import (
	"context"
	"encoding/json"

	"github.com/nasdf/crdoc"
	"github.com/nasdf/crdoc/query"
	"github.com/nasdf/crdoc/storage"

	"github.com/spf13/cobra"
)

var (
	queryOperation string
	queryVariables string
)

var queryCmd = &cobra.Command{
	Use:   "query [name] [query]",
	Short: "Run a GraphQL query or mutation against a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		params := query.Params{
			Query:         args[1],
			OperationName: queryOperation,
		}
		if queryVariables != "" {
			if err := json.Unmarshal([]byte(queryVariables), &params.Variables); err != nil {
				return err
			}
		}
		return withWorkspace(func(store *storage.Bolt) error {
			doc, err := openDocument(ctx, store, args[0])
			if err != nil {
				return err
			}
			res, err := crdoc.Execute(ctx, store, args[0], doc, params)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryOperation, "operation", "", "Operation name")
	queryCmd.Flags().StringVar(&queryVariables, "variables", "", "Variables as a JSON object")
}
