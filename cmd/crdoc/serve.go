package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nasdf/crdoc"
	crdochttp "github.com/nasdf/crdoc/http"
	"github.com/nasdf/crdoc/storage"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [name]",
	Short: "Serve a document over http",
	Long: `Serve a GraphQL playground and query endpoint for a document, along with
the /clock and /changes endpoints used to synchronize replicas.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		name := args[0]
		return withWorkspace(func(store *storage.Bolt) error {
			doc, err := openDocument(ctx, store, name)
			if err != nil {
				return err
			}
			save := func(r *http.Request) error {
				return crdoc.Save(r.Context(), store, name, doc)
			}
			fmt.Printf("Open a browser and navigate to http://%s\n", serveAddr)
			return crdochttp.ListenAndServe(doc, serveAddr,
				crdochttp.WithLogger(slog.Default()),
				crdochttp.WithSave(save),
			)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8080", "Address to listen on")
}
