package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nasdf/crdoc"
	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/storage"

	"github.com/spf13/cobra"
)

var exportChanges bool

var exportCmd = &cobra.Command{
	Use:   "export [name] [file]",
	Short: "Write a document to a file",
	Long: `Write a snapshot of a document to a file. With --changes only the change
history is written, which is smaller to exchange with other replicas.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return readDocument(ctx, args[0], func(doc *core.Document) error {
			var data []byte
			var err error
			if exportChanges {
				data, err = doc.SaveChanges(ctx)
			} else {
				data, err = doc.Save(ctx)
			}
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0644)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import [name] [file...]",
	Short: "Merge files into a document",
	Long: `Merge the changes contained in exported files into a document.
If the document does not exist it is created from the first file.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		name := args[0]
		return withWorkspace(func(store *storage.Bolt) error {
			doc, err := openDocument(ctx, store, name)
			if errors.Is(err, errDocumentNotFound) {
				data, err := os.ReadFile(args[1])
				if err != nil {
					return err
				}
				opts, err := newActorOptions()
				if err != nil {
					return err
				}
				if doc, err = core.Load(ctx, data, opts...); err != nil {
					return fmt.Errorf("failed to load %s: %w", args[1], err)
				}
				args = args[1:]
			} else if err != nil {
				return err
			}
			for _, path := range args[1:] {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				n, err := doc.LoadIncremental(ctx, data)
				if err != nil {
					return fmt.Errorf("failed to merge %s: %w", path, err)
				}
				fmt.Printf("Merged %d changes from %s.\n", n, path)
			}
			return crdoc.Save(ctx, store, name, doc)
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge [name] [source...]",
	Short: "Merge other documents of the workspace into a document",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return withWorkspace(func(store *storage.Bolt) error {
			doc, err := openDocument(ctx, store, args[0])
			if err != nil {
				return err
			}
			for _, source := range args[1:] {
				other, err := openDocument(ctx, store, source)
				if err != nil {
					return err
				}
				n, err := doc.Merge(ctx, other)
				if err != nil {
					return fmt.Errorf("failed to merge %s: %w", source, err)
				}
				fmt.Printf("Merged %d changes from %s.\n", n, source)
			}
			return crdoc.Save(ctx, store, args[0], doc)
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(mergeCmd)
	exportCmd.Flags().BoolVar(&exportChanges, "changes", false, "Write only the change history")
}
