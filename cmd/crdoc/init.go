package main

import (
	"context"
	"fmt"

	"github.com/nasdf/crdoc"
	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/storage"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create an empty document",
	Long:  `Create an empty document in the workspace. The actor id comes from the config or is generated.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		name := args[0]

		opts, err := newActorOptions()
		if err != nil {
			return err
		}

		return withWorkspace(func(store *storage.Bolt) error {
			exists, err := store.Has(ctx, name)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("document %s already exists", name)
			}
			doc := core.New(opts...)
			if err := crdoc.Save(ctx, store, name, doc); err != nil {
				return err
			}
			fmt.Printf("Document '%s' created with actor %s.\n", name, doc.Actor())
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(func(store *storage.Bolt) error {
			names, err := store.Keys(context.Background())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "Remove a document from the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(func(store *storage.Bolt) error {
			return store.Delete(context.Background(), args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
}
