package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/object"

	"github.com/spf13/cobra"
)

var getConflicts bool

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

var getCmd = &cobra.Command{
	Use:   "get [name] [path]",
	Short: "Print a document or the value at a path",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path []any
		if len(args) == 2 {
			path = parsePath(args[1])
		}
		return readDocument(context.Background(), args[0], func(doc *core.Document) error {
			if getConflicts {
				values, err := doc.Conflicts(path...)
				if err != nil {
					return err
				}
				return printJSON(values)
			}
			value, err := doc.Get(path...)
			if err != nil {
				return err
			}
			return printJSON(value)
		})
	},
}

var logCmd = &cobra.Command{
	Use:   "log [name]",
	Short: "Print the change history of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return readDocument(context.Background(), args[0], func(doc *core.Document) error {
			changes := doc.Changes()
			for i := len(changes) - 1; i >= 0; i-- {
				printChange(changes[i])
			}
			return nil
		})
	},
}

func printChange(c *object.Change) {
	fmt.Printf("change %s\n", c.Hash)
	fmt.Printf("Actor: %s\n", c.Actor)
	fmt.Printf("Seq:   %d\n", c.Seq)
	fmt.Printf("Ops:   %d\n", len(c.Ops))
	for _, dep := range c.Deps {
		fmt.Printf("Dep:   %s\n", dep)
	}
	if c.Message != "" {
		fmt.Printf("\n    %s\n", c.Message)
	}
	fmt.Println()
}

var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Print the actor, heads, and clock of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return readDocument(context.Background(), args[0], func(doc *core.Document) error {
			fmt.Printf("Actor: %s\n", doc.Actor())
			fmt.Printf("Clock: %s\n", doc.Clock())
			for _, head := range doc.Heads() {
				fmt.Printf("Head:  %s\n", head)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	getCmd.Flags().BoolVar(&getConflicts, "conflicts", false, "Print every concurrent value of a map key")
}
