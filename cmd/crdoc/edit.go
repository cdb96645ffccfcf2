package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/object"

	"github.com/spf13/cobra"
)

var (
	changeMessage string
	setText       bool
	setCounter    bool
)

// parseValue decodes a JSON argument, falling back to the raw string.
func parseValue(arg string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(arg)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return arg
	}
	return normalize(v)
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	default:
		return v
	}
}

// change runs fn in a single change on the named document and saves it.
func change(name string, fn func(tx *core.Transaction) error) error {
	ctx := context.Background()
	return editDocument(ctx, name, func(doc *core.Document) error {
		c, err := doc.Change(ctx, fn, core.WithMessage(changeMessage))
		if err != nil {
			return err
		}
		fmt.Printf("Change %s committed.\n", c.Hash)
		return nil
	})
}

var setCmd = &cobra.Command{
	Use:   "set [name] [path] [value]",
	Short: "Set a value",
	Long: `Set the value at a slash separated path. The value is parsed as JSON
and used as a plain string if it is not valid JSON.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value any
		switch {
		case setText:
			value = core.Text(args[2])
		case setCounter:
			n, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid counter: %w", err)
			}
			value = object.Counter(n)
		default:
			value = parseValue(args[2])
		}
		return change(args[0], func(tx *core.Transaction) error {
			return tx.Set(parsePath(args[1]), value)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [name] [path]",
	Short: "Delete a map key or list element",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return change(args[0], func(tx *core.Transaction) error {
			return tx.Delete(parsePath(args[1]))
		})
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert [name] [path] [value]",
	Short: "Insert a value into a list",
	Long:  `Insert a value so it ends up at the index given by the last path step.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return change(args[0], func(tx *core.Transaction) error {
			return tx.Insert(parsePath(args[1]), parseValue(args[2]))
		})
	},
}

var incrementCmd = &cobra.Command{
	Use:   "increment [name] [path] [amount]",
	Short: "Add to a counter",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount := int64(1)
		if len(args) == 3 {
			n, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			amount = n
		}
		return change(args[0], func(tx *core.Transaction) error {
			return tx.Increment(parsePath(args[1]), amount)
		})
	},
}

var spliceCmd = &cobra.Command{
	Use:   "splice [name] [path] [index] [delete] [text]",
	Short: "Replace a range of text",
	Args:  cobra.RangeArgs(4, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid index: %w", err)
		}
		count, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("invalid delete count: %w", err)
		}
		var text string
		if len(args) == 5 {
			text = args[4]
		}
		return change(args[0], func(tx *core.Transaction) error {
			return tx.SpliceText(parsePath(args[1]), index, count, text)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{setCmd, deleteCmd, insertCmd, incrementCmd, spliceCmd} {
		cmd.Flags().StringVarP(&changeMessage, "message", "m", "", "Change message")
		rootCmd.AddCommand(cmd)
	}
	setCmd.Flags().BoolVar(&setText, "text", false, "Store the value as collaborative text")
	setCmd.Flags().BoolVar(&setCounter, "counter", false, "Store the value as a counter")
	setCmd.MarkFlagsMutuallyExclusive("text", "counter")
}
