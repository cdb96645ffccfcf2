package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/nasdf/crdoc"
	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/storage"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const exchangeExt = ".crdc"

var watchInterval time.Duration

// exchange synchronizes a document through a shared directory.
//
// Every replica writes its change history to <dir>/<actor>.crdc and merges
// the files written by the others.
type exchange struct {
	dir    string
	name   string
	doc    *core.Document
	logger *slog.Logger
}

func (e *exchange) ownFile() string {
	return filepath.Join(e.dir, e.doc.Actor().String()+exchangeExt)
}

func (e *exchange) isPeerFile(path string) bool {
	return filepath.Ext(path) == exchangeExt && filepath.Clean(path) != e.ownFile()
}

// publish merges the saved copy of the document so edits made by other
// commands are kept, then writes the local history and saves the result.
//
// Nothing is written if force is false and the saved copy had no new changes.
func (e *exchange) publish(ctx context.Context, force bool) error {
	return withWorkspace(func(store *storage.Bolt) error {
		data, err := store.Get(ctx, e.name)
		if err != nil {
			return err
		}
		n, err := e.doc.LoadIncremental(ctx, data)
		if err != nil {
			return err
		}
		if n == 0 && !force {
			return nil
		}
		data, err = e.doc.SaveChanges(ctx)
		if err != nil {
			return err
		}
		tmp := e.ownFile() + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return err
		}
		if err := os.Rename(tmp, e.ownFile()); err != nil {
			return err
		}
		return crdoc.Save(ctx, store, e.name, e.doc)
	})
}

// merge reads a peer file and publishes the result if anything changed.
func (e *exchange) merge(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	n, err := e.doc.LoadIncremental(ctx, data)
	if err != nil {
		return err
	}
	e.logger.Info("merged peer changes", "file", filepath.Base(path), "applied", n)
	if n == 0 {
		return nil
	}
	return e.publish(ctx, true)
}

// scan merges every peer file in the directory.
func (e *exchange) scan(ctx context.Context) error {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		path := filepath.Join(e.dir, entry.Name())
		if entry.IsDir() || !e.isPeerFile(path) {
			continue
		}
		if err := e.merge(ctx, path); err != nil {
			e.logger.Warn("failed to merge peer file", "file", entry.Name(), "error", err)
		}
	}
	return nil
}

// run merges peer files as they change until the context is cancelled.
func (e *exchange) run(ctx context.Context, watcher *fsnotify.Watcher) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !e.isPeerFile(event.Name) {
				continue
			}
			e.logger.Debug("event received", "name", event.Name)
			if err := e.merge(ctx, event.Name); err != nil {
				e.logger.Warn("failed to merge peer file", "file", event.Name, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("fsnotify error", "error", err)

		case <-ticker.C:
			if err := e.publish(ctx, false); err != nil {
				e.logger.Warn("failed to publish local changes", "error", err)
			}
		}
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch [name] [dir]",
	Short: "Synchronize a document through a shared directory",
	Long: `Watch a directory shared with other replicas, for example a synced folder.
The local change history is written to the directory and the files written
by other replicas are merged as soon as they change.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		name, dir := args[0], args[1]
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		// the workspace is only opened while saving so other commands can edit the document
		var doc *core.Document
		err := withWorkspace(func(store *storage.Bolt) (err error) {
			doc, err = openDocument(ctx, store, name)
			return err
		})
		if err != nil {
			return err
		}
		e := &exchange{
			dir:    filepath.Clean(dir),
			name:   name,
			doc:    doc,
			logger: slog.Default(),
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(e.dir); err != nil {
			return err
		}

		if err := e.scan(ctx); err != nil {
			return err
		}
		if err := e.publish(ctx, true); err != nil {
			return err
		}
		fmt.Printf("Watching %s as %s\n", e.dir, doc.Actor())
		return e.run(ctx, watcher)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "How often to check the workspace for local edits")
}
