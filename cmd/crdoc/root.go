package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	verbose    bool
	configPath string
	workspace  string
	cfg        config
)

// config is read from the yaml file given with --config.
type config struct {
	// Workspace is the path of the bolt database holding all documents.
	Workspace string `yaml:"workspace"`
	// Actor is the hex actor id used for new documents.
	Actor string `yaml:"actor"`
	// Buffer is the number of out of order changes kept while waiting for dependencies.
	Buffer int `yaml:"buffer"`
	// UndoLimit is the number of local changes that can be undone.
	UndoLimit int `yaml:"undo_limit"`
}

// loadConfig reads the config file at path. A missing file is only an error if required is set.
func loadConfig(path string, required bool) (config, error) {
	c := config{Workspace: "crdoc.db"}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crdoc",
	Short: "Edit and synchronize replicated documents",
	Long: `crdoc keeps replicated documents in a local workspace.
Documents can be edited offline and merged with copies edited elsewhere.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		c, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		if workspace != "" {
			c.Workspace = workspace
		}
		cfg = c
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "crdoc.yaml", "Config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace database (overrides config)")
}
