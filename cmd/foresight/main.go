package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/storage"
)

// Shared command state, populated by the root PersistentPreRunE.
var (
	store       storage.Storage
	cfg         *config.Config
	projectRoot string
	projectID   string

	dbPath   string
	cfgPath  string
	projFlag string
)

var rootCmd = &cobra.Command{
	Use:   "foresight",
	Short: "Predictive code health loop",
	Long: `Foresight watches a codebase, predicts where technical debt will
bite next, proposes auto-fixes for human approval, hands approved fixes
to an execution agent, and learns from how each fix turned out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init creates the data dir itself; help needs nothing.
		if cmd.Name() == "init" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return openProject(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

// openProject resolves the project root, loads config, and opens the
// database. Every command except init runs behind this.
func openProject(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	projectRoot = cwd

	if dbPath == "" {
		dbPath = filepath.Join(projectRoot, ".foresight", "foresight.db")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no foresight database at %s, run 'foresight init' first", dbPath)
	}

	if cfgPath == "" {
		cfgPath = filepath.Join(projectRoot, ".foresight", "config.yaml")
	}
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}

	store, err = storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	projectID = projFlag
	if projectID == "" {
		if saved, err := store.GetConfig(ctx, "project_id"); err == nil && saved != "" {
			projectID = saved
		} else {
			projectID = filepath.Base(projectRoot)
		}
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: .foresight/foresight.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config path (default: .foresight/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projFlag, "project", "", "Project ID (default: stored at init)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
