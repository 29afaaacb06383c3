package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init [project-name]",
	Short: "Initialize foresight in the current directory",
	Long: `Initialize foresight by creating a .foresight/ directory.

This creates:
  - .foresight/ directory
  - .foresight/foresight.db (SQLite database)
  - .foresight/requirements/ (generated requirement artifacts)

If no project name is provided, the current directory name is used.

Example:
  cd ~/myproject
  foresight init
  foresight init myapp`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}

		name := filepath.Base(cwd)
		if len(args) > 0 {
			name = args[0]
		}

		dataDir := filepath.Join(cwd, ".foresight")
		if err := os.MkdirAll(filepath.Join(dataDir, "requirements"), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dataDir, err)
		}

		ctx := context.Background()
		path := filepath.Join(dataDir, "foresight.db")
		db, err := storage.NewStorage(ctx, &storage.Config{Path: path})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.SetConfig(ctx, "project_id", name); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to store project ID: %w", err)
		}
		_ = db.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized foresight\n\n", green("✓"))
		fmt.Printf("  Project:  %s\n", cyan(name))
		fmt.Printf("  Database: %s\n", cyan(path))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("foresight observe          # Run an observation cycle"))
		fmt.Printf("  %s\n", gray("foresight predict          # See ranked predictions"))
		fmt.Printf("  %s\n", gray("foresight autofix generate # Propose auto-fixes"))
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
