package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/repl"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review the auto-fix queue interactively",
	Long: `Start an interactive shell for reviewing pending auto-fixes.

Each item can be inspected, approved, or rejected by index or ID.
Approved items are picked up by 'foresight execute'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repl.New(&repl.Config{
			Queue:     newActionEngine(),
			ProjectID: projectID,
		})
		if err != nil {
			return fmt.Errorf("failed to create review shell: %w", err)
		}
		return r.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
