package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/learning"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Mine recent execution outcomes for patterns",
	Long: `Run a learning pass over recent execution outcomes.

Successful fix clusters become reusable patterns; proven patterns earn
auto-fix templates; failure clusters become [AVOID] patterns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		learner := learning.NewLearner(store, cfg.Learning)
		report, err := learner.LearnFromExecutions(cmd.Context(), projectID)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Learning Pass ==="))
		fmt.Printf("  Outcomes examined:  %d\n", report.OutcomesExamined)
		fmt.Printf("  Patterns created:   %d\n", report.PatternsCreated)
		fmt.Printf("  Patterns updated:   %d\n", report.PatternsUpdated)
		fmt.Printf("  Auto-fixes enabled: %d\n", report.AutoFixesEnabled)
		fmt.Println()
		return nil
	},
}

var learnCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Demote patterns that stopped working",
	Long: `Deprecate imprecise patterns and suspend patterns whose auto-fixes
keep failing. Patterns are never deleted; their history stays available
to future learning passes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		learner := learning.NewLearner(store, cfg.Learning)
		deprecated, suspended, err := learner.CleanupPatterns(cmd.Context(), projectID)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Cleanup done: %d deprecated, %d suspended\n", green("✓"), deprecated, suspended)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(learnCmd)
	learnCmd.AddCommand(learnCleanupCmd)
}
