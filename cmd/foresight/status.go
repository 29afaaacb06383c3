package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project health and learning progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== Foresight Status: %s ===", projectID)))

		health, err := store.HealthSummary(ctx, projectID)
		if err != nil {
			return fmt.Errorf("loading health summary: %w", err)
		}

		fmt.Printf("%s\n", yellow("Health:"))
		if health == nil {
			fmt.Printf("  %s\n", gray("No completed observation cycles yet. Run 'foresight observe'."))
		} else {
			fmt.Printf("  Score:     %s (%s)\n", scoreColor(health.OverallScore), health.HealthTrend)
			fmt.Printf("  Concerns:  %d\n", health.ConcernCount)
			fmt.Printf("  Cycles:    %d\n", health.SnapshotCount)
			fmt.Printf("  Updated:   %s\n", health.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()

		progress, err := store.LearningProgress(ctx, projectID)
		if err != nil {
			return fmt.Errorf("loading learning progress: %w", err)
		}

		fmt.Printf("%s\n", yellow("Learning:"))
		fmt.Printf("  Patterns:    %d total, %d active, %d with auto-fix\n",
			progress.TotalPatterns, progress.ActivePatterns, progress.AutoFixPatterns)
		if progress.TotalOutcomes > 0 {
			fmt.Printf("  Executions:  %d (%.0f%% successful)\n",
				progress.TotalOutcomes, progress.OutcomeSuccessRate*100)
		} else {
			fmt.Printf("  Executions:  %s\n", gray("none recorded"))
		}
		if progress.PredictionsTotal > 0 {
			fmt.Printf("  Predictions: %d resolved, %d accurate\n",
				progress.PredictionsTotal, progress.PredictionsAccurate)
		} else {
			fmt.Printf("  Predictions: %s\n", gray("no feedback yet"))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
