package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/learning"
	"github.com/cadencehq/foresight/internal/types"
)

var (
	predictStatus string
	predictLimit  int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Show debt predictions",
	Long: `List stored debt predictions, most urgent first.

Predictions come from the last observation cycle; run 'foresight observe'
to refresh them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		predictions, err := store.ListPredictions(ctx, projectID, types.PredictionStatus(predictStatus), predictLimit)
		if err != nil {
			return fmt.Errorf("listing predictions: %w", err)
		}

		if len(predictions) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s\n", gray("No predictions. Run 'foresight observe' first."))
			return nil
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== Debt Predictions (%d) ===", len(predictions))))

		for _, p := range predictions {
			fmt.Printf("%s %s\n", severityBadge(p.Severity), p.Title)
			fmt.Printf("  %s\n", p.Description)
			fmt.Printf("  %s\n", gray(fmt.Sprintf("id=%s type=%s urgency=%.2f confidence=%.2f effort=%s",
				p.ID, p.Type, p.Urgency, p.Confidence, p.Effort)))
			if p.MicroRefactoring != "" {
				fmt.Printf("  %s %s\n", gray("quick win:"), p.MicroRefactoring)
			}
			fmt.Println()
		}
		return nil
	},
}

var predictFeedbackCmd = &cobra.Command{
	Use:   "feedback <prediction-id> <confirmed|prevented|false_positive>",
	Short: "Record how a prediction turned out",
	Long: `Feed the outcome of a prediction back into the learning system.

confirmed      the predicted issue materialized
prevented      the issue was fixed before it materialized
false_positive the prediction was wrong`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedback := learning.PredictionFeedback(args[1])
		switch feedback {
		case learning.FeedbackConfirmed, learning.FeedbackPrevented, learning.FeedbackFalsePositive:
		default:
			return fmt.Errorf("unknown feedback %q", args[1])
		}

		learner := learning.NewLearner(store, cfg.Learning)
		if err := learner.RecordPredictionOutcome(cmd.Context(), args[0], feedback); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Recorded %s for %s\n", green("✓"), feedback, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.AddCommand(predictFeedbackCmd)
	predictCmd.Flags().StringVar(&predictStatus, "status", "active", "Filter by status (active, addressed, dismissed, empty for all)")
	predictCmd.Flags().IntVar(&predictLimit, "limit", 20, "Maximum predictions to show")
}
