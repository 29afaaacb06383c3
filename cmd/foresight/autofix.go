package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/action"
	"github.com/cadencehq/foresight/internal/ai"
	"github.com/cadencehq/foresight/internal/types"
)

var autofixCmd = &cobra.Command{
	Use:   "autofix",
	Short: "Manage the auto-fix approval queue",
}

var autofixGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate auto-fixes from current predictions",
	Long: `Turn the most urgent stored predictions into pending auto-fix items.

With ANTHROPIC_API_KEY set, generated requirements are refined by the AI
before entering the queue; without it the raw templates are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		predictions, err := store.ListPredictions(ctx, projectID, types.PredictionActive, 0)
		if err != nil {
			return fmt.Errorf("listing predictions: %w", err)
		}

		engine := newActionEngine()
		items, err := engine.GenerateAutoFixes(ctx, projectID, predictions)
		if err != nil {
			return fmt.Errorf("generating auto-fixes: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(items) == 0 {
			fmt.Printf("%s\n", gray("No predictions cleared the auto-fix thresholds."))
			return nil
		}

		fmt.Printf("\n%s Generated %d auto-fixes\n\n", green("✓"), len(items))
		printAutoFixes(items)
		fmt.Printf("%s foresight review   # approve or reject them\n", gray("→"))
		return nil
	},
}

var autofixListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending and approved auto-fixes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if expired, err := newActionEngine().ExpireOldAutoFixes(ctx); err == nil && expired > 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s\n", gray(fmt.Sprintf("Expired %d stale auto-fixes.", expired)))
		}

		pending, err := store.PendingAutoFixes(ctx, projectID)
		if err != nil {
			return fmt.Errorf("listing pending auto-fixes: %w", err)
		}
		approved, err := store.ApprovedAutoFixes(ctx, projectID)
		if err != nil {
			return fmt.Errorf("listing approved auto-fixes: %w", err)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n", yellow(fmt.Sprintf("Pending (%d):", len(pending))))
		if len(pending) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		printAutoFixes(pending)

		fmt.Printf("\n%s\n", yellow(fmt.Sprintf("Approved (%d):", len(approved))))
		if len(approved) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		printAutoFixes(approved)
		fmt.Println()
		return nil
	},
}

var autofixApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending auto-fix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newActionEngine().Approve(cmd.Context(), args[0]); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Approved %s\n", green("✓"), args[0])
		return nil
	},
}

var autofixRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending auto-fix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newActionEngine().Reject(cmd.Context(), args[0]); err != nil {
			return err
		}
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s Rejected %s\n", red("✗"), args[0])
		return nil
	},
}

// newActionEngine builds the action engine, with AI refinement when a
// key is configured.
func newActionEngine() *action.Engine {
	refiner, err := ai.NewRefiner(ai.Config{})
	if err != nil {
		refiner = nil
	}
	if refiner == nil {
		// action.Engine treats a nil RequirementRefiner as "feature off";
		// a typed nil interface would defeat its nil check.
		return action.NewEngine(store, nil, cfg.Action)
	}
	return action.NewEngine(store, refiner, cfg.Action)
}

func printAutoFixes(items []*types.AutoFixItem) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, item := range items {
		fmt.Printf("  %s (risk %s)\n", item.Title, riskBadge(item.RiskLevel))
		fmt.Printf("    %s\n", gray(fmt.Sprintf("id=%s urgency=%.2f confidence=%.2f files=%s",
			item.ID, item.UrgencyScore, item.ConfidenceScore, strings.Join(item.TargetFiles, ", "))))
	}
}

func init() {
	rootCmd.AddCommand(autofixCmd)
	autofixCmd.AddCommand(autofixGenerateCmd)
	autofixCmd.AddCommand(autofixListCmd)
	autofixCmd.AddCommand(autofixApproveCmd)
	autofixCmd.AddCommand(autofixRejectCmd)
}
