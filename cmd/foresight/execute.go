package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/execution"
	"github.com/cadencehq/foresight/internal/observe"
)

var (
	completeFailed bool
	completeTokens int
)

var executeCmd = &cobra.Command{
	Use:   "execute <auto-fix-id>",
	Short: "Hand an approved auto-fix to the execution agent",
	Long: `Start executing an approved auto-fix.

This measures the project's health, snapshots the target files, writes
the requirement artifact to .foresight/requirements/, and marks the
auto-fix as executing. The external agent performs the actual edit and
reports back through 'foresight complete'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline := newPipeline()
		result, err := pipeline.ExecuteAutoFix(cmd.Context(), projectRoot, args[0])
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Execution started\n\n", green("✓"))
		fmt.Printf("  Execution ID: %s\n", cyan(result.ExecutionID))
		fmt.Printf("  Requirement:  %s\n", cyan(result.RequirementPath))
		fmt.Printf("  Pre-health:   %.1f\n", result.PreHealthScore)
		fmt.Println()
		fmt.Printf("%s When the agent finishes:\n", gray("→"))
		fmt.Printf("  %s\n", gray(fmt.Sprintf("foresight complete %s [--failed] [--tokens N]", result.ExecutionID)))
		fmt.Println()
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <execution-id>",
	Short: "Record the result of an execution",
	Long: `Close out an execution started by 'foresight execute'.

Measures post-fix health, diffs the target files against the pre-fix
snapshot, rates the outcome, and updates pattern statistics. A failed
fix is a valid data point, not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline := newPipeline()
		if err := pipeline.CompleteExecution(cmd.Context(), projectRoot, args[0], !completeFailed, completeTokens); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Execution %s recorded\n", green("✓"), args[0])
		return nil
	},
}

func newPipeline() *execution.Pipeline {
	svc := observe.NewService(store, cfg.Observe)
	return execution.NewPipeline(store, buildAggregator(), svc)
}

func init() {
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(completeCmd)
	completeCmd.Flags().BoolVar(&completeFailed, "failed", false, "The agent failed to apply the fix")
	completeCmd.Flags().IntVar(&completeTokens, "tokens", 0, "Tokens the agent spent")
}
