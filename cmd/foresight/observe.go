package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cadencehq/foresight/internal/observe"
	"github.com/cadencehq/foresight/internal/predict"
	fsignal "github.com/cadencehq/foresight/internal/signal"
	"github.com/cadencehq/foresight/internal/storage/sqlite"
	"github.com/cadencehq/foresight/internal/types"
)

var observeWatch bool

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Run an observation cycle",
	Long: `Collect health signals for the project, generate predictions, and
record an analysis snapshot.

By default runs a single cycle. With --watch, starts the interval
scheduler and keeps observing until interrupted; post-execution and
scheduled triggers both start cycles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := observe.NewService(store, cfg.Observe)
		defer svc.Close()

		if !observeWatch {
			return runCycle(cmd.Context(), svc, types.TriggerManual)
		}

		svc.Subscribe(func(project string, source types.TriggerSource) {
			if project != projectID {
				return
			}
			if err := runCycle(context.Background(), svc, source); err != nil {
				if errors.Is(err, observe.ErrCycleInFlight) || errors.Is(err, observe.ErrRateLimited) {
					return
				}
				fmt.Fprintf(os.Stderr, "Warning: observation cycle failed: %v\n", err)
			}
		})
		svc.EnableSchedule(projectID)

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s Watching %s every %s, Ctrl+C to stop\n",
			gray("→"), projectID, cfg.Observe.Interval)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		fmt.Println("\nStopping observation.")
		return nil
	},
}

// runCycle is one full observation pass: snapshot start, signal
// collection, prediction generation, snapshot completion.
func runCycle(ctx context.Context, svc *observe.Service, source types.TriggerSource) error {
	snap, err := svc.StartSnapshot(ctx, projectID, source)
	if err != nil {
		return err
	}

	combined, err := buildAggregator().Collect(ctx, projectRoot, nil)
	if err != nil {
		svc.FailSnapshot(ctx, snap, err.Error())
		return fmt.Errorf("signal collection failed: %w", err)
	}

	patterns, err := store.ActivePatterns(ctx, projectID)
	if err != nil {
		svc.FailSnapshot(ctx, snap, err.Error())
		return fmt.Errorf("loading patterns: %w", err)
	}

	predictions, summary := newPredictEngine().Generate(
		projectID, fsignal.PredictionInputs(combined), fsignal.FileFlags(combined), patterns)
	if err := store.StorePredictions(ctx, predictions); err != nil {
		svc.FailSnapshot(ctx, snap, err.Error())
		return fmt.Errorf("storing predictions: %w", err)
	}

	// The success-rate trend is coarse; when it reads stable, refine it
	// against the previous snapshot's score.
	trend := combined.HealthTrend
	delta := 0.0
	if d, deltaTrend, err := svc.HealthDelta(ctx, projectID, combined.OverallScore); err == nil {
		delta = d
		if trend == types.TrendStable {
			trend = deltaTrend
		}
	}

	if err := svc.CompleteSnapshot(ctx, snap, sqlite.SnapshotResult{
		OverallScore:    combined.OverallScore,
		HealthTrend:     trend,
		FilesAnalyzed:   combined.FilesAnalyzed,
		ConcernCount:    len(combined.TopConcerns),
		PredictionCount: summary.Total,
	}); err != nil {
		return err
	}

	printCycleResult(combined, summary, delta, trend)
	return nil
}

func printCycleResult(combined *fsignal.Combined, summary *predict.Summary, delta float64, trend types.HealthTrend) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Observation Cycle ==="))
	fmt.Printf("  Health score: %s (%+.1f, %s)\n", scoreColor(combined.OverallScore), delta, trend)
	fmt.Printf("  Files:        %d analyzed\n", combined.FilesAnalyzed)
	fmt.Printf("  Predictions:  %d (mean confidence %.2f)\n", summary.Total, summary.MeanConfidence)

	if len(combined.TopConcerns) > 0 {
		fmt.Printf("\n%s\n", yellow("Top concerns:"))
		for _, c := range combined.TopConcerns {
			fmt.Printf("  %s %s: %s\n", severityBadge(c.Severity), c.File, c.Issue)
		}
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(observeCmd)
	observeCmd.Flags().BoolVar(&observeWatch, "watch", false, "Keep observing on the configured interval")
}
