package signal

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/types"
)

// Aggregator runs every available provider and merges their outputs into
// one health view.
type Aggregator struct {
	providers []Provider
	cfg       config.AggregatorConfig
}

// NewAggregator creates an aggregator over a fixed provider registry.
func NewAggregator(providers []Provider, cfg config.AggregatorConfig) *Aggregator {
	return &Aggregator{providers: providers, cfg: cfg}
}

// Providers returns the registered providers.
func (a *Aggregator) Providers() []Provider {
	return a.providers
}

// Collect runs all available providers concurrently and combines their
// results. A provider that errors is logged and excluded; the cycle
// continues with whatever did run. With zero results the overall score
// defaults to 100.
func (a *Aggregator) Collect(ctx context.Context, projectRoot string, files []string) (*Combined, error) {
	type slot struct {
		result  *Result
		signals []FileSignal
	}
	slots := make([]slot, len(a.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, provider := range a.providers {
		i, provider := i, provider
		g.Go(func() error {
			if !provider.Available(gctx, projectRoot) {
				return nil
			}
			result, err := provider.Collect(gctx, projectRoot, files)
			if err != nil {
				log.Printf("signal: provider %s failed, excluding from cycle: %v", provider.Name(), err)
				return nil
			}
			signals, err := provider.FileSignals(gctx, projectRoot, files)
			if err != nil {
				log.Printf("signal: provider %s file signals failed: %v", provider.Name(), err)
				signals = nil
			}
			slots[i] = slot{result: result, signals: signals}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := &Combined{
		Timestamp:   time.Now(),
		FileSignals: make(map[string][]FileSignal),
	}
	analyzed := make(map[string]bool)
	for i, s := range slots {
		if s.result == nil {
			continue
		}
		combined.Providers = append(combined.Providers, s.result)
		combined.FileSignals[a.providers[i].Name()] = s.signals
		for _, fs := range s.signals {
			analyzed[fs.Path] = true
		}
	}
	combined.FilesAnalyzed = len(analyzed)
	combined.OverallScore = a.overallScore(combined.Providers)
	combined.HealthTrend = a.healthTrend(combined.Providers)
	combined.TopConcerns = a.topConcerns(combined.FileSignals)

	return combined, nil
}

// overallScore is the confidence-weighted average of provider scores:
// each provider contributes weight x confidence. No data means 100.
func (a *Aggregator) overallScore(results []*Result) float64 {
	var weighted, totalWeight float64
	for _, r := range results {
		effective := r.Weight * r.Confidence
		weighted += r.Score * effective
		totalWeight += effective
	}
	if totalWeight == 0 {
		return 100
	}
	return weighted / totalWeight
}

// healthTrend derives the coarse trend from the historical provider's
// recent success rate. This is a heuristic, not a statistical fit.
func (a *Aggregator) healthTrend(results []*Result) types.HealthTrend {
	for _, r := range results {
		if r.ProviderID != "historical" {
			continue
		}
		if r.Data["success_samples"] == 0 {
			break
		}
		rate := r.Data["success_rate"]
		if rate > a.cfg.TrendImproving {
			return types.TrendImproving
		}
		if rate < a.cfg.TrendDegrading {
			return types.TrendDegrading
		}
	}
	return types.TrendStable
}

// topConcerns collects per-file signals under the severity ceilings,
// sorted worst first and capped.
func (a *Aggregator) topConcerns(fileSignals map[string][]FileSignal) []Concern {
	var concerns []Concern
	for source, signals := range fileSignals {
		for _, fs := range signals {
			if fs.Score >= a.cfg.ConcernMedium {
				continue
			}
			severity := types.SeverityMedium
			switch {
			case fs.Score < a.cfg.ConcernCritical:
				severity = types.SeverityCritical
			case fs.Score < a.cfg.ConcernHigh:
				severity = types.SeverityHigh
			}
			concerns = append(concerns, Concern{
				File:     fs.Path,
				Issue:    concernIssue(fs),
				Severity: severity,
				Source:   source,
			})
		}
	}

	sort.SliceStable(concerns, func(i, j int) bool {
		return concerns[i].Severity.Rank() < concerns[j].Severity.Rank()
	})
	if len(concerns) > a.cfg.MaxConcerns {
		concerns = concerns[:a.cfg.MaxConcerns]
	}
	return concerns
}

func concernIssue(fs FileSignal) string {
	if len(fs.Flags) > 0 {
		return strings.Join(fs.Flags, ", ")
	}
	return fmt.Sprintf("health score %.0f", fs.Score)
}

// PredictionInputs builds one per-file signal bundle for the prediction
// engine from a combined result. The historical score is inverted so
// higher means more issues.
func PredictionInputs(combined *Combined) []*PredictionInput {
	inputs := make(map[string]*PredictionInput)
	get := func(path string) *PredictionInput {
		in, ok := inputs[path]
		if !ok {
			in = &PredictionInput{File: path}
			inputs[path] = in
		}
		return in
	}

	for _, fs := range combined.FileSignals["complexity"] {
		score := fs.Score
		get(fs.Path).Complexity = &score
	}
	for _, fs := range combined.FileSignals["churn"] {
		score := fs.Score
		in := get(fs.Path)
		in.Churn = &score
		in.RecentChanges = int(fs.Metrics["commits"])
	}
	for _, fs := range combined.FileSignals["historical"] {
		issues := 100 - fs.Score
		get(fs.Path).HistoricalIssues = &issues
	}

	out := make([]*PredictionInput, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

// FileFlags merges every provider's flags for each file, used by the
// prediction engine's template selection.
func FileFlags(combined *Combined) map[string][]string {
	flags := make(map[string][]string)
	for _, signals := range combined.FileSignals {
		for _, fs := range signals {
			flags[fs.Path] = append(flags[fs.Path], fs.Flags...)
		}
	}
	return flags
}
