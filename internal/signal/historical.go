package signal

import (
	"context"
	"sort"
	"time"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/types"
)

// OutcomeReader is the slice of the store the historical provider needs.
type OutcomeReader interface {
	FileOutcomeStats(ctx context.Context, projectID string, files []string) (map[string]types.FileOutcomeStats, error)
	SuccessRateSince(ctx context.Context, projectID string, days int) (rate float64, samples int, err error)
}

// HistoricalProvider scores files by the reliability of past executions
// that touched them: failure rate and regression rate. Its confidence
// scales with how much history exists.
type HistoricalProvider struct {
	store     OutcomeReader
	projectID string
	cfg       config.HistoricalConfig
}

// NewHistoricalProvider creates a historical provider bound to a project.
func NewHistoricalProvider(store OutcomeReader, projectID string, cfg config.HistoricalConfig) *HistoricalProvider {
	return &HistoricalProvider{store: store, projectID: projectID, cfg: cfg}
}

func (p *HistoricalProvider) Name() string    { return "historical" }
func (p *HistoricalProvider) Weight() float64 { return 1.0 }

// Available reports true whenever a store is wired; a project with no
// history is still available, it just scores everything 100.
func (p *HistoricalProvider) Available(ctx context.Context, projectRoot string) bool {
	return p.store != nil
}

// Collect reports project-level execution reliability. The recent
// success rate is included so the aggregator can derive the health trend.
func (p *HistoricalProvider) Collect(ctx context.Context, projectRoot string, files []string) (*Result, error) {
	signals, err := p.FileSignals(ctx, projectRoot, files)
	if err != nil {
		return nil, err
	}

	score := 100.0
	var totalExecutions float64
	if len(signals) > 0 {
		var sum float64
		for _, s := range signals {
			sum += s.Score
			totalExecutions += s.Metrics["executions"]
		}
		score = sum / float64(len(signals))
	}

	rate, samples, err := p.store.SuccessRateSince(ctx, p.projectID, 30)
	if err != nil {
		return nil, err
	}

	return &Result{
		ProviderID: p.Name(),
		Timestamp:  time.Now(),
		Score:      score,
		Confidence: p.confidence(int(totalExecutions)),
		Weight:     p.Weight(),
		Data: map[string]float64{
			"success_rate":    rate,
			"success_samples": float64(samples),
			"executions":      totalExecutions,
		},
	}, nil
}

// FileSignals scores each file by its execution track record. Files with
// no history score 100 with no flags. With an empty file list the
// provider self-discovers: every file with recorded history is scored.
func (p *HistoricalProvider) FileSignals(ctx context.Context, projectRoot string, files []string) ([]FileSignal, error) {
	stats, err := p.store.FileOutcomeStats(ctx, p.projectID, files)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		files = make([]string, 0, len(stats))
		for f := range stats {
			files = append(files, f)
		}
		sort.Strings(files)
	}

	signals := make([]FileSignal, 0, len(files))
	for _, file := range files {
		st, ok := stats[file]
		if !ok || st.Executions == 0 {
			signals = append(signals, FileSignal{
				Path:    file,
				Score:   100,
				Metrics: map[string]float64{"executions": 0},
			})
			continue
		}
		signals = append(signals, p.scoreFile(file, st))
	}
	return signals, nil
}

func (p *HistoricalProvider) scoreFile(path string, st types.FileOutcomeStats) FileSignal {
	score := 100.0
	var flags []string

	failureRate := st.FailureRate()
	switch {
	case failureRate >= p.cfg.FailureRateCrit:
		score -= p.cfg.CritPenalty
		flags = append(flags, "frequent-failures")
	case failureRate >= p.cfg.FailureRateWarn:
		score -= p.cfg.WarnPenalty
		flags = append(flags, "frequent-failures")
	}

	if st.RegressionRate() >= p.cfg.RegressionRateWarn {
		score -= p.cfg.WarnPenalty
		flags = append(flags, "regression-prone")
	}

	if score < 0 {
		score = 0
	}

	return FileSignal{
		Path:  path,
		Score: score,
		Metrics: map[string]float64{
			"executions":      float64(st.Executions),
			"failures":        float64(st.Failures),
			"regressions":     float64(st.Regressions),
			"failure_rate":    failureRate,
			"regression_rate": st.RegressionRate(),
		},
		Flags: flags,
	}
}

// confidence scales with sample size, low under the configured count.
func (p *HistoricalProvider) confidence(totalExecutions int) float64 {
	if totalExecutions >= p.cfg.LowSampleCount {
		return 0.9
	}
	return 0.3 + 0.6*float64(totalExecutions)/float64(p.cfg.LowSampleCount)
}
