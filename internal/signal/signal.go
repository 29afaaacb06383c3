// Package signal contains the pluggable signal providers and the
// aggregator that combines their scores into one project health view.
//
// Each provider scores files on a 0-100 scale where higher is healthier.
// Providers never fail the cycle: a provider that cannot run reports
// itself unavailable, and per-file read errors degrade to skipped files.
package signal

import (
	"context"
	"time"

	"github.com/cadencehq/foresight/internal/types"
)

// Result is one provider's project-level output for a collection run.
type Result struct {
	ProviderID string             `json:"provider_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Weight     float64            `json:"weight"`
	Data       map[string]float64 `json:"data,omitempty"`
}

// FileSignal is one provider's per-file output.
type FileSignal struct {
	Path    string             `json:"path"`
	Score   float64            `json:"score"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Flags   []string           `json:"flags,omitempty"`
}

// Provider is the capability contract every signal family implements.
// Collect and FileSignals must not fail on partial input problems such as
// an unreadable file; they degrade and keep going.
type Provider interface {
	// Name identifies the provider in results and concerns.
	Name() string
	// Weight is the provider's relative contribution to the overall score.
	Weight() float64
	// Available reports whether the provider can run against the project.
	// Unavailable providers are skipped, never treated as errors.
	Available(ctx context.Context, projectRoot string) bool
	// Collect produces the project-level result over the given files.
	Collect(ctx context.Context, projectRoot string, files []string) (*Result, error)
	// FileSignals produces per-file scores for the given files.
	FileSignals(ctx context.Context, projectRoot string, files []string) ([]FileSignal, error)
}

// Concern is one entry in the ranked top-concerns list.
type Concern struct {
	File     string         `json:"file"`
	Issue    string         `json:"issue"`
	Severity types.Severity `json:"severity"`
	Source   string         `json:"source"`
}

// Combined is the merged output of one collection run. It is derived
// state, recomputed every cycle and never persisted raw.
type Combined struct {
	Timestamp     time.Time               `json:"timestamp"`
	Providers     []*Result               `json:"providers"`
	FileSignals   map[string][]FileSignal `json:"file_signals"`
	OverallScore  float64                 `json:"overall_score"`
	HealthTrend   types.HealthTrend       `json:"health_trend"`
	TopConcerns   []Concern               `json:"top_concerns"`
	FilesAnalyzed int                     `json:"files_analyzed"`
}

// PredictionInput is the per-file signal bundle handed to the prediction
// engine. Nil pointers mean the provider produced no data for the file.
// HistoricalIssues is inverted (100 - historical score) so that higher
// means more issues.
type PredictionInput struct {
	File             string   `json:"file"`
	Complexity       *float64 `json:"complexity,omitempty"`
	Churn            *float64 `json:"churn,omitempty"`
	HistoricalIssues *float64 `json:"historical_issues,omitempty"`
	RecentChanges    int      `json:"recent_changes"`
}

// SignalValues returns the defined signal values in a stable order.
func (p *PredictionInput) SignalValues() []float64 {
	var values []float64
	if p.Complexity != nil {
		values = append(values, *p.Complexity)
	}
	if p.Churn != nil {
		values = append(values, *p.Churn)
	}
	if p.HistoricalIssues != nil {
		values = append(values, *p.HistoricalIssues)
	}
	return values
}
