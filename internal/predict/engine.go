// Package predict turns aggregated per-file signals into ranked, typed
// predictions of emerging quality issues, optionally matched against
// learned patterns.
package predict

import (
	"sort"
	"time"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/signal"
	"github.com/cadencehq/foresight/internal/types"
)

// typeUrgency is the base urgency contribution per prediction type.
var typeUrgency = map[types.PredictionType]float64{
	types.PredictionEmerging:     0,
	types.PredictionAccelerating: 0.2,
	types.PredictionImminent:     0.35,
	types.PredictionExists:       0.5,
}

// Summary aggregates one prediction run.
type Summary struct {
	Total          int                          `json:"total"`
	ByType         map[types.PredictionType]int `json:"by_type"`
	BySeverity     map[types.Severity]int       `json:"by_severity"`
	MeanConfidence float64                      `json:"mean_confidence"`
}

// Engine generates predictions from signal bundles.
type Engine struct {
	cfg config.PredictionConfig
}

// NewEngine creates a prediction engine with the given thresholds.
func NewEngine(cfg config.PredictionConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Generate produces ranked predictions for a project from per-file
// signal bundles. fileFlags carries the merged provider flags per file,
// used for template selection downstream. patterns are the project's
// active learned patterns, matched first-match in creation order.
func (e *Engine) Generate(projectID string, inputs []*signal.PredictionInput, fileFlags map[string][]string, patterns []*types.LearnedPattern) ([]*types.Prediction, *Summary) {
	var predictions []*types.Prediction

	for _, in := range inputs {
		p := e.predictFile(projectID, in, fileFlags[in.File])
		if p == nil {
			continue
		}
		if pattern := e.matchPattern(in, patterns); pattern != nil {
			p.PatternID = pattern.ID
		}
		predictions = append(predictions, p)
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		if predictions[i].Urgency != predictions[j].Urgency {
			return predictions[i].Urgency > predictions[j].Urgency
		}
		return predictions[i].Severity.Rank() < predictions[j].Severity.Rank()
	})

	return predictions, summarize(predictions)
}

// predictFile scores one file's bundle. Returns nil when the prediction
// is filtered out as noise.
func (e *Engine) predictFile(projectID string, in *signal.PredictionInput, flags []string) *types.Prediction {
	values := in.SignalValues()
	if len(values) == 0 {
		return nil
	}

	severity := e.severity(mean(values))
	predType := e.predictionType(in)
	confidence := e.confidence(values)
	urgency := e.urgency(predType, in)

	if confidence < e.cfg.ConfidenceThreshold {
		return nil
	}
	// Weak early signals on otherwise-healthy files are noise.
	if severity == types.SeverityLow && predType == types.PredictionEmerging {
		return nil
	}

	weak := e.weakSignals(in)
	text := buildText(in.File, predType, weak, flags)

	return &types.Prediction{
		ProjectID:        projectID,
		File:             in.File,
		Type:             predType,
		Title:            text.title,
		Description:      text.description,
		Confidence:       confidence,
		Urgency:          urgency,
		Severity:         severity,
		SuggestedAction:  text.suggestedAction,
		MicroRefactoring: text.microRefactoring,
		Effort:           effort(severity, len(weak)),
		Signals:          signalMap(in),
		Flags:            flags,
		CreatedAt:        time.Now(),
	}
}

// severity buckets the mean of the defined signal values.
func (e *Engine) severity(meanScore float64) types.Severity {
	switch {
	case meanScore < 30:
		return types.SeverityCritical
	case meanScore < 50:
		return types.SeverityHigh
	case meanScore < 70:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// predictionType classifies the file. The if/else order is the tie-break
// policy: the checks run exists, imminent, accelerating, emerging, so
// the types are mutually exclusive by construction.
func (e *Engine) predictionType(in *signal.PredictionInput) types.PredictionType {
	complexityWeak := in.Complexity != nil && *in.Complexity <= e.cfg.HighComplexity
	churnWeak := in.Churn != nil && *in.Churn <= e.cfg.HighChurn
	historyBad := in.HistoricalIssues != nil && *in.HistoricalIssues >= e.cfg.HighHistorical

	if historyBad && complexityWeak {
		return types.PredictionExists
	}
	if churnWeak && complexityWeak {
		return types.PredictionImminent
	}
	if churnWeak || in.RecentChanges > e.cfg.RecentChangeBurst {
		return types.PredictionAccelerating
	}
	return types.PredictionEmerging
}

// confidence grows with signal count and gets a boost when the signals
// agree with each other (low variance). The boost needs at least two
// signals: a single value has variance zero without measuring any
// agreement, and must not look more trustworthy than a corroborated
// bundle.
func (e *Engine) confidence(values []float64) float64 {
	c := 0.3 + 0.1*float64(len(values))
	if len(values) >= 2 && variance(values) < e.cfg.LowVariance {
		c += e.cfg.LowVarianceBoost
	}
	if c > 1 {
		c = 1
	}
	return c
}

func (e *Engine) urgency(predType types.PredictionType, in *signal.PredictionInput) float64 {
	u := 0.3 + typeUrgency[predType]
	if in.Complexity != nil && *in.Complexity <= e.cfg.HighComplexity {
		u += e.cfg.UrgencyComplexityBoost
	}
	if in.Churn != nil && *in.Churn <= e.cfg.HighChurn {
		u += e.cfg.UrgencyChurnBoost
	}
	if u > 1 {
		u = 1
	}
	return u
}

// weakSignals names the signal families currently in trouble.
func (e *Engine) weakSignals(in *signal.PredictionInput) []string {
	var weak []string
	if in.Complexity != nil && *in.Complexity <= e.cfg.HighComplexity {
		weak = append(weak, "complexity")
	}
	if in.Churn != nil && *in.Churn <= e.cfg.HighChurn {
		weak = append(weak, "churn")
	}
	if in.HistoricalIssues != nil && *in.HistoricalIssues >= e.cfg.HighHistorical {
		weak = append(weak, "historical")
	}
	return weak
}

// matchPattern returns the first active pattern whose detection rules
// match the file's signals. First-match in creation order, not
// best-match: determinism over ranking.
func (e *Engine) matchPattern(in *signal.PredictionInput, patterns []*types.LearnedPattern) *types.LearnedPattern {
	for _, pattern := range patterns {
		if pattern.ConfidenceScore <= e.cfg.PatternMinConfidence {
			continue
		}
		if ruleMatches(in, pattern) {
			return pattern
		}
	}
	return nil
}

// ruleMatches compares signal badness (100 - score) against the
// pattern's declared minimums. Zero-valued rule fields are unconstrained.
func ruleMatches(in *signal.PredictionInput, pattern *types.LearnedPattern) bool {
	rules := pattern.DetectionRules

	if rules.MinComplexity > 0 {
		if in.Complexity == nil || 100-*in.Complexity < rules.MinComplexity {
			return false
		}
	}
	if rules.MinChurn > 0 {
		if in.Churn == nil || 100-*in.Churn < rules.MinChurn {
			return false
		}
	}
	if len(pattern.FilePatterns) > 0 && !matchesAnyFragment(in.File, pattern.FilePatterns) {
		return false
	}
	return true
}

// effort estimates remediation size from severity and how many signal
// families are weak.
func effort(severity types.Severity, weakCount int) types.Effort {
	switch {
	case weakCount >= 3:
		return types.EffortLarge
	case weakCount == 2:
		return types.EffortMedium
	case severity == types.SeverityLow:
		return types.EffortTrivial
	default:
		return types.EffortSmall
	}
}

func signalMap(in *signal.PredictionInput) map[string]float64 {
	m := make(map[string]float64)
	if in.Complexity != nil {
		m["complexity"] = *in.Complexity
	}
	if in.Churn != nil {
		m["churn"] = *in.Churn
	}
	if in.HistoricalIssues != nil {
		m["historical_issues"] = *in.HistoricalIssues
	}
	if in.RecentChanges > 0 {
		m["recent_changes"] = float64(in.RecentChanges)
	}
	return m
}

func summarize(predictions []*types.Prediction) *Summary {
	s := &Summary{
		Total:      len(predictions),
		ByType:     make(map[types.PredictionType]int),
		BySeverity: make(map[types.Severity]int),
	}
	var confidenceSum float64
	for _, p := range predictions {
		s.ByType[p.Type]++
		s.BySeverity[p.Severity]++
		confidenceSum += p.Confidence
	}
	if s.Total > 0 {
		s.MeanConfidence = confidenceSum / float64(s.Total)
	}
	return s
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}
