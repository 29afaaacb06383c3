// Package learning closes the feedback loop: it mines execution
// outcomes for reusable patterns, promotes proven patterns to auto-fix
// status, demotes patterns that stop working, and feeds prediction
// feedback into pattern counters.
package learning

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/types"
)

// Store is the slice of the persistence layer the learner needs.
type Store interface {
	RecentOutcomes(ctx context.Context, projectID string, limit int) ([]*types.ExecutionOutcome, error)
	CreatePattern(ctx context.Context, pattern *types.LearnedPattern) error
	GetPattern(ctx context.Context, id string) (*types.LearnedPattern, error)
	GetPatternByName(ctx context.Context, projectID, category, name string) (*types.LearnedPattern, error)
	AllPatterns(ctx context.Context, projectID string) ([]*types.LearnedPattern, error)
	UpdatePatternRules(ctx context.Context, id string, rules types.DetectionRules, filePatterns []string, sampleCount int) error
	EnablePatternAutoFix(ctx context.Context, id, template string, confidence float64, risk types.RiskLevel) error
	SetPatternStatus(ctx context.Context, id string, status types.PatternStatus, disableAutoFix bool) error
	IncrementPatternCounters(ctx context.Context, id string, deltas types.PatternCounterDeltas) error
	GetPrediction(ctx context.Context, id string) (*types.Prediction, error)
	UpdatePredictionStatus(ctx context.Context, id string, status types.PredictionStatus) error
}

// PredictionFeedback classifies how a prediction turned out.
type PredictionFeedback string

const (
	// FeedbackConfirmed means the predicted issue materialized.
	FeedbackConfirmed PredictionFeedback = "confirmed"
	// FeedbackPrevented means the issue was fixed before it materialized.
	FeedbackPrevented PredictionFeedback = "prevented"
	// FeedbackFalsePositive means the prediction was wrong.
	FeedbackFalsePositive PredictionFeedback = "false_positive"
)

// Report summarizes one learning run.
type Report struct {
	OutcomesExamined int `json:"outcomes_examined"`
	PatternsCreated  int `json:"patterns_created"`
	PatternsUpdated  int `json:"patterns_updated"`
	AutoFixesEnabled int `json:"auto_fixes_enabled"`
}

// Learner mines outcomes into patterns. Learning runs on the same
// project are serialized: pattern counter updates are read-modify-write
// and concurrent runs would lose updates.
type Learner struct {
	store Store
	cfg   config.LearningConfig

	mu       sync.Mutex
	projects map[string]*sync.Mutex
}

// NewLearner creates a learner with the given thresholds.
func NewLearner(store Store, cfg config.LearningConfig) *Learner {
	return &Learner{
		store:    store,
		cfg:      cfg,
		projects: make(map[string]*sync.Mutex),
	}
}

func (l *Learner) projectLock(projectID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.projects[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.projects[projectID] = m
	}
	return m
}

// LearnFromExecutions examines the most recent outcomes and distills
// them into patterns: successful clusters become (or refresh) success
// patterns, failure clusters become [AVOID] patterns the matcher can
// use to down-weight files later.
func (l *Learner) LearnFromExecutions(ctx context.Context, projectID string) (*Report, error) {
	lock := l.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	outcomes, err := l.store.RecentOutcomes(ctx, projectID, l.cfg.RecentOutcomes)
	if err != nil {
		return nil, fmt.Errorf("loading outcomes: %w", err)
	}

	report := &Report{OutcomesExamined: len(outcomes)}
	if len(outcomes) == 0 {
		return report, nil
	}

	successful, failed := splitOutcomes(outcomes)
	successRates := successRatesByType(successful, failed)

	for execType, group := range groupByType(successful) {
		if len(group) < 2 {
			continue
		}
		name := execType + "-success"
		if err := l.mineGroup(ctx, projectID, execType, name, "success", group, successRates[execType], report); err != nil {
			log.Printf("learning: mining %s failed: %v", name, err)
		}
	}

	for execType, group := range groupByType(failed) {
		if len(group) < 2 {
			continue
		}
		name := "[AVOID] " + execType + "-failure"
		if err := l.mineGroup(ctx, projectID, execType, name, "avoid", group, 0, report); err != nil {
			log.Printf("learning: mining %s failed: %v", name, err)
		}
	}

	log.Printf("learning: project %s examined=%d created=%d updated=%d autofixes=%d",
		projectID, report.OutcomesExamined, report.PatternsCreated,
		report.PatternsUpdated, report.AutoFixesEnabled)
	return report, nil
}

// mineGroup creates or refreshes one pattern from an outcome cluster.
func (l *Learner) mineGroup(ctx context.Context, projectID, execType, name, patternType string, group []*types.ExecutionOutcome, successRate float64, report *Report) error {
	fragments := commonFragments(group, l.cfg.FragmentShare)
	rules := types.DetectionRules{
		ExecutionType: execType,
		FilePatterns:  fragments,
	}

	existing, err := l.store.GetPatternByName(ctx, projectID, execType, name)
	if err != nil {
		return err
	}

	if existing != nil {
		if err := l.store.UpdatePatternRules(ctx, existing.ID, rules, fragments, len(group)); err != nil {
			return err
		}
		report.PatternsUpdated++
		return l.maybeEnableAutoFix(ctx, existing, patternType, group, len(group), report)
	}

	// Candidates only materialize once enough samples accumulated.
	if len(group) < l.cfg.MinSamplesForPattern {
		return nil
	}

	pattern := &types.LearnedPattern{
		ProjectID:       projectID,
		Name:            name,
		PatternType:     patternType,
		Category:        execType,
		DetectionRules:  rules,
		FilePatterns:    fragments,
		Status:          types.PatternLearning,
		PrecisionScore:  successRate,
		ConfidenceScore: initialConfidence(len(group)),
		SampleCount:     len(group),
	}
	if err := l.store.CreatePattern(ctx, pattern); err != nil {
		return err
	}
	report.PatternsCreated++
	return l.maybeEnableAutoFix(ctx, pattern, patternType, group, len(group), report)
}

// maybeEnableAutoFix promotes a success pattern to auto-fix status once
// it has both enough samples and sufficient rolling precision. The
// template is generalized from the best-performing requirement in the
// group.
func (l *Learner) maybeEnableAutoFix(ctx context.Context, pattern *types.LearnedPattern, patternType string, group []*types.ExecutionOutcome, sampleCount int, report *Report) error {
	if patternType != "success" || pattern.HasAutoFix {
		return nil
	}
	if sampleCount < l.cfg.MinSamplesForAutoFix {
		return nil
	}
	if pattern.Precision() < l.cfg.AutoFixSuccessThreshold {
		return nil
	}

	template := generalizeTemplate(bestOutcome(group))
	if template == "" {
		return nil
	}
	if err := l.store.EnablePatternAutoFix(ctx, pattern.ID, template, pattern.Precision(), types.RiskMedium); err != nil {
		return err
	}
	report.AutoFixesEnabled++
	return nil
}

// CleanupPatterns demotes patterns that stopped earning their keep:
// imprecise ones are deprecated, patterns whose auto-fix keeps failing
// are suspended with the auto-fix flag cleared. Nothing is deleted.
func (l *Learner) CleanupPatterns(ctx context.Context, projectID string) (deprecated, suspended int, err error) {
	lock := l.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	patterns, err := l.store.AllPatterns(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("loading patterns: %w", err)
	}

	for _, pattern := range patterns {
		if pattern.Status == types.PatternDeprecated || pattern.Status == types.PatternSuspended {
			continue
		}

		detections := pattern.TruePositives + pattern.FalsePositives
		if detections > l.cfg.DeprecateMinDetections && pattern.Precision() < l.cfg.DeprecatePrecision {
			if err := l.store.SetPatternStatus(ctx, pattern.ID, types.PatternDeprecated, false); err != nil {
				return deprecated, suspended, err
			}
			deprecated++
			continue
		}

		if pattern.AutoFixesAttempted > l.cfg.SuspendMinAttempts &&
			pattern.AutoFixSuccessRate() < l.cfg.SuspendSuccessRate {
			if err := l.store.SetPatternStatus(ctx, pattern.ID, types.PatternSuspended, true); err != nil {
				return deprecated, suspended, err
			}
			suspended++
		}
	}
	return deprecated, suspended, nil
}

// RecordPredictionOutcome applies human or downstream feedback to a
// prediction and its source pattern. Unknown prediction IDs are a
// silent no-op.
func (l *Learner) RecordPredictionOutcome(ctx context.Context, predictionID string, feedback PredictionFeedback) error {
	prediction, err := l.store.GetPrediction(ctx, predictionID)
	if err != nil {
		return fmt.Errorf("loading prediction: %w", err)
	}
	if prediction == nil {
		return nil
	}

	status := types.PredictionAddressed
	deltas := types.PatternCounterDeltas{TruePositives: 1}
	if feedback == FeedbackFalsePositive {
		status = types.PredictionDismissed
		deltas = types.PatternCounterDeltas{FalsePositives: 1, UserOverrides: 1}
	}

	if err := l.store.UpdatePredictionStatus(ctx, predictionID, status); err != nil {
		return fmt.Errorf("updating prediction status: %w", err)
	}
	if prediction.PatternID != "" {
		if err := l.store.IncrementPatternCounters(ctx, prediction.PatternID, deltas); err != nil {
			return fmt.Errorf("updating pattern counters: %w", err)
		}
	}
	return nil
}

// splitOutcomes partitions completed outcomes into successful and failed
// learning sets. Neutral outcomes inform neither set.
func splitOutcomes(outcomes []*types.ExecutionOutcome) (successful, failed []*types.ExecutionOutcome) {
	for _, o := range outcomes {
		switch {
		case o.Succeeded() && (o.OutcomeRating == types.OutcomeExcellent || o.OutcomeRating == types.OutcomeGood):
			successful = append(successful, o)
		case !o.Succeeded() || o.OutcomeRating == types.OutcomeFailed || o.OutcomeRating == types.OutcomePoor:
			failed = append(failed, o)
		}
	}
	return successful, failed
}

func groupByType(outcomes []*types.ExecutionOutcome) map[string][]*types.ExecutionOutcome {
	groups := make(map[string][]*types.ExecutionOutcome)
	for _, o := range outcomes {
		groups[o.ExecutionType] = append(groups[o.ExecutionType], o)
	}
	return groups
}

// successRatesByType computes the per-type success share used as a new
// pattern's initial precision.
func successRatesByType(successful, failed []*types.ExecutionOutcome) map[string]float64 {
	successes := make(map[string]int)
	totals := make(map[string]int)
	for _, o := range successful {
		successes[o.ExecutionType]++
		totals[o.ExecutionType]++
	}
	for _, o := range failed {
		totals[o.ExecutionType]++
	}

	rates := make(map[string]float64, len(totals))
	for execType, total := range totals {
		rates[execType] = float64(successes[execType]) / float64(total)
	}
	return rates
}

// commonFragments extracts directory and extension fragments appearing
// in at least the given share of the group's target files (minimum 2).
func commonFragments(group []*types.ExecutionOutcome, share float64) []string {
	counts := make(map[string]int)
	total := 0
	for _, o := range group {
		for _, file := range o.TargetFiles {
			total++
			if dir := dirOf(file); dir != "" {
				counts[dir]++
			}
			if ext := extOf(file); ext != "" {
				counts[ext]++
			}
		}
	}

	threshold := int(float64(total) * share)
	if threshold < 2 {
		threshold = 2
	}

	var fragments []string
	for fragment, count := range counts {
		if count >= threshold {
			fragments = append(fragments, fragment)
		}
	}
	sort.Strings(fragments)
	return fragments
}

// bestOutcome picks the group's outcome with the highest measured health
// improvement.
func bestOutcome(group []*types.ExecutionOutcome) *types.ExecutionOutcome {
	var best *types.ExecutionOutcome
	for _, o := range group {
		if o.RequirementContent == "" {
			continue
		}
		if best == nil || improvementOf(o) > improvementOf(best) {
			best = o
		}
	}
	return best
}

func improvementOf(o *types.ExecutionOutcome) float64 {
	if o.HealthImprovement == nil {
		return 0
	}
	return *o.HealthImprovement
}

// generalizeTemplate turns a concrete requirement into a reusable
// template by replacing literal target-file references with a
// placeholder.
func generalizeTemplate(o *types.ExecutionOutcome) string {
	if o == nil || o.RequirementContent == "" {
		return ""
	}
	template := o.RequirementContent
	for _, file := range o.TargetFiles {
		template = strings.ReplaceAll(template, file, "{file}")
	}
	return template
}

// initialConfidence mirrors the store's counter-based recalculation so
// freshly mined patterns start on the same scale.
func initialConfidence(samples int) float64 {
	c := 0.3 + 0.05*float64(samples)
	if c > 1 {
		c = 1
	}
	return c
}

func dirOf(file string) string {
	if idx := strings.LastIndexByte(file, '/'); idx > 0 {
		return file[:idx]
	}
	return ""
}

func extOf(file string) string {
	base := file
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		return base[idx:]
	}
	return ""
}
