// Package execution runs approved auto-fixes: it snapshots the pre
// state, hands the requirement to the external executor, and on
// completion measures what actually changed.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/foresight/internal/signal"
	"github.com/cadencehq/foresight/internal/types"
)

var (
	// ErrNotApproved rejects execution of an item outside approved status.
	ErrNotApproved = errors.New("auto-fix is not approved")
	// ErrFixInFlight rejects a second concurrent execution per project.
	ErrFixInFlight = errors.New("another auto-fix is already executing for this project")
	// ErrAutoFixNotFound rejects execution of an unknown item.
	ErrAutoFixNotFound = errors.New("auto-fix not found")
)

// Store is the slice of the persistence layer the pipeline needs.
type Store interface {
	GetAutoFix(ctx context.Context, id string) (*types.AutoFixItem, error)
	TransitionAutoFix(ctx context.Context, id string, next types.AutoFixStatus) error
	HasExecutingAutoFix(ctx context.Context, projectID string) (bool, error)
	CreateOutcome(ctx context.Context, outcome *types.ExecutionOutcome) error
	GetOutcomeByExecution(ctx context.Context, executionID string) (*types.ExecutionOutcome, error)
	CompleteOutcome(ctx context.Context, outcome *types.ExecutionOutcome) error
	IncrementPatternCounters(ctx context.Context, id string, deltas types.PatternCounterDeltas) error
}

// SignalCollector produces a combined health view, used for the before
// and after health scores.
type SignalCollector interface {
	Collect(ctx context.Context, projectRoot string, files []string) (*signal.Combined, error)
}

// TriggerEmitter receives the post-execution observation trigger.
// Implementations must not block.
type TriggerEmitter interface {
	ExecutionCompleted(projectID string)
}

// Result is what ExecuteAutoFix hands back to the caller.
type Result struct {
	ExecutionID     string
	RequirementPath string
	PreHealthScore  float64
}

// Pipeline executes auto-fixes one at a time per project. Pre-state
// fingerprints live in a small in-memory cache keyed by execution ID;
// everything durable goes through the store.
type Pipeline struct {
	store    Store
	signals  SignalCollector
	triggers TriggerEmitter

	mu      sync.Mutex
	pending map[string]*preSnapshot
}

// NewPipeline creates an execution pipeline. triggers may be nil.
func NewPipeline(store Store, signals SignalCollector, triggers TriggerEmitter) *Pipeline {
	return &Pipeline{
		store:    store,
		signals:  signals,
		triggers: triggers,
		pending:  make(map[string]*preSnapshot),
	}
}

// ExecuteAutoFix prepares an approved auto-fix for the external
// executor: snapshots the pre state, marks the item executing, opens the
// outcome row, and writes the requirement artifact for pickup.
func (p *Pipeline) ExecuteAutoFix(ctx context.Context, projectRoot, autoFixID string) (*Result, error) {
	item, err := p.store.GetAutoFix(ctx, autoFixID)
	if err != nil {
		return nil, fmt.Errorf("loading auto-fix: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrAutoFixNotFound, autoFixID)
	}
	if item.Status != types.AutoFixApproved {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotApproved, autoFixID, item.Status)
	}

	executing, err := p.store.HasExecutingAutoFix(ctx, item.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("checking in-flight executions: %w", err)
	}
	if executing {
		return nil, fmt.Errorf("%w: project %s", ErrFixInFlight, item.ProjectID)
	}

	preHealth := p.collectHealth(ctx, projectRoot, item.TargetFiles)
	pre := &preSnapshot{
		ProjectID:   item.ProjectID,
		AutoFixID:   item.ID,
		TargetFiles: item.TargetFiles,
		Files:       snapshotFiles(projectRoot, item.TargetFiles),
		HealthScore: preHealth,
	}

	if err := p.store.TransitionAutoFix(ctx, item.ID, types.AutoFixExecuting); err != nil {
		return nil, fmt.Errorf("marking auto-fix executing: %w", err)
	}

	executionID := uuid.New().String()
	outcome := &types.ExecutionOutcome{
		ProjectID:          item.ProjectID,
		ExecutionID:        executionID,
		PredictionID:       item.PredictionID,
		AutoFixID:          item.ID,
		ExecutionType:      "auto_fix",
		RequirementContent: item.GeneratedRequirement,
		TargetFiles:        item.TargetFiles,
		PreHealthScore:     &preHealth,
		StartedAt:          time.Now(),
	}
	if err := p.store.CreateOutcome(ctx, outcome); err != nil {
		return nil, fmt.Errorf("opening outcome: %w", err)
	}

	requirementPath, err := p.writeRequirement(projectRoot, executionID, item)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.pending[executionID] = pre
	p.mu.Unlock()

	log.Printf("execution: started %s for auto-fix %s (%d target files)",
		executionID, item.ID, len(item.TargetFiles))

	return &Result{
		ExecutionID:     executionID,
		RequirementPath: requirementPath,
		PreHealthScore:  preHealth,
	}, nil
}

// CompleteExecution measures the effect of a finished execution and
// finalizes its outcome. An execution ID with no open outcome is a
// silent no-op: completion signals can arrive duplicated or out of
// order.
func (p *Pipeline) CompleteExecution(ctx context.Context, projectRoot, executionID string, success bool, tokensUsed int) error {
	outcome, err := p.store.GetOutcomeByExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("loading outcome: %w", err)
	}
	if outcome == nil {
		log.Printf("execution: completion for unknown execution %s ignored", executionID)
		return nil
	}
	if outcome.CompletedAt != nil {
		log.Printf("execution: duplicate completion for %s ignored", executionID)
		return nil
	}

	p.mu.Lock()
	pre := p.pending[executionID]
	delete(p.pending, executionID)
	p.mu.Unlock()

	var changed []string
	var added, removed int
	if pre != nil {
		post := snapshotFiles(projectRoot, outcome.TargetFiles)
		changed, added, removed = diffFiles(pre.Files, post)
	}

	postHealth := p.collectHealth(ctx, projectRoot, outcome.TargetFiles)
	var improvement float64
	if outcome.PreHealthScore != nil {
		improvement = postHealth - *outcome.PreHealthScore
	}

	rating, regression, newIssues := rateOutcome(success, improvement)

	done := &types.ExecutionOutcome{
		ExecutionID:        executionID,
		Success:            &success,
		FilesChanged:       changed,
		LinesAdded:         added,
		LinesRemoved:       removed,
		TokensUsed:         tokensUsed,
		PostHealthScore:    &postHealth,
		HealthImprovement:  &improvement,
		OutcomeRating:      rating,
		RegressionDetected: regression,
		NewIssues:          newIssues,
	}
	if err := p.store.CompleteOutcome(ctx, done); err != nil {
		return fmt.Errorf("completing outcome: %w", err)
	}

	if outcome.AutoFixID != "" {
		next := types.AutoFixCompleted
		if !success {
			next = types.AutoFixFailed
		}
		if err := p.store.TransitionAutoFix(ctx, outcome.AutoFixID, next); err != nil {
			log.Printf("execution: auto-fix %s transition failed: %v", outcome.AutoFixID, err)
		}
		p.recordPatternAttempt(ctx, outcome, success)
	}

	log.Printf("execution: completed %s rating=%s improvement=%.1f changed=%d",
		executionID, rating, improvement, len(changed))

	if p.triggers != nil {
		p.triggers.ExecutionCompleted(outcome.ProjectID)
	}
	return nil
}

// recordPatternAttempt feeds the auto-fix result back into the source
// pattern's counters.
func (p *Pipeline) recordPatternAttempt(ctx context.Context, outcome *types.ExecutionOutcome, success bool) {
	item, err := p.store.GetAutoFix(ctx, outcome.AutoFixID)
	if err != nil || item == nil || item.PatternID == "" {
		return
	}
	deltas := types.PatternCounterDeltas{AutoFixesAttempted: 1}
	if success {
		deltas.AutoFixSuccesses = 1
	}
	if err := p.store.IncrementPatternCounters(ctx, item.PatternID, deltas); err != nil {
		log.Printf("execution: pattern counter update failed for %s: %v", item.PatternID, err)
	}
}

// rateOutcome classifies the measured effect. A health drop over 5
// points counts as a regression introducing ceil(drop/10) new issues.
func rateOutcome(success bool, improvement float64) (types.OutcomeRating, bool, int) {
	if !success {
		return types.OutcomeFailed, false, 0
	}
	if improvement < -5 {
		drop := -improvement
		return types.OutcomePoor, true, int(math.Ceil(drop / 10))
	}
	if improvement > 10 {
		return types.OutcomeExcellent, false, 0
	}
	if improvement > 0 {
		return types.OutcomeGood, false, 0
	}
	return types.OutcomeNeutral, false, 0
}

// collectHealth scores the target files, degrading to the optimistic
// default when collection fails.
func (p *Pipeline) collectHealth(ctx context.Context, projectRoot string, files []string) float64 {
	if p.signals == nil {
		return 100
	}
	combined, err := p.signals.Collect(ctx, projectRoot, files)
	if err != nil {
		log.Printf("execution: signal collection failed, assuming healthy: %v", err)
		return 100
	}
	return combined.OverallScore
}

// writeRequirement drops the generated requirement where the external
// executor picks it up.
func (p *Pipeline) writeRequirement(projectRoot, executionID string, item *types.AutoFixItem) (string, error) {
	dir := filepath.Join(projectRoot, ".foresight", "requirements")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating requirements directory: %w", err)
	}

	path := filepath.Join(dir, executionID+".md")
	content := fmt.Sprintf("# %s\n\nTarget files:\n", item.Title)
	for _, file := range item.TargetFiles {
		content += fmt.Sprintf("- %s\n", file)
	}
	content += "\n## Requirement\n\n" + item.GeneratedRequirement + "\n"

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing requirement artifact: %w", err)
	}
	return path, nil
}
