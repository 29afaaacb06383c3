package execution

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cadencehq/foresight/internal/signal"
	"github.com/cadencehq/foresight/internal/types"
)

type fakeStore struct {
	autoFixes    map[string]*types.AutoFixItem
	outcomes     map[string]*types.ExecutionOutcome
	executing    bool
	completions  int
	transitions  []types.AutoFixStatus
	counterCalls []types.PatternCounterDeltas
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		autoFixes: make(map[string]*types.AutoFixItem),
		outcomes:  make(map[string]*types.ExecutionOutcome),
	}
}

func (f *fakeStore) GetAutoFix(ctx context.Context, id string) (*types.AutoFixItem, error) {
	return f.autoFixes[id], nil
}

func (f *fakeStore) TransitionAutoFix(ctx context.Context, id string, next types.AutoFixStatus) error {
	item, ok := f.autoFixes[id]
	if !ok {
		return errors.New("not found")
	}
	if !item.Status.CanTransitionTo(next) {
		return errors.New("invalid transition")
	}
	item.Status = next
	f.transitions = append(f.transitions, next)
	return nil
}

func (f *fakeStore) HasExecutingAutoFix(ctx context.Context, projectID string) (bool, error) {
	return f.executing, nil
}

func (f *fakeStore) CreateOutcome(ctx context.Context, outcome *types.ExecutionOutcome) error {
	f.outcomes[outcome.ExecutionID] = outcome
	return nil
}

func (f *fakeStore) GetOutcomeByExecution(ctx context.Context, executionID string) (*types.ExecutionOutcome, error) {
	return f.outcomes[executionID], nil
}

func (f *fakeStore) CompleteOutcome(ctx context.Context, done *types.ExecutionOutcome) error {
	existing, ok := f.outcomes[done.ExecutionID]
	if !ok || existing.CompletedAt != nil {
		return nil
	}
	now := time.Now()
	existing.Success = done.Success
	existing.FilesChanged = done.FilesChanged
	existing.LinesAdded = done.LinesAdded
	existing.LinesRemoved = done.LinesRemoved
	existing.PostHealthScore = done.PostHealthScore
	existing.HealthImprovement = done.HealthImprovement
	existing.OutcomeRating = done.OutcomeRating
	existing.RegressionDetected = done.RegressionDetected
	existing.NewIssues = done.NewIssues
	existing.CompletedAt = &now
	f.completions++
	return nil
}

func (f *fakeStore) IncrementPatternCounters(ctx context.Context, id string, deltas types.PatternCounterDeltas) error {
	f.counterCalls = append(f.counterCalls, deltas)
	return nil
}

// fakeCollector returns scripted health scores in call order.
type fakeCollector struct {
	scores []float64
	calls  int
}

func (f *fakeCollector) Collect(ctx context.Context, projectRoot string, files []string) (*signal.Combined, error) {
	score := 100.0
	if f.calls < len(f.scores) {
		score = f.scores[f.calls]
	}
	f.calls++
	return &signal.Combined{OverallScore: score}, nil
}

type fakeTriggers struct {
	projects []string
}

func (f *fakeTriggers) ExecutionCompleted(projectID string) {
	f.projects = append(f.projects, projectID)
}

func approvedFix(id string) *types.AutoFixItem {
	return &types.AutoFixItem{
		ID:                   id,
		ProjectID:            "proj-1",
		Title:                "Split oversized file",
		TargetFiles:          []string{"target.go"},
		GeneratedRequirement: "Split target.go into smaller files.",
		RiskLevel:            types.RiskMedium,
		Status:               types.AutoFixApproved,
	}
}

func TestExecuteRequiresApproval(t *testing.T) {
	store := newFakeStore()
	item := approvedFix("fix-1")
	item.Status = types.AutoFixPending
	store.autoFixes["fix-1"] = item

	pipeline := NewPipeline(store, &fakeCollector{}, nil)
	_, err := pipeline.ExecuteAutoFix(context.Background(), t.TempDir(), "fix-1")
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("Expected ErrNotApproved, got %v", err)
	}
}

func TestExecuteRejectsUnknownItem(t *testing.T) {
	pipeline := NewPipeline(newFakeStore(), &fakeCollector{}, nil)
	_, err := pipeline.ExecuteAutoFix(context.Background(), t.TempDir(), "ghost")
	if !errors.Is(err, ErrAutoFixNotFound) {
		t.Fatalf("Expected ErrAutoFixNotFound, got %v", err)
	}
}

func TestExecuteRejectsConcurrentFix(t *testing.T) {
	store := newFakeStore()
	store.autoFixes["fix-1"] = approvedFix("fix-1")
	store.executing = true

	pipeline := NewPipeline(store, &fakeCollector{}, nil)
	_, err := pipeline.ExecuteAutoFix(context.Background(), t.TempDir(), "fix-1")
	if !errors.Is(err, ErrFixInFlight) {
		t.Fatalf("Expected ErrFixInFlight, got %v", err)
	}
}

func TestExecuteAndCompleteSuccess(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "target.go"), []byte("package x\nvar a = 1\n"), 0644); err != nil {
		t.Fatalf("Failed to write target: %v", err)
	}

	store := newFakeStore()
	store.autoFixes["fix-1"] = approvedFix("fix-1")
	collector := &fakeCollector{scores: []float64{60, 75}}
	triggers := &fakeTriggers{}
	pipeline := NewPipeline(store, collector, triggers)
	ctx := context.Background()

	result, err := pipeline.ExecuteAutoFix(ctx, dir, "fix-1")
	if err != nil {
		t.Fatalf("ExecuteAutoFix failed: %v", err)
	}
	if result.PreHealthScore != 60 {
		t.Errorf("Expected pre-health 60, got %f", result.PreHealthScore)
	}
	if store.autoFixes["fix-1"].Status != types.AutoFixExecuting {
		t.Errorf("Expected executing status, got %s", store.autoFixes["fix-1"].Status)
	}
	if _, err := os.Stat(result.RequirementPath); err != nil {
		t.Errorf("Requirement artifact missing: %v", err)
	}

	// Simulate the external executor editing the file.
	edited := "package x\nvar a = 1\nvar b = 2\nvar c = 3\n"
	if err := os.WriteFile(filepath.Join(dir, "target.go"), []byte(edited), 0644); err != nil {
		t.Fatalf("Failed to edit target: %v", err)
	}

	if err := pipeline.CompleteExecution(ctx, dir, result.ExecutionID, true, 1500); err != nil {
		t.Fatalf("CompleteExecution failed: %v", err)
	}

	outcome := store.outcomes[result.ExecutionID]
	if !outcome.Succeeded() {
		t.Error("Expected successful outcome")
	}
	// Improvement 15 -> excellent.
	if outcome.OutcomeRating != types.OutcomeExcellent {
		t.Errorf("Expected excellent rating, got %s", outcome.OutcomeRating)
	}
	if len(outcome.FilesChanged) != 1 || outcome.FilesChanged[0] != "target.go" {
		t.Errorf("Expected target.go changed, got %v", outcome.FilesChanged)
	}
	if outcome.LinesAdded != 2 {
		t.Errorf("Expected 2 lines added, got %d", outcome.LinesAdded)
	}
	if store.autoFixes["fix-1"].Status != types.AutoFixCompleted {
		t.Errorf("Expected completed auto-fix, got %s", store.autoFixes["fix-1"].Status)
	}
	if len(triggers.projects) != 1 || triggers.projects[0] != "proj-1" {
		t.Errorf("Expected post-execution trigger for proj-1, got %v", triggers.projects)
	}
}

func TestCompleteFailedExecution(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.autoFixes["fix-1"] = approvedFix("fix-1")
	pipeline := NewPipeline(store, &fakeCollector{scores: []float64{60, 60}}, nil)
	ctx := context.Background()

	result, err := pipeline.ExecuteAutoFix(ctx, dir, "fix-1")
	if err != nil {
		t.Fatalf("ExecuteAutoFix failed: %v", err)
	}
	if err := pipeline.CompleteExecution(ctx, dir, result.ExecutionID, false, 0); err != nil {
		t.Fatalf("CompleteExecution failed: %v", err)
	}

	outcome := store.outcomes[result.ExecutionID]
	if outcome.OutcomeRating != types.OutcomeFailed {
		t.Errorf("Expected failed rating, got %s", outcome.OutcomeRating)
	}
	if store.autoFixes["fix-1"].Status != types.AutoFixFailed {
		t.Errorf("Expected failed auto-fix, got %s", store.autoFixes["fix-1"].Status)
	}
}

func TestCompleteUnknownExecutionIsNoOp(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(store, &fakeCollector{}, nil)

	err := pipeline.CompleteExecution(context.Background(), t.TempDir(), "ghost", true, 0)
	if err != nil {
		t.Fatalf("Completion for unknown execution must not error: %v", err)
	}
	if store.completions != 0 {
		t.Error("Completion for unknown execution must not write to the store")
	}
}

func TestCompleteDuplicateIsNoOp(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.autoFixes["fix-1"] = approvedFix("fix-1")
	pipeline := NewPipeline(store, &fakeCollector{scores: []float64{60, 65, 90}}, nil)
	ctx := context.Background()

	result, err := pipeline.ExecuteAutoFix(ctx, dir, "fix-1")
	if err != nil {
		t.Fatalf("ExecuteAutoFix failed: %v", err)
	}
	if err := pipeline.CompleteExecution(ctx, dir, result.ExecutionID, true, 0); err != nil {
		t.Fatalf("First completion failed: %v", err)
	}
	if err := pipeline.CompleteExecution(ctx, dir, result.ExecutionID, false, 0); err != nil {
		t.Fatalf("Duplicate completion must not error: %v", err)
	}
	if store.completions != 1 {
		t.Errorf("Expected exactly one completion write, got %d", store.completions)
	}
}

func TestRegressionDetection(t *testing.T) {
	tests := []struct {
		name        string
		success     bool
		improvement float64
		rating      types.OutcomeRating
		regression  bool
		newIssues   int
	}{
		{"failure", false, 0, types.OutcomeFailed, false, 0},
		{"big drop", true, -23, types.OutcomePoor, true, 3},
		{"small drop within tolerance", true, -3, types.OutcomeNeutral, false, 0},
		{"big gain", true, 15, types.OutcomeExcellent, false, 0},
		{"small gain", true, 4, types.OutcomeGood, false, 0},
		{"no change", true, 0, types.OutcomeNeutral, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rating, regression, newIssues := rateOutcome(tt.success, tt.improvement)
			if rating != tt.rating || regression != tt.regression || newIssues != tt.newIssues {
				t.Errorf("rateOutcome(%v, %f) = (%s, %v, %d), want (%s, %v, %d)",
					tt.success, tt.improvement, rating, regression, newIssues,
					tt.rating, tt.regression, tt.newIssues)
			}
		})
	}
}

func TestPatternCountersFedBack(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	item := approvedFix("fix-1")
	item.PatternID = "pat-1"
	store.autoFixes["fix-1"] = item
	pipeline := NewPipeline(store, &fakeCollector{scores: []float64{60, 70}}, nil)
	ctx := context.Background()

	result, err := pipeline.ExecuteAutoFix(ctx, dir, "fix-1")
	if err != nil {
		t.Fatalf("ExecuteAutoFix failed: %v", err)
	}
	if err := pipeline.CompleteExecution(ctx, dir, result.ExecutionID, true, 0); err != nil {
		t.Fatalf("CompleteExecution failed: %v", err)
	}

	if len(store.counterCalls) != 1 {
		t.Fatalf("Expected 1 counter update, got %d", len(store.counterCalls))
	}
	deltas := store.counterCalls[0]
	if deltas.AutoFixesAttempted != 1 || deltas.AutoFixSuccesses != 1 {
		t.Errorf("Counter deltas wrong: %+v", deltas)
	}
}

func TestFingerprintDiff(t *testing.T) {
	pre := map[string]fileState{
		"same.go":    {Print: fingerprintContent("unchanged"), Lines: 1},
		"changed.go": {Print: fingerprintContent("old content\n"), Lines: 2},
	}
	post := map[string]fileState{
		"same.go":    {Print: fingerprintContent("unchanged"), Lines: 1},
		"changed.go": {Print: fingerprintContent("new content\nwith more\nlines\n"), Lines: 4},
	}

	changed, added, removed := diffFiles(pre, post)
	if len(changed) != 1 || changed[0] != "changed.go" {
		t.Errorf("Expected changed.go, got %v", changed)
	}
	if added != 2 || removed != 0 {
		t.Errorf("Expected +2/-0 lines, got +%d/-%d", added, removed)
	}
}
