package learning

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/types"
)

type fakeStore struct {
	outcomes    []*types.ExecutionOutcome
	patterns    map[string]*types.LearnedPattern
	predictions map[string]*types.Prediction

	predStatus map[string]types.PredictionStatus
	counters   map[string][]types.PatternCounterDeltas
	nextID     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patterns:    make(map[string]*types.LearnedPattern),
		predictions: make(map[string]*types.Prediction),
		predStatus:  make(map[string]types.PredictionStatus),
		counters:    make(map[string][]types.PatternCounterDeltas),
	}
}

func (f *fakeStore) RecentOutcomes(ctx context.Context, projectID string, limit int) ([]*types.ExecutionOutcome, error) {
	return f.outcomes, nil
}

func (f *fakeStore) CreatePattern(ctx context.Context, pattern *types.LearnedPattern) error {
	f.nextID++
	pattern.ID = fmt.Sprintf("pat-%d", f.nextID)
	f.patterns[pattern.ID] = pattern
	return nil
}

func (f *fakeStore) GetPattern(ctx context.Context, id string) (*types.LearnedPattern, error) {
	return f.patterns[id], nil
}

func (f *fakeStore) GetPatternByName(ctx context.Context, projectID, category, name string) (*types.LearnedPattern, error) {
	for _, p := range f.patterns {
		if p.ProjectID == projectID && p.Category == category && p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) AllPatterns(ctx context.Context, projectID string) ([]*types.LearnedPattern, error) {
	var out []*types.LearnedPattern
	for _, p := range f.patterns {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) UpdatePatternRules(ctx context.Context, id string, rules types.DetectionRules, filePatterns []string, sampleCount int) error {
	p := f.patterns[id]
	p.DetectionRules = rules
	p.FilePatterns = filePatterns
	p.SampleCount = sampleCount
	return nil
}

func (f *fakeStore) EnablePatternAutoFix(ctx context.Context, id, template string, confidence float64, risk types.RiskLevel) error {
	p := f.patterns[id]
	p.HasAutoFix = true
	p.AutoFixTemplate = template
	p.AutoFixConfidence = confidence
	p.AutoFixRisk = risk
	p.Status = types.PatternActive
	return nil
}

func (f *fakeStore) SetPatternStatus(ctx context.Context, id string, status types.PatternStatus, disableAutoFix bool) error {
	p := f.patterns[id]
	p.Status = status
	if disableAutoFix {
		p.HasAutoFix = false
	}
	return nil
}

func (f *fakeStore) IncrementPatternCounters(ctx context.Context, id string, deltas types.PatternCounterDeltas) error {
	f.counters[id] = append(f.counters[id], deltas)
	return nil
}

func (f *fakeStore) GetPrediction(ctx context.Context, id string) (*types.Prediction, error) {
	return f.predictions[id], nil
}

func (f *fakeStore) UpdatePredictionStatus(ctx context.Context, id string, status types.PredictionStatus) error {
	f.predStatus[id] = status
	return nil
}

func goodOutcome(execType, file string, improvement float64) *types.ExecutionOutcome {
	success := true
	return &types.ExecutionOutcome{
		ProjectID:          "proj-1",
		ExecutionType:      execType,
		RequirementContent: "Refactor " + file + " into smaller units.",
		TargetFiles:        []string{file},
		Success:            &success,
		HealthImprovement:  &improvement,
		OutcomeRating:      types.OutcomeGood,
	}
}

func badOutcome(execType, file string) *types.ExecutionOutcome {
	success := false
	return &types.ExecutionOutcome{
		ProjectID:          "proj-1",
		ExecutionType:      execType,
		RequirementContent: "Fix " + file,
		TargetFiles:        []string{file},
		Success:            &success,
		OutcomeRating:      types.OutcomeFailed,
	}
}

func newLearner(store Store) *Learner {
	return NewLearner(store, config.DefaultConfig().Learning)
}

func TestLearnCreatesPatternFromCluster(t *testing.T) {
	store := newFakeStore()
	store.outcomes = []*types.ExecutionOutcome{
		goodOutcome("refactor", "internal/api/handler.go", 8),
		goodOutcome("refactor", "internal/api/routes.go", 12),
		goodOutcome("refactor", "internal/api/middleware.go", 5),
	}
	learner := newLearner(store)

	report, err := learner.LearnFromExecutions(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("LearnFromExecutions failed: %v", err)
	}
	if report.PatternsCreated != 1 {
		t.Fatalf("Expected exactly 1 pattern, got %d", report.PatternsCreated)
	}

	pattern, _ := store.GetPatternByName(context.Background(), "proj-1", "refactor", "refactor-success")
	if pattern == nil {
		t.Fatal("Expected refactor-success pattern")
	}
	foundFragment := false
	for _, frag := range pattern.DetectionRules.FilePatterns {
		if frag == "internal/api" || frag == ".go" {
			foundFragment = true
		}
	}
	if !foundFragment {
		t.Errorf("Expected a common directory or extension fragment, got %v", pattern.DetectionRules.FilePatterns)
	}
	if pattern.Status != types.PatternLearning {
		t.Errorf("New patterns start in learning status, got %s", pattern.Status)
	}
	if pattern.PrecisionScore != 1.0 {
		t.Errorf("All-success cluster should start with precision 1.0, got %f", pattern.PrecisionScore)
	}
}

func TestLearnRequiresMinimumSamples(t *testing.T) {
	store := newFakeStore()
	store.outcomes = []*types.ExecutionOutcome{
		goodOutcome("refactor", "a.go", 5),
		goodOutcome("refactor", "b.go", 5),
	}
	learner := newLearner(store)

	report, err := learner.LearnFromExecutions(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("LearnFromExecutions failed: %v", err)
	}
	if report.PatternsCreated != 0 {
		t.Errorf("2 samples must not create a pattern, got %d", report.PatternsCreated)
	}
}

func TestAutoFixPromotionGates(t *testing.T) {
	t.Run("promoted at sample and precision thresholds", func(t *testing.T) {
		store := newFakeStore()
		for _, file := range []string{"a.go", "b.go", "c.go", "d.go", "e.go"} {
			store.outcomes = append(store.outcomes, goodOutcome("refactor", "pkg/"+file, 10))
		}
		learner := newLearner(store)

		report, err := learner.LearnFromExecutions(context.Background(), "proj-1")
		if err != nil {
			t.Fatalf("LearnFromExecutions failed: %v", err)
		}
		if report.AutoFixesEnabled != 1 {
			t.Fatalf("Expected 1 auto-fix enabled, got %d", report.AutoFixesEnabled)
		}

		pattern, _ := store.GetPatternByName(context.Background(), "proj-1", "refactor", "refactor-success")
		if !pattern.HasAutoFix {
			t.Fatal("Expected auto-fix enabled")
		}
		if !strings.Contains(pattern.AutoFixTemplate, "{file}") {
			t.Errorf("Template must be generalized with a placeholder, got %q", pattern.AutoFixTemplate)
		}
		if pattern.Status != types.PatternActive {
			t.Errorf("Promotion must activate the pattern, got %s", pattern.Status)
		}
	})

	t.Run("not promoted below sample floor", func(t *testing.T) {
		store := newFakeStore()
		for _, file := range []string{"a.go", "b.go", "c.go"} {
			store.outcomes = append(store.outcomes, goodOutcome("refactor", "pkg/"+file, 10))
		}
		learner := newLearner(store)

		report, err := learner.LearnFromExecutions(context.Background(), "proj-1")
		if err != nil {
			t.Fatalf("LearnFromExecutions failed: %v", err)
		}
		if report.AutoFixesEnabled != 0 {
			t.Errorf("3 samples must not enable auto-fix, got %d", report.AutoFixesEnabled)
		}
	})

	t.Run("not promoted below precision threshold", func(t *testing.T) {
		store := newFakeStore()
		for _, file := range []string{"a.go", "b.go", "c.go", "d.go", "e.go"} {
			store.outcomes = append(store.outcomes, goodOutcome("refactor", "pkg/"+file, 10))
		}
		// Failures of the same type drag the success share below 0.7.
		for _, file := range []string{"x.go", "y.go", "z.go"} {
			store.outcomes = append(store.outcomes, badOutcome("refactor", "pkg/"+file))
		}
		learner := newLearner(store)

		report, err := learner.LearnFromExecutions(context.Background(), "proj-1")
		if err != nil {
			t.Fatalf("LearnFromExecutions failed: %v", err)
		}
		if report.AutoFixesEnabled != 0 {
			t.Errorf("Low precision must not enable auto-fix, got %d", report.AutoFixesEnabled)
		}
		pattern, _ := store.GetPatternByName(context.Background(), "proj-1", "refactor", "refactor-success")
		if pattern.HasAutoFix {
			t.Error("Pattern must not carry an auto-fix below the precision threshold")
		}
	})
}

func TestNegativePatternsRecorded(t *testing.T) {
	store := newFakeStore()
	store.outcomes = []*types.ExecutionOutcome{
		badOutcome("test-fix", "internal/db/conn.go"),
		badOutcome("test-fix", "internal/db/pool.go"),
		badOutcome("test-fix", "internal/db/tx.go"),
	}
	learner := newLearner(store)

	report, err := learner.LearnFromExecutions(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("LearnFromExecutions failed: %v", err)
	}
	if report.PatternsCreated != 1 {
		t.Fatalf("Expected 1 avoid pattern, got %d", report.PatternsCreated)
	}

	pattern, _ := store.GetPatternByName(context.Background(), "proj-1", "test-fix", "[AVOID] test-fix-failure")
	if pattern == nil {
		t.Fatal("Expected [AVOID] pattern")
	}
	if pattern.PatternType != "avoid" {
		t.Errorf("Expected avoid type, got %s", pattern.PatternType)
	}
	if pattern.HasAutoFix {
		t.Error("Avoid patterns must never carry an auto-fix")
	}
}

func TestLearnUpdatesExistingPattern(t *testing.T) {
	store := newFakeStore()
	existing := &types.LearnedPattern{
		ID:        "pat-existing",
		ProjectID: "proj-1",
		Name:      "refactor-success",
		Category:  "refactor",
		Status:    types.PatternLearning,
	}
	store.patterns["pat-existing"] = existing
	store.outcomes = []*types.ExecutionOutcome{
		goodOutcome("refactor", "pkg/a.go", 5),
		goodOutcome("refactor", "pkg/b.go", 7),
	}
	learner := newLearner(store)

	report, err := learner.LearnFromExecutions(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("LearnFromExecutions failed: %v", err)
	}
	if report.PatternsCreated != 0 || report.PatternsUpdated != 1 {
		t.Errorf("Expected update not create, got created=%d updated=%d",
			report.PatternsCreated, report.PatternsUpdated)
	}
	if existing.SampleCount != 2 {
		t.Errorf("Expected refreshed sample count, got %d", existing.SampleCount)
	}
}

func TestCleanupPatterns(t *testing.T) {
	store := newFakeStore()
	store.patterns["imprecise"] = &types.LearnedPattern{
		ID: "imprecise", ProjectID: "proj-1", Status: types.PatternActive,
		TruePositives: 2, FalsePositives: 10,
	}
	store.patterns["failing-fix"] = &types.LearnedPattern{
		ID: "failing-fix", ProjectID: "proj-1", Status: types.PatternActive,
		HasAutoFix: true, TruePositives: 8, FalsePositives: 1,
		AutoFixesAttempted: 8, AutoFixSuccesses: 2,
	}
	store.patterns["healthy"] = &types.LearnedPattern{
		ID: "healthy", ProjectID: "proj-1", Status: types.PatternActive,
		TruePositives: 9, FalsePositives: 1,
		AutoFixesAttempted: 6, AutoFixSuccesses: 5,
	}
	learner := newLearner(store)

	deprecated, suspended, err := learner.CleanupPatterns(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("CleanupPatterns failed: %v", err)
	}
	if deprecated != 1 || suspended != 1 {
		t.Fatalf("Expected 1 deprecated and 1 suspended, got %d/%d", deprecated, suspended)
	}

	if store.patterns["imprecise"].Status != types.PatternDeprecated {
		t.Error("Imprecise pattern should be deprecated")
	}
	if store.patterns["failing-fix"].Status != types.PatternSuspended {
		t.Error("Failing-fix pattern should be suspended")
	}
	if store.patterns["failing-fix"].HasAutoFix {
		t.Error("Suspension must clear the auto-fix flag")
	}
	if store.patterns["healthy"].Status != types.PatternActive {
		t.Error("Healthy pattern must stay active")
	}
}

func TestRecordPredictionOutcome(t *testing.T) {
	store := newFakeStore()
	store.predictions["pred-1"] = &types.Prediction{ID: "pred-1", PatternID: "pat-1"}
	store.predictions["pred-2"] = &types.Prediction{ID: "pred-2", PatternID: "pat-1"}
	store.predictions["pred-orphan"] = &types.Prediction{ID: "pred-orphan"}
	learner := newLearner(store)
	ctx := context.Background()

	t.Run("confirmed", func(t *testing.T) {
		if err := learner.RecordPredictionOutcome(ctx, "pred-1", FeedbackConfirmed); err != nil {
			t.Fatalf("RecordPredictionOutcome failed: %v", err)
		}
		if store.predStatus["pred-1"] != types.PredictionAddressed {
			t.Errorf("Expected addressed, got %s", store.predStatus["pred-1"])
		}
		if len(store.counters["pat-1"]) != 1 || store.counters["pat-1"][0].TruePositives != 1 {
			t.Errorf("Expected true-positive increment, got %v", store.counters["pat-1"])
		}
	})

	t.Run("false positive", func(t *testing.T) {
		if err := learner.RecordPredictionOutcome(ctx, "pred-2", FeedbackFalsePositive); err != nil {
			t.Fatalf("RecordPredictionOutcome failed: %v", err)
		}
		if store.predStatus["pred-2"] != types.PredictionDismissed {
			t.Errorf("Expected dismissed, got %s", store.predStatus["pred-2"])
		}
		last := store.counters["pat-1"][len(store.counters["pat-1"])-1]
		if last.FalsePositives != 1 || last.UserOverrides != 1 {
			t.Errorf("Expected false-positive and override increments, got %+v", last)
		}
	})

	t.Run("no pattern link", func(t *testing.T) {
		before := len(store.counters["pat-1"])
		if err := learner.RecordPredictionOutcome(ctx, "pred-orphan", FeedbackConfirmed); err != nil {
			t.Fatalf("RecordPredictionOutcome failed: %v", err)
		}
		if len(store.counters["pat-1"]) != before {
			t.Error("Predictions without a pattern must not touch counters")
		}
	})

	t.Run("unknown prediction is a no-op", func(t *testing.T) {
		if err := learner.RecordPredictionOutcome(ctx, "ghost", FeedbackConfirmed); err != nil {
			t.Fatalf("Unknown prediction must not error: %v", err)
		}
	})
}

func TestCommonFragments(t *testing.T) {
	group := []*types.ExecutionOutcome{
		{TargetFiles: []string{"internal/api/a.go", "internal/api/b.go"}},
		{TargetFiles: []string{"internal/api/c.go"}},
		{TargetFiles: []string{"docs/readme.md"}},
	}

	fragments := commonFragments(group, 0.3)
	has := func(s string) bool {
		for _, f := range fragments {
			if f == s {
				return true
			}
		}
		return false
	}
	if !has("internal/api") || !has(".go") {
		t.Errorf("Expected internal/api and .go fragments, got %v", fragments)
	}
	if has("docs") || has(".md") {
		t.Errorf("Rare fragments must be excluded, got %v", fragments)
	}
}
