package action

import (
	"context"
	"testing"
	"time"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/types"
)

// fakeStore records created items and serves canned patterns.
type fakeStore struct {
	patterns    map[string]*types.LearnedPattern
	created     []*types.AutoFixItem
	transitions map[string]types.AutoFixStatus
	expired     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patterns:    make(map[string]*types.LearnedPattern),
		transitions: make(map[string]types.AutoFixStatus),
	}
}

func (f *fakeStore) GetPattern(ctx context.Context, id string) (*types.LearnedPattern, error) {
	return f.patterns[id], nil
}

func (f *fakeStore) CreateAutoFix(ctx context.Context, item *types.AutoFixItem) error {
	f.created = append(f.created, item)
	return nil
}

func (f *fakeStore) GetAutoFix(ctx context.Context, id string) (*types.AutoFixItem, error) {
	for _, item := range f.created {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) PendingAutoFixes(ctx context.Context, projectID string) ([]*types.AutoFixItem, error) {
	return f.created, nil
}

func (f *fakeStore) TransitionAutoFix(ctx context.Context, id string, next types.AutoFixStatus) error {
	f.transitions[id] = next
	return nil
}

func (f *fakeStore) ExpireAutoFixes(ctx context.Context, now time.Time) (int, error) {
	return f.expired, nil
}

func prediction(file string, urgency, confidence float64, flags ...string) *types.Prediction {
	return &types.Prediction{
		File:       file,
		Type:       types.PredictionImminent,
		Title:      "t",
		Confidence: confidence,
		Urgency:    urgency,
		Severity:   types.SeverityHigh,
		Flags:      flags,
	}
}

func newTestEngine(store Store) *Engine {
	return NewEngine(store, nil, config.DefaultConfig().Action)
}

func TestGenerateFiltersByFloors(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	predictions := []*types.Prediction{
		prediction("low-conf.go", 0.9, 0.2, "high-complexity"),
		prediction("low-urg.go", 0.2, 0.9, "high-complexity"),
		prediction("good.go", 0.8, 0.8, "high-complexity"),
	}

	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", predictions)
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].TargetFiles[0] != "good.go" {
		t.Errorf("Expected good.go, got %s", items[0].TargetFiles[0])
	}
}

func TestTemplatePriorityOrder(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	// Both frequent-failures and high-complexity present: the
	// failure template must win.
	p := prediction("flaky.go", 0.9, 0.9, "high-complexity", "frequent-failures")
	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", []*types.Prediction{p})
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Stabilize failure-prone file" {
		t.Errorf("Expected frequent-failures template, got %q", items[0].Title)
	}
	if items[0].RiskLevel != types.RiskHigh {
		t.Errorf("Expected high risk, got %s", items[0].RiskLevel)
	}
}

func TestComplexityFallbackForSeverePredictions(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	severe := prediction("odd.go", 0.8, 0.8)
	severe.Severity = types.SeverityCritical
	mild := prediction("mild.go", 0.8, 0.8)
	mild.Severity = types.SeverityMedium

	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", []*types.Prediction{severe, mild})
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected only the severe prediction to produce an item, got %d", len(items))
	}
	if items[0].TargetFiles[0] != "odd.go" {
		t.Errorf("Expected odd.go, got %s", items[0].TargetFiles[0])
	}
}

func TestLearnedPatternTemplatePreferred(t *testing.T) {
	store := newFakeStore()
	store.patterns["pat-1"] = &types.LearnedPattern{
		ID:              "pat-1",
		Name:            "refactor-api-handlers",
		HasAutoFix:      true,
		AutoFixTemplate: "Apply the proven refactoring to {file}.",
		AutoFixRisk:     types.RiskLow,
	}
	engine := newTestEngine(store)

	p := prediction("internal/api/handler.go", 0.9, 0.9, "high-complexity")
	p.PatternID = "pat-1"

	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", []*types.Prediction{p})
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Title != "[Learned] refactor-api-handlers" {
		t.Errorf("Expected learned title prefix, got %q", item.Title)
	}
	if item.GeneratedRequirement != "Apply the proven refactoring to internal/api/handler.go." {
		t.Errorf("Template substitution wrong: %q", item.GeneratedRequirement)
	}
	if item.PatternID != "pat-1" {
		t.Errorf("Expected pattern link, got %q", item.PatternID)
	}
}

func TestPatternWithoutAutoFixFallsBack(t *testing.T) {
	store := newFakeStore()
	store.patterns["pat-2"] = &types.LearnedPattern{
		ID:         "pat-2",
		Name:       "detection-only",
		HasAutoFix: false,
	}
	engine := newTestEngine(store)

	p := prediction("a.go", 0.9, 0.9, "very-long-file")
	p.PatternID = "pat-2"

	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", []*types.Prediction{p})
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}
	if items[0].Title != "Split oversized file" {
		t.Errorf("Expected built-in template fallback, got %q", items[0].Title)
	}
}

func TestRiskDeterminesExpiry(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	p := prediction("nested.go", 0.9, 0.9, "deep-nesting")
	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", []*types.Prediction{p})
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}

	item := items[0]
	if item.RiskLevel != types.RiskLow {
		t.Fatalf("Expected low risk, got %s", item.RiskLevel)
	}
	window := item.ExpiresAt.Sub(item.CreatedAt)
	if window != 48*time.Hour {
		t.Errorf("Expected 48h expiry for low risk, got %s", window)
	}
}

func TestMaxItemsCap(t *testing.T) {
	store := newFakeStore()
	cfg := config.DefaultConfig().Action
	cfg.MaxItems = 2
	engine := NewEngine(store, nil, cfg)

	var predictions []*types.Prediction
	for _, file := range []string{"a.go", "b.go", "c.go", "d.go"} {
		predictions = append(predictions, prediction(file, 0.9, 0.9, "high-complexity"))
	}

	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", predictions)
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected cap of 2 items, got %d", len(items))
	}
}

func TestRankedByUrgencyTimesConfidence(t *testing.T) {
	store := newFakeStore()
	cfg := config.DefaultConfig().Action
	cfg.MaxItems = 1
	engine := NewEngine(store, nil, cfg)

	predictions := []*types.Prediction{
		prediction("ok.go", 0.6, 0.9, "high-complexity"),   // 0.54
		prediction("best.go", 0.9, 0.8, "high-complexity"), // 0.72
	}

	items, err := engine.GenerateAutoFixes(context.Background(), "proj-1", predictions)
	if err != nil {
		t.Fatalf("GenerateAutoFixes failed: %v", err)
	}
	if len(items) != 1 || items[0].TargetFiles[0] != "best.go" {
		t.Errorf("Expected highest-scored prediction first, got %+v", items)
	}
}

func TestApproveReject(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	if err := engine.Approve(ctx, "fix-1"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if store.transitions["fix-1"] != types.AutoFixApproved {
		t.Errorf("Expected approved transition, got %s", store.transitions["fix-1"])
	}

	if err := engine.Reject(ctx, "fix-2"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if store.transitions["fix-2"] != types.AutoFixRejected {
		t.Errorf("Expected rejected transition, got %s", store.transitions["fix-2"])
	}
}
