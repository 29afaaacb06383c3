package predict

import (
	"testing"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/signal"
	"github.com/cadencehq/foresight/internal/types"
)

func f(v float64) *float64 { return &v }

func newEngine() *Engine {
	return NewEngine(config.DefaultConfig().Prediction)
}

func TestPredictionTypePrecedence(t *testing.T) {
	e := newEngine()

	tests := []struct {
		name  string
		input *signal.PredictionInput
		want  types.PredictionType
	}{
		{
			name:  "exists when history and complexity are bad",
			input: &signal.PredictionInput{Complexity: f(30), Churn: f(30), HistoricalIssues: f(70)},
			want:  types.PredictionExists,
		},
		{
			name:  "imminent when churn and complexity are bad without history",
			input: &signal.PredictionInput{Complexity: f(30), Churn: f(30), HistoricalIssues: f(10)},
			want:  types.PredictionImminent,
		},
		{
			name:  "accelerating on churn alone",
			input: &signal.PredictionInput{Complexity: f(80), Churn: f(30)},
			want:  types.PredictionAccelerating,
		},
		{
			name:  "accelerating on change burst",
			input: &signal.PredictionInput{Complexity: f(80), Churn: f(80), RecentChanges: 9},
			want:  types.PredictionAccelerating,
		},
		{
			name:  "emerging otherwise",
			input: &signal.PredictionInput{Complexity: f(60), Churn: f(80)},
			want:  types.PredictionEmerging,
		},
		{
			name:  "bad history alone is not exists",
			input: &signal.PredictionInput{Complexity: f(80), HistoricalIssues: f(90)},
			want:  types.PredictionEmerging,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.predictionType(tt.input); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestConfidenceScaling(t *testing.T) {
	e := newEngine()

	// One signal: 0.3 + 0.1, no variance boost.
	if got := e.confidence([]float64{40}); !approx(got, 0.4) {
		t.Errorf("Expected 0.4 for one signal, got %f", got)
	}
	// Three agreeing signals: 0.3 + 0.3 + 0.2 boost.
	if got := e.confidence([]float64{40, 42, 44}); !approx(got, 0.8) {
		t.Errorf("Expected 0.8 for three agreeing signals, got %f", got)
	}
	// Three disagreeing signals: no boost.
	if got := e.confidence([]float64{10, 50, 90}); !approx(got, 0.6) {
		t.Errorf("Expected 0.6 for disagreeing signals, got %f", got)
	}
}

func TestUrgencyCappedAtOne(t *testing.T) {
	e := newEngine()
	in := &signal.PredictionInput{Complexity: f(10), Churn: f(10), HistoricalIssues: f(90)}
	u := e.urgency(types.PredictionExists, in)
	if u != 1 {
		t.Errorf("Expected urgency capped at 1, got %f", u)
	}
}

func TestGenerateFiltersNoise(t *testing.T) {
	e := newEngine()

	inputs := []*signal.PredictionInput{
		// Healthy file: mean 85 -> low severity, emerging -> dropped.
		{File: "healthy.go", Complexity: f(85), Churn: f(85)},
		// Bad file survives.
		{File: "bad.go", Complexity: f(30), Churn: f(30), HistoricalIssues: f(70)},
	}

	predictions, summary := e.Generate("proj-1", inputs, nil, nil)
	if len(predictions) != 1 {
		t.Fatalf("Expected 1 prediction, got %d", len(predictions))
	}
	if predictions[0].File != "bad.go" {
		t.Errorf("Expected bad.go, got %s", predictions[0].File)
	}
	if summary.Total != 1 {
		t.Errorf("Summary total wrong: %d", summary.Total)
	}
	if err := predictions[0].Validate(); err != nil {
		t.Errorf("Generated prediction must validate: %v", err)
	}
}

func TestGenerateSortsByUrgencyThenSeverity(t *testing.T) {
	e := newEngine()

	inputs := []*signal.PredictionInput{
		{File: "mild.go", Complexity: f(60), Churn: f(40)},
		{File: "severe.go", Complexity: f(20), Churn: f(20), HistoricalIssues: f(80)},
	}

	predictions, _ := e.Generate("proj-1", inputs, nil, nil)
	if len(predictions) != 2 {
		t.Fatalf("Expected 2 predictions, got %d", len(predictions))
	}
	if predictions[0].File != "severe.go" {
		t.Errorf("Expected highest urgency first, got %s", predictions[0].File)
	}
	if predictions[0].Urgency < predictions[1].Urgency {
		t.Error("Predictions not sorted by urgency descending")
	}
}

func TestPatternFirstMatch(t *testing.T) {
	e := newEngine()

	older := &types.LearnedPattern{
		ID:              "pat-old",
		ConfidenceScore: 0.8,
		DetectionRules:  types.DetectionRules{MinComplexity: 50},
	}
	newer := &types.LearnedPattern{
		ID:              "pat-new",
		ConfidenceScore: 0.95,
		DetectionRules:  types.DetectionRules{MinComplexity: 40},
	}
	lowConfidence := &types.LearnedPattern{
		ID:              "pat-low",
		ConfidenceScore: 0.2,
		DetectionRules:  types.DetectionRules{},
	}

	in := &signal.PredictionInput{Complexity: f(30), Churn: f(30)}

	// Both match; the first in creation order wins even though the
	// second has higher confidence.
	got := e.matchPattern(in, []*types.LearnedPattern{lowConfidence, older, newer})
	if got == nil || got.ID != "pat-old" {
		t.Fatalf("Expected first matching pattern pat-old, got %+v", got)
	}
}

func TestPatternRuleMatching(t *testing.T) {
	pattern := &types.LearnedPattern{
		ConfidenceScore: 0.9,
		DetectionRules:  types.DetectionRules{MinComplexity: 60, MinChurn: 60},
		FilePatterns:    []string{"internal/api", ".go"},
	}

	t.Run("matches when badness clears both minimums", func(t *testing.T) {
		in := &signal.PredictionInput{File: "internal/api/handler.go", Complexity: f(30), Churn: f(35)}
		if !ruleMatches(in, pattern) {
			t.Error("Expected match")
		}
	})

	t.Run("rejects when complexity too healthy", func(t *testing.T) {
		in := &signal.PredictionInput{File: "internal/api/handler.go", Complexity: f(70), Churn: f(35)}
		if ruleMatches(in, pattern) {
			t.Error("Expected no match")
		}
	})

	t.Run("rejects missing signal", func(t *testing.T) {
		in := &signal.PredictionInput{File: "internal/api/handler.go", Complexity: f(30)}
		if ruleMatches(in, pattern) {
			t.Error("Expected no match when a constrained signal is absent")
		}
	})

	t.Run("rejects non-matching file", func(t *testing.T) {
		in := &signal.PredictionInput{File: "cmd/main.py", Complexity: f(30), Churn: f(35)}
		if ruleMatches(in, pattern) {
			t.Error("Expected no match outside file patterns")
		}
	})
}

func TestEffortEstimate(t *testing.T) {
	tests := []struct {
		severity types.Severity
		weak     int
		want     types.Effort
	}{
		{types.SeverityLow, 1, types.EffortTrivial},
		{types.SeverityHigh, 1, types.EffortSmall},
		{types.SeverityHigh, 2, types.EffortMedium},
		{types.SeverityCritical, 3, types.EffortLarge},
	}
	for _, tt := range tests {
		if got := effort(tt.severity, tt.weak); got != tt.want {
			t.Errorf("effort(%s, %d) = %s, want %s", tt.severity, tt.weak, got, tt.want)
		}
	}
}

func TestGeneratedTextMentionsFile(t *testing.T) {
	e := newEngine()
	inputs := []*signal.PredictionInput{
		{File: "internal/api/handler.go", Complexity: f(30), Churn: f(30)},
	}
	flags := map[string][]string{
		"internal/api/handler.go": {"very-long-file", "high-complexity"},
	}

	predictions, _ := e.Generate("proj-1", inputs, flags, nil)
	if len(predictions) != 1 {
		t.Fatalf("Expected 1 prediction, got %d", len(predictions))
	}
	p := predictions[0]
	if p.Title == "" || p.Description == "" || p.SuggestedAction == "" {
		t.Errorf("Generated text incomplete: %+v", p)
	}
	if p.MicroRefactoring == "" {
		t.Error("Expected a micro-refactoring hint for a long file")
	}
}
