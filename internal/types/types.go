package types

import (
	"fmt"
	"time"
)

// TriggerSource identifies what kicked off an observation cycle.
type TriggerSource string

const (
	TriggerFileChange        TriggerSource = "file_change"
	TriggerExecutionComplete TriggerSource = "execution_complete"
	TriggerScheduled         TriggerSource = "scheduled"
	TriggerManual            TriggerSource = "manual"
)

// IsValid checks if the trigger source is a known value.
func (t TriggerSource) IsValid() bool {
	switch t {
	case TriggerFileChange, TriggerExecutionComplete, TriggerScheduled, TriggerManual:
		return true
	}
	return false
}

// SnapshotStatus tracks the lifecycle of one analysis snapshot.
type SnapshotStatus string

const (
	SnapshotRunning   SnapshotStatus = "running"
	SnapshotCompleted SnapshotStatus = "completed"
	SnapshotFailed    SnapshotStatus = "failed"
)

// HealthTrend is the coarse direction of project health, derived from
// recent execution success rate rather than a statistical trend fit.
type HealthTrend string

const (
	TrendImproving HealthTrend = "improving"
	TrendStable    HealthTrend = "stable"
	TrendDegrading HealthTrend = "degrading"
)

// AnalysisSnapshot is the bookkeeping row for one observation cycle.
// Created at cycle start, completed or failed at the end.
type AnalysisSnapshot struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	SnapshotType  string         `json:"snapshot_type"`
	TriggerSource TriggerSource  `json:"trigger_source,omitempty"`
	Status        SnapshotStatus `json:"status"`

	// Result fields, populated on completion
	OverallScore    float64     `json:"overall_score"`
	HealthTrend     HealthTrend `json:"health_trend,omitempty"`
	FilesAnalyzed   int         `json:"files_analyzed"`
	ConcernCount    int         `json:"concern_count"`
	PredictionCount int         `json:"prediction_count"`
	Error           string      `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PredictionType classifies how far along a predicted issue is.
type PredictionType string

const (
	// PredictionEmerging is a weak early signal of a future issue.
	PredictionEmerging PredictionType = "emerging"
	// PredictionAccelerating is an issue whose signals are getting worse.
	PredictionAccelerating PredictionType = "accelerating"
	// PredictionImminent is an issue expected to surface soon.
	PredictionImminent PredictionType = "imminent"
	// PredictionExists is an issue judged to already be present.
	PredictionExists PredictionType = "exists"
)

// IsValid checks if the prediction type is a known value.
func (p PredictionType) IsValid() bool {
	switch p {
	case PredictionEmerging, PredictionAccelerating, PredictionImminent, PredictionExists:
		return true
	}
	return false
}

// Severity classifies how bad a predicted issue is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting: critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Effort is a coarse estimate of remediation size.
type Effort string

const (
	EffortTrivial Effort = "trivial"
	EffortSmall   Effort = "small"
	EffortMedium  Effort = "medium"
	EffortLarge   Effort = "large"
)

// PredictionStatus is the lifecycle of a persisted debt prediction.
type PredictionStatus string

const (
	PredictionActive    PredictionStatus = "active"
	PredictionAddressed PredictionStatus = "addressed"
	PredictionDismissed PredictionStatus = "dismissed"
)

// Prediction is a ranked, typed forecast that a file will develop (or
// already has) a quality issue. May be persisted as a long-lived
// debt-prediction row.
type Prediction struct {
	ID               string             `json:"id,omitempty"`
	ProjectID        string             `json:"project_id,omitempty"`
	File             string             `json:"file"`
	Type             PredictionType     `json:"type"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Confidence       float64            `json:"confidence"`
	Urgency          float64            `json:"urgency"`
	Severity         Severity           `json:"severity"`
	SuggestedAction  string             `json:"suggested_action"`
	MicroRefactoring string             `json:"micro_refactoring,omitempty"`
	Effort           Effort             `json:"effort"`
	Signals          map[string]float64 `json:"signals,omitempty"`
	Flags            []string           `json:"flags,omitempty"`
	PatternID        string             `json:"pattern_id,omitempty"`
	Status           PredictionStatus   `json:"status,omitempty"`
	CreatedAt        time.Time          `json:"created_at,omitempty"`
}

// Validate checks the prediction invariants.
func (p *Prediction) Validate() error {
	if p.File == "" {
		return fmt.Errorf("prediction file is required")
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("invalid prediction type: %s", p.Type)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %f", p.Confidence)
	}
	if p.Urgency < 0 || p.Urgency > 1 {
		return fmt.Errorf("urgency must be in [0,1], got %f", p.Urgency)
	}
	return nil
}

// PatternStatus is the lifecycle of a learned pattern. Patterns are
// deprecated or suspended, never hard-deleted, to preserve audit history.
type PatternStatus string

const (
	PatternLearning   PatternStatus = "learning"
	PatternActive     PatternStatus = "active"
	PatternSuspended  PatternStatus = "suspended"
	PatternDeprecated PatternStatus = "deprecated"
)

// RiskLevel classifies how risky an auto-fix is to apply.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValid checks if the risk level is a known value.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// DetectionRules are the signal thresholds a learned pattern matches
// against. Zero values mean "no constraint".
type DetectionRules struct {
	MinComplexity float64  `json:"min_complexity,omitempty"`
	MinChurn      float64  `json:"min_churn,omitempty"`
	ExecutionType string   `json:"execution_type,omitempty"`
	FilePatterns  []string `json:"file_patterns,omitempty"`
}

// LearnedPattern is a persisted, reusable detection rule distilled from
// execution history, optionally carrying an auto-fix template.
type LearnedPattern struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id"`
	Name           string         `json:"name"`
	PatternType    string         `json:"pattern_type"` // "success" or "avoid"
	Category       string         `json:"category"`     // execution type the pattern came from
	DetectionRules DetectionRules `json:"detection_rules"`
	FilePatterns   []string       `json:"file_patterns,omitempty"`
	Status         PatternStatus  `json:"status"`

	PrecisionScore  float64 `json:"precision_score"`
	ConfidenceScore float64 `json:"confidence_score"`
	SampleCount     int     `json:"sample_count"`

	HasAutoFix        bool      `json:"has_auto_fix"`
	AutoFixTemplate   string    `json:"auto_fix_template,omitempty"`
	AutoFixConfidence float64   `json:"auto_fix_confidence,omitempty"`
	AutoFixRisk       RiskLevel `json:"auto_fix_risk,omitempty"`

	TruePositives      int `json:"true_positives"`
	FalsePositives     int `json:"false_positives"`
	UserOverrides      int `json:"user_overrides"`
	AutoFixesAttempted int `json:"auto_fixes_attempted"`
	AutoFixSuccesses   int `json:"auto_fix_successes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Precision returns the rolling precision from feedback counters.
// Patterns with no feedback yet report their stored precision score.
func (p *LearnedPattern) Precision() float64 {
	total := p.TruePositives + p.FalsePositives
	if total == 0 {
		return p.PrecisionScore
	}
	return float64(p.TruePositives) / float64(total)
}

// AutoFixSuccessRate returns the success rate of attempted auto-fixes,
// or 1.0 when none have been attempted yet.
func (p *LearnedPattern) AutoFixSuccessRate() float64 {
	if p.AutoFixesAttempted == 0 {
		return 1.0
	}
	return float64(p.AutoFixSuccesses) / float64(p.AutoFixesAttempted)
}

// AutoFixStatus is the state of an auto-fix item in the approval queue.
type AutoFixStatus string

const (
	AutoFixPending   AutoFixStatus = "pending"
	AutoFixApproved  AutoFixStatus = "approved"
	AutoFixRejected  AutoFixStatus = "rejected"
	AutoFixExecuting AutoFixStatus = "executing"
	AutoFixCompleted AutoFixStatus = "completed"
	AutoFixFailed    AutoFixStatus = "failed"
	AutoFixExpired   AutoFixStatus = "expired"
)

// IsTerminal reports whether the status admits no further transitions.
func (s AutoFixStatus) IsTerminal() bool {
	switch s {
	case AutoFixRejected, AutoFixCompleted, AutoFixFailed, AutoFixExpired:
		return true
	}
	return false
}

// autoFixTransitions is the allowed status transition graph. There is no
// pending→executing edge: execution requires approval first.
var autoFixTransitions = map[AutoFixStatus][]AutoFixStatus{
	AutoFixPending:   {AutoFixApproved, AutoFixRejected, AutoFixExpired},
	AutoFixApproved:  {AutoFixExecuting, AutoFixExpired},
	AutoFixExecuting: {AutoFixCompleted, AutoFixFailed, AutoFixExpired},
}

// CanTransitionTo reports whether the status change is allowed.
func (s AutoFixStatus) CanTransitionTo(next AutoFixStatus) bool {
	for _, allowed := range autoFixTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AutoFixItem is a concrete, time-boxed remediation request derived from a
// prediction or learned pattern, subject to approval before execution.
type AutoFixItem struct {
	ID                   string        `json:"id"`
	ProjectID            string        `json:"project_id"`
	PredictionID         string        `json:"prediction_id,omitempty"`
	PatternID            string        `json:"pattern_id,omitempty"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	TargetFiles          []string      `json:"target_files"`
	GeneratedRequirement string        `json:"generated_requirement"`
	Priority             int           `json:"priority"`
	UrgencyScore         float64       `json:"urgency_score"`
	ConfidenceScore      float64       `json:"confidence_score"`
	RiskLevel            RiskLevel     `json:"risk_level"`
	Status               AutoFixStatus `json:"status"`
	CreatedAt            time.Time     `json:"created_at"`
	ExpiresAt            time.Time     `json:"expires_at"`
}

// Validate checks the auto-fix item invariants.
func (a *AutoFixItem) Validate() error {
	if a.ProjectID == "" {
		return fmt.Errorf("auto-fix project ID is required")
	}
	if a.Title == "" {
		return fmt.Errorf("auto-fix title is required")
	}
	if len(a.TargetFiles) == 0 {
		return fmt.Errorf("auto-fix must target at least one file")
	}
	if !a.RiskLevel.IsValid() {
		return fmt.Errorf("invalid risk level: %s", a.RiskLevel)
	}
	return nil
}

// OutcomeRating classifies the measured effect of one execution.
type OutcomeRating string

const (
	OutcomeExcellent OutcomeRating = "excellent"
	OutcomeGood      OutcomeRating = "good"
	OutcomeNeutral   OutcomeRating = "neutral"
	OutcomePoor      OutcomeRating = "poor"
	OutcomeFailed    OutcomeRating = "failed"
)

// ExecutionOutcome is the before/after measurement of applying one
// auto-fix. Pre-state fields are set at creation and never overwritten;
// post-state fields are filled in exactly once on completion. It is the
// source of truth for learning.
type ExecutionOutcome struct {
	ID                 string   `json:"id"`
	ProjectID          string   `json:"project_id"`
	ExecutionID        string   `json:"execution_id"`
	PredictionID       string   `json:"prediction_id,omitempty"`
	AutoFixID          string   `json:"auto_fix_id,omitempty"`
	ExecutionType      string   `json:"execution_type"`
	RequirementContent string   `json:"requirement_content"`
	TargetFiles        []string `json:"target_files"`

	// Post-state fields
	Success            *bool         `json:"success,omitempty"`
	FilesChanged       []string      `json:"files_changed,omitempty"`
	LinesAdded         int           `json:"lines_added"`
	LinesRemoved       int           `json:"lines_removed"`
	TokensUsed         int           `json:"tokens_used,omitempty"`
	PreHealthScore     *float64      `json:"pre_health_score,omitempty"`
	PostHealthScore    *float64      `json:"post_health_score,omitempty"`
	HealthImprovement  *float64      `json:"health_improvement,omitempty"`
	OutcomeRating      OutcomeRating `json:"outcome_rating,omitempty"`
	RegressionDetected bool          `json:"regression_detected"`
	NewIssues          int           `json:"new_issues"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Succeeded reports whether the execution completed successfully.
func (o *ExecutionOutcome) Succeeded() bool {
	return o.Success != nil && *o.Success
}

// HealthSummary is the aggregate "project health" read model.
type HealthSummary struct {
	ProjectID     string      `json:"project_id"`
	OverallScore  float64     `json:"overall_score"`
	HealthTrend   HealthTrend `json:"health_trend"`
	ConcernCount  int         `json:"concern_count"`
	SnapshotID    string      `json:"snapshot_id"`
	SnapshotCount int         `json:"snapshot_count"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// LearningProgress is the aggregate "how much has the loop learned" read model.
type LearningProgress struct {
	ProjectID           string  `json:"project_id"`
	TotalPatterns       int     `json:"total_patterns"`
	ActivePatterns      int     `json:"active_patterns"`
	AutoFixPatterns     int     `json:"auto_fix_patterns"`
	TotalOutcomes       int     `json:"total_outcomes"`
	OutcomeSuccessRate  float64 `json:"outcome_success_rate"`
	PredictionsTotal    int     `json:"predictions_total"`
	PredictionsAccurate int     `json:"predictions_accurate"`
}
