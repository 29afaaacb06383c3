// Package storage defines the persistence contract for the analysis loop:
// snapshots, debt predictions, learned patterns, auto-fix items, and
// execution outcomes all live behind the Storage interface.
package storage

import (
	"context"
	"time"

	"github.com/cadencehq/foresight/internal/storage/sqlite"
	"github.com/cadencehq/foresight/internal/types"
)

// Storage is the persistence backend for the analysis loop.
type Storage interface {
	// Analysis snapshots
	CreateSnapshot(ctx context.Context, snapshot *types.AnalysisSnapshot) error
	GetSnapshot(ctx context.Context, id string) (*types.AnalysisSnapshot, error)
	CompleteSnapshot(ctx context.Context, id string, result sqlite.SnapshotResult) error
	FailSnapshot(ctx context.Context, id string, reason string) error
	LatestCompletedSnapshot(ctx context.Context, projectID string) (*types.AnalysisSnapshot, error)

	// Debt predictions
	StorePredictions(ctx context.Context, predictions []*types.Prediction) error
	GetPrediction(ctx context.Context, id string) (*types.Prediction, error)
	ListPredictions(ctx context.Context, projectID string, status types.PredictionStatus, limit int) ([]*types.Prediction, error)
	UpdatePredictionStatus(ctx context.Context, id string, status types.PredictionStatus) error

	// Learned patterns (never hard-deleted)
	CreatePattern(ctx context.Context, pattern *types.LearnedPattern) error
	GetPattern(ctx context.Context, id string) (*types.LearnedPattern, error)
	GetPatternByName(ctx context.Context, projectID, category, name string) (*types.LearnedPattern, error)
	ActivePatterns(ctx context.Context, projectID string) ([]*types.LearnedPattern, error)
	AllPatterns(ctx context.Context, projectID string) ([]*types.LearnedPattern, error)
	UpdatePatternRules(ctx context.Context, id string, rules types.DetectionRules, filePatterns []string, sampleCount int) error
	EnablePatternAutoFix(ctx context.Context, id, template string, confidence float64, risk types.RiskLevel) error
	SetPatternStatus(ctx context.Context, id string, status types.PatternStatus, disableAutoFix bool) error
	IncrementPatternCounters(ctx context.Context, id string, deltas types.PatternCounterDeltas) error

	// Auto-fix items
	CreateAutoFix(ctx context.Context, item *types.AutoFixItem) error
	GetAutoFix(ctx context.Context, id string) (*types.AutoFixItem, error)
	PendingAutoFixes(ctx context.Context, projectID string) ([]*types.AutoFixItem, error)
	ApprovedAutoFixes(ctx context.Context, projectID string) ([]*types.AutoFixItem, error)
	TransitionAutoFix(ctx context.Context, id string, next types.AutoFixStatus) error
	ExpireAutoFixes(ctx context.Context, now time.Time) (int, error)
	HasExecutingAutoFix(ctx context.Context, projectID string) (bool, error)

	// Execution outcomes (append, then update-once on completion)
	CreateOutcome(ctx context.Context, outcome *types.ExecutionOutcome) error
	GetOutcomeByExecution(ctx context.Context, executionID string) (*types.ExecutionOutcome, error)
	CompleteOutcome(ctx context.Context, outcome *types.ExecutionOutcome) error
	RecentOutcomes(ctx context.Context, projectID string, limit int) ([]*types.ExecutionOutcome, error)
	FileOutcomeStats(ctx context.Context, projectID string, files []string) (map[string]types.FileOutcomeStats, error)
	SuccessRateSince(ctx context.Context, projectID string, days int) (rate float64, samples int, err error)

	// Read models
	HealthSummary(ctx context.Context, projectID string) (*types.HealthSummary, error)
	LearningProgress(ctx context.Context, projectID string) (*types.LearningProgress, error)

	// Retention
	PruneSnapshots(ctx context.Context, projectID string, olderThan time.Time) (int, error)

	// Config KV
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Config holds database configuration.
type Config struct {
	// Path is the SQLite database file path.
	// Default: ".foresight/foresight.db"
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Path: ".foresight/foresight.db",
	}
}

// NewStorage creates a new SQLite storage backend.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".foresight/foresight.db"
	}
	return sqlite.New(cfg.Path)
}
