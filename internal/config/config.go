// Package config holds every tunable threshold in the analysis loop as a
// named field with a documented default. Engines take a Config (or one of
// its sections) so tests can override any heuristic without touching code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the analysis loop.
type Config struct {
	Complexity ComplexityConfig `yaml:"complexity"`
	Churn      ChurnConfig      `yaml:"churn"`
	Historical HistoricalConfig `yaml:"historical"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Prediction PredictionConfig `yaml:"prediction"`
	Action     ActionConfig     `yaml:"action"`
	Learning   LearningConfig   `yaml:"learning"`
	Observe    ObserveConfig    `yaml:"observe"`
}

// ComplexityConfig tunes the static complexity provider. Scores start at
// 100; each warning breach subtracts WarnPenalty, each critical breach
// subtracts CritPenalty.
type ComplexityConfig struct {
	// LinesWarn / LinesCrit flag long-file / very-long-file.
	LinesWarn int `yaml:"lines_warn"`
	LinesCrit int `yaml:"lines_crit"`
	// BranchesWarn / BranchesCrit count control-flow keywords and flag
	// moderate-complexity / high-complexity.
	BranchesWarn int `yaml:"branches_warn"`
	BranchesCrit int `yaml:"branches_crit"`
	// ImportsWarn flags many-dependencies.
	ImportsWarn int `yaml:"imports_warn"`
	// NestingWarn is the maximum brace depth before deep-nesting is flagged.
	NestingWarn int `yaml:"nesting_warn"`

	WarnPenalty float64 `yaml:"warn_penalty"`
	CritPenalty float64 `yaml:"crit_penalty"`
}

// ChurnConfig tunes the version-control churn provider.
type ChurnConfig struct {
	// WindowDays is the history window for churn computation.
	WindowDays int `yaml:"window_days"`
	// CommitsWarn / CommitsCrit flag high-commit-frequency.
	CommitsWarn int `yaml:"commits_warn"`
	CommitsCrit int `yaml:"commits_crit"`
	// AuthorsWarn flags many-contributors.
	AuthorsWarn int `yaml:"authors_warn"`
	// RatioWarn / RatioCrit compare changed lines against current file
	// size and flag high-churn-ratio.
	RatioWarn float64 `yaml:"ratio_warn"`
	RatioCrit float64 `yaml:"ratio_crit"`

	WarnPenalty float64 `yaml:"warn_penalty"`
	CritPenalty float64 `yaml:"crit_penalty"`
}

// HistoricalConfig tunes the execution-history provider.
type HistoricalConfig struct {
	// FailureRateWarn / FailureRateCrit flag frequent-failures.
	FailureRateWarn float64 `yaml:"failure_rate_warn"`
	FailureRateCrit float64 `yaml:"failure_rate_crit"`
	// RegressionRateWarn flags regression-prone.
	RegressionRateWarn float64 `yaml:"regression_rate_warn"`
	// LowSampleCount is the execution count below which confidence drops.
	LowSampleCount int `yaml:"low_sample_count"`

	WarnPenalty float64 `yaml:"warn_penalty"`
	CritPenalty float64 `yaml:"crit_penalty"`
}

// AggregatorConfig tunes how per-provider signals are combined.
type AggregatorConfig struct {
	// ConcernMedium/High/Critical are file-score ceilings for concern
	// severities: score < Critical ⇒ critical, < High ⇒ high, < Medium ⇒ medium.
	ConcernMedium   float64 `yaml:"concern_medium"`
	ConcernHigh     float64 `yaml:"concern_high"`
	ConcernCritical float64 `yaml:"concern_critical"`
	// MaxConcerns caps the top-concerns list.
	MaxConcerns int `yaml:"max_concerns"`
	// TrendImproving / TrendDegrading are success-rate bounds for the
	// coarse health trend heuristic.
	TrendImproving float64 `yaml:"trend_improving"`
	TrendDegrading float64 `yaml:"trend_degrading"`
}

// PredictionConfig tunes the prediction engine.
type PredictionConfig struct {
	// ConfidenceThreshold discards predictions below it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// HighComplexity / HighChurn / HighHistorical are the "signal is weak"
	// cutoffs (signal value at or above means trouble for inverted
	// historical-issues; at or below the score-based cutoffs for the rest).
	HighComplexity float64 `yaml:"high_complexity"`
	HighChurn      float64 `yaml:"high_churn"`
	HighHistorical float64 `yaml:"high_historical"`
	// RecentChangeBurst is the recent-change count above which a
	// prediction accelerates.
	RecentChangeBurst int `yaml:"recent_change_burst"`
	// UrgencyComplexityBoost and UrgencyChurnBoost add to urgency when
	// the respective signal is weak.
	UrgencyComplexityBoost float64 `yaml:"urgency_complexity_boost"`
	UrgencyChurnBoost      float64 `yaml:"urgency_churn_boost"`
	// LowVarianceBoost adds to confidence when signals agree
	// (variance below LowVariance).
	LowVariance      float64 `yaml:"low_variance"`
	LowVarianceBoost float64 `yaml:"low_variance_boost"`
	// PatternMinConfidence is the minimum confidence score a learned
	// pattern needs to be considered by the rule matcher.
	PatternMinConfidence float64 `yaml:"pattern_min_confidence"`
}

// ActionConfig tunes auto-fix generation.
type ActionConfig struct {
	MaxItems      int     `yaml:"max_items"`
	MinConfidence float64 `yaml:"min_confidence"`
	MinUrgency    float64 `yaml:"min_urgency"`
	// Expiry windows by risk level.
	LowRiskTTL    time.Duration `yaml:"low_risk_ttl"`
	MediumRiskTTL time.Duration `yaml:"medium_risk_ttl"`
	HighRiskTTL   time.Duration `yaml:"high_risk_ttl"`
}

// LearningConfig tunes pattern mining and promotion.
type LearningConfig struct {
	// RecentOutcomes is how many outcomes one learning run examines.
	RecentOutcomes int `yaml:"recent_outcomes"`
	// MinSamplesForPattern is the outcome count before a candidate
	// becomes a real pattern.
	MinSamplesForPattern int `yaml:"min_samples_for_pattern"`
	// MinSamplesForAutoFix is the sample count before a pattern may
	// carry an auto-fix template.
	MinSamplesForAutoFix int `yaml:"min_samples_for_auto_fix"`
	// AutoFixSuccessThreshold is the minimum precision for auto-fix
	// promotion.
	AutoFixSuccessThreshold float64 `yaml:"auto_fix_success_threshold"`
	// FragmentShare is the fraction of a group's files a directory or
	// extension fragment must appear in to become a file pattern.
	FragmentShare float64 `yaml:"fragment_share"`
	// Cleanup thresholds.
	DeprecateMinDetections int     `yaml:"deprecate_min_detections"`
	DeprecatePrecision     float64 `yaml:"deprecate_precision"`
	SuspendMinAttempts     int     `yaml:"suspend_min_attempts"`
	SuspendSuccessRate     float64 `yaml:"suspend_success_rate"`
}

// ObserveConfig tunes the observation service.
type ObserveConfig struct {
	// Interval between scheduled observation cycles per project.
	Interval time.Duration `yaml:"interval"`
	// StableDelta is the |Δscore| below which health is reported stable.
	StableDelta float64 `yaml:"stable_delta"`
	// RateBurst bounds how many triggers the advisory limiter admits at once.
	RateBurst int `yaml:"rate_burst"`
	// Retention is how long finished snapshots are kept before the
	// scheduled sweep prunes them.
	Retention time.Duration `yaml:"retention"`
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() *Config {
	return &Config{
		Complexity: ComplexityConfig{
			LinesWarn:    300,
			LinesCrit:    500,
			BranchesWarn: 10,
			BranchesCrit: 20,
			ImportsWarn:  10,
			NestingWarn:  4,
			WarnPenalty:  10,
			CritPenalty:  25,
		},
		Churn: ChurnConfig{
			WindowDays:  30,
			CommitsWarn: 5,
			CommitsCrit: 10,
			AuthorsWarn: 3,
			RatioWarn:   0.5,
			RatioCrit:   1.0,
			WarnPenalty: 10,
			CritPenalty: 25,
		},
		Historical: HistoricalConfig{
			FailureRateWarn:    0.25,
			FailureRateCrit:    0.5,
			RegressionRateWarn: 0.2,
			LowSampleCount:     10,
			WarnPenalty:        15,
			CritPenalty:        30,
		},
		Aggregator: AggregatorConfig{
			ConcernMedium:   50,
			ConcernHigh:     40,
			ConcernCritical: 25,
			MaxConcerns:     20,
			TrendImproving:  0.8,
			TrendDegrading:  0.5,
		},
		Prediction: PredictionConfig{
			ConfidenceThreshold:    0.3,
			HighComplexity:         50,
			HighChurn:              50,
			HighHistorical:         50,
			RecentChangeBurst:      5,
			UrgencyComplexityBoost: 0.2,
			UrgencyChurnBoost:      0.15,
			LowVariance:            100,
			LowVarianceBoost:       0.2,
			PatternMinConfidence:   0.5,
		},
		Action: ActionConfig{
			MaxItems:      5,
			MinConfidence: 0.5,
			MinUrgency:    0.5,
			LowRiskTTL:    48 * time.Hour,
			MediumRiskTTL: 72 * time.Hour,
			HighRiskTTL:   96 * time.Hour,
		},
		Learning: LearningConfig{
			RecentOutcomes:          100,
			MinSamplesForPattern:    3,
			MinSamplesForAutoFix:    5,
			AutoFixSuccessThreshold: 0.7,
			FragmentShare:           0.3,
			DeprecateMinDetections:  10,
			DeprecatePrecision:      0.3,
			SuspendMinAttempts:      5,
			SuspendSuccessRate:      0.4,
		},
		Observe: ObserveConfig{
			Interval:    30 * time.Minute,
			StableDelta: 0.5,
			RateBurst:   1,
			Retention:   90 * 24 * time.Hour,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
// A missing file is not an error: the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
