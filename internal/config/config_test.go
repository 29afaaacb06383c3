package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 30, cfg.Churn.WindowDays)
	require.Equal(t, 0.3, cfg.Prediction.ConfidenceThreshold)
	require.Equal(t, 3, cfg.Learning.MinSamplesForPattern)
	require.Equal(t, 5, cfg.Learning.MinSamplesForAutoFix)
	require.Equal(t, 0.7, cfg.Learning.AutoFixSuccessThreshold)
	require.Equal(t, 48*time.Hour, cfg.Action.LowRiskTTL)
	require.Equal(t, 96*time.Hour, cfg.Action.HighRiskTTL)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foresight.yaml")
	content := `
prediction:
  confidence_threshold: 0.45
learning:
  min_samples_for_pattern: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden values
	require.Equal(t, 0.45, cfg.Prediction.ConfidenceThreshold)
	require.Equal(t, 7, cfg.Learning.MinSamplesForPattern)

	// Untouched defaults survive
	require.Equal(t, 30, cfg.Churn.WindowDays)
	require.Equal(t, 5, cfg.Learning.MinSamplesForAutoFix)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prediction: ["), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
