package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cadencehq/foresight/internal/types"
)

// HealthSummary builds the project health read model from the latest
// completed snapshot. Returns nil, nil when the project has no completed
// snapshots yet.
func (s *SQLiteStorage) HealthSummary(ctx context.Context, projectID string) (*types.HealthSummary, error) {
	latest, err := s.LatestCompletedSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	var snapshotCount int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM analysis_snapshots
		WHERE project_id = ? AND status = ?
	`, projectID, types.SnapshotCompleted).Scan(&snapshotCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count snapshots: %w", err)
	}

	updatedAt := latest.StartedAt
	if latest.CompletedAt != nil {
		updatedAt = *latest.CompletedAt
	}

	return &types.HealthSummary{
		ProjectID:     projectID,
		OverallScore:  latest.OverallScore,
		HealthTrend:   latest.HealthTrend,
		ConcernCount:  latest.ConcernCount,
		SnapshotID:    latest.ID,
		SnapshotCount: snapshotCount,
		UpdatedAt:     updatedAt,
	}, nil
}

// LearningProgress builds the learning read model: pattern inventory,
// outcome history, and prediction accuracy. Accuracy counts only
// predictions that received feedback, so unresolved predictions never
// drag the ratio down.
func (s *SQLiteStorage) LearningProgress(ctx context.Context, projectID string) (*types.LearningProgress, error) {
	progress := &types.LearningProgress{ProjectID: projectID}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN has_auto_fix = 1 THEN 1 ELSE 0 END), 0)
		FROM learned_patterns
		WHERE project_id = ?
	`, types.PatternActive, projectID).Scan(
		&progress.TotalPatterns, &progress.ActivePatterns, &progress.AutoFixPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to count patterns: %w", err)
	}

	var successes int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0)
		FROM execution_outcomes
		WHERE project_id = ? AND completed_at IS NOT NULL
	`, projectID).Scan(&progress.TotalOutcomes, &successes)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	if progress.TotalOutcomes > 0 {
		progress.OutcomeSuccessRate = float64(successes) / float64(progress.TotalOutcomes)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN status != ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM debt_predictions
		WHERE project_id = ?
	`, types.PredictionActive, types.PredictionAddressed, projectID).Scan(
		&progress.PredictionsTotal, &progress.PredictionsAccurate)
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	return progress, nil
}

// PruneSnapshots deletes completed and failed snapshot rows older than the
// retention window. Running rows are never pruned.
func (s *SQLiteStorage) PruneSnapshots(ctx context.Context, projectID string, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM analysis_snapshots
		WHERE project_id = ? AND status != ? AND started_at < ?
	`, projectID, types.SnapshotRunning, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
