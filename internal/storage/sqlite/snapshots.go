package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/cadencehq/foresight/internal/types"
)

// SnapshotResult carries the fields filled in when a snapshot completes.
type SnapshotResult struct {
	OverallScore    float64
	HealthTrend     types.HealthTrend
	FilesAnalyzed   int
	ConcernCount    int
	PredictionCount int
}

// CreateSnapshot inserts a new running snapshot row.
func (s *SQLiteStorage) CreateSnapshot(ctx context.Context, snapshot *types.AnalysisSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.Status == "" {
		snapshot.Status = types.SnapshotRunning
	}
	if snapshot.StartedAt.IsZero() {
		snapshot.StartedAt = time.Now()
	}
	if snapshot.SnapshotType == "" {
		snapshot.SnapshotType = "full"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_snapshots (
			id, project_id, snapshot_type, trigger_source, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`, snapshot.ID, snapshot.ProjectID, snapshot.SnapshotType,
		string(snapshot.TriggerSource), snapshot.Status, snapshot.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot by ID. Returns nil, nil when missing.
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, id string) (*types.AnalysisSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, snapshot_type, trigger_source, status,
		       overall_score, health_trend, files_analyzed, concern_count,
		       prediction_count, error, started_at, completed_at
		FROM analysis_snapshots
		WHERE id = ?
	`, id)
	return scanSnapshot(row)
}

// CompleteSnapshot finalizes a running snapshot with its results.
func (s *SQLiteStorage) CompleteSnapshot(ctx context.Context, id string, result SnapshotResult) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_snapshots
		SET status = ?, overall_score = ?, health_trend = ?, files_analyzed = ?,
		    concern_count = ?, prediction_count = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, types.SnapshotCompleted, result.OverallScore, string(result.HealthTrend),
		result.FilesAnalyzed, result.ConcernCount, result.PredictionCount,
		time.Now(), id, types.SnapshotRunning)
	if err != nil {
		return fmt.Errorf("failed to complete snapshot: %w", err)
	}

	// Completing a missing or already-finished snapshot is a no-op:
	// observation must tolerate duplicate or out-of-order triggers.
	_, _ = res.RowsAffected()
	return nil
}

// FailSnapshot marks a running snapshot as failed with a reason.
func (s *SQLiteStorage) FailSnapshot(ctx context.Context, id string, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_snapshots
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, types.SnapshotFailed, reason, time.Now(), id, types.SnapshotRunning)
	if err != nil {
		return fmt.Errorf("failed to fail snapshot: %w", err)
	}
	return nil
}

// LatestCompletedSnapshot returns the most recent completed snapshot for a
// project, or nil, nil when the project has none.
func (s *SQLiteStorage) LatestCompletedSnapshot(ctx context.Context, projectID string) (*types.AnalysisSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, snapshot_type, trigger_source, status,
		       overall_score, health_trend, files_analyzed, concern_count,
		       prediction_count, error, started_at, completed_at
		FROM analysis_snapshots
		WHERE project_id = ? AND status = ?
		ORDER BY completed_at DESC
		LIMIT 1
	`, projectID, types.SnapshotCompleted)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*types.AnalysisSnapshot, error) {
	var snap types.AnalysisSnapshot
	var trigger, trend sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&snap.ID, &snap.ProjectID, &snap.SnapshotType, &trigger, &snap.Status,
		&snap.OverallScore, &trend, &snap.FilesAnalyzed, &snap.ConcernCount,
		&snap.PredictionCount, &snap.Error, &snap.StartedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	if trigger.Valid {
		snap.TriggerSource = types.TriggerSource(trigger.String)
	}
	if trend.Valid {
		snap.HealthTrend = types.HealthTrend(trend.String)
	}
	if completedAt.Valid {
		snap.CompletedAt = &completedAt.Time
	}
	return &snap, nil
}
