package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/cadencehq/foresight/internal/types"
)

const outcomeColumns = `
	id, project_id, execution_id, prediction_id, auto_fix_id, execution_type,
	requirement_content, target_files, success, files_changed, lines_added,
	lines_removed, tokens_used, pre_health_score, post_health_score,
	health_improvement, outcome_rating, regression_detected, new_issues,
	started_at, completed_at`

// CreateOutcome appends a new outcome row at execution start. Only the
// pre-state fields are meaningful at this point.
func (s *SQLiteStorage) CreateOutcome(ctx context.Context, outcome *types.ExecutionOutcome) error {
	if outcome.ExecutionID == "" {
		return fmt.Errorf("outcome execution ID is required")
	}
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.StartedAt.IsZero() {
		outcome.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_outcomes (
			id, project_id, execution_id, prediction_id, auto_fix_id,
			execution_type, requirement_content, target_files,
			pre_health_score, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, outcome.ID, outcome.ProjectID, outcome.ExecutionID,
		nullString(outcome.PredictionID), nullString(outcome.AutoFixID),
		outcome.ExecutionType, outcome.RequirementContent,
		marshalJSON(outcome.TargetFiles), outcome.PreHealthScore,
		outcome.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// GetOutcomeByExecution retrieves an outcome by its execution ID.
// Returns nil, nil when missing.
func (s *SQLiteStorage) GetOutcomeByExecution(ctx context.Context, executionID string) (*types.ExecutionOutcome, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+outcomeColumns+` FROM execution_outcomes WHERE execution_id = ?`,
		executionID)
	outcome, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return outcome, err
}

// CompleteOutcome fills in the post-state fields of an open outcome row.
// The guard on completed_at makes completion a one-shot: re-completing an
// already-closed outcome or an unknown execution is a silent no-op.
func (s *SQLiteStorage) CompleteOutcome(ctx context.Context, outcome *types.ExecutionOutcome) error {
	completedAt := time.Now()
	if outcome.CompletedAt != nil {
		completedAt = *outcome.CompletedAt
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE execution_outcomes
		SET success = ?, files_changed = ?, lines_added = ?, lines_removed = ?,
		    tokens_used = ?, post_health_score = ?, health_improvement = ?,
		    outcome_rating = ?, regression_detected = ?, new_issues = ?,
		    completed_at = ?
		WHERE execution_id = ? AND completed_at IS NULL
	`, nullBool(outcome.Success), marshalJSON(outcome.FilesChanged),
		outcome.LinesAdded, outcome.LinesRemoved, outcome.TokensUsed,
		outcome.PostHealthScore, outcome.HealthImprovement,
		string(outcome.OutcomeRating), outcome.RegressionDetected,
		outcome.NewIssues, completedAt, outcome.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to complete outcome: %w", err)
	}
	return nil
}

// RecentOutcomes returns the most recently completed outcomes for a
// project, newest first.
func (s *SQLiteStorage) RecentOutcomes(ctx context.Context, projectID string, limit int) ([]*types.ExecutionOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM execution_outcomes
		WHERE project_id = ? AND completed_at IS NOT NULL
		ORDER BY completed_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*types.ExecutionOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// FileOutcomeStats aggregates per-file execution history for the given
// files. An empty file list aggregates every file that appears in the
// project's completed outcomes. Target files are stored as JSON arrays,
// so the aggregation walks completed outcomes in Go rather than joining
// in SQL.
func (s *SQLiteStorage) FileOutcomeStats(ctx context.Context, projectID string, files []string) (map[string]types.FileOutcomeStats, error) {
	stats := make(map[string]types.FileOutcomeStats, len(files))

	var wanted map[string]bool
	if len(files) > 0 {
		wanted = make(map[string]bool, len(files))
		for _, f := range files {
			wanted[f] = true
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT target_files, success, regression_detected
		FROM execution_outcomes
		WHERE project_id = ? AND completed_at IS NOT NULL
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var targetFiles string
		var success sql.NullBool
		var regression bool
		if err := rows.Scan(&targetFiles, &success, &regression); err != nil {
			return nil, fmt.Errorf("failed to scan outcome stats: %w", err)
		}

		var targets []string
		if err := unmarshalJSON(targetFiles, &targets); err != nil {
			continue
		}
		for _, f := range targets {
			if wanted != nil && !wanted[f] {
				continue
			}
			st := stats[f]
			st.Executions++
			if success.Valid && !success.Bool {
				st.Failures++
			}
			if regression {
				st.Regressions++
			}
			stats[f] = st
		}
	}
	return stats, rows.Err()
}

// SuccessRateSince returns the execution success rate over a recent
// window, along with how many completed executions informed it.
func (s *SQLiteStorage) SuccessRateSince(ctx context.Context, projectID string, days int) (float64, int, error) {
	since := time.Now().AddDate(0, 0, -days)
	var samples, successes int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0)
		FROM execution_outcomes
		WHERE project_id = ? AND completed_at >= ? AND success IS NOT NULL
	`, projectID, since).Scan(&samples, &successes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute success rate: %w", err)
	}
	if samples == 0 {
		return 0, 0, nil
	}
	return float64(successes) / float64(samples), samples, nil
}

func scanOutcome(sc rowScanner) (*types.ExecutionOutcome, error) {
	var o types.ExecutionOutcome
	var predictionID, autoFixID sql.NullString
	var targetFiles, filesChanged, rating string
	var success sql.NullBool
	var preHealth, postHealth, improvement sql.NullFloat64
	var completedAt sql.NullTime

	err := sc.Scan(
		&o.ID, &o.ProjectID, &o.ExecutionID, &predictionID, &autoFixID,
		&o.ExecutionType, &o.RequirementContent, &targetFiles, &success,
		&filesChanged, &o.LinesAdded, &o.LinesRemoved, &o.TokensUsed,
		&preHealth, &postHealth, &improvement, &rating,
		&o.RegressionDetected, &o.NewIssues, &o.StartedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	if err := unmarshalJSON(targetFiles, &o.TargetFiles); err != nil {
		return nil, fmt.Errorf("failed to parse target files: %w", err)
	}
	if err := unmarshalJSON(filesChanged, &o.FilesChanged); err != nil {
		return nil, fmt.Errorf("failed to parse files changed: %w", err)
	}
	if predictionID.Valid {
		o.PredictionID = predictionID.String
	}
	if autoFixID.Valid {
		o.AutoFixID = autoFixID.String
	}
	if success.Valid {
		o.Success = &success.Bool
	}
	if preHealth.Valid {
		o.PreHealthScore = &preHealth.Float64
	}
	if postHealth.Valid {
		o.PostHealthScore = &postHealth.Float64
	}
	if improvement.Valid {
		o.HealthImprovement = &improvement.Float64
	}
	o.OutcomeRating = types.OutcomeRating(rating)
	if completedAt.Valid {
		o.CompletedAt = &completedAt.Time
	}

	return &o, nil
}

// nullBool converts a *bool to a driver-friendly value.
func nullBool(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}
