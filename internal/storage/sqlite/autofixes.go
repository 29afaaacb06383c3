package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/cadencehq/foresight/internal/types"
)

const autoFixColumns = `
	id, project_id, prediction_id, pattern_id, title, description,
	target_files, generated_requirement, priority, urgency_score,
	confidence_score, risk_level, status, created_at, expires_at`

// CreateAutoFix inserts a new pending auto-fix item.
func (s *SQLiteStorage) CreateAutoFix(ctx context.Context, item *types.AutoFixItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = types.AutoFixPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_fix_items (
			id, project_id, prediction_id, pattern_id, title, description,
			target_files, generated_requirement, priority, urgency_score,
			confidence_score, risk_level, status, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.ProjectID, nullString(item.PredictionID),
		nullString(item.PatternID), item.Title, item.Description,
		marshalJSON(item.TargetFiles), item.GeneratedRequirement,
		item.Priority, item.UrgencyScore, item.ConfidenceScore,
		string(item.RiskLevel), item.Status, item.CreatedAt, item.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert auto-fix item: %w", err)
	}
	return nil
}

// GetAutoFix retrieves an auto-fix item by ID. Returns nil, nil when missing.
func (s *SQLiteStorage) GetAutoFix(ctx context.Context, id string) (*types.AutoFixItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+autoFixColumns+` FROM auto_fix_items WHERE id = ?`, id)
	item, err := scanAutoFix(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

// PendingAutoFixes returns items awaiting review, most urgent first.
func (s *SQLiteStorage) PendingAutoFixes(ctx context.Context, projectID string) ([]*types.AutoFixItem, error) {
	return s.queryAutoFixes(ctx,
		`SELECT `+autoFixColumns+` FROM auto_fix_items
		 WHERE project_id = ? AND status = ?
		 ORDER BY urgency_score * confidence_score DESC, created_at ASC`,
		projectID, types.AutoFixPending)
}

// ApprovedAutoFixes returns items approved but not yet executed.
func (s *SQLiteStorage) ApprovedAutoFixes(ctx context.Context, projectID string) ([]*types.AutoFixItem, error) {
	return s.queryAutoFixes(ctx,
		`SELECT `+autoFixColumns+` FROM auto_fix_items
		 WHERE project_id = ? AND status = ?
		 ORDER BY urgency_score * confidence_score DESC, created_at ASC`,
		projectID, types.AutoFixApproved)
}

// TransitionAutoFix moves an item to the next status, enforcing the
// allowed transition graph. Unknown IDs and forbidden transitions both
// return an error, since callers act on the resulting state.
func (s *SQLiteStorage) TransitionAutoFix(ctx context.Context, id string, next types.AutoFixStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current types.AutoFixStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM auto_fix_items WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("auto-fix item not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to read auto-fix status: %w", err)
	}

	if !current.CanTransitionTo(next) {
		return fmt.Errorf("invalid auto-fix transition %s -> %s", current, next)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auto_fix_items SET status = ? WHERE id = ?`, next, id)
	if err != nil {
		return fmt.Errorf("failed to transition auto-fix: %w", err)
	}

	return tx.Commit()
}

// ExpireAutoFixes sweeps pending, approved, and executing items past
// their expiry and marks them expired. Expiring a stale executing item
// frees the project's one-fix-in-flight slot when a completion never
// arrived. Returns the number of items swept.
func (s *SQLiteStorage) ExpireAutoFixes(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auto_fix_items
		SET status = ?
		WHERE status IN (?, ?, ?) AND expires_at < ?
	`, types.AutoFixExpired, types.AutoFixPending, types.AutoFixApproved,
		types.AutoFixExecuting, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire auto-fixes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// HasExecutingAutoFix reports whether the project already has a fix in
// flight. At most one auto-fix executes per project at a time.
func (s *SQLiteStorage) HasExecutingAutoFix(ctx context.Context, projectID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auto_fix_items
		WHERE project_id = ? AND status = ?
	`, projectID, types.AutoFixExecuting).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count executing auto-fixes: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStorage) queryAutoFixes(ctx context.Context, query string, args ...interface{}) ([]*types.AutoFixItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-fixes: %w", err)
	}
	defer rows.Close()

	var items []*types.AutoFixItem
	for rows.Next() {
		item, err := scanAutoFix(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanAutoFix(sc rowScanner) (*types.AutoFixItem, error) {
	var item types.AutoFixItem
	var predictionID, patternID sql.NullString
	var targetFiles, risk string

	err := sc.Scan(
		&item.ID, &item.ProjectID, &predictionID, &patternID, &item.Title,
		&item.Description, &targetFiles, &item.GeneratedRequirement,
		&item.Priority, &item.UrgencyScore, &item.ConfidenceScore, &risk,
		&item.Status, &item.CreatedAt, &item.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan auto-fix item: %w", err)
	}

	if err := unmarshalJSON(targetFiles, &item.TargetFiles); err != nil {
		return nil, fmt.Errorf("failed to parse target files: %w", err)
	}
	item.RiskLevel = types.RiskLevel(risk)
	if predictionID.Valid {
		item.PredictionID = predictionID.String
	}
	if patternID.Valid {
		item.PatternID = patternID.String
	}

	return &item, nil
}
