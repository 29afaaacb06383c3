package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/cadencehq/foresight/internal/types"
)

// StorePredictions persists a batch of predictions as active debt rows.
func (s *SQLiteStorage) StorePredictions(ctx context.Context, predictions []*types.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range predictions {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.Status == "" {
			p.Status = types.PredictionActive
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO debt_predictions (
				id, project_id, file, type, title, description, confidence,
				urgency, severity, suggested_action, micro_refactoring, effort,
				signals, flags, pattern_id, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.ProjectID, p.File, p.Type, p.Title, p.Description,
			p.Confidence, p.Urgency, p.Severity, p.SuggestedAction,
			p.MicroRefactoring, p.Effort, marshalJSON(p.Signals),
			marshalJSON(p.Flags), nullString(p.PatternID), p.Status, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert prediction for %s: %w", p.File, err)
		}
	}

	return tx.Commit()
}

// GetPrediction retrieves a debt prediction by ID. Returns nil, nil when
// missing.
func (s *SQLiteStorage) GetPrediction(ctx context.Context, id string) (*types.Prediction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, file, type, title, description, confidence,
		       urgency, severity, suggested_action, micro_refactoring, effort,
		       signals, flags, pattern_id, status, created_at
		FROM debt_predictions
		WHERE id = ?
	`, id)

	var p types.Prediction
	var signals, flags string
	var patternID sql.NullString

	err := row.Scan(
		&p.ID, &p.ProjectID, &p.File, &p.Type, &p.Title, &p.Description,
		&p.Confidence, &p.Urgency, &p.Severity, &p.SuggestedAction,
		&p.MicroRefactoring, &p.Effort, &signals, &flags, &patternID,
		&p.Status, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prediction: %w", err)
	}

	if err := unmarshalJSON(signals, &p.Signals); err != nil {
		return nil, fmt.Errorf("failed to parse prediction signals: %w", err)
	}
	if err := unmarshalJSON(flags, &p.Flags); err != nil {
		return nil, fmt.Errorf("failed to parse prediction flags: %w", err)
	}
	if patternID.Valid {
		p.PatternID = patternID.String
	}
	return &p, nil
}

// ListPredictions returns predictions for a project filtered by status.
// An empty status returns all. Results are ordered by urgency descending.
func (s *SQLiteStorage) ListPredictions(ctx context.Context, projectID string, status types.PredictionStatus, limit int) ([]*types.Prediction, error) {
	query := `
		SELECT id, project_id, file, type, title, description, confidence,
		       urgency, severity, suggested_action, micro_refactoring, effort,
		       signals, flags, pattern_id, status, created_at
		FROM debt_predictions
		WHERE project_id = ?`
	args := []interface{}{projectID}

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY urgency DESC, created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*types.Prediction
	for rows.Next() {
		var p types.Prediction
		var signals, flags string
		var patternID sql.NullString

		err := rows.Scan(
			&p.ID, &p.ProjectID, &p.File, &p.Type, &p.Title, &p.Description,
			&p.Confidence, &p.Urgency, &p.Severity, &p.SuggestedAction,
			&p.MicroRefactoring, &p.Effort, &signals, &flags, &patternID,
			&p.Status, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}

		if err := unmarshalJSON(signals, &p.Signals); err != nil {
			return nil, fmt.Errorf("failed to parse prediction signals: %w", err)
		}
		if err := unmarshalJSON(flags, &p.Flags); err != nil {
			return nil, fmt.Errorf("failed to parse prediction flags: %w", err)
		}
		if patternID.Valid {
			p.PatternID = patternID.String
		}

		predictions = append(predictions, &p)
	}

	return predictions, rows.Err()
}

// UpdatePredictionStatus moves a debt prediction through its lifecycle
// (active → addressed or dismissed). Unknown IDs are a silent no-op.
func (s *SQLiteStorage) UpdatePredictionStatus(ctx context.Context, id string, status types.PredictionStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE debt_predictions SET status = ? WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update prediction status: %w", err)
	}
	return nil
}

// nullString converts "" to NULL for nullable TEXT columns.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
