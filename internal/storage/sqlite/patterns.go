package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/cadencehq/foresight/internal/types"
)

const patternColumns = `
	id, project_id, name, pattern_type, category, detection_rules,
	file_patterns, status, precision_score, confidence_score, sample_count,
	has_auto_fix, auto_fix_template, auto_fix_confidence, auto_fix_risk,
	true_positives, false_positives, user_overrides, auto_fixes_attempted,
	auto_fix_successes, created_at, updated_at`

// CreatePattern inserts a new learned pattern.
func (s *SQLiteStorage) CreatePattern(ctx context.Context, pattern *types.LearnedPattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.New().String()
	}
	if pattern.Status == "" {
		pattern.Status = types.PatternLearning
	}
	now := time.Now()
	pattern.CreatedAt = now
	pattern.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learned_patterns (
			id, project_id, name, pattern_type, category, detection_rules,
			file_patterns, status, precision_score, confidence_score,
			sample_count, has_auto_fix, auto_fix_template, auto_fix_confidence,
			auto_fix_risk, true_positives, false_positives, user_overrides,
			auto_fixes_attempted, auto_fix_successes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pattern.ID, pattern.ProjectID, pattern.Name, pattern.PatternType,
		pattern.Category, marshalJSON(pattern.DetectionRules),
		marshalJSON(pattern.FilePatterns), pattern.Status,
		pattern.PrecisionScore, pattern.ConfidenceScore, pattern.SampleCount,
		pattern.HasAutoFix, pattern.AutoFixTemplate, pattern.AutoFixConfidence,
		string(pattern.AutoFixRisk), pattern.TruePositives,
		pattern.FalsePositives, pattern.UserOverrides,
		pattern.AutoFixesAttempted, pattern.AutoFixSuccesses,
		pattern.CreatedAt, pattern.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pattern: %w", err)
	}
	return nil
}

// GetPattern retrieves a pattern by ID. Returns nil, nil when missing.
func (s *SQLiteStorage) GetPattern(ctx context.Context, id string) (*types.LearnedPattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM learned_patterns WHERE id = ?`, id)
	return scanPattern(row)
}

// GetPatternByName retrieves a pattern by its project/category/name key.
// Returns nil, nil when missing.
func (s *SQLiteStorage) GetPatternByName(ctx context.Context, projectID, category, name string) (*types.LearnedPattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM learned_patterns
		 WHERE project_id = ? AND category = ? AND name = ?`,
		projectID, category, name)
	return scanPattern(row)
}

// ActivePatterns returns active patterns for a project, ordered by creation
// time. The ordering makes first-match pattern matching deterministic.
func (s *SQLiteStorage) ActivePatterns(ctx context.Context, projectID string) ([]*types.LearnedPattern, error) {
	return s.queryPatterns(ctx,
		`SELECT `+patternColumns+` FROM learned_patterns
		 WHERE project_id = ? AND status = ?
		 ORDER BY created_at ASC`,
		projectID, types.PatternActive)
}

// AllPatterns returns every pattern for a project regardless of status.
func (s *SQLiteStorage) AllPatterns(ctx context.Context, projectID string) ([]*types.LearnedPattern, error) {
	return s.queryPatterns(ctx,
		`SELECT `+patternColumns+` FROM learned_patterns
		 WHERE project_id = ?
		 ORDER BY created_at ASC`,
		projectID)
}

// UpdatePatternRules refreshes a pattern's detection rules and sample
// count after a new learning pass.
func (s *SQLiteStorage) UpdatePatternRules(ctx context.Context, id string, rules types.DetectionRules, filePatterns []string, sampleCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE learned_patterns
		SET detection_rules = ?, file_patterns = ?, sample_count = ?, updated_at = ?
		WHERE id = ?
	`, marshalJSON(rules), marshalJSON(filePatterns), sampleCount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update pattern rules: %w", err)
	}
	return nil
}

// EnablePatternAutoFix attaches an auto-fix template to a pattern and
// promotes it to active.
func (s *SQLiteStorage) EnablePatternAutoFix(ctx context.Context, id, template string, confidence float64, risk types.RiskLevel) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE learned_patterns
		SET has_auto_fix = 1, auto_fix_template = ?, auto_fix_confidence = ?,
		    auto_fix_risk = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, template, confidence, string(risk), types.PatternActive, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to enable pattern auto-fix: %w", err)
	}
	return nil
}

// SetPatternStatus moves a pattern through its lifecycle. When
// disableAutoFix is set the auto-fix flag is cleared as well (used when
// suspending a pattern whose fixes keep failing).
func (s *SQLiteStorage) SetPatternStatus(ctx context.Context, id string, status types.PatternStatus, disableAutoFix bool) error {
	query := `UPDATE learned_patterns SET status = ?, updated_at = ?`
	args := []interface{}{status, time.Now()}
	if disableAutoFix {
		query += `, has_auto_fix = 0`
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set pattern status: %w", err)
	}
	return nil
}

// IncrementPatternCounters applies feedback deltas to a pattern and
// recalculates its precision and confidence scores in the same statement,
// so concurrent feedback on different patterns never loses updates.
func (s *SQLiteStorage) IncrementPatternCounters(ctx context.Context, id string, deltas types.PatternCounterDeltas) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE learned_patterns
		SET true_positives = true_positives + ?,
		    false_positives = false_positives + ?,
		    user_overrides = user_overrides + ?,
		    auto_fixes_attempted = auto_fixes_attempted + ?,
		    auto_fix_successes = auto_fix_successes + ?,
		    precision_score = CASE
		        WHEN (true_positives + ? + false_positives + ?) > 0
		        THEN CAST(true_positives + ? AS REAL) / (true_positives + ? + false_positives + ?)
		        ELSE precision_score
		    END,
		    confidence_score = MIN(1.0, 0.3 + 0.05 * (true_positives + ?)),
		    updated_at = ?
		WHERE id = ?
	`, deltas.TruePositives, deltas.FalsePositives, deltas.UserOverrides,
		deltas.AutoFixesAttempted, deltas.AutoFixSuccesses,
		deltas.TruePositives, deltas.FalsePositives,
		deltas.TruePositives, deltas.TruePositives, deltas.FalsePositives,
		deltas.TruePositives, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to increment pattern counters: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) queryPatterns(ctx context.Context, query string, args ...interface{}) ([]*types.LearnedPattern, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*types.LearnedPattern
	for rows.Next() {
		p, err := scanPatternRow(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPattern(row *sql.Row) (*types.LearnedPattern, error) {
	p, err := scanPatternFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanPatternRow(rows *sql.Rows) (*types.LearnedPattern, error) {
	return scanPatternFrom(rows)
}

func scanPatternFrom(sc rowScanner) (*types.LearnedPattern, error) {
	var p types.LearnedPattern
	var rules, filePatterns, risk string

	err := sc.Scan(
		&p.ID, &p.ProjectID, &p.Name, &p.PatternType, &p.Category, &rules,
		&filePatterns, &p.Status, &p.PrecisionScore, &p.ConfidenceScore,
		&p.SampleCount, &p.HasAutoFix, &p.AutoFixTemplate,
		&p.AutoFixConfidence, &risk, &p.TruePositives, &p.FalsePositives,
		&p.UserOverrides, &p.AutoFixesAttempted, &p.AutoFixSuccesses,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pattern: %w", err)
	}

	if err := unmarshalJSON(rules, &p.DetectionRules); err != nil {
		return nil, fmt.Errorf("failed to parse detection rules: %w", err)
	}
	if err := unmarshalJSON(filePatterns, &p.FilePatterns); err != nil {
		return nil, fmt.Errorf("failed to parse file patterns: %w", err)
	}
	p.AutoFixRisk = types.RiskLevel(risk)

	return &p, nil
}
