// Package action converts predictions into concrete, time-boxed auto-fix
// items and manages their approval queue.
package action

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/types"
)

// Store is the slice of the persistence layer the action engine needs.
type Store interface {
	GetPattern(ctx context.Context, id string) (*types.LearnedPattern, error)
	CreateAutoFix(ctx context.Context, item *types.AutoFixItem) error
	GetAutoFix(ctx context.Context, id string) (*types.AutoFixItem, error)
	PendingAutoFixes(ctx context.Context, projectID string) ([]*types.AutoFixItem, error)
	TransitionAutoFix(ctx context.Context, id string, next types.AutoFixStatus) error
	ExpireAutoFixes(ctx context.Context, now time.Time) (int, error)
}

// RequirementRefiner optionally rewrites a generated requirement into a
// sharper instruction. Refinement is best effort and never blocks
// generation.
type RequirementRefiner interface {
	RefineRequirement(ctx context.Context, requirement string, targetFiles []string) (string, error)
}

// Engine generates and manages auto-fix items.
type Engine struct {
	store   Store
	refiner RequirementRefiner
	cfg     config.ActionConfig
}

// NewEngine creates an action engine. refiner may be nil.
func NewEngine(store Store, refiner RequirementRefiner, cfg config.ActionConfig) *Engine {
	return &Engine{store: store, refiner: refiner, cfg: cfg}
}

// GenerateAutoFixes filters predictions by the confidence and urgency
// floors, ranks them by urgency x confidence, and converts the top ones
// into pending auto-fix items. Predictions matched to a learned pattern
// with an auto-fix template use that template; the rest fall back to the
// built-in library.
func (e *Engine) GenerateAutoFixes(ctx context.Context, projectID string, predictions []*types.Prediction) ([]*types.AutoFixItem, error) {
	candidates := make([]*types.Prediction, 0, len(predictions))
	for _, p := range predictions {
		if p.Confidence >= e.cfg.MinConfidence && p.Urgency >= e.cfg.MinUrgency {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Urgency*candidates[i].Confidence >
			candidates[j].Urgency*candidates[j].Confidence
	})

	var items []*types.AutoFixItem
	for _, p := range candidates {
		if len(items) >= e.cfg.MaxItems {
			break
		}
		item, err := e.buildItem(ctx, projectID, p)
		if err != nil {
			return items, err
		}
		if item == nil {
			continue
		}
		if err := e.store.CreateAutoFix(ctx, item); err != nil {
			return items, fmt.Errorf("storing auto-fix for %s: %w", p.File, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// buildItem converts one prediction into an auto-fix item, or nil when
// no template applies.
func (e *Engine) buildItem(ctx context.Context, projectID string, p *types.Prediction) (*types.AutoFixItem, error) {
	var (
		title       string
		requirement string
		risk        types.RiskLevel
		priority    int
		patternID   string
	)

	if pattern, err := e.learnedTemplate(ctx, p); err != nil {
		return nil, err
	} else if pattern != nil {
		title = "[Learned] " + pattern.Name
		requirement = renderTemplate(pattern.AutoFixTemplate, p.File)
		risk = pattern.AutoFixRisk
		priority = 1
		patternID = pattern.ID
	} else {
		tmpl := selectTemplate(p)
		if tmpl == nil {
			return nil, nil
		}
		title = tmpl.title
		requirement = renderTemplate(tmpl.requirement, p.File)
		risk = tmpl.risk
		priority = tmpl.priority
	}

	requirement = e.refine(ctx, requirement, []string{p.File})

	now := time.Now()
	return &types.AutoFixItem{
		ProjectID:            projectID,
		PredictionID:         p.ID,
		PatternID:            patternID,
		Title:                title,
		Description:          p.Description,
		TargetFiles:          []string{p.File},
		GeneratedRequirement: requirement,
		Priority:             priority,
		UrgencyScore:         p.Urgency,
		ConfidenceScore:      p.Confidence,
		RiskLevel:            risk,
		Status:               types.AutoFixPending,
		CreatedAt:            now,
		ExpiresAt:            now.Add(e.ttl(risk)),
	}, nil
}

// learnedTemplate resolves the prediction's matched pattern when it
// carries a usable auto-fix template.
func (e *Engine) learnedTemplate(ctx context.Context, p *types.Prediction) (*types.LearnedPattern, error) {
	if p.PatternID == "" {
		return nil, nil
	}
	pattern, err := e.store.GetPattern(ctx, p.PatternID)
	if err != nil {
		return nil, fmt.Errorf("loading pattern %s: %w", p.PatternID, err)
	}
	if pattern == nil || !pattern.HasAutoFix || pattern.AutoFixTemplate == "" {
		return nil, nil
	}
	return pattern, nil
}

func (e *Engine) refine(ctx context.Context, requirement string, files []string) string {
	if e.refiner == nil {
		return requirement
	}
	refined, err := e.refiner.RefineRequirement(ctx, requirement, files)
	if err != nil {
		log.Printf("action: requirement refinement failed, using template text: %v", err)
		return requirement
	}
	return refined
}

// ttl maps risk to the item's expiry window: riskier fixes get a longer
// review window before they expire.
func (e *Engine) ttl(risk types.RiskLevel) time.Duration {
	switch risk {
	case types.RiskHigh:
		return e.cfg.HighRiskTTL
	case types.RiskMedium:
		return e.cfg.MediumRiskTTL
	default:
		return e.cfg.LowRiskTTL
	}
}

// Approve moves a pending item to approved.
func (e *Engine) Approve(ctx context.Context, id string) error {
	return e.store.TransitionAutoFix(ctx, id, types.AutoFixApproved)
}

// Reject moves a pending item to rejected.
func (e *Engine) Reject(ctx context.Context, id string) error {
	return e.store.TransitionAutoFix(ctx, id, types.AutoFixRejected)
}

// Pending lists the project's items awaiting review.
func (e *Engine) Pending(ctx context.Context, projectID string) ([]*types.AutoFixItem, error) {
	return e.store.PendingAutoFixes(ctx, projectID)
}

// ExpireOldAutoFixes sweeps every non-terminal item past its expiry.
func (e *Engine) ExpireOldAutoFixes(ctx context.Context) (int, error) {
	return e.store.ExpireAutoFixes(ctx, time.Now())
}
