// Package observe owns the loop's trigger plumbing: a subscriber
// registry for observation triggers, the snapshot lifecycle around each
// cycle, and the per-project interval scheduler. It is glue between the
// live trigger sources (file watchers, the execution pipeline, cron,
// humans) and whoever runs the actual analysis.
package observe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cadencehq/foresight/internal/config"
	"github.com/cadencehq/foresight/internal/storage/sqlite"
	"github.com/cadencehq/foresight/internal/types"
)

var (
	// ErrCycleInFlight is returned when a cycle is requested while another
	// snapshot for the same project is still running.
	ErrCycleInFlight = errors.New("observation cycle already in flight")
	// ErrRateLimited is returned when the advisory limiter rejects a
	// trigger. Manual triggers bypass it.
	ErrRateLimited = errors.New("observation rate limit exceeded")
	// ErrClosed is returned for operations on a closed service.
	ErrClosed = errors.New("observation service is closed")
)

// Store is the slice of the persistence layer the service needs.
type Store interface {
	CreateSnapshot(ctx context.Context, snapshot *types.AnalysisSnapshot) error
	CompleteSnapshot(ctx context.Context, id string, result sqlite.SnapshotResult) error
	FailSnapshot(ctx context.Context, id string, reason string) error
	HealthSummary(ctx context.Context, projectID string) (*types.HealthSummary, error)
	PruneSnapshots(ctx context.Context, projectID string, olderThan time.Time) (int, error)
}

// TriggerHandler receives observation triggers. Handlers run on the
// emitting goroutine and must return quickly.
type TriggerHandler func(projectID string, source types.TriggerSource)

// Service routes observation triggers and tracks cycle state. All state
// beyond the in-flight cache lives in the injected store; the service
// itself holds no analysis results.
type Service struct {
	store Store
	cfg   config.ObserveConfig

	mu          sync.Mutex
	closed      bool
	subscribers map[int]TriggerHandler
	nextSubID   int
	inFlight    map[string]string
	limiters    map[string]*rate.Limiter
	schedules   map[string]chan struct{}
	wg          sync.WaitGroup
}

// NewService creates an observation service around the given store.
func NewService(store Store, cfg config.ObserveConfig) *Service {
	return &Service{
		store:       store,
		cfg:         cfg,
		subscribers: make(map[int]TriggerHandler),
		inFlight:    make(map[string]string),
		limiters:    make(map[string]*rate.Limiter),
		schedules:   make(map[string]chan struct{}),
	}
}

// Subscribe registers a trigger handler and returns an unsubscribe
// function.
func (s *Service) Subscribe(handler TriggerHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Emit delivers a trigger to all subscribers. Emission on a closed
// service is a no-op.
func (s *Service) Emit(projectID string, source types.TriggerSource) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	handlers := make([]TriggerHandler, 0, len(s.subscribers))
	for _, h := range s.subscribers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(projectID, source)
	}
}

// FileChanged emits a file-change trigger.
func (s *Service) FileChanged(projectID string) {
	s.Emit(projectID, types.TriggerFileChange)
}

// ExecutionCompleted emits a post-execution trigger. This satisfies the
// execution pipeline's emitter contract.
func (s *Service) ExecutionCompleted(projectID string) {
	s.Emit(projectID, types.TriggerExecutionComplete)
}

// ManualTrigger emits a user-requested trigger.
func (s *Service) ManualTrigger(projectID string) {
	s.Emit(projectID, types.TriggerManual)
}

// StartSnapshot begins a new observation cycle: it enforces the
// one-cycle-per-project guard and the advisory rate limit, then records
// a running snapshot. Manual triggers bypass the limiter, never the
// in-flight check.
func (s *Service) StartSnapshot(ctx context.Context, projectID string, source types.TriggerSource) (*types.AnalysisSnapshot, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("unknown trigger source %q", source)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if running, ok := s.inFlight[projectID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: snapshot %s", ErrCycleInFlight, running)
	}
	if source != types.TriggerManual && !s.limiterLocked(projectID).Allow() {
		s.mu.Unlock()
		return nil, ErrRateLimited
	}
	// Reserve the slot before the insert so a concurrent trigger cannot
	// slip in between.
	s.inFlight[projectID] = "pending"
	s.mu.Unlock()

	snapshot := &types.AnalysisSnapshot{
		ProjectID:     projectID,
		TriggerSource: source,
	}
	if err := s.store.CreateSnapshot(ctx, snapshot); err != nil {
		s.clearInFlight(projectID)
		return nil, fmt.Errorf("creating snapshot: %w", err)
	}

	s.mu.Lock()
	s.inFlight[projectID] = snapshot.ID
	s.mu.Unlock()

	log.Printf("observe: project %s cycle started snapshot=%s trigger=%s",
		projectID, snapshot.ID, source)
	return snapshot, nil
}

// CompleteSnapshot finishes a running cycle with its results and frees
// the project's in-flight slot.
func (s *Service) CompleteSnapshot(ctx context.Context, snapshot *types.AnalysisSnapshot, result sqlite.SnapshotResult) error {
	defer s.clearInFlight(snapshot.ProjectID)

	if err := s.store.CompleteSnapshot(ctx, snapshot.ID, result); err != nil {
		return fmt.Errorf("completing snapshot: %w", err)
	}
	log.Printf("observe: project %s cycle completed snapshot=%s score=%.1f trend=%s",
		snapshot.ProjectID, snapshot.ID, result.OverallScore, result.HealthTrend)
	return nil
}

// FailSnapshot marks a running cycle as failed and frees the project's
// in-flight slot. A failed cycle is not an error for the caller.
func (s *Service) FailSnapshot(ctx context.Context, snapshot *types.AnalysisSnapshot, reason string) {
	defer s.clearInFlight(snapshot.ProjectID)

	if err := s.store.FailSnapshot(ctx, snapshot.ID, reason); err != nil {
		log.Printf("observe: recording snapshot failure for %s: %v", snapshot.ID, err)
		return
	}
	log.Printf("observe: project %s cycle failed snapshot=%s: %s",
		snapshot.ProjectID, snapshot.ID, reason)
}

// HealthDelta compares a fresh overall score against the last stored
// summary. Small moves read as stable; a project with no history is
// stable by definition.
func (s *Service) HealthDelta(ctx context.Context, projectID string, newScore float64) (float64, types.HealthTrend, error) {
	summary, err := s.store.HealthSummary(ctx, projectID)
	if err != nil {
		return 0, types.TrendStable, fmt.Errorf("loading health summary: %w", err)
	}
	if summary == nil {
		return 0, types.TrendStable, nil
	}

	delta := newScore - summary.OverallScore
	switch {
	case delta >= s.cfg.StableDelta:
		return delta, types.TrendImproving, nil
	case delta <= -s.cfg.StableDelta:
		return delta, types.TrendDegrading, nil
	default:
		return delta, types.TrendStable, nil
	}
}

// EnableSchedule starts the interval scheduler for a project. Each tick
// emits a scheduled trigger and runs the snapshot retention sweep.
// Enabling an already-scheduled project is a no-op.
func (s *Service) EnableSchedule(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.schedules[projectID]; ok {
		return
	}

	stop := make(chan struct{})
	s.schedules[projectID] = stop
	s.wg.Add(1)
	go s.runSchedule(projectID, stop)
	log.Printf("observe: project %s scheduled every %s", projectID, s.cfg.Interval)
}

// DisableSchedule stops the interval scheduler for a project.
func (s *Service) DisableSchedule(projectID string) {
	s.mu.Lock()
	stop, ok := s.schedules[projectID]
	if ok {
		delete(s.schedules, projectID)
	}
	s.mu.Unlock()

	if ok {
		close(stop)
		log.Printf("observe: project %s schedule disabled", projectID)
	}
}

func (s *Service) runSchedule(projectID string, stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Emit(projectID, types.TriggerScheduled)
			s.pruneOldSnapshots(projectID)
		}
	}
}

func (s *Service) pruneOldSnapshots(projectID string) {
	if s.cfg.Retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruned, err := s.store.PruneSnapshots(ctx, projectID, time.Now().Add(-s.cfg.Retention))
	if err != nil {
		log.Printf("observe: pruning snapshots for %s: %v", projectID, err)
		return
	}
	if pruned > 0 {
		log.Printf("observe: project %s pruned %d old snapshots", projectID, pruned)
	}
}

// Close stops all schedulers and drops all subscribers. Triggers emitted
// after Close are dropped.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for projectID, stop := range s.schedules {
		close(stop)
		delete(s.schedules, projectID)
	}
	s.subscribers = make(map[int]TriggerHandler)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// limiterLocked returns the project's advisory limiter. Callers must
// hold s.mu.
func (s *Service) limiterLocked(projectID string) *rate.Limiter {
	l, ok := s.limiters[projectID]
	if !ok {
		burst := s.cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Every(s.cfg.Interval), burst)
		s.limiters[projectID] = l
	}
	return l
}

func (s *Service) clearInFlight(projectID string) {
	s.mu.Lock()
	delete(s.inFlight, projectID)
	s.mu.Unlock()
}
