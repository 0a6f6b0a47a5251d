package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hookline/hookline/engine/area"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/queue"
	"github.com/hookline/hookline/pkg/logger"
)

// SupervisorConfig wires the reconcile loop to its collaborators.
type SupervisorConfig struct {
	Registry          *component.Registry
	Areas             area.Repository
	Credentials       area.CredentialResolver
	Queue             queue.Queue
	ReconcileInterval time.Duration
	ErrorBackoff      time.Duration
	Metrics           *Metrics
}

// Supervisor keeps the set of running evaluators aligned with the areas
// stored in the database. Each reconcile pass lists the stored areas, stops
// evaluators whose area disappeared and spawns evaluators for areas that
// gained one, so creates and deletes take effect within one interval without
// restarting the process.
type Supervisor struct {
	registry    *component.Registry
	areas       area.Repository
	credentials area.CredentialResolver
	queue       queue.Queue
	interval    time.Duration
	backoff     time.Duration
	metrics     *Metrics

	active *activeTable

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	loop    sync.WaitGroup
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	backoff := cfg.ErrorBackoff
	if backoff <= 0 {
		backoff = time.Minute
	}
	return &Supervisor{
		registry:    cfg.Registry,
		areas:       cfg.Areas,
		credentials: cfg.Credentials,
		queue:       cfg.Queue,
		interval:    interval,
		backoff:     backoff,
		metrics:     cfg.Metrics,
		active:      newActiveTable(),
	}
}

// Start runs an immediate reconcile pass and then keeps reconciling every
// interval until Stop is called or ctx is canceled. A supervisor starts at
// most once; build a new one to restart.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.started = true
	s.cancel = cancel
	s.mu.Unlock()

	log := logger.FromContext(ctx)
	log.Info("supervisor started", "reconcile_interval", s.interval)
	if err := s.Reconcile(runCtx); err != nil {
		log.Error("initial reconcile pass failed", "error", err)
	}
	s.loop.Add(1)
	go s.run(runCtx)
	return nil
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.loop.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				logger.FromContext(ctx).Error("reconcile pass failed", "error", err)
			}
		}
	}
}

// Stop cancels the reconcile loop and every evaluator, then waits for all of
// them to unwind. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.loop.Wait()
	s.active.drain()
}

// Reconcile performs one alignment pass between stored areas and running
// evaluators. Spawn failures are logged and skipped; the broken area is
// picked up again on the next pass.
func (s *Supervisor) Reconcile(ctx context.Context) error {
	stored, err := s.areas.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list areas: %w", err)
	}
	desired := make(map[core.ID]*area.Area, len(stored))
	for _, a := range stored {
		if a.Schedulable() {
			desired[a.ID] = a
		}
	}
	log := logger.FromContext(ctx)
	for _, id := range s.active.ids() {
		if _, ok := desired[id]; ok {
			continue
		}
		if s.active.remove(id) {
			log.Info("evaluator removed", "area_id", id)
		}
	}
	for id, a := range desired {
		if s.active.contains(id) {
			continue
		}
		if err := s.spawn(ctx, a); err != nil {
			log.Error("failed to start evaluator",
				"area_id", id,
				"trigger", a.TriggerKind,
				"error", err,
			)
		}
	}
	return nil
}

// spawn validates the area against the registry, constructs its trigger and
// hands the loop to a goroutine registered in the active table.
func (s *Supervisor) spawn(ctx context.Context, a *area.Area) error {
	if err := a.Validate(); err != nil {
		return err
	}
	triggerDef, err := s.registry.Trigger(a.TriggerKind)
	if err != nil {
		return err
	}
	actionDef, err := s.registry.Action(a.ActionKind)
	if err != nil {
		return err
	}
	reactionDef, err := s.registry.Reaction(a.ReactionKind)
	if err != nil {
		return err
	}
	token, err := resolveToken(ctx, s.credentials, a.UserID, triggerDef.Service)
	if err != nil {
		return err
	}
	validated, err := triggerDef.ValidateConfig(a.TriggerConfig.Overlay(core.Params{"token": token}))
	if err != nil {
		return err
	}
	trigger, err := triggerDef.NewTrigger(validated)
	if err != nil {
		return err
	}
	interval := time.Second
	if n, ok := validated["interval"].(int); ok && n > 0 {
		interval = time.Duration(n) * time.Second
	}
	ev := NewEvaluator(EvaluatorConfig{
		Area:        a,
		Trigger:     trigger,
		ActionDef:   actionDef,
		ReactionDef: reactionDef,
		Credentials: s.credentials,
		Queue:       s.queue,
		Interval:    interval,
		Backoff:     s.backoff,
		Metrics:     s.metrics,
	})
	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	if !s.active.insert(a.ID, h) {
		cancel()
		return nil
	}
	s.metrics.evaluatorStarted(ctx)
	go func() {
		defer close(h.done)
		defer s.metrics.evaluatorStopped(context.WithoutCancel(runCtx))
		ev.Run(runCtx)
	}()
	return nil
}

// Running lists the area IDs with a live evaluator, sorted.
func (s *Supervisor) Running() []core.ID {
	return s.active.ids()
}

// IsRunning reports whether an evaluator is live for the area.
func (s *Supervisor) IsRunning(id core.ID) bool {
	return s.active.contains(id)
}
