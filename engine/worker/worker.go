package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/queue"
	"github.com/hookline/hookline/pkg/logger"
)

const (
	statusCompleted = "completed"
	statusFiltered  = "filtered"
	statusFailed    = "failed"
	statusDiscarded = "discarded"
)

// Config wires a worker pool to the queue and the component registry.
type Config struct {
	Registry  *component.Registry
	Queue     queue.Queue
	Count     int
	IdleSleep time.Duration
	Metrics   *Metrics
}

// Pool drains the job queue. Every worker pops, decodes and executes jobs
// independently; an empty queue makes it sleep for IdleSleep before polling
// again. Jobs are consumed exactly once and never retried: any failure along
// the action/reaction chain is logged and the job is dropped.
type Pool struct {
	registry  *component.Registry
	queue     queue.Queue
	count     int
	idleSleep time.Duration
	metrics   *Metrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(cfg Config) *Pool {
	count := cfg.Count
	if count <= 0 {
		count = 2
	}
	idle := cfg.IdleSleep
	if idle <= 0 {
		idle = time.Second
	}
	return &Pool{
		registry:  cfg.Registry,
		queue:     cfg.Queue,
		count:     count,
		idleSleep: idle,
		metrics:   cfg.Metrics,
	}
}

// Start launches the workers and returns. They run until Stop is called or
// ctx is canceled.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("worker pool already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.started = true
	p.cancel = cancel
	p.mu.Unlock()

	logger.FromContext(ctx).Info("worker pool started", "count", p.count)
	for i := 0; i < p.count; i++ {
		id := i + 1
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(runCtx, id)
		}()
	}
	return nil
}

// Stop cancels the workers and waits for the in-flight jobs to finish. Safe
// to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	log := logger.FromContext(ctx).With("worker", id)
	log.Info("worker started")
	for {
		if ctx.Err() != nil {
			log.Info("worker stopped")
			return
		}
		payload, err := p.queue.Pop(ctx)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			if !sleep(ctx, p.idleSleep) {
				log.Info("worker stopped")
				return
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				log.Info("worker stopped")
				return
			}
			log.Error("failed to pop job", "error", err)
			if !sleep(ctx, p.idleSleep) {
				log.Info("worker stopped")
				return
			}
			continue
		}
		p.process(ctx, log, payload)
	}
}

// process executes one job end to end and records the outcome. The payload
// was already removed from the queue; whatever happens here, it will not be
// seen again.
func (p *Pool) process(ctx context.Context, log logger.Logger, payload []byte) {
	start := time.Now()
	job, err := queue.DecodeJob(payload)
	if err != nil {
		log.Error("discarding malformed job", "error", err)
		p.metrics.recordJob(ctx, statusDiscarded, time.Since(start))
		return
	}
	// Jobs carry no identifier of their own, so mint one per execution to
	// correlate the log lines of a single run.
	log = log.With(
		"job_id", uuid.NewString(),
		"trigger", job.Trigger.Name,
		"action", job.Action.Name,
		"reaction", job.Reaction.Name,
	)
	status := p.execute(ctx, log, job)
	p.metrics.recordJob(ctx, status, time.Since(start))
}

func (p *Pool) execute(ctx context.Context, log logger.Logger, job *queue.Job) string {
	actionDef, err := p.registry.Action(job.Action.Name)
	if err != nil {
		log.Error("discarding job with unknown action", "error", err)
		return statusDiscarded
	}
	reactionDef, err := p.registry.Reaction(job.Reaction.Name)
	if err != nil {
		log.Error("discarding job with unknown reaction", "error", err)
		return statusDiscarded
	}

	// The action sees the area options overlaid with the event projection,
	// so an event value always beats a static option of the same name.
	actionInput, err := actionDef.ValidateConfig(job.Action.Config.Overlay(job.Action.Params))
	if err != nil {
		log.Error("action input rejected", "error", err)
		return statusFailed
	}
	action, err := actionDef.NewAction(actionInput)
	if err != nil {
		log.Error("failed to construct action", "error", err)
		return statusFailed
	}
	result, err := action.Execute(ctx)
	if err != nil {
		log.Error("action failed", "error", err)
		return statusFailed
	}
	if result == nil {
		log.Debug("action filtered the event out")
		return statusFiltered
	}

	reactionInput, err := reactionDef.ValidateConfig(
		job.Reaction.Params.Overlay(core.Params{"token": job.Reaction.Config.Prop("token")}),
	)
	if err != nil {
		log.Error("reaction input rejected", "error", err)
		return statusFailed
	}
	reaction, err := reactionDef.NewReaction(reactionInput)
	if err != nil {
		log.Error("failed to construct reaction", "error", err)
		return statusFailed
	}
	resp, err := reaction.Execute(ctx, result)
	if err != nil {
		log.Error("reaction failed", "error", err)
		return statusFailed
	}
	if resp != nil && !resp.Success {
		log.Warn("reaction reported failure", "details", resp.Details)
		return statusFailed
	}
	log.Info("job completed")
	return statusCompleted
}

// sleep waits for d or until ctx is canceled, reporting whether the full
// wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
