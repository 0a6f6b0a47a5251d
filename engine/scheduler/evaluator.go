package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hookline/hookline/engine/area"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/queue"
	"github.com/hookline/hookline/pkg/logger"
)

// EvaluatorConfig carries everything one evaluator loop needs. The
// supervisor assembles it during reconciliation.
type EvaluatorConfig struct {
	Area        *area.Area
	Trigger     component.Trigger
	ActionDef   *component.Definition
	ReactionDef *component.Definition
	Credentials area.CredentialResolver
	Queue       queue.Queue
	Interval    time.Duration
	Backoff     time.Duration
	Metrics     *Metrics
}

// Evaluator owns the polling loop of a single area. It evaluates the trigger
// on a fixed cadence and, when the trigger fires, assembles the job envelope
// and pushes it onto the queue. Credentials are resolved again on every
// firing, so token rotation and revocation take effect without restarting
// the evaluator.
type Evaluator struct {
	area        *area.Area
	trigger     component.Trigger
	actionDef   *component.Definition
	reactionDef *component.Definition
	credentials area.CredentialResolver
	queue       queue.Queue
	interval    time.Duration
	backoff     time.Duration
	metrics     *Metrics
}

func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Minute
	}
	return &Evaluator{
		area:        cfg.Area,
		trigger:     cfg.Trigger,
		actionDef:   cfg.ActionDef,
		reactionDef: cfg.ReactionDef,
		credentials: cfg.Credentials,
		queue:       cfg.Queue,
		interval:    interval,
		backoff:     backoff,
		metrics:     cfg.Metrics,
	}
}

// Run drives the loop until ctx is canceled. It never returns an error:
// failures are logged and absorbed by the backoff so one broken upstream
// cannot take the evaluator down.
func (e *Evaluator) Run(ctx context.Context) {
	log := logger.FromContext(ctx).With(
		"area_id", e.area.ID,
		"trigger", e.area.TriggerKind,
	)
	defer e.closeTrigger(log)
	log.Info("evaluator started", "interval", e.interval)
	for {
		wait := e.interval
		resp, err := e.trigger.Evaluate(ctx)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			e.metrics.recordTriggerError(ctx, e.area.TriggerKind)
			log.Error("trigger evaluation failed", "error", err)
			wait = e.backoff
		case resp != nil:
			switch err := e.dispatch(ctx, resp); {
			case errors.Is(err, core.ErrSchedulerShutdown):
				// The sleep below exits immediately.
			case err != nil:
				log.Error("failed to enqueue job", "error", err)
				wait = e.backoff
			default:
				e.metrics.recordFired(ctx, e.area.TriggerKind)
				log.Info("trigger fired",
					"action", e.area.ActionKind,
					"reaction", e.area.ReactionKind,
				)
			}
		}
		if !sleep(ctx, wait) {
			log.Info("evaluator stopped")
			return
		}
	}
}

// dispatch assembles and enqueues the job for one firing. Nothing reaches
// the queue unless every step succeeded, so workers never see a partial
// envelope.
func (e *Evaluator) dispatch(ctx context.Context, resp *component.TriggerResponse) error {
	event := resp.AsParams()
	actionToken, err := resolveToken(ctx, e.credentials, e.area.UserID, e.actionDef.Service)
	if err != nil {
		return err
	}
	reactionToken, err := resolveToken(ctx, e.credentials, e.area.UserID, e.reactionDef.Service)
	if err != nil {
		return err
	}
	job := &queue.Job{
		Trigger: queue.JobTrigger{Name: e.area.TriggerKind},
		Action: queue.JobStep{
			Name:   e.area.ActionKind,
			Params: projectEvent(event, e.actionDef.DeclaredFields()),
			Config: e.area.ActionConfig.Overlay(core.Params{"token": actionToken}),
		},
		Reaction: queue.JobStep{
			Name:   e.area.ReactionKind,
			Params: event.Overlay(e.area.ReactionConfig),
			Config: e.area.ReactionConfig.Overlay(core.Params{"token": reactionToken}),
		},
		EventData: event,
	}
	payload, err := job.Encode()
	if err != nil {
		return err
	}
	backoff := retry.WithMaxRetries(2, retry.NewExponential(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(e.queue.Push(ctx, payload))
	})
	if err != nil && ctx.Err() != nil {
		// Canceled mid-push: shutdown, not a queue failure.
		return core.ErrSchedulerShutdown
	}
	return err
}

func (e *Evaluator) closeTrigger(log logger.Logger) {
	closer, ok := e.trigger.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Warn("failed to close trigger", "error", err)
	}
}

// resolveToken fetches the credential for service, or nil when the component
// declares no service or the user never linked it. A nil token lands in the
// job config as an explicit null.
func resolveToken(ctx context.Context, resolver area.CredentialResolver, userID core.ID, service core.ServiceID) (any, error) {
	if service == core.ServiceNone {
		return nil, nil
	}
	cred, err := resolver.Resolve(ctx, userID, service)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s credential: %w", service, err)
	}
	if cred == nil {
		return nil, nil
	}
	return cred.AccessToken, nil
}

// projectEvent copies the declared action fields out of the flattened event.
// Fields the event does not carry stay absent, so schema defaults and
// required checks behave exactly as they do for user-supplied config.
func projectEvent(event core.Params, fields []string) core.Params {
	out := make(core.Params, len(fields))
	for _, name := range fields {
		if v, ok := event[name]; ok {
			out[name] = v
		}
	}
	return out
}

// sleep waits for d or until ctx is canceled, reporting whether the full
// interval elapsed.
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
