package queue

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/hookline/hookline/engine/infra/monitoring/metrics"
)

// Metrics counts queue traffic. A nil *Metrics is valid and records nothing,
// so callers never branch on whether monitoring is wired.
type Metrics struct {
	pushedTotal metric.Int64Counter
	poppedTotal metric.Int64Counter
	errorsTotal metric.Int64Counter
}

func NewMetrics(_ context.Context, meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, nil
	}
	m := &Metrics{}
	counterDefs := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&m.pushedTotal, "jobs_pushed_total", "Total jobs pushed onto the queue"},
		{&m.poppedTotal, "jobs_popped_total", "Total jobs popped off the queue"},
		{&m.errorsTotal, "errors_total", "Total queue operation failures by operation"},
	}
	for _, def := range counterDefs {
		counter, err := meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("queue", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue %s counter: %w", def.name, err)
		}
		*def.target = counter
	}
	return m, nil
}

func (m *Metrics) recordPush(ctx context.Context) {
	if m == nil || m.pushedTotal == nil {
		return
	}
	m.pushedTotal.Add(ctx, 1)
}

func (m *Metrics) recordPop(ctx context.Context) {
	if m == nil || m.poppedTotal == nil {
		return
	}
	m.poppedTotal.Add(ctx, 1)
}

func (m *Metrics) recordError(ctx context.Context, op string) {
	if m == nil || m.errorsTotal == nil {
		return
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

// RegisterDepthGauge exports the current queue length as an observable
// gauge, sampled on every metric collection.
func RegisterDepthGauge(meter metric.Meter, q Queue) error {
	if meter == nil || q == nil {
		return nil
	}
	depth, err := meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("queue", "depth"),
		metric.WithDescription("Jobs currently pending in the queue"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue depth gauge: %w", err)
	}
	_, err = meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		n, err := q.Len(ctx)
		if err != nil {
			return err
		}
		obs.ObserveInt64(depth, n)
		return nil
	}, depth)
	if err != nil {
		return fmt.Errorf("failed to register queue depth callback: %w", err)
	}
	return nil
}

// Instrumented wraps a Queue with traffic counters. An empty Pop is idle
// polling, not an error, and counts as neither.
type Instrumented struct {
	Queue
	metrics *Metrics
}

func NewInstrumented(q Queue, m *Metrics) *Instrumented {
	return &Instrumented{Queue: q, metrics: m}
}

func (q *Instrumented) Push(ctx context.Context, payload []byte) error {
	err := q.Queue.Push(ctx, payload)
	if err != nil {
		q.metrics.recordError(ctx, "push")
		return err
	}
	q.metrics.recordPush(ctx)
	return nil
}

func (q *Instrumented) Pop(ctx context.Context) ([]byte, error) {
	data, err := q.Queue.Pop(ctx)
	switch {
	case err == nil:
		q.metrics.recordPop(ctx)
	case !errors.Is(err, ErrEmpty):
		q.metrics.recordError(ctx, "pop")
	}
	return data, err
}
