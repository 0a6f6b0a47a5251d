package scheduler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/hookline/hookline/engine/infra/monitoring/metrics"
)

// Metrics tracks scheduling activity. A nil *Metrics is valid and records
// nothing, so callers never branch on whether monitoring is wired.
type Metrics struct {
	firedTotal  metric.Int64Counter
	errorsTotal metric.Int64Counter
	evaluators  metric.Int64UpDownCounter
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
		{&m.firedTotal, "triggers_fired_total", "Total trigger firings that produced a job"},
		{&m.errorsTotal, "trigger_errors_total", "Total trigger evaluation failures"},
	}
	for _, def := range counterDefs {
		counter, err := meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("scheduler", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler %s counter: %w", def.name, err)
		}
		*def.target = counter
	}
	evaluators, err := meter.Int64UpDownCounter(
		monitoringmetrics.MetricNameWithSubsystem("scheduler", "evaluators_active"),
		metric.WithDescription("Evaluator loops currently running"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler evaluators gauge: %w", err)
	}
	m.evaluators = evaluators
	return m, nil
}

func (m *Metrics) recordFired(ctx context.Context, trigger string) {
	if m == nil || m.firedTotal == nil {
		return
	}
	m.firedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (m *Metrics) recordTriggerError(ctx context.Context, trigger string) {
	if m == nil || m.errorsTotal == nil {
		return
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (m *Metrics) evaluatorStarted(ctx context.Context) {
	if m == nil || m.evaluators == nil {
		return
	}
	m.evaluators.Add(ctx, 1)
}

func (m *Metrics) evaluatorStopped(ctx context.Context) {
	if m == nil || m.evaluators == nil {
		return
	}
	m.evaluators.Add(ctx, -1)
}
