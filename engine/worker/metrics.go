package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/hookline/hookline/engine/infra/monitoring/metrics"
)

// Metrics tracks job execution outcomes. A nil *Metrics is valid and records
// nothing, so callers never branch on whether monitoring is wired.
type Metrics struct {
	jobsTotal metric.Int64Counter
	duration  metric.Float64Histogram
}

func NewMetrics(_ context.Context, meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, nil
	}
	jobsTotal, err := meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem("worker", "jobs_total"),
		metric.WithDescription("Total jobs processed by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker jobs counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("worker", "job_duration_seconds"),
		metric.WithDescription("Job execution time from pop to outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(monitoringmetrics.JobDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker duration histogram: %w", err)
	}
	return &Metrics{jobsTotal: jobsTotal, duration: duration}, nil
}

func (m *Metrics) recordJob(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	if m.jobsTotal != nil {
		m.jobsTotal.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
