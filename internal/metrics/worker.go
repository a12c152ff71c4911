package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WorkerMetrics defines the interface for recording event processing metrics.
// Implementations track per-aggregate outcome counts, processing durations,
// and claimed batch sizes for observability of the reconciliation worker.
type WorkerMetrics interface {
	// RecordEvent records a processed event with its outcome.
	// AggregateType examples: "b2c_customer", "household"
	// Outcome examples: "processed", "retried", "poisoned", "claim_lost"
	RecordEvent(ctx context.Context, aggregateType, outcome string)

	// RecordEventDuration records the processing duration of an event with its
	// outcome. Duration is recorded in seconds as a histogram for percentile
	// calculations.
	RecordEventDuration(ctx context.Context, aggregateType string, duration time.Duration, outcome string)

	// RecordBatchSize records the size of a claimed event batch.
	RecordBatchSize(ctx context.Context, size int)
}

// workerMetrics implements WorkerMetrics using OpenTelemetry metrics.
type workerMetrics struct {
	eventCounter  metric.Int64Counter
	durationHisto metric.Float64Histogram
	batchHisto    metric.Int64Histogram
}

// NewWorkerMetrics creates a new WorkerMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names (e.g., "graphsync").
// Returns error if meters cannot be initialized.
func NewWorkerMetrics(meterProvider metric.MeterProvider, namespace string) (WorkerMetrics, error) {
	meter := meterProvider.Meter(namespace)

	eventCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_events_total", namespace),
		metric.WithDescription("Total number of processed outbox events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_event_duration_seconds", namespace),
		metric.WithDescription("Duration of outbox event processing in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	batchHisto, err := meter.Int64Histogram(
		fmt.Sprintf("%s_claimed_batch_size", namespace),
		metric.WithDescription("Number of events claimed per batch"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch size histogram: %w", err)
	}

	return &workerMetrics{
		eventCounter:  eventCounter,
		durationHisto: durationHisto,
		batchHisto:    batchHisto,
	}, nil
}

// RecordEvent increments the event counter with aggregate type and outcome labels.
func (w *workerMetrics) RecordEvent(ctx context.Context, aggregateType, outcome string) {
	w.eventCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("aggregate_type", aggregateType),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordEventDuration records the event processing duration in seconds with
// aggregate type and outcome labels.
func (w *workerMetrics) RecordEventDuration(
	ctx context.Context,
	aggregateType string,
	duration time.Duration,
	outcome string,
) {
	w.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("aggregate_type", aggregateType),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordBatchSize records the claimed batch size.
func (w *workerMetrics) RecordBatchSize(ctx context.Context, size int) {
	w.batchHisto.Record(ctx, int64(size))
}

// NoOpWorkerMetrics is a no-op implementation of WorkerMetrics for when metrics are disabled.
type NoOpWorkerMetrics struct{}

// NewNoOpWorkerMetrics creates a no-op WorkerMetrics implementation.
func NewNoOpWorkerMetrics() WorkerMetrics {
	return &NoOpWorkerMetrics{}
}

// RecordEvent does nothing when metrics are disabled.
func (n *NoOpWorkerMetrics) RecordEvent(ctx context.Context, aggregateType, outcome string) {
	// No-op
}

// RecordEventDuration does nothing when metrics are disabled.
func (n *NoOpWorkerMetrics) RecordEventDuration(
	ctx context.Context,
	aggregateType string,
	duration time.Duration,
	outcome string,
) {
	// No-op
}

// RecordBatchSize does nothing when metrics are disabled.
func (n *NoOpWorkerMetrics) RecordBatchSize(ctx context.Context, size int) {
	// No-op
}
