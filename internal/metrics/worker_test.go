package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertWorkerMetricLine checks that the Prometheus output contains a worker metric
// matching the given name, partial label pattern, and value. Uses regex to handle
// extra OTel scope labels injected by the Prometheus exporter.
func assertWorkerMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestNewWorkerMetrics(t *testing.T) {
	t.Run("Success_CreateWorkerMetrics", func(t *testing.T) {
		provider, err := NewProvider("test_app")
		require.NoError(t, err)

		workerMetrics, err := NewWorkerMetrics(provider.MeterProvider(), "test_app")

		require.NoError(t, err)
		assert.NotNil(t, workerMetrics)
	})
}

func TestWorkerMetrics_RecordEvent(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	wm, err := NewWorkerMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	t.Run("Success_RecordProcessedEvent", func(t *testing.T) {
		// Should not panic
		wm.RecordEvent(context.Background(), "b2c_customer", "processed")
	})

	t.Run("Success_RecordFailedOutcomes", func(t *testing.T) {
		wm.RecordEvent(context.Background(), "b2b_customer", "retried")
		wm.RecordEvent(context.Background(), "household", "poisoned")
		wm.RecordEvent(context.Background(), "b2c_customer", "claim_lost")
	})
}

func TestWorkerMetrics_RecordEventDuration(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	wm, err := NewWorkerMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	t.Run("Success_RecordDuration", func(t *testing.T) {
		// Should not panic
		wm.RecordEventDuration(context.Background(), "b2c_customer", 123*time.Millisecond, "processed")
	})

	t.Run("Success_RecordMultipleAggregates", func(t *testing.T) {
		wm.RecordEventDuration(context.Background(), "b2b_customer", 50*time.Millisecond, "processed")
		wm.RecordEventDuration(context.Background(), "household", 200*time.Millisecond, "retried")
	})
}

func TestWorkerMetrics_RecordBatchSize(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	wm, err := NewWorkerMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	t.Run("Success_RecordBatchSize", func(t *testing.T) {
		wm.RecordBatchSize(context.Background(), 25)
		wm.RecordBatchSize(context.Background(), 0)
	})
}

func TestNewNoOpWorkerMetrics(t *testing.T) {
	noOpMetrics := NewNoOpWorkerMetrics()

	assert.NotNil(t, noOpMetrics)
	assert.IsType(t, &NoOpWorkerMetrics{}, noOpMetrics)

	t.Run("NoOp_RecordDoesNotPanic", func(t *testing.T) {
		// Should not panic or do anything
		noOpMetrics.RecordEvent(context.Background(), "b2c_customer", "processed")
		noOpMetrics.RecordEventDuration(context.Background(), "household", 100*time.Millisecond, "retried")
		noOpMetrics.RecordBatchSize(context.Background(), 10)
	})
}

func TestWorkerMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	wm, err := NewWorkerMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	ctx := context.Background()

	// Record event counts
	wm.RecordEvent(ctx, "b2c_customer", "processed")
	wm.RecordEvent(ctx, "b2c_customer", "processed")
	wm.RecordEvent(ctx, "b2c_customer", "retried")
	wm.RecordEvent(ctx, "household", "processed")
	wm.RecordEvent(ctx, "b2b_customer", "poisoned")

	// Record durations and batch sizes
	wm.RecordEventDuration(ctx, "b2c_customer", 50*time.Millisecond, "processed")
	wm.RecordEventDuration(ctx, "b2c_customer", 60*time.Millisecond, "processed")
	wm.RecordEventDuration(ctx, "household", 20*time.Millisecond, "processed")
	wm.RecordBatchSize(ctx, 5)
	wm.RecordBatchSize(ctx, 3)

	// Verify metrics in Prometheus registry
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(w, req)

	output := w.Body.String()

	assertWorkerMetricLine(
		t,
		output,
		`integration_test_events_total`,
		`aggregate_type="b2c_customer".*outcome="processed"`,
		`2`,
	)
	assertWorkerMetricLine(
		t,
		output,
		`integration_test_events_total`,
		`aggregate_type="b2c_customer".*outcome="retried"`,
		`1`,
	)
	assertWorkerMetricLine(
		t,
		output,
		`integration_test_events_total`,
		`aggregate_type="b2b_customer".*outcome="poisoned"`,
		`1`,
	)

	assertWorkerMetricLine(
		t,
		output,
		`integration_test_event_duration_seconds_count`,
		`aggregate_type="b2c_customer".*outcome="processed"`,
		`2`,
	)

	assert.Contains(t, output, "integration_test_claimed_batch_size")
}
