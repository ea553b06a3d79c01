package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pcshop/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumInt(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func sumFloat(t *testing.T, data metricdata.Aggregation) float64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[float64])
	require.True(t, ok, "expected float64 sum, got %T", data)
	var total float64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewLedgerMetrics(nil, zap.NewNop())
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestLedgerMetrics_Record(t *testing.T) {
	reader, provider := newManualMeter(t)
	m, err := telemetry.NewLedgerMetrics(provider.Meter("ledger-test"), zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordEntryCreated(ctx, "import")
	m.RecordEntryCreated(ctx, "export")
	m.RecordEntryReviewed(ctx, "import", "completed")
	m.RecordExpiredStockRemoved(ctx, 20, 0)
	m.RecordExpiredStockRemoved(ctx, 5, 2.5)
	m.RecordJobRun(ctx, "expiry_sweep", 1500*time.Millisecond, nil)
	m.RecordJobRun(ctx, "expiry_sweep", time.Second, errors.New("db down"))

	data := collect(t, reader)

	assert.Equal(t, int64(2), sumInt(t, data["ledger_entries_created_total"]))
	assert.Equal(t, int64(1), sumInt(t, data["ledger_entries_reviewed_total"]))
	assert.InDelta(t, 25.0, sumFloat(t, data["ledger_expired_units_removed_total"]), 1e-9)
	assert.InDelta(t, 2.5, sumFloat(t, data["ledger_sweep_under_removed_units_total"]), 1e-9)
	assert.Equal(t, int64(2), sumInt(t, data["ledger_job_runs_total"]))

	hist, ok := data["ledger_sweep_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	var total float64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		total += dp.Sum
	}
	assert.Equal(t, uint64(2), count)
	assert.InDelta(t, 2.5, total, 1e-9)
}

func TestFloatCounter_IgnoresNonPositive(t *testing.T) {
	reader, provider := newManualMeter(t)
	c, err := telemetry.NewFloatCounter(provider.Meter("test"), "units_total", "units", "{units}")
	require.NoError(t, err)

	c.Add(context.Background(), 0)
	c.Add(context.Background(), -3)
	c.Add(context.Background(), 1.25)

	assert.InDelta(t, 1.25, sumFloat(t, collect(t, reader)["units_total"]), 1e-9)
}

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "test"}, logger)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(ctx))

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{ServiceName: "test"}, logger)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(ctx))

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{ServiceName: "test"}, logger)
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))

	base := zap.NewNop()
	assert.Same(t, base, telemetry.BridgeLogger(base, "test", lp))
}
