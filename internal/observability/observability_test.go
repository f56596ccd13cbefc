package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestProvider_RecordsCycle(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	cfg := DefaultConfig()
	cfg.MeterProvider = mp
	cfg.TracerProvider = tp
	p, err := New(ctx, cfg)
	require.NoError(t, err)

	cctx, done := p.TrackCycle(ctx, "cycle-1")
	p.RecordSourceUnavailable(cctx, "remote")
	p.RecordNewRejections(cctx, 2)
	p.RecordNewRejections(cctx, 0)
	p.RecordMerged(cctx, 5)
	done(errors.New("boom"))
	p.RecordSkipped(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, int64(1), sumOf(t, rm, "reconcile.cycles.total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "reconcile.errors.total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "reconcile.cycles.skipped"))
	assert.Equal(t, int64(1), sumOf(t, rm, "reconcile.source.unavailable"))
	assert.Equal(t, int64(2), sumOf(t, rm, "notify.rejections.new"))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "reconcile.cycle", ended[0].Name())
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "source unavailable", ended[0].Events()[0].Name)

	require.NoError(t, p.Shutdown(ctx))
}

func TestProvider_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, nil)
	require.NoError(t, err)

	cctx, done := p.TrackCycle(ctx, "x")
	p.RecordSourceUnavailable(cctx, "store")
	done(nil)
	assert.NoError(t, p.Shutdown(ctx))
}
