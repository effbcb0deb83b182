package internal

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func Test_Telemetry_metrics(t *testing.T) {
	assert := assert.New(t)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tel := NewTelemetry(StageKindIngress, "test")

	frames := int64(0)
	tel.NewCounter("frames", func() int64 { return frames })
	tel.NewGauge("workers", func() int64 { return 3 })

	frames = 5

	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				values[m.Name] = data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				values[m.Name] = data.DataPoints[0].Value
			}
		}
	}

	assert.Equal(int64(5), values["ingress_test_frames"])
	assert.Equal(int64(3), values["ingress_test_workers"])
}

func Test_SetLogLevel(t *testing.T) {
	assert := assert.New(t)

	t.Cleanup(func() { SetLogLevel(slog.LevelInfo) })

	l := NewLogger("test", "level")
	ctx := context.Background()

	SetLogLevel(slog.LevelWarn)
	assert.False(l.Enabled(ctx, slog.LevelInfo))
	assert.True(l.Enabled(ctx, slog.LevelWarn))

	SetLogLevel(slog.LevelDebug)
	assert.True(l.Enabled(ctx, slog.LevelDebug))
}
