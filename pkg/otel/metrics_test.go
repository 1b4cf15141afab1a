package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetricsAreRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	metrics.Thrown(t.Context(), 2, attribute.String(AttributeMessageName, "orderShipped"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	found := false
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "listener_messages_thrown" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		found = true
	}
	assert.True(t, found)
}

func TestAddOnNilMetricsIsNoop(t *testing.T) {
	var metrics *ListenerMetrics
	assert.NotPanics(t, func() {
		metrics.Received(t.Context())
		metrics.Thrown(t.Context(), 3)
	})
}
