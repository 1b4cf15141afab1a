package otel

import (
	"context"
	"testing"

	"github.com/pbinitiative/zenlistener/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupOtelWithoutTracing(t *testing.T) {
	o, err := SetupOtel(config.Tracing{Enabled: false, Name: "test"})
	require.NoError(t, err)

	assert.NotNil(t, o.meterProvider)
	assert.Nil(t, o.tracerprovider)
	assert.NotNil(t, RequestTotal)
	assert.NotNil(t, RequestDuration)
	assert.NotNil(t, o.ListenerMeter())

	// stopping twice is a no-op
	o.Stop(context.Background())
	o.Stop(context.Background())
	assert.Nil(t, o.meterProvider)
}
