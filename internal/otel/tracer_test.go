package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExporterEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:4318", exporterEndpoint("http://localhost:4318"))
	assert.Equal(t, "collector:4318", exporterEndpoint("https://collector:4318/"))
	assert.Equal(t, "collector:4318", exporterEndpoint("collector:4318"))
}
