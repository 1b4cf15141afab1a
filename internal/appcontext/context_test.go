package appcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationId(t *testing.T) {
	ctx := WithCorrelationId(context.Background(), "abc")

	id, found := GetCorrelationId(ctx)
	assert.True(t, found)
	assert.Equal(t, "abc", id)

	id, found = GetCorrelationId(context.Background())
	assert.False(t, found)
	assert.Equal(t, "", id)

	_, found = GetCorrelationId(WithCorrelationId(context.Background(), ""))
	assert.False(t, found)
}
