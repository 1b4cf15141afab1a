package log

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevel(t *testing.T) {
	assert.True(t, New("debug", "").IsDebug())
	assert.True(t, New("", "").IsInfo())
	assert.False(t, New("", "").IsDebug())
	assert.Equal(t, hclog.Error, New("ERROR", "json").GetLevel())
}
