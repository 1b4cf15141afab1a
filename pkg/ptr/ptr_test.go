package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTo(t *testing.T) {
	p := To(42)
	assert.Equal(t, 42, *p)

	q := To(42)
	assert.NotSame(t, p, q)
}
