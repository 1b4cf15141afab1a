package zenflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeMask(t *testing.T) {
	nodeId := int64(4)
	node, err := NewNode(nodeId)
	require.NoError(t, err)

	id := node.Generate()
	assert.Equal(t, nodeId, GetNodeId(id.Int64()))
}

func TestNewNodeRejectsOutOfRangeId(t *testing.T) {
	_, err := NewNode(nodeMax + 1)
	assert.Error(t, err)
}

func TestNewNodeFromEnvironmentGeneratesUniqueKeys(t *testing.T) {
	node := NewNodeFromEnvironment()
	seen := map[int64]struct{}{}
	for i := 0; i < 1000; i++ {
		key := node.Generate().Int64()
		_, ok := seen[key]
		assert.False(t, ok)
		seen[key] = struct{}{}
	}
}
