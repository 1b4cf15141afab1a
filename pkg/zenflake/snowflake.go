package zenflake

import (
	"fmt"
	"hash/adler32"
	"os"

	"github.com/bwmarrin/snowflake"
)

var (
	// NodeBits holds the number of bits to use for Node
	// Remember, you have a total 22 bits to share between Node/Step
	NodeBits uint8 = 10

	// StepBits holds the number of bits to use for Step
	// Remember, you have a total 22 bits to share between Node/Step
	StepBits uint8 = 12

	// internal values of bwmarrin/snowflake
	nodeMax   int64 = -1 ^ (-1 << NodeBits)
	nodeMask        = nodeMax << StepBits
	nodeShift       = StepBits
)

func GetNodeMask() int64 {
	return nodeMask
}

// GetNodeId returns the id of the node that generated given key
func GetNodeId(id int64) int64 {
	return (id & GetNodeMask()) >> int64(nodeShift)
}

// NewNode creates an ID generator for given node id
func NewNode(nodeId int64) (*snowflake.Node, error) {
	snowflake.NodeBits = NodeBits
	snowflake.StepBits = StepBits
	node, err := snowflake.NewNode(nodeId)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeId, err)
	}
	return node, nil
}

// NewNodeFromEnvironment creates an ID generator with node id derived from the process environment.
// constraints: two processes with identical environment will produce the same node id
func NewNodeFromEnvironment() *snowflake.Node {
	hash32 := adler32.New()
	for _, e := range os.Environ() {
		hash32.Write([]byte(e))
	}
	node, err := NewNode(int64(hash32.Sum32()) & nodeMax)
	if err != nil {
		panic("can't initialize snowflake ID generator. Message: " + err.Error())
	}
	return node
}
