package id

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator hands out time-ordered int64 ids unique across nodes.
type Generator struct {
	node *snowflake.Node
}

// New builds a generator for the given node id (0..1023).
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Next generates a new id.
func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}
