// Package id hands out snowflake request ids. One node per process; the
// node id distinguishes replicas receiving the same webhook traffic.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the process-wide snowflake node. Subsequent calls are
// no-ops.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// NewRequestID generates a time-ordered int64 id, unique across replicas,
// used to correlate the log lines of one webhook request.
func NewRequestID() int64 {
	return node.Generate().Int64()
}
