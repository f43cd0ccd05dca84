// Package dlq defines the shape of a dead-letter record: everything
// about a poisoned delivery that operators need to replay or diagnose it.
package dlq

import "time"

// Record is written to the dead-letter topic when a delivery exhausts
// its retry budget. It captures the original delivery coordinates plus
// the failure that killed it.
type Record struct {
	OriginalTopic string    `json:"originalTopic"`
	Partition     string    `json:"partition"` // shard queue name stands in for a partition
	Offset        uint64    `json:"offset"`    // AMQP delivery tag stands in for an offset
	Key           string    `json:"key"`       // routing key (sagaId)
	Value         []byte    `json:"value"`     // raw envelope body
	Exception     string    `json:"exception"`
	Stack         string    `json:"stack"`
	Timestamp     time.Time `json:"timestamp"`
}
