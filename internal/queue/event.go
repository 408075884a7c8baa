// Package queue defines message payloads exchanged over the message broker
// and the consumer that processes them.
package queue

// OrphanQueue is the durable queue carrying ImageOrphanedEvent messages.
const OrphanQueue = "image.orphaned"

// ImageOrphanedEvent is published when an object that no row references
// any more could not be deleted.  The consumer retries the delete.
type ImageOrphanedEvent struct {
	Key        string `json:"key"`
	ProductID  uint64 `json:"product_id"`
	Reason     string `json:"reason"`
	OccurredAt string `json:"occurred_at"`
}
