package executor

import (
	"strconv"
	"sync"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// nodeQueue is a bounded per-node FIFO of pending chunks: an
// RWMutex-guarded slice with a capacity bound and FIFO pop, one instance
// per streaming-session node.
type nodeQueue struct {
	mu       sync.RWMutex
	items    []*streamtype.DataChunk
	capacity int
	dropped  int
}

func newNodeQueue(capacity int) *nodeQueue {
	return &nodeQueue{items: make([]*streamtype.DataChunk, 0, capacity), capacity: capacity}
}

// Push enqueues a chunk, applying the backpressure policy when full: Drop
// silently counts and discards the newest chunk, Reject returns a
// transient resource-limit error, Block is not honored here (the
// in-process executor has no caller to suspend against — session callers
// use Reject semantics).
func (q *nodeQueue) Push(chunk *streamtype.DataChunk, policy BackpressurePolicy) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		q.dropped++
		switch policy {
		case BackpressureDrop:
			return nil
		default:
			return corepipeerr.New(corepipeerr.KindResourceLimit, "node input queue is full").
				WithContext("node_queue_capacity", strconv.Itoa(q.capacity))
		}
	}
	q.items = append(q.items, chunk)
	return nil
}

// PopAll drains every currently queued chunk in FIFO order.
func (q *nodeQueue) PopAll() []*streamtype.DataChunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = make([]*streamtype.DataChunk, 0, q.capacity)
	return items
}

func (q *nodeQueue) Dropped() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.dropped
}

