// File: core/buffer/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/linewire/api"
)

// MessageQueue is a per-connection FIFO of pooled buffers awaiting
// transmission. Producer (handler callback) and consumer (write-readiness
// flush) run on different goroutines, so every operation takes the queue
// lock. Buffers are always returned to the pool instance that issued them.
type MessageQueue struct {
	mu     sync.Mutex
	fifo   *queue.Queue
	pools  *PoolSet
	closed bool
}

// NewMessageQueue creates an empty queue drawing buffers from pools.
func NewMessageQueue(pools *PoolSet) *MessageQueue {
	return &MessageQueue{
		fifo:  queue.New(),
		pools: pools,
	}
}

// Enqueue acquires a buffer sized for the combined segments, appends each
// segment in order, and pushes the buffer to the back of the queue.
// On append failure (oversized message) the buffer goes straight back to
// its pool and api.ErrBufferFull is returned; acquisition failures
// propagate as-is. After Clear the queue is closed: the buffer is released
// and api.ErrClosed returned, so a producer racing teardown cannot strand
// pool capacity in a dead queue. Callers must not assume success.
func (q *MessageQueue) Enqueue(segments ...[]byte) error {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	buf, err := q.pools.For(total).Acquire()
	if err != nil {
		return err
	}
	for _, s := range segments {
		if !buf.Append(s) {
			buf.Release()
			return api.ErrBufferFull
		}
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		buf.Release()
		return api.ErrClosed
	}
	q.fifo.Add(buf)
	q.mu.Unlock()
	return nil
}

// Front returns the buffer at the head of the queue without removing it,
// or nil when the queue is empty.
func (q *MessageQueue) Front() *MessageBuffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fifo.Length() == 0 {
		return nil
	}
	return q.fifo.Peek().(*MessageBuffer)
}

// Pop removes the head buffer and returns it to its pool.
func (q *MessageQueue) Pop() {
	q.mu.Lock()
	if q.fifo.Length() == 0 {
		q.mu.Unlock()
		return
	}
	buf := q.fifo.Remove().(*MessageBuffer)
	q.mu.Unlock()
	buf.Release()
}

// Len returns the number of queued buffers.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fifo.Length()
}

// Clear returns every queued buffer to its pool and closes the queue to
// further enqueues. Required on forced disconnects to avoid leaking pool
// capacity.
func (q *MessageQueue) Clear() {
	q.mu.Lock()
	q.closed = true
	bufs := make([]*MessageBuffer, 0, q.fifo.Length())
	for q.fifo.Length() > 0 {
		bufs = append(bufs, q.fifo.Remove().(*MessageBuffer))
	}
	q.mu.Unlock()
	for _, b := range bufs {
		b.Release()
	}
}
