// File: core/buffer/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/linewire/api"
	"github.com/momentics/linewire/core/mem"
)

// prewarmCount is how many buffers a pool constructs eagerly, so the first
// connections never pay the allocation.
const prewarmCount = 10

// PoolStats aggregates pool allocation/reuse counters for observability.
type PoolStats struct {
	BufferSize int
	MaxCount   int
	Active     int64
	Free       int64
	TotalAlloc int64
	TotalFree  int64
}

// Pool is a bounded free list of fixed-size MessageBuffers.
// Invariant: free + active <= max at every point. Buffers handed out are
// reset before reuse; buffers released beyond the free list's room are
// freed and their capacity deallocated from the tracker.
type Pool struct {
	size    int
	max     int
	tracker *mem.Tracker

	mu   sync.Mutex
	free []*MessageBuffer // LIFO: most recently released is warmest

	active     atomic.Int64
	totalAlloc atomic.Int64
	totalFree  atomic.Int64
}

// NewPool creates a pool of buffers of the given size with at most max
// outstanding, pre-warming a handful into the free list.
func NewPool(size, max int, tracker *mem.Tracker) *Pool {
	p := &Pool{
		size:    size,
		max:     max,
		tracker: tracker,
	}
	warm := prewarmCount
	if warm > max {
		warm = max
	}
	for i := 0; i < warm; i++ {
		b := NewMessageBuffer(size, tracker)
		b.pool = p
		p.free = append(p.free, b)
	}
	return p
}

// Acquire returns a reset buffer from the free list, constructing a new one
// while the outstanding count is below the maximum and the tracker ceiling
// permits. Exhaustion and the memory ceiling are recoverable conditions
// reported as api.ErrPoolExhausted and api.ErrMemoryLimit.
func (p *Pool) Acquire() (*MessageBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		p.active.Add(1)
		p.totalAlloc.Add(1)
		b.Reset()
		return b, nil
	}
	if int(p.active.Load()) >= p.max {
		return nil, api.ErrPoolExhausted
	}
	if p.tracker.LimitExceeded() {
		return nil, api.ErrMemoryLimit
	}
	b := NewMessageBuffer(p.size, p.tracker)
	b.pool = p
	p.active.Add(1)
	p.totalAlloc.Add(1)
	return b, nil
}

// Release reclaims a buffer. The free list admits it while there is room
// under the maximum; otherwise the buffer is freed. The active count
// decrements either way.
func (p *Pool) Release(b *MessageBuffer) {
	if b == nil {
		return
	}
	p.mu.Lock()
	p.active.Add(-1)
	p.totalFree.Add(1)
	if len(p.free) < p.max {
		b.Reset()
		p.free = append(p.free, b)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	b.free()
}

// BufferSize returns the fixed capacity of buffers issued by this pool.
func (p *Pool) BufferSize() int { return p.size }

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	free := int64(len(p.free))
	p.mu.Unlock()
	return PoolStats{
		BufferSize: p.size,
		MaxCount:   p.max,
		Active:     p.active.Load(),
		Free:       free,
		TotalAlloc: p.totalAlloc.Load(),
		TotalFree:  p.totalFree.Load(),
	}
}
