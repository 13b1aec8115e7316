// File: core/mem/tracker.go
// Package mem provides lock-free accounting of pooled buffer memory.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mem

import "sync/atomic"

// DefaultLimit is the byte ceiling applied when no explicit limit is given.
const DefaultLimit = 100 << 20 // 100 MiB

// Tracker accounts for the capacity of all live message buffers.
// It is injected into pools rather than held as process-global state, so
// independent server instances (and tests) observe independent counters.
// All operations are lock-free.
type Tracker struct {
	current atomic.Int64
	peak    atomic.Int64
	limit   int64
}

// NewTracker returns a tracker with the given byte ceiling.
// A non-positive limit falls back to DefaultLimit.
func NewTracker(limit int64) *Tracker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Tracker{limit: limit}
}

// Allocate records n newly held bytes and raises the peak watermark.
// The peak update is a compare-and-retry loop: a plain read-then-write
// would lose updates under concurrent allocators.
func (t *Tracker) Allocate(n int64) {
	cur := t.current.Add(n)
	for {
		peak := t.peak.Load()
		if cur <= peak || t.peak.CompareAndSwap(peak, cur) {
			return
		}
	}
}

// Deallocate records n released bytes. Peak is never lowered.
func (t *Tracker) Deallocate(n int64) {
	t.current.Add(-n)
}

// Current returns the bytes currently held.
func (t *Tracker) Current() int64 { return t.current.Load() }

// Peak returns the high-water mark since the last Reset.
func (t *Tracker) Peak() int64 { return t.peak.Load() }

// Limit returns the configured byte ceiling.
func (t *Tracker) Limit() int64 { return t.limit }

// LimitExceeded reports whether current usage is above the ceiling.
// Pool allocation paths consult this before constructing new buffers;
// free-list reuse stays allowed since it adds no tracked bytes.
func (t *Tracker) LimitExceeded() bool {
	return t.current.Load() > t.limit
}

// Reset zeroes both counters.
func (t *Tracker) Reset() {
	t.current.Store(0)
	t.peak.Store(0)
}
