// File: core/buffer/buffer.go
// Package buffer implements fixed-capacity message buffers, bounded pools
// and per-connection outbound queues with global memory accounting.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/linewire/core/mem"
)

// MessageBuffer is a fixed-capacity byte buffer with a send-progress cursor.
// Invariant: 0 <= cursor <= length <= capacity.
//
// A MessageBuffer must not be copied: its capacity is accounted against a
// tracker exactly once and copies would double the tracked bytes. Transfer
// by pointer only.
type MessageBuffer struct {
	data    []byte // len(data) == capacity, fixed at construction
	length  int
	cursor  int
	pool    *Pool // issuing pool; nil for unpooled buffers
	tracker *mem.Tracker
	freed   atomic.Bool
}

// NewMessageBuffer allocates an unpooled buffer and records its capacity
// with the tracker.
func NewMessageBuffer(capacity int, tracker *mem.Tracker) *MessageBuffer {
	tracker.Allocate(int64(capacity))
	return &MessageBuffer{
		data:    make([]byte, capacity),
		tracker: tracker,
	}
}

// Append copies p into the buffer. It is all-or-nothing: when p does not
// fit in the remaining capacity, Append returns false and the buffer is
// unchanged.
func (b *MessageBuffer) Append(p []byte) bool {
	if b.length+len(p) > len(b.data) {
		return false
	}
	copy(b.data[b.length:], p)
	b.length += len(p)
	return true
}

// AppendByte appends a single byte, with the same all-or-nothing contract.
func (b *MessageBuffer) AppendByte(c byte) bool {
	if b.length+1 > len(b.data) {
		return false
	}
	b.data[b.length] = c
	b.length++
	return true
}

// Bytes returns the filled portion of the buffer.
func (b *MessageBuffer) Bytes() []byte { return b.data[:b.length] }

// Len returns the number of bytes appended so far.
func (b *MessageBuffer) Len() int { return b.length }

// Cap returns the fixed capacity.
func (b *MessageBuffer) Cap() int { return len(b.data) }

// Remaining returns the unfilled capacity.
func (b *MessageBuffer) Remaining() int { return len(b.data) - b.length }

// Cursor returns the send-progress offset.
func (b *MessageBuffer) Cursor() int { return b.cursor }

// Complete reports whether every appended byte has been transmitted.
func (b *MessageBuffer) Complete() bool { return b.cursor >= b.length }

// Empty reports whether nothing has been appended.
func (b *MessageBuffer) Empty() bool { return b.length == 0 }

// Reset clears length and cursor for reuse. Capacity accounting is
// untouched: the backing array stays live.
func (b *MessageBuffer) Reset() {
	b.length = 0
	b.cursor = 0
}

// SendPartial transmits the bytes between from and the buffer length on a
// non-blocking socket. On success the cursor advances past the bytes
// actually written. Returns the byte count sent; a would-block result is
// reported as (0, unix.EAGAIN) and the caller decides when to retry.
func (b *MessageBuffer) SendPartial(fd int, from int) (int, error) {
	if from >= b.length {
		return 0, nil
	}
	n, err := unix.SendmsgN(fd, b.data[from:b.length], nil, nil, sendFlags)
	if n > 0 {
		b.cursor = from + n
	}
	return n, err
}

// Release returns the buffer to its issuing pool, or frees an unpooled
// buffer. After Release the buffer must not be used.
func (b *MessageBuffer) Release() {
	if b.pool != nil {
		b.pool.Release(b)
		return
	}
	b.free()
}

// free deallocates the tracked capacity exactly once.
func (b *MessageBuffer) free() {
	if b.freed.CompareAndSwap(false, true) {
		b.tracker.Deallocate(int64(len(b.data)))
	}
}
