// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection read/write state machine: edge-triggered drain to EAGAIN,
// newline framing, outbound queue flush with partial-send resumption, and
// idempotent teardown.

package server

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/momentics/linewire/api"
	"github.com/momentics/linewire/core/buffer"
)

const (
	// MaxMessageSize is the largest single framed message on the wire.
	MaxMessageSize = 4096

	// readCeilingMultiple bounds accumulated unframed input relative to
	// MaxMessageSize. A peer that exceeds it never sent a delimiter and
	// is treated as misbehaving.
	readCeilingMultiple = 10

	delimiter     = '\n'
	readChunkSize = 4096
)

var delim = []byte{delimiter}

// Connection lifecycle states.
const (
	stateActive int32 = iota
	stateDisconnecting
	stateClosed
)

// Conn owns one accepted socket. The event loop dispatches its readable
// events to worker tasks and drives its writable events; handlers reach it
// only through the api.Conn surface. All mutable state is observable only
// through these methods.
type Conn struct {
	fd     int
	peer   string
	poller api.Poller
	log    zerolog.Logger

	handler api.MessageHandler
	onClose func(fd int)

	state      atomic.Int32
	lastActive atomic.Int64 // unix nanos

	// readBuf accumulates unframed input. Only the drain task touches it;
	// the execution token in the server serializes those tasks.
	readBuf     []byte
	readCeiling int

	outbound *buffer.MessageQueue

	// reading is the per-connection execution token: the loop acquires it
	// before dispatching a drain task. readPending records a readable
	// event that arrived while the token was held.
	reading     atomic.Bool
	readPending atomic.Bool

	// writeMu serializes flushes between the loop thread (writable
	// events) and worker callbacks (immediate attempt after Send).
	writeMu    sync.Mutex
	writeArmed atomic.Bool

	closeOnce sync.Once
}

func newConn(fd int, peer string, pools *buffer.PoolSet, h api.MessageHandler,
	p api.Poller, readCeiling int, log zerolog.Logger, onClose func(int)) *Conn {
	c := &Conn{
		fd:          fd,
		peer:        peer,
		poller:      p,
		log:         log.With().Int("fd", fd).Str("peer", peer).Logger(),
		handler:     h,
		onClose:     onClose,
		readCeiling: readCeiling,
		outbound:    buffer.NewMessageQueue(pools),
	}
	c.touch()
	return c
}

// FD returns the socket descriptor.
func (c *Conn) FD() int { return c.fd }

// Peer returns the remote address as ip:port.
func (c *Conn) Peer() string { return c.peer }

// Connected reports whether the connection is still active.
func (c *Conn) Connected() bool { return c.state.Load() == stateActive }

// LastActive returns the time of the last successful read or write.
func (c *Conn) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Conn) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

// handleRead drains the socket until would-block, then extracts and
// delivers complete messages. Draining to exhaustion is mandatory under
// edge-triggered readiness: one notification may cover more bytes than one
// receive returns, and an undrained socket is never re-notified.
func (c *Conn) handleRead() {
	if c.state.Load() != stateActive {
		return
	}
	var chunk [readChunkSize]byte
	received := false
	peerClosed := false

	for {
		n, err := unix.Read(c.fd, chunk[:])
		if n > 0 {
			c.readBuf = append(c.readBuf, chunk[:n]...)
			received = true
			if len(c.readBuf) > c.readCeiling {
				c.log.Warn().Int("buffered", len(c.readBuf)).
					Msg("read buffer ceiling exceeded, forcing disconnect")
				c.Close()
				return
			}
			continue
		}
		if err == nil {
			// Zero-length read: graceful disconnect.
			peerClosed = true
			break
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}
		if err == unix.EINTR {
			continue
		}
		c.log.Debug().Err(err).Msg("receive failed, forcing disconnect")
		c.Close()
		return
	}

	if received {
		c.touch()
		c.extract()
	}
	if peerClosed {
		c.log.Debug().Msg("peer disconnected")
		c.Close()
	}
}

// extract scans the accumulation buffer for delimiters and delivers each
// non-empty segment, delimiter stripped, to the handler. Empty segments
// between consecutive delimiters are dropped. Bytes after the last
// delimiter stay buffered for the next drain.
//
// The message slice aliases readBuf and is invalidated by compaction, so
// delivery happens before the buffer is rewritten.
func (c *Conn) extract() {
	start := 0
	for {
		i := bytes.IndexByte(c.readBuf[start:], delimiter)
		if i < 0 {
			break
		}
		msg := c.readBuf[start : start+i]
		start += i + 1
		if len(msg) == 0 {
			continue
		}
		if c.handler != nil {
			c.handler.Receive(msg, c)
		}
		if c.state.Load() != stateActive {
			// Handler closed the connection; remaining input is moot.
			return
		}
	}
	if start > 0 {
		c.readBuf = append(c.readBuf[:0], c.readBuf[start:]...)
	}
}

// Send frames payload with the delimiter, enqueues it on the outbound
// queue and attempts an immediate flush. Failures to obtain or fill a
// buffer are recoverable and surface to the caller.
func (c *Conn) Send(payload []byte) error {
	if c.state.Load() != stateActive {
		return api.ErrClosed
	}
	if err := c.outbound.Enqueue(payload, delim); err != nil {
		c.log.Warn().Err(err).Int("size", len(payload)).Msg("send rejected")
		return err
	}
	c.handleWrite()
	return nil
}

// handleWrite flushes the outbound queue from the front buffer's cursor.
// A partial send or would-block arms write-readiness and stops instead of
// busy-looping; the next writable event resumes from the cursor.
func (c *Conn) handleWrite() {
	c.writeMu.Lock()
	fatal := c.flushLocked()
	c.writeMu.Unlock()
	// Teardown happens outside writeMu: Close reclaims the queue under
	// the same lock.
	if fatal {
		c.log.Debug().Msg("send failed, forcing disconnect")
		c.Close()
	}
}

// flushLocked drains the outbound queue while writeMu is held and reports
// whether the connection must be torn down. Holding writeMu for the whole
// pass keeps Close from releasing the buffer being transmitted.
func (c *Conn) flushLocked() bool {
	if c.state.Load() != stateActive {
		return false
	}
	for {
		front := c.outbound.Front()
		if front == nil {
			c.disarmWrite()
			return false
		}
		n, err := front.SendPartial(c.fd, front.Cursor())
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				c.armWrite()
				return false
			}
			return true
		}
		if n > 0 {
			c.touch()
		}
		if !front.Complete() {
			// Kernel took part of the buffer; wait for the next
			// writable edge rather than spinning.
			c.armWrite()
			return false
		}
		c.outbound.Pop()
	}
}

// armWrite adds write interest for this fd. EPOLL_CTL_MOD rearms the edge,
// so an already-writable socket reports a fresh event.
func (c *Conn) armWrite() {
	if c.writeArmed.CompareAndSwap(false, true) {
		if err := c.poller.Modify(c.fd, api.EventReadable|api.EventWritable); err != nil {
			c.writeArmed.Store(false)
		}
	}
}

func (c *Conn) disarmWrite() {
	if c.writeArmed.CompareAndSwap(true, false) {
		_ = c.poller.Modify(c.fd, api.EventReadable)
	}
}

// QueuedMessages returns the outbound queue depth.
func (c *Conn) QueuedMessages() int { return c.outbound.Len() }

// Close tears the connection down exactly once: queued buffers return to
// their pools, the fd leaves the poller and is closed, and the owner is
// notified. Safe to call from any goroutine and from within handlers.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(stateDisconnecting)
		// Queue reclaim waits for any in-flight flush: releasing the
		// front buffer mid-send would let the pool hand its bytes to
		// another connection.
		c.writeMu.Lock()
		c.outbound.Clear()
		c.writeMu.Unlock()
		_ = c.poller.Remove(c.fd)
		// The owner drops its table entry before the fd closes, so an
		// accept cannot reuse the number while the stale entry exists.
		if c.onClose != nil {
			c.onClose(c.fd)
		}
		_ = unix.Close(c.fd)
		c.state.Store(stateClosed)
	})
}

var _ api.Conn = (*Conn)(nil)
