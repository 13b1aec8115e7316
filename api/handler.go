// File: api/handler.go
// Package api defines the message handler capability.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Conn is the per-connection surface exposed to message handlers.
type Conn interface {
	// Send frames payload with the wire delimiter and queues it for
	// transmission. Returns ErrClosed on a disconnected connection and
	// ErrPoolExhausted/ErrMemoryLimit/ErrBufferFull when no buffer can
	// hold the message; all of these are recoverable for the caller.
	Send(payload []byte) error

	// Peer returns the remote address as ip:port.
	Peer() string

	// FD returns the connection's socket descriptor.
	FD() int

	// Close tears the connection down. Idempotent.
	Close()
}

// MessageHandler receives one complete, delimiter-stripped message.
// The message slice is only valid for the duration of the call; handlers
// must copy it if they retain it.
type MessageHandler interface {
	Receive(message []byte, conn Conn)
}

// Executor runs fire-and-forget tasks on an arbitrary pool goroutine.
// No ordering is guaranteed across submissions.
type Executor interface {
	Submit(task func()) error
}
