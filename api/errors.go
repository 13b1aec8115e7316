// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrPoolExhausted  = errors.New("buffer pool exhausted")
	ErrMemoryLimit    = errors.New("memory limit exceeded")
	ErrBufferFull     = errors.New("buffer capacity exceeded")
	ErrClosed         = errors.New("connection is closed")
	ErrNotFound       = errors.New("connection not found")
	ErrNotStarted     = errors.New("server not started")
	ErrAlreadyRunning = errors.New("server already running")
	ErrNotSupported   = errors.New("operation not supported on this platform")
)

// StartupError wraps a fatal socket/bind/listen failure during server
// startup. Callers must treat it as unrecoverable: per-connection error
// containment does not apply before the listener exists.
type StartupError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("startup: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *StartupError) Unwrap() error { return e.Err }
