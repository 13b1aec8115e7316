// File: server/options.go
// Package server defines functional options for Server construction.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/linewire/api"
	"github.com/momentics/linewire/core/buffer"
	"github.com/momentics/linewire/core/mem"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the structured logger. Library default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithHandler selects the message handler capability. Default is Echo.
func WithHandler(h api.MessageHandler) Option {
	return func(s *Server) { s.handler = h }
}

// WithExecutor injects an external task executor instead of the built-in
// worker pool. The server will not close an injected executor.
func WithExecutor(e api.Executor) Option {
	return func(s *Server) { s.exec = e }
}

// WithTracker injects the memory-accounting context shared by the buffer
// pools, letting callers scope accounting per server instance.
func WithTracker(t *mem.Tracker) Option {
	return func(s *Server) { s.tracker = t }
}

// WithPoolSet overrides the default size-classed buffer pools. The pool
// set should share the server's tracker.
func WithPoolSet(ps *buffer.PoolSet) Option {
	return func(s *Server) { s.pools = ps }
}

// WithReadCeiling overrides the per-connection cap on accumulated
// unframed input.
func WithReadCeiling(bytes int) Option {
	return func(s *Server) { s.readCeiling = bytes }
}

// WithIdleTimeout sets the inactivity cutoff for the periodic sweep.
// Zero disables sweeping.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithSweepInterval sets how often the inactivity sweep runs.
// Zero disables sweeping.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Server) { s.sweepInterval = d }
}
