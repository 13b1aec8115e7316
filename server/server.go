// File: server/server.go
// Package server implements the readiness-driven connection multiplexer:
// accept, edge-triggered dispatch to a bounded worker pool, writable-event
// flushing and graceful teardown.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/momentics/linewire/api"
	"github.com/momentics/linewire/control"
	"github.com/momentics/linewire/core/buffer"
	"github.com/momentics/linewire/core/concurrency"
	"github.com/momentics/linewire/core/mem"
	"github.com/momentics/linewire/handler"
	"github.com/momentics/linewire/reactor"
)

const (
	// waitTimeoutMs bounds the readiness wait so the loop observes the
	// stop flag even with no traffic.
	waitTimeoutMs = 1000
	maxEvents     = 128

	// DefaultIdleTimeout is the inactivity cutoff for the periodic sweep.
	DefaultIdleTimeout = 5 * time.Minute
	// DefaultSweepInterval is how often the sweep runs.
	DefaultSweepInterval = 30 * time.Second
)

// Server owns the listening socket, the poller and the connection table.
// One goroutine runs the Run loop; worker tasks drain individual
// connections in parallel.
type Server struct {
	cfg     control.Config
	log     zerolog.Logger
	handler api.MessageHandler

	exec    api.Executor
	ownExec *concurrency.Executor // set when the server built the executor

	tracker *mem.Tracker
	pools   *buffer.PoolSet

	poller   api.Poller
	listenFD int
	addr     string

	// conns is written only by the accept path and the connection close
	// callback; broadcast, sweep and stats callers read it lock-free.
	conns *xsync.Map[int, *Conn]

	readCeiling   int
	idleTimeout   time.Duration
	sweepInterval time.Duration
	sweepStop     chan struct{}

	started  atomic.Bool
	running  atomic.Bool
	stopOnce sync.Once
}

// New builds a Server from cfg. Unset collaborators get defaults: an Echo
// handler, a fresh tracker and size-classed pool set, and an executor
// sized to cfg.ThreadCount.
func New(cfg control.Config, opts ...Option) *Server {
	s := &Server{
		cfg:           cfg,
		log:           zerolog.Nop(),
		listenFD:      -1,
		conns:         xsync.NewMap[int, *Conn](),
		readCeiling:   readCeilingMultiple * MaxMessageSize,
		idleTimeout:   DefaultIdleTimeout,
		sweepInterval: DefaultSweepInterval,
		sweepStop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.tracker == nil {
		s.tracker = mem.NewTracker(mem.DefaultLimit)
	}
	if s.pools == nil {
		s.pools = buffer.NewPoolSet(buffer.DefaultClasses, s.tracker)
	}
	if s.handler == nil {
		s.handler = handler.Echo{Prefix: "echo:"}
	}
	if s.exec == nil {
		e := concurrency.NewExecutor(s.cfg.ThreadCount)
		s.exec = e
		s.ownExec = e
	}
	return s
}

// Start creates the listening socket and the readiness facility and
// registers the listener for edge-triggered read events. Any failure is a
// fatal api.StartupError: the caller must not retry.
func (s *Server) Start() error {
	if s.started.Load() {
		return api.ErrAlreadyRunning
	}
	fd, err := listenSocket(s.cfg.Port, s.cfg.MaxConnections)
	if err != nil {
		return &api.StartupError{Op: "listen socket", Err: err}
	}
	p, err := reactor.New()
	if err != nil {
		_ = closeFD(fd)
		return &api.StartupError{Op: "create poller", Err: err}
	}
	if err := p.Add(fd, api.EventReadable); err != nil {
		_ = closeFD(fd)
		_ = p.Close()
		return &api.StartupError{Op: "register listener", Err: err}
	}
	s.listenFD = fd
	s.poller = p
	s.addr = localAddr(fd)
	s.started.Store(true)
	s.log.Info().Str("addr", s.addr).
		Int("max_connections", s.cfg.MaxConnections).
		Int("workers", s.cfg.ThreadCount).
		Msg("server started")
	return nil
}

// Addr returns the bound listen address, useful when Port was 0.
func (s *Server) Addr() string { return s.addr }

// Run blocks in the readiness loop until Stop. Accept readiness drains all
// pending accepts; connection readiness is dispatched to worker tasks;
// writable readiness flushes outbound queues on the loop goroutine.
func (s *Server) Run() error {
	if !s.started.Load() {
		return api.ErrNotStarted
	}
	if !s.running.CompareAndSwap(false, true) {
		return api.ErrAlreadyRunning
	}
	if s.idleTimeout > 0 && s.sweepInterval > 0 {
		go s.sweepLoop()
	}

	events := make([]api.Event, maxEvents)
	for s.running.Load() {
		n, err := s.poller.Wait(events, waitTimeoutMs)
		if err != nil {
			if !s.running.Load() {
				break // poller closed by Stop
			}
			s.log.Error().Err(err).Msg("readiness wait failed")
			return err
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.FD == s.listenFD {
				s.acceptPending()
				continue
			}
			c, ok := s.conns.Load(ev.FD)
			if !ok {
				continue
			}
			if ev.Mask&api.EventHangup != 0 {
				c.Close()
				continue
			}
			if ev.Mask&api.EventWritable != 0 {
				c.handleWrite()
			}
			if ev.Mask&api.EventReadable != 0 {
				s.dispatchRead(c)
			}
		}
	}
	return nil
}

// acceptPending drains the listener until accept reports would-block; a
// single edge may cover any number of queued connections.
func (s *Server) acceptPending() {
	for {
		fd, peer, ok, err := acceptOne(s.listenFD)
		if err != nil {
			s.log.Warn().Err(err).Msg("accept failed")
			return
		}
		if !ok {
			return
		}
		if s.cfg.MaxConnections > 0 && s.conns.Size() >= s.cfg.MaxConnections {
			s.log.Warn().Str("peer", peer).Msg("connection ceiling reached, rejecting")
			_ = closeFD(fd)
			continue
		}
		c := newConn(fd, peer, s.pools, s.handler, s.poller, s.readCeiling,
			s.log, s.removeConn)
		if err := s.poller.Add(fd, api.EventReadable); err != nil {
			s.log.Error().Err(err).Str("peer", peer).Msg("poller registration failed")
			_ = closeFD(fd)
			continue
		}
		s.conns.Store(fd, c)
		s.log.Info().Str("peer", peer).Int("fd", fd).Msg("connection accepted")
	}
}

// removeConn is the Conn close callback; runs at most once per connection.
func (s *Server) removeConn(fd int) {
	s.conns.Delete(fd)
	s.log.Debug().Int("fd", fd).Msg("connection removed")
}

// dispatchRead submits a drain task, serialized per connection by the
// execution token. The pending flag is raised before the token is
// contended: a drain task releasing the token re-checks the flag, so an
// event landing in that window is picked up by one side or the other and
// never dropped. Under edge-triggered readiness a dropped event would
// strand buffered input until the peer sends again.
func (s *Server) dispatchRead(c *Conn) {
	c.readPending.Store(true)
	if !c.reading.CompareAndSwap(false, true) {
		return
	}
	if err := s.exec.Submit(func() { s.drainTask(c) }); err != nil {
		// Saturated or closed executor: drain on the loop thread rather
		// than dropping the edge.
		s.log.Warn().Err(err).Int("fd", c.fd).Msg("executor rejected drain task, draining inline")
		s.drainTask(c)
	}
}

func (s *Server) drainTask(c *Conn) {
	for {
		c.readPending.Store(false)
		c.handleRead()
		c.reading.Store(false)
		if !c.readPending.Load() {
			return
		}
		if !c.reading.CompareAndSwap(false, true) {
			return
		}
	}
}

// Stop transitions the server to its terminal state: the run loop flag
// drops, every tracked connection closes gracefully, and the listener and
// poller descriptors are released. Idempotent; in-flight worker tasks
// observe the disconnected state instead of being waited on.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.running.Store(false)
		close(s.sweepStop)
		s.conns.Range(func(fd int, c *Conn) bool {
			c.Close()
			return true
		})
		if s.listenFD >= 0 {
			err = multierr.Append(err, closeFD(s.listenFD))
		}
		if s.poller != nil {
			err = multierr.Append(err, s.poller.Close())
		}
		if s.ownExec != nil {
			s.ownExec.Close()
		}
		s.log.Info().Msg("server stopped")
	})
	return err
}

// CleanupInactive closes connections idle longer than timeout and returns
// how many were closed.
func (s *Server) CleanupInactive(timeout time.Duration) int {
	cutoff := time.Now().Add(-timeout)
	n := 0
	s.conns.Range(func(fd int, c *Conn) bool {
		if c.LastActive().Before(cutoff) {
			s.log.Info().Str("peer", c.Peer()).Msg("closing idle connection")
			c.Close()
			n++
		}
		return true
	})
	return n
}

func (s *Server) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.CleanupInactive(s.idleTimeout)
		}
	}
}

// Broadcast sends payload to every live connection and returns the number
// of successful enqueues. Per-connection failures are contained.
func (s *Server) Broadcast(payload []byte) int {
	n := 0
	s.conns.Range(func(fd int, c *Conn) bool {
		if c.Send(payload) == nil {
			n++
		}
		return true
	})
	return n
}

// SendTo sends payload to the connection identified by fd.
func (s *Server) SendTo(fd int, payload []byte) error {
	c, ok := s.conns.Load(fd)
	if !ok {
		return api.ErrNotFound
	}
	return c.Send(payload)
}

// ConnectionCount returns the number of tracked connections.
func (s *Server) ConnectionCount() int { return s.conns.Size() }

// PoolStats returns per-class buffer pool snapshots.
func (s *Server) PoolStats() map[int]buffer.PoolStats { return s.pools.Stats() }

// Tracker exposes the server's memory accounting.
func (s *Server) Tracker() *mem.Tracker { return s.tracker }

var _ control.StatsSource = (*Server)(nil)
