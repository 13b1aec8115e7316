//go:build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7)-based poller. All registrations are edge-triggered: a
// notification fires once per transition to ready, so consumers must drain
// until EAGAIN before the next one will arrive.

package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/linewire/api"
)

type epollPoller struct {
	epfd    int
	scratch []unix.EpollEvent
}

// New constructs the epoll-backed api.Poller.
func New() (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd}, nil
}

// epollEvents maps an interest mask to epoll bits. EPOLLRDHUP is always
// requested so peer half-closes surface as hangups instead of read loops.
func epollEvents(mask api.EventMask) uint32 {
	ev := uint32(unix.EPOLLET | unix.EPOLLRDHUP)
	if mask&api.EventReadable != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&api.EventWritable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Add registers fd for edge-triggered notification.
func (p *epollPoller) Add(fd int, mask api.EventMask) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: epollEvents(mask),
		Fd:     int32(fd),
	})
}

// Modify replaces the interest mask of a registered fd. EPOLL_CTL_MOD
// rearms the edge, so a socket that is already writable reports a fresh
// writable event.
func (p *epollPoller) Modify(fd int, mask api.EventMask) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: epollEvents(mask),
		Fd:     int32(fd),
	})
}

// Remove deregisters fd.
func (p *epollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks up to timeoutMs and translates raw epoll events into api
// events. EINTR is reported as zero events so callers can re-check their
// stop flag.
func (p *epollPoller) Wait(events []api.Event, timeoutMs int) (int, error) {
	if cap(p.scratch) < len(events) {
		p.scratch = make([]unix.EpollEvent, len(events))
	}
	raw := p.scratch[:len(events)]

	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		var mask api.EventMask
		if raw[i].Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
			mask |= api.EventReadable
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			mask |= api.EventWritable
		}
		if raw[i].Events&(unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			mask |= api.EventHangup
		}
		events[i] = api.Event{FD: int(raw[i].Fd), Mask: mask}
	}
	return n, nil
}

// Close releases the epoll descriptor.
func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

var _ api.Poller = (*epollPoller)(nil)
