//go:build linux

// File: server/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw listener socket plumbing. Everything here is non-blocking; the
// accept path classifies transient errnos so the caller's drain loop stays
// simple.

package server

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// listenSocket creates, configures, binds and listens a non-blocking TCP
// socket on port with the given backlog.
func listenSocket(port, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("bind port %d: %w", port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

// acceptOne accepts a single pending connection as non-blocking.
// ok is false with a nil error when no more accepts are pending; EINTR and
// ECONNABORTED are retried internally.
func acceptOne(lfd int) (fd int, peer string, ok bool, err error) {
	for {
		nfd, sa, aerr := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch aerr {
		case nil:
			return nfd, sockaddrString(sa), true, nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return -1, "", false, nil
		default:
			return -1, "", false, aerr
		}
	}
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	}
	return "unknown"
}

// localAddr reports the bound address of fd, after the kernel has assigned
// any ephemeral port.
func localAddr(fd int) string {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return ""
	}
	return sockaddrString(sa)
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
