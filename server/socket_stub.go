//go:build !linux

// File: server/socket_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/linewire/api"

func listenSocket(port, backlog int) (int, error) {
	return -1, api.ErrNotSupported
}

func acceptOne(lfd int) (fd int, peer string, ok bool, err error) {
	return -1, "", false, api.ErrNotSupported
}

func localAddr(fd int) string { return "" }

func closeFD(fd int) error { return nil }
