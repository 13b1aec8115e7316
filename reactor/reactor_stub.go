//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "github.com/momentics/linewire/api"

// New fails on platforms without an epoll-style readiness facility.
func New() (api.Poller, error) {
	return nil, api.ErrNotSupported
}
