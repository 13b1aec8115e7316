//go:build linux

// File: core/buffer/send_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "golang.org/x/sys/unix"

// MSG_NOSIGNAL keeps a send on a peer-closed socket from raising SIGPIPE.
const sendFlags = unix.MSG_NOSIGNAL
