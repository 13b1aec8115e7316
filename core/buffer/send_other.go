//go:build !linux

// File: core/buffer/send_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

// Non-Linux unix platforms have no MSG_NOSIGNAL; SIGPIPE suppression is
// left to the Go runtime's signal handling.
const sendFlags = 0
