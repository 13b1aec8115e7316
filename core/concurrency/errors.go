// File: core/concurrency/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "errors"

// ErrExecutorClosed is returned by Submit after Close.
var ErrExecutorClosed = errors.New("executor is closed")

// ErrQueueFull is returned by Submit when the local and global queues are
// both saturated; the task was not accepted.
var ErrQueueFull = errors.New("executor queues are full")
