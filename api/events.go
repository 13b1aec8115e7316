// File: api/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventMask is a bitset of readiness conditions reported for a descriptor.
type EventMask uint32

const (
	// EventReadable indicates bytes (or pending accepts) are available.
	EventReadable EventMask = 1 << iota
	// EventWritable indicates the transport buffer has room again.
	EventWritable
	// EventHangup indicates peer hangup or a descriptor-level error.
	EventHangup
)

// Event is a single readiness notification delivered by a Poller.
type Event struct {
	FD   int
	Mask EventMask
}

// Poller is the edge-triggered readiness facility. One goroutine owns the
// Wait loop; Add/Modify/Remove are safe to call from other goroutines.
type Poller interface {
	// Add registers fd for edge-triggered notification of mask conditions.
	// Hangup conditions are always reported regardless of mask.
	Add(fd int, mask EventMask) error

	// Modify replaces the interest mask of an already-registered fd.
	Modify(fd int, mask EventMask) error

	// Remove deregisters fd.
	Remove(fd int) error

	// Wait blocks up to timeoutMs for readiness and fills events.
	// Returns the number of events written. An interrupted wait reports
	// zero events and no error.
	Wait(events []Event, timeoutMs int) (int, error)

	// Close releases the underlying readiness descriptor.
	Close() error
}
