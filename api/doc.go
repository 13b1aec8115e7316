// Package api
// Author: momentics <momentics@gmail.com>
//
// Shared contracts for the linewire server: handler and executor
// capabilities, the readiness facility, and common error values.
// Concrete implementations live in reactor/, core/ and server/.
package api
