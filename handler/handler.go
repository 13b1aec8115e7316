// File: handler/handler.go
// Package handler provides stock api.MessageHandler implementations.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package handler

import "github.com/momentics/linewire/api"

// Echo replies to every message with Prefix followed by the message.
type Echo struct {
	Prefix string
}

// Receive implements api.MessageHandler.
func (e Echo) Receive(message []byte, conn api.Conn) {
	reply := make([]byte, 0, len(e.Prefix)+len(message))
	reply = append(reply, e.Prefix...)
	reply = append(reply, message...)
	// Send failures (pool exhaustion, disconnect) are the connection's
	// problem to log; the echo handler has no retry policy.
	_ = conn.Send(reply)
}

// Broadcaster relays a payload to every live connection.
// *server.Server satisfies this.
type Broadcaster interface {
	Broadcast(payload []byte) int
}

// Broadcast relays each received message to all connections.
type Broadcast struct {
	B Broadcaster
}

// Receive implements api.MessageHandler.
func (b Broadcast) Receive(message []byte, _ api.Conn) {
	b.B.Broadcast(message)
}

// Func adapts a plain function to api.MessageHandler.
type Func func(message []byte, conn api.Conn)

// Receive implements api.MessageHandler.
func (f Func) Receive(message []byte, conn api.Conn) { f(message, conn) }

var (
	_ api.MessageHandler = Echo{}
	_ api.MessageHandler = Broadcast{}
	_ api.MessageHandler = Func(nil)
)
