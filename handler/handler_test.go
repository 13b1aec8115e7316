// File: handler/handler_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package handler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/linewire/api"
)

type fakeConn struct {
	sent [][]byte
}

func (f *fakeConn) Send(payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeConn) Peer() string { return "test:0" }
func (f *fakeConn) FD() int      { return -1 }
func (f *fakeConn) Close()       {}

var _ api.Conn = (*fakeConn)(nil)

func TestEcho(t *testing.T) {
	c := &fakeConn{}
	Echo{Prefix: "echo:"}.Receive([]byte("hello"), c)
	require.Len(t, c.sent, 1)
	require.Equal(t, "echo:hello", string(c.sent[0]))
}

func TestEchoEmptyPrefix(t *testing.T) {
	c := &fakeConn{}
	Echo{}.Receive([]byte("ping"), c)
	require.Equal(t, "ping", string(c.sent[0]))
}

type fakeBroadcaster struct {
	payloads [][]byte
}

func (f *fakeBroadcaster) Broadcast(p []byte) int {
	f.payloads = append(f.payloads, p)
	return 1
}

func TestBroadcast(t *testing.T) {
	b := &fakeBroadcaster{}
	Broadcast{B: b}.Receive([]byte("fanout"), &fakeConn{})
	require.Len(t, b.payloads, 1)
	require.Equal(t, "fanout", string(b.payloads[0]))
}

func TestFunc(t *testing.T) {
	var got string
	h := Func(func(msg []byte, _ api.Conn) { got = string(msg) })
	h.Receive([]byte("adapted"), &fakeConn{})
	require.Equal(t, "adapted", got)
}
