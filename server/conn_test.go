// File: server/conn_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/linewire/api"
	"github.com/momentics/linewire/core/buffer"
	"github.com/momentics/linewire/core/mem"
)

// fakePoller records interest changes without a real epoll instance.
type fakePoller struct {
	mods int
}

func (f *fakePoller) Add(fd int, mask api.EventMask) error    { return nil }
func (f *fakePoller) Modify(fd int, mask api.EventMask) error { f.mods++; return nil }
func (f *fakePoller) Remove(fd int) error                     { return nil }
func (f *fakePoller) Wait(ev []api.Event, timeoutMs int) (int, error) {
	return 0, nil
}
func (f *fakePoller) Close() error { return nil }

var _ api.Poller = (*fakePoller)(nil)

type recorder struct {
	messages []string
}

func (r *recorder) Receive(msg []byte, _ api.Conn) {
	r.messages = append(r.messages, string(msg))
}

// testConn builds a Conn over one end of a socketpair; the other end plays
// the remote peer.
func testConn(t *testing.T, h api.MessageHandler, opts ...func(*Conn)) (*Conn, int, *buffer.PoolSet) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))

	tr := mem.NewTracker(1 << 20)
	pools := buffer.NewPoolSet(buffer.DefaultClasses, tr)
	c := newConn(fds[0], "test:0", pools, h, &fakePoller{},
		readCeilingMultiple*MaxMessageSize, zerolog.Nop(), nil)
	for _, o := range opts {
		o(c)
	}
	t.Cleanup(func() {
		c.Close()
		unix.Close(fds[1])
	})
	return c, fds[1], pools
}

func TestExtractFraming(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		want   []string
		remain string
	}{
		{"two messages", "a\nb\n", []string{"a", "b"}, ""},
		{"empty segment dropped", "a\n\nb\n", []string{"a", "b"}, ""},
		{"no delimiter stays buffered", "abc", nil, "abc"},
		{"trailing partial", "one\ntwo\nthr", []string{"one", "two"}, "thr"},
		{"only delimiters", "\n\n\n", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			c, _, _ := testConn(t, rec)
			c.readBuf = append(c.readBuf, tc.input...)
			c.extract()
			require.Equal(t, tc.want, rec.messages)
			require.Equal(t, tc.remain, string(c.readBuf))
		})
	}
}

func TestHandleReadDrainsAndDelivers(t *testing.T) {
	rec := &recorder{}
	c, peer, _ := testConn(t, rec)

	_, err := unix.Write(peer, []byte("hello\nworld\n"))
	require.NoError(t, err)
	c.handleRead()
	require.Equal(t, []string{"hello", "world"}, rec.messages)
	require.True(t, c.Connected())

	// A partial frame accumulates across drains.
	_, err = unix.Write(peer, []byte("par"))
	require.NoError(t, err)
	c.handleRead()
	require.Len(t, rec.messages, 2)

	_, err = unix.Write(peer, []byte("tial\n"))
	require.NoError(t, err)
	c.handleRead()
	require.Equal(t, "partial", rec.messages[2])
}

func TestHandleReadPeerClose(t *testing.T) {
	rec := &recorder{}
	c, peer, _ := testConn(t, rec)

	_, err := unix.Write(peer, []byte("bye\n"))
	require.NoError(t, err)
	require.NoError(t, unix.Close(peer))

	c.handleRead()
	require.Equal(t, []string{"bye"}, rec.messages, "bytes before the close are still delivered")
	require.False(t, c.Connected())
}

func TestHandleReadCeilingForcesDisconnect(t *testing.T) {
	rec := &recorder{}
	c, peer, _ := testConn(t, rec, func(c *Conn) { c.readCeiling = 16 })

	_, err := unix.Write(peer, []byte(strings.Repeat("x", 64)))
	require.NoError(t, err)
	c.handleRead()
	require.False(t, c.Connected(), "unterminated oversized input is a protocol violation")
	require.Empty(t, rec.messages)
}

func TestSendAndFlush(t *testing.T) {
	c, peer, pools := testConn(t, nil)

	require.NoError(t, c.Send([]byte("reply")))

	out := make([]byte, 64)
	n, err := unix.Read(peer, out)
	require.NoError(t, err)
	require.Equal(t, "reply\n", string(out[:n]), "delimiter appended on the wire")
	require.Equal(t, 0, c.QueuedMessages(), "flushed buffer leaves the queue")
	require.EqualValues(t, 0, activeBuffers(pools))
}

func TestSendOnClosedConn(t *testing.T) {
	c, _, _ := testConn(t, nil)
	c.Close()
	require.ErrorIs(t, c.Send([]byte("late")), api.ErrClosed)
}

func TestSendOversized(t *testing.T) {
	c, _, _ := testConn(t, nil)
	err := c.Send(make([]byte, MaxMessageSize+1))
	require.ErrorIs(t, err, api.ErrBufferFull)
}

func TestCloseIdempotent(t *testing.T) {
	c, _, pools := testConn(t, nil)

	// Enqueue without flushing so teardown has buffers to reclaim.
	require.NoError(t, c.outbound.Enqueue([]byte("queued"), delim))
	require.EqualValues(t, 1, activeBuffers(pools))

	c.Close()
	c.Close()
	require.False(t, c.Connected())
	require.Equal(t, 0, c.QueuedMessages())
	require.EqualValues(t, 0, activeBuffers(pools),
		"close returns queued buffers to the pool exactly once")
}

// TestCloseDuringFlushReclaimsSafely races teardown against an in-flight
// flush that stalls on a partial send (tiny SO_SNDBUF, large buffer).
// Close must wait for the flush pass before releasing the front buffer,
// or the pool could re-issue a buffer another goroutine is still sending.
func TestCloseDuringFlushReclaimsSafely(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetsockoptInt(fds[0], unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))

	tr := mem.NewTracker(16 << 20)
	pools := buffer.NewPoolSet([]buffer.ClassConfig{{Size: 512 << 10, MaxCount: 4}}, tr)
	c := newConn(fds[0], "test:0", pools, nil, &fakePoller{},
		readCeilingMultiple*MaxMessageSize, zerolog.Nop(), nil)

	require.NoError(t, c.outbound.Enqueue(make([]byte, 512<<10)))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.handleWrite()
	}()
	go func() {
		defer wg.Done()
		c.Close()
	}()
	wg.Wait()

	require.False(t, c.Connected())
	require.Equal(t, 0, c.QueuedMessages())
	require.EqualValues(t, 0, activeBuffers(pools),
		"every queued buffer returns to the pool exactly once")
}

// TestSendDuringCloseNeverStrandsBuffer hammers the Send/Close race: a
// send that slips past the state check after teardown reclaimed the queue
// must still return its buffer to the pool.
func TestSendDuringCloseNeverStrandsBuffer(t *testing.T) {
	for i := 0; i < 100; i++ {
		c, _, pools := testConn(t, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = c.Send([]byte("payload"))
			}
		}()
		go func() {
			defer wg.Done()
			c.Close()
		}()
		wg.Wait()

		require.EqualValues(t, 0, activeBuffers(pools),
			"sends racing teardown must not leak pool capacity")
	}
}

func TestCloseNotifiesOwnerBeforeDescriptorRelease(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])
	require.NoError(t, unix.SetNonblock(fds[0], true))

	tr := mem.NewTracker(1 << 20)
	pools := buffer.NewPoolSet(buffer.DefaultClasses, tr)

	fdOpenAtCallback := false
	c := newConn(fds[0], "test:0", pools, nil, &fakePoller{},
		readCeilingMultiple*MaxMessageSize, zerolog.Nop(), func(fd int) {
			// While the callback runs the descriptor number must still
			// be reserved, so a concurrent accept cannot reuse it and
			// collide in the owner's table.
			_, ferr := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
			fdOpenAtCallback = ferr == nil
		})
	c.Close()
	require.True(t, fdOpenAtCallback,
		"owner notification must precede descriptor release")
}

func activeBuffers(ps *buffer.PoolSet) int64 {
	var n int64
	for _, st := range ps.Stats() {
		n += st.Active
	}
	return n
}
