package tcpconn

import (
	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/buffer"
	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/sklog"
)

const readChunk = 1024

// OnMessageFunc is invoked once per readiness notification, after the
// edge-triggered read loop has drained the socket into buf. Handlers
// consume whatever complete messages they can from buf; leftover bytes
// persist across calls.
type OnMessageFunc func(conn *Connection, buf *buffer.Buffer)

// Connection wraps one accepted client socket. Reads are
// edge-triggered (EPOLLET): HandleReadEvent loops on read(2) until
// EAGAIN, matching detail::Connection::HandleReadEvent in the original.
type Connection struct {
	*reactor.Base
	readBuf    *buffer.Buffer
	onMessage  OnMessageFunc
	log        sklog.Logger
}

// NewConnection wraps an already-accepted, already-nonblocking-capable
// client fd. The fd is put into O_NONBLOCK here; a failure logs and
// closes the connection immediately, mirroring the original constructor.
func NewConnection(loop *reactor.Loop, fd int, log sklog.Logger) *Connection {
	c := &Connection{
		Base:    reactor.NewBase(loop, fd, unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLET),
		readBuf: buffer.New(),
		log:     log,
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		sklog.Errorf(log, "set nonblock fail: [%d] %v", fd, err)
		c.Close()
	}
	return c
}

// SetOnMessage installs the callback invoked after each read drain.
func (c *Connection) SetOnMessage(f OnMessageFunc) { c.onMessage = f }

// HandleReadEvent drains the socket until EAGAIN/EWOULDBLOCK (required
// under edge-triggering, or the next readiness edge may never arrive),
// accumulating into readBuf, then invokes onMessage exactly once with
// everything read so far. A zero-length read means the peer closed.
func (c *Connection) HandleReadEvent() bool {
	var chunk [readChunk]byte
	for {
		n, err := unix.Read(c.FD(), chunk[:])
		switch {
		case n > 0:
			if c.onMessage != nil {
				c.readBuf.Write(chunk[:n])
			}
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if c.onMessage != nil {
				c.onMessage(c, c.readBuf)
			}
			return true
		case n == 0:
			return false
		default:
			return false
		}
	}
}

// Send writes message, either immediately (same-loop call) or posted
// via RunInLoop for cross-thread callers. message is copied before
// being captured in the closure: a cross-thread post runs later, on
// another goroutine, and a caller that reuses or mutates its backing
// array (pooled buffers, a second Send call) must not corrupt a write
// still sitting in the pending queue. A short write queues the
// remainder and arms EPOLLOUT, matching Connection::SendMassage.
func (c *Connection) Send(message []byte) {
	buf := make([]byte, len(message))
	copy(buf, message)
	c.Loop().RunInLoop(func() {
		n, err := unix.Write(c.FD(), buf)
		if err != nil && err != unix.EAGAIN {
			c.Close()
			return
		}
		if n < 0 {
			n = 0
		}
		if n < len(buf) {
			c.QueueWrite(buf[n:])
		}
	})
}
