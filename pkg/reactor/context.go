package reactor

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/buffer"
)

// Context is one per kernel file descriptor. A Loop stores one Context
// per watched fd and dispatches readiness events to it; Acceptor and
// Connection are the two specializations.
type Context interface {
	FD() int
	Events() uint32
	SetEvents(events uint32)
	HandleReadEvent() bool
	HandleWriteEvent() bool
	NeedWrite() bool
	// Close schedules removal of this context from its owning loop.
	// Implementations must eventually cause the base Close path
	// (Loop.RemoveSocketContext) to run, or the fd is leaked until the
	// process exits.
	Close()
}

// Base implements the common fd+events+write-buffer plumbing shared by
// every Context, mirroring skyline::core::detail::SocketContext in the
// original. Embedders provide HandleReadEvent and a Close that calls
// loop.RemoveSocketContext.
type Base struct {
	loop     *Loop
	fd       int
	events   uint32
	writeBuf *buffer.Buffer
	closeFn  sync.Once
}

// NewBase wires a Base to its owning loop, fd and initial watched
// event mask.
func NewBase(loop *Loop, fd int, events uint32) *Base {
	return &Base{loop: loop, fd: fd, events: events, writeBuf: buffer.New()}
}

// Close posts removal of this fd to the owning loop. Embedders may
// promote this directly to satisfy Context.Close, or wrap it to add
// their own teardown before/after removal.
func (b *Base) Close() { b.loop.RemoveSocketContext(b.fd) }

// closeFD actually closes the kernel fd, exactly once, and only ever
// called by Loop.RemoveSocketContext after the epoll_ctl(DEL) — see
// the invariant note on RemoveSocketContext in loop.go.
func (b *Base) closeFD() {
	b.closeFn.Do(func() {
		unix.Close(b.fd)
	})
}

func (b *Base) FD() int            { return b.fd }
func (b *Base) Loop() *Loop        { return b.loop }
func (b *Base) Events() uint32     { return b.events }
func (b *Base) SetEvents(e uint32) { b.events = e }
func (b *Base) NeedWrite() bool    { return b.writeBuf.Len() > 0 }

// HandleWriteEvent attempts a single non-blocking write of everything
// buffered. On success it consumes bytes_written from the buffer and
// returns true; a negative write result returns false so the caller
// removes the context. unix.Write reports n = -1 for every failure,
// EAGAIN included, so an EAGAIN here also returns false.
func (b *Base) HandleWriteEvent() bool {
	if b.writeBuf.Len() == 0 {
		return true
	}
	n, err := unix.Write(b.fd, b.writeBuf.Bytes())
	if n < 0 || (err != nil && err != unix.EAGAIN) {
		return false
	}
	if n > 0 {
		b.writeBuf.Read(n)
	}
	return true
}

// QueueWrite appends unsent bytes to the write buffer and arms EPOLLOUT.
// Embedders call this after a short direct write to hand the remainder
// to the loop's readiness-driven HandleWriteEvent.
func (b *Base) QueueWrite(rest []byte) {
	b.writeBuf.Write(rest)
	b.events |= unix.EPOLLOUT
	b.loop.UpdateSocketContext(b.fd, b.events)
}
