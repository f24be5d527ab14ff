// Package tcpconn implements the TCP server layer on top of pkg/reactor:
// a listening Acceptor, per-connection Connection contexts with
// edge-triggered reads and buffered writes, and a Server type gluing
// the two together with AfterConnect/OnRecv hooks.
package tcpconn

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/sklog"
)

// AfterAcceptFunc is invoked with a newly-accepted client fd, before it
// is wrapped in a Connection.
type AfterAcceptFunc func(clientFD int)

// Acceptor owns the listening socket. It is registered on a Reactor's
// main loop, level-triggered, and accepts exactly one connection per
// readiness notification; a deeper backlog keeps the fd's readiness
// flag set, so epoll_wait re-signals it on the next iteration.
type Acceptor struct {
	*reactor.Base
	afterAccept AfterAcceptFunc
	log         sklog.Logger
}

// NewAcceptor creates, binds and listens on a non-blocking IPv4 TCP
// socket, mirroring detail::Acceptor's constructor in the original:
// socket -> SO_REUSEADDR -> bind -> O_NONBLOCK -> listen.
func NewAcceptor(loop *reactor.Loop, addr unix.SockaddrInet4, log sklog.Logger) (*Acceptor, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, &reactor.InitError{Op: "socket", Err: err}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, &reactor.InitError{Op: "setsockopt(SO_REUSEADDR)", Err: err}
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, &reactor.InitError{Op: "bind", Err: err}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, &reactor.InitError{Op: "setnonblock", Err: err}
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, &reactor.InitError{Op: "listen", Err: err}
	}
	sklog.Infof(log, "server listen in: %d.%d.%d.%d:%d",
		addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3], addr.Port)

	return &Acceptor{
		Base: reactor.NewBase(loop, fd, unix.EPOLLIN|unix.EPOLLPRI),
		log:  log,
	}, nil
}

// SetAfterAccept installs the callback run for every accepted client fd.
func (a *Acceptor) SetAfterAccept(f AfterAcceptFunc) { a.afterAccept = f }

// HandleReadEvent accepts a single connection per call, matching
// detail::Acceptor::HandleReadEvent: the listening socket is
// level-triggered, so a backlog deeper than one connection simply
// re-signals readiness on the next epoll_wait rather than needing an
// internal drain loop here. A hard accept error (anything but
// EAGAIN/EWOULDBLOCK) ends the acceptor's life.
func (a *Acceptor) HandleReadEvent() bool {
	clientFD, _, err := unix.Accept(a.FD())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return true
		}
		sklog.Errorf(a.log, "accept fail: [%d] %v", a.FD(), err)
		return false
	}
	if a.afterAccept != nil {
		a.afterAccept(clientFD)
	}
	return true
}

func (a *Acceptor) String() string {
	return fmt.Sprintf("Acceptor{fd=%d}", a.FD())
}
