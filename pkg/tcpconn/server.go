package tcpconn

import (
	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/buffer"
	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/sklog"
)

// AfterConnectFunc runs once, right after a Connection is constructed
// and before it is registered with its sub loop.
type AfterConnectFunc func(conn *Connection)

// RecvFunc runs on every readiness-driven read drain.
type RecvFunc func(conn *Connection, buf *buffer.Buffer)

// Server manages one Acceptor bound to a Reactor's main loop, handing
// every accepted connection to the next sub loop in round-robin order.
// Embedders set AfterConnect/OnRecv to customize per-connection
// behavior; both default to no-ops, matching TcpServer's virtual hooks
// in the original (Go has no virtual dispatch, so these are fields
// instead of overridable methods).
type Server struct {
	addr        unix.SockaddrInet4
	reactor     *reactor.Reactor
	log         sklog.Logger
	acceptor    *Acceptor
	AfterConnect AfterConnectFunc
	OnRecv       RecvFunc
}

// NewServer binds addr but does not listen yet; call StartListen.
func NewServer(addr unix.SockaddrInet4, re *reactor.Reactor, log sklog.Logger) *Server {
	return &Server{addr: addr, reactor: re, log: log}
}

// StartListen creates the Acceptor on the reactor's main loop and
// wires its AfterAccept callback to spin up a Connection on the next
// sub loop, matching TcpServer::StartListen.
func (s *Server) StartListen() error {
	acceptor, err := NewAcceptor(s.reactor.MainLoop(), s.addr, s.log)
	if err != nil {
		return err
	}
	s.acceptor = acceptor

	acceptor.SetAfterAccept(func(clientFD int) {
		loop := s.reactor.NextLoop()
		conn := NewConnection(loop, clientFD, s.log)
		conn.SetOnMessage(func(c *Connection, buf *buffer.Buffer) {
			if s.OnRecv != nil {
				s.OnRecv(c, buf)
			}
		})
		if s.AfterConnect != nil {
			s.AfterConnect(conn)
		}
		loop.AddSocketContext(conn)
	})

	s.reactor.MainLoop().AddSocketContext(acceptor)
	return nil
}

// StopListen removes the listening socket from the main loop.
func (s *Server) StopListen() {
	if s.acceptor == nil {
		return
	}
	s.reactor.MainLoop().RemoveSocketContext(s.acceptor.FD())
}

// AcceptorFD returns the listening socket's fd, valid after
// StartListen; tests use it to discover the ephemeral port bound when
// Port is 0.
func (s *Server) AcceptorFD() int {
	if s.acceptor == nil {
		return -1
	}
	return s.acceptor.FD()
}
