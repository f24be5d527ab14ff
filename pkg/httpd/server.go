// Package httpd composes pkg/servlet's dispatch on top of pkg/tcpconn's
// TCP server: per-fd HTTP sessions, a 500ms idle timer, keep-alive
// management, and response serialization.
package httpd

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/buffer"
	"github.com/s00inx/skyline/pkg/httpmsg"
	"github.com/s00inx/skyline/pkg/httpparse"
	"github.com/s00inx/skyline/pkg/httpsess"
	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/servlet"
	"github.com/s00inx/skyline/pkg/sklog"
	"github.com/s00inx/skyline/pkg/tcpconn"
)

// IdleTimeout is the baseline idle window: 500ms from connection
// establishment, or from the previous response, to the arrival of the
// next complete request.
const IdleTimeout = 500 * time.Millisecond

type entry struct {
	conn *tcpconn.Connection
	sess *httpsess.Session
}

// Server glues the servlet Dispatch onto a tcpconn.Server. KeepAlive
// is the server-wide policy; a response's final close flag is
// req.Close || !KeepAlive. It defaults to false: every response
// closes unless both the server opts in and the request itself did
// not ask for Connection: close.
type Server struct {
	tcp      *tcpconn.Server
	Dispatch *servlet.Dispatch
	log      sklog.Logger

	KeepAlive bool

	mu       sync.Mutex
	sessions map[int]*entry
}

// New builds an HTTP server bound to addr on re, with a fresh Dispatch
// (baseline 404 default) and KeepAlive disabled by default.
func New(addr unix.SockaddrInet4, re *reactor.Reactor, log sklog.Logger) *Server {
	s := &Server{
		Dispatch:  servlet.NewDispatch(),
		log:       log,
		KeepAlive: false,
		sessions:  make(map[int]*entry),
	}
	s.tcp = tcpconn.NewServer(addr, re, log)
	s.tcp.AfterConnect = s.afterConnect
	s.tcp.OnRecv = s.onRecv
	return s
}

// StartListen starts accepting connections.
func (s *Server) StartListen() error { return s.tcp.StartListen() }

// StopListen stops accepting new connections; existing ones are
// unaffected (no graceful-drain support).
func (s *Server) StopListen() { s.tcp.StopListen() }

func (s *Server) afterConnect(conn *tcpconn.Connection) {
	sess := httpsess.New()
	s.mu.Lock()
	s.sessions[conn.FD()] = &entry{conn: conn, sess: sess}
	s.mu.Unlock()
	s.armIdleTimer(conn, sess)
}

func (s *Server) armIdleTimer(conn *tcpconn.Connection, sess *httpsess.Session) {
	id := conn.Loop().AddTimer(IdleTimeout, func(uint64) {
		s.mu.Lock()
		delete(s.sessions, conn.FD())
		s.mu.Unlock()
		conn.Close()
	})
	sess.SetTimerID(id)
}

func (s *Server) cancelIdleTimer(conn *tcpconn.Connection, sess *httpsess.Session) {
	if id, ok := sess.TimerID(); ok {
		conn.Loop().RemoveTimer(id)
	}
}

func (s *Server) lookup(fd int) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[fd]
}

func (s *Server) drop(fd int) {
	s.mu.Lock()
	delete(s.sessions, fd)
	s.mu.Unlock()
}

func (s *Server) onRecv(conn *tcpconn.Connection, buf *buffer.Buffer) {
	e := s.lookup(conn.FD())
	if e == nil {
		conn.Close()
		return
	}

	e.sess.Parse(buf.ReadAll())

	if e.sess.Errored() {
		s.cancelIdleTimer(conn, e.sess)
		s.drop(conn.FD())
		conn.Close()
		return
	}

	req, ok := e.sess.TryGet()
	if !ok {
		return
	}

	resp := httpmsg.NewResponse(req.Version, req.Close || !s.KeepAlive)
	s.Dispatch.Handle(req, resp, conn)
	conn.Send(resp.Serialize())

	s.cancelIdleTimer(conn, e.sess)

	if s.KeepAlive && !req.Close {
		fresh := httpsess.New()
		s.mu.Lock()
		s.sessions[conn.FD()] = &entry{conn: conn, sess: fresh}
		s.mu.Unlock()
		s.armIdleTimer(conn, fresh)
		return
	}

	s.drop(conn.FD())
	conn.Close()
}

// IsCloseRequested re-exports httpparse's Connection-header policy so
// embedders building their own servlets don't need to import
// pkg/httpparse directly just for this one helper.
func IsCloseRequested(req *httpmsg.Request) bool { return httpparse.IsCloseRequested(req) }
