package tcpconn

import (
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/buffer"
	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/sklog"
)

func testLogger() sklog.Logger { return sklog.New(nil) }

func newTestReactor(t *testing.T, numSubs int) *reactor.Reactor {
	t.Helper()
	r, err := reactor.NewReactor(numSubs, testLogger())
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	go r.Start()
	t.Cleanup(r.Stop)
	return r
}

func TestServerEchoesOverLoopback(t *testing.T) {
	re := newTestReactor(t, 2)

	srv := NewServer(unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}, re, testLogger())

	var received []byte
	recvCh := make(chan struct{}, 1)
	srv.OnRecv = func(conn *Connection, buf *buffer.Buffer) {
		received = append(received, buf.ReadAll()...)
		conn.Send([]byte("pong"))
		recvCh <- struct{}{}
	}

	if err := srv.StartListen(); err != nil {
		t.Fatalf("StartListen: %v", err)
	}
	defer srv.StopListen()

	port, err := sockPort(srv.acceptor.FD())
	if err != nil {
		t.Fatalf("sockPort: %v", err)
	}

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-recvCh:
	case <-time.After(time.Second):
		t.Fatal("server never received the message")
	}
	if string(received) != "ping" {
		t.Fatalf("received = %q, want %q", received, "ping")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	reply := make([]byte, 4)
	if _, err := conn.Read(reply); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(reply) != "pong" {
		t.Fatalf("reply = %q, want %q", reply, "pong")
	}
}

func TestAfterConnectRunsForAcceptedConnection(t *testing.T) {
	re := newTestReactor(t, 1)
	srv := NewServer(unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}, re, testLogger())

	connected := make(chan struct{}, 1)
	srv.AfterConnect = func(conn *Connection) {
		connected <- struct{}{}
	}
	if err := srv.StartListen(); err != nil {
		t.Fatalf("StartListen: %v", err)
	}
	defer srv.StopListen()

	port, err := sockPort(srv.acceptor.FD())
	if err != nil {
		t.Fatalf("sockPort: %v", err)
	}
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("AfterConnect never ran")
	}
}

func sockPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, err
	}
	return in4.Port, nil
}

