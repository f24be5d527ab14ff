package httpd

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/httpmsg"
	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/sklog"
)

func testLogger() sklog.Logger { return sklog.New(nil) }

func newTestServer(t *testing.T, numSubs int, configure ...func(*Server)) (*Server, net.Conn) {
	t.Helper()
	re, err := reactor.NewReactor(numSubs, testLogger())
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	go re.Start()
	t.Cleanup(re.Stop)

	srv := New(unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}, re, testLogger())
	srv.Dispatch.AddServletFunc("/skyline/xx", func(req *httpmsg.Request, resp *httpmsg.Response, _ any) int {
		resp.Body = []byte(req.String())
		return 0
	})
	srv.Dispatch.AddGlobServletFunc("/skyline/*", func(req *httpmsg.Request, resp *httpmsg.Response, _ any) int {
		resp.Body = append([]byte("Glob\r\n"), req.String()...)
		return 0
	})
	for _, f := range configure {
		f(srv)
	}

	if err := srv.StartListen(); err != nil {
		t.Fatalf("StartListen: %v", err)
	}
	t.Cleanup(srv.StopListen)

	port := mustPort(t, srv)
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func mustPort(t *testing.T, srv *Server) int {
	t.Helper()
	sa, err := unix.Getsockname(srv.tcp.AcceptorFD())
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	in4 := sa.(*unix.SockaddrInet4)
	return in4.Port
}

func TestExactRouteEchoesRequest(t *testing.T) {
	_, conn := newTestServer(t, 1)
	// Server KeepAlive defaults to false, so the response closes.

	req := "GET /skyline/xx HTTP/1.1\r\nHost: x\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	status, headers, body := readResponse(t, conn)
	if status != "200" {
		t.Fatalf("status = %q, want 200", status)
	}
	if !strings.HasPrefix(body, "GET /skyline/xx HTTP/1.1\r\n") {
		t.Fatalf("body = %q", body)
	}
	if headers["connection"] != "close" {
		t.Fatalf("connection header = %q, want close (default keepalive=false path)", headers["connection"])
	}
}

func TestDefaultKeepAliveIsDisabled(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	if srv.KeepAlive {
		t.Fatal("KeepAlive should default to false, matching is_keepalive{false}")
	}
}

func TestGlobFallbackWhenPathOnlyMatchesGlob(t *testing.T) {
	_, conn := newTestServer(t, 1)

	req := "GET /skyline/yy HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, _, body := readResponse(t, conn)
	if !strings.HasPrefix(body, "Glob\r\n") {
		t.Fatalf("body = %q, want Glob\\r\\n prefix", body)
	}
}

func TestDefault404ForUnmatchedPath(t *testing.T) {
	_, conn := newTestServer(t, 1)

	req := "GET /nope HTTP/1.1\r\nConnection: close\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	status, headers, body := readResponse(t, conn)
	if status != "404" {
		t.Fatalf("status = %q, want 404", status)
	}
	if headers["content-type"] != "text/html" {
		t.Fatalf("content-type = %q", headers["content-type"])
	}
	if !strings.Contains(body, "skyline/1.0.0") {
		t.Fatalf("body missing skyline/1.0.0: %q", body)
	}
}

func TestKeepAliveIdleTimeoutClosesConnection(t *testing.T) {
	_, conn := newTestServer(t, 1, func(s *Server) { s.KeepAlive = true })

	req := "GET /skyline/xx HTTP/1.1\r\nHost: x\r\n\r\n"
	conn.Write([]byte(req))
	readResponse(t, conn)

	// KeepAlive is true and the request above had no explicit
	// Connection header, so req.Close is false: the server re-arms a
	// fresh session and idle timer after responding, which then fires
	// because no further bytes ever arrive.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("expected EOF from idle timeout, got n=%d err=%v", n, err)
	}
}

func readResponse(t *testing.T, conn net.Conn) (status string, headers map[string]string, body string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)

	statusLine, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	parts := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	if len(parts) < 2 {
		t.Fatalf("malformed status line: %q", statusLine)
	}
	status = parts[1]

	headers = map[string]string{}
	contentLength := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read header line: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		kv := strings.SplitN(line, ":", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		headers[key] = val
		if key == "content-length" {
			contentLength, _ = strconv.Atoi(val)
		}
	}

	bodyBuf := make([]byte, contentLength)
	if contentLength > 0 {
		if _, err := readFull(r, bodyBuf); err != nil {
			t.Fatalf("read body: %v", err)
		}
	}
	return status, headers, string(bodyBuf)
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
