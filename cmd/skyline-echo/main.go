// skyline-echo runs a minimal TCP server that sends back exactly the
// bytes it reads, for exercising the reactor and tcpconn packages.
package main

import (
	"flag"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/buffer"
	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/sklog"
	"github.com/s00inx/skyline/pkg/tcpconn"
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "listen address")
	port := flag.Int("port", 8888, "listen port")
	subLoops := flag.Int("sub-loops", 2, "number of I/O sub loops")
	flag.Parse()

	log := sklog.New(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	re, err := reactor.NewReactor(*subLoops, log)
	if err != nil {
		sklog.Fatalf(log, "reactor init: %v", err)
	}

	ip := parseIPv4(*addr)
	srv := tcpconn.NewServer(unix.SockaddrInet4{Port: *port, Addr: ip}, re, log)
	srv.OnRecv = func(conn *tcpconn.Connection, buf *buffer.Buffer) {
		conn.Send(buf.ReadAll())
	}
	srv.AfterConnect = func(conn *tcpconn.Connection) {
		sklog.Infof(log, "accepted fd=%d", conn.FD())
	}

	if err := srv.StartListen(); err != nil {
		sklog.Fatalf(log, "listen: %v", err)
	}
	sklog.Infof(log, "echo server listening on %s:%d with %d sub loops", *addr, *port, *subLoops)

	re.Start()
}

func parseIPv4(s string) [4]byte {
	var out [4]byte
	part, idx := 0, 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			for j := idx; j < i; j++ {
				out[part] = out[part]*10 + (s[j] - '0')
			}
			part++
			idx = i + 1
		}
	}
	return out
}
