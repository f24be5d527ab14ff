// skyline-http runs a small HTTP server exercising an exact route, a
// glob-fallback route, and the default 404 servlet.
package main

import (
	"flag"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/httpd"
	"github.com/s00inx/skyline/pkg/httpmsg"
	"github.com/s00inx/skyline/pkg/reactor"
	"github.com/s00inx/skyline/pkg/sklog"
)

func main() {
	port := flag.Int("port", 8889, "listen port")
	subLoops := flag.Int("sub-loops", 2, "number of I/O sub loops")
	keepAlive := flag.Bool("keepalive", false, "enable HTTP keep-alive")
	flag.Parse()

	log := sklog.New(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	re, err := reactor.NewReactor(*subLoops, log)
	if err != nil {
		sklog.Fatalf(log, "reactor init: %v", err)
	}

	srv := httpd.New(unix.SockaddrInet4{Port: *port, Addr: [4]byte{127, 0, 0, 1}}, re, log)
	srv.KeepAlive = *keepAlive

	srv.Dispatch.AddServletFunc("/skyline/xx", func(req *httpmsg.Request, resp *httpmsg.Response, _ any) int {
		resp.Body = []byte(req.String())
		return 0
	})
	srv.Dispatch.AddGlobServletFunc("/skyline/*", func(req *httpmsg.Request, resp *httpmsg.Response, _ any) int {
		resp.Body = append([]byte("Glob\r\n"), req.String()...)
		return 0
	})

	if err := srv.StartListen(); err != nil {
		sklog.Fatalf(log, "listen: %v", err)
	}
	sklog.Infof(log, "http server listening on 127.0.0.1:%d with %d sub loops, keepalive=%v", *port, *subLoops, *keepAlive)

	re.Start()
}
