// Package servlet implements request-handler dispatch: an exact-path
// map plus an ordered glob list, both resolved under a shared/
// exclusive lock, handler execution happening outside the lock so
// handlers may themselves register further routes.
package servlet

import (
	"sync"

	"github.com/s00inx/skyline/pkg/httpmsg"
)

// Handler is the signature every servlet boils down to: populate
// response in place. session is an opaque per-connection handle (the
// TCP connection), passed through unused by the handler unless it
// needs to e.g. close the connection itself.
type Handler func(req *httpmsg.Request, resp *httpmsg.Response, session any) int

// Servlet is anything addServlet/addGlobServlet can register. A bare
// Handler also satisfies it via HandlerFunc, matching FunctionServlet
// in the original; embedders needing per-servlet state (a name, a
// counter) can implement Servlet directly instead.
type Servlet interface {
	Handle(req *httpmsg.Request, resp *httpmsg.Response, session any) int
}

// HandlerFunc adapts a bare Handler to the Servlet interface.
type HandlerFunc Handler

func (f HandlerFunc) Handle(req *httpmsg.Request, resp *httpmsg.Response, session any) int {
	return f(req, resp, session)
}

// notFoundServlet is the baseline default: status 404, a couple of
// fixed headers, and a fixed HTML body naming skyline/1.0.0.
type notFoundServlet struct{}

const notFoundBody = "<html><head><title>404 Not Found</title></head>" +
	"<body><center><h1>404 Not Found</h1></center><hr/>" +
	"<center>skyline/1.0.0</center></body></html>"

func (notFoundServlet) Handle(req *httpmsg.Request, resp *httpmsg.Response, session any) int {
	resp.Status = httpmsg.StatusNotFound
	resp.SetHeader("Server", "skyline/1.0.0")
	resp.SetHeader("Content-Type", "text/html")
	resp.Body = []byte(notFoundBody)
	return 0
}

type globEntry struct {
	pattern string
	servlet Servlet
}

// Dispatch routes a request path to a registered Servlet: an exact
// match always wins; otherwise the first glob pattern (in insertion
// order) that matches; otherwise the default servlet.
type Dispatch struct {
	mu      sync.RWMutex
	exact   map[string]Servlet
	globs   []globEntry
	deflt   Servlet
}

// NewDispatch returns a Dispatch with the baseline 404 default.
func NewDispatch() *Dispatch {
	return &Dispatch{
		exact: make(map[string]Servlet),
		deflt: notFoundServlet{},
	}
}

// Handle resolves req.Path and runs the matched servlet. This is
// itself a Servlet, so a Dispatch can be nested inside another one if
// an embedder wants that.
func (d *Dispatch) Handle(req *httpmsg.Request, resp *httpmsg.Response, session any) int {
	s := d.Match(req.Path)
	return s.Handle(req, resp, session)
}

// Match resolves path to a Servlet without running it: exact map, then
// first matching glob in insertion order, then the default.
func (d *Dispatch) Match(path string) Servlet {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if s, ok := d.exact[path]; ok {
		return s
	}
	for _, g := range d.globs {
		if fnmatch(g.pattern, path) {
			return g.servlet
		}
	}
	return d.deflt
}

// AddServlet registers an exact-path servlet, replacing any existing
// one for the same path.
func (d *Dispatch) AddServlet(uri string, s Servlet) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exact[uri] = s
}

// AddServletFunc is the Handler-accepting convenience form of AddServlet.
func (d *Dispatch) AddServletFunc(uri string, h Handler) {
	d.AddServlet(uri, HandlerFunc(h))
}

// AddGlobServlet registers a glob-pattern servlet. Re-registering an
// existing pattern removes the old entry first, so the new one moves
// to the tail of the resolution order.
func (d *Dispatch) AddGlobServlet(pattern string, s Servlet) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeGlobLocked(pattern)
	d.globs = append(d.globs, globEntry{pattern: pattern, servlet: s})
}

// AddGlobServletFunc is the Handler-accepting convenience form of
// AddGlobServlet.
func (d *Dispatch) AddGlobServletFunc(pattern string, h Handler) {
	d.AddGlobServlet(pattern, HandlerFunc(h))
}

// DelServlet removes an exact-path registration, if any.
func (d *Dispatch) DelServlet(uri string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.exact, uri)
}

// DelGlobServlet removes a glob registration, if any.
func (d *Dispatch) DelGlobServlet(pattern string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeGlobLocked(pattern)
}

func (d *Dispatch) removeGlobLocked(pattern string) {
	for i, g := range d.globs {
		if g.pattern == pattern {
			d.globs = append(d.globs[:i], d.globs[i+1:]...)
			return
		}
	}
}

// SetDefault replaces the fallback servlet run when nothing else matches.
func (d *Dispatch) SetDefault(s Servlet) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deflt = s
}
