// Package httpparse implements an incremental HTTP/1.x request-line
// and header parser. It stops at the blank line ending the headers;
// body accumulation by Content-Length is the session's job
// (pkg/httpsess), not the parser's.
package httpparse

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/s00inx/skyline/pkg/httpmsg"
)

// Error codes are sticky: once set, hasError stays true and further
// Execute calls are no-ops.
const (
	ErrNone              = 0
	ErrInvalidMethod     = 1000
	ErrInvalidVersion    = 1001
	ErrEmptyHeaderName   = 1002
	ErrOffsetOutOfBounds = 1003
)

// RequestParser incrementally parses a request line and its headers
// out of a growing byte buffer. It owns the httpmsg.Request it fills in.
type RequestParser struct {
	req *httpmsg.Request

	gotRequestLine bool
	headersDone    bool
	errorCode      int
}

// NewRequestParser returns a parser with a fresh, empty Request.
func NewRequestParser() *RequestParser {
	return &RequestParser{req: httpmsg.NewRequest(0, false)}
}

// Data returns the request being filled in.
func (p *RequestParser) Data() *httpmsg.Request { return p.req }

// IsFinished reports whether the blank line ending the headers has
// been seen.
func (p *RequestParser) IsFinished() bool { return p.headersDone }

// HasError reports whether a sticky parse error has been recorded.
func (p *RequestParser) HasError() bool { return p.errorCode != ErrNone }

// Error returns the sticky error code, or ErrNone if none occurred.
func (p *RequestParser) Error() int { return p.errorCode }

// SetError lets a caller (the session) impose an error from outside,
// e.g. any underlying parser error it wants to treat as terminal.
func (p *RequestParser) SetError(code int) { p.errorCode = code }

// Execute consumes complete lines from buf[off:], writing into the
// request line-by-line, and returns how many bytes were consumed.
// Once headers are done or an error is set, it is a no-op returning 0.
//
// To avoid splitting a line across calls, Execute trims its working
// window down to the last '\n' in buf[off:] before parsing anything;
// if no newline is present past off, zero bytes are consumed.
func (p *RequestParser) Execute(buf []byte, off int) int {
	if p.headersDone || p.HasError() {
		return 0
	}
	if off > len(buf) {
		p.errorCode = ErrOffsetOutOfBounds
		return 0
	}

	window := buf[off:]
	lastNL := bytes.LastIndexByte(window, '\n')
	if lastNL == -1 {
		return 0
	}
	window = window[:lastNL+1]

	consumed := 0
	for len(window) > 0 {
		idx := bytes.IndexByte(window, '\n')
		if idx == -1 {
			break
		}
		line := window[:idx+1]
		window = window[idx+1:]
		consumed += len(line)

		trimmed := trimCRLF(line)

		if !p.gotRequestLine {
			if !p.parseRequestLine(trimmed) {
				return consumed
			}
			p.gotRequestLine = true
			continue
		}

		if len(trimmed) == 0 {
			p.headersDone = true
			return consumed
		}

		if !p.parseHeaderLine(trimmed) {
			return consumed
		}
	}
	return consumed
}

func trimCRLF(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line
}

// parseRequestLine parses "METHOD SP request-target SP HTTP/x.y".
func (p *RequestParser) parseRequestLine(line []byte) bool {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 == -1 {
		p.errorCode = ErrInvalidMethod
		return false
	}
	method := httpmsg.ParseMethod(string(line[:sp1]))
	if method == httpmsg.Invalid {
		p.errorCode = ErrInvalidMethod
		return false
	}

	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 == -1 {
		p.errorCode = ErrInvalidVersion
		return false
	}
	target := string(rest[:sp2])
	versionTok := string(rest[sp2+1:])

	version, ok := parseVersionToken(versionTok)
	if !ok {
		p.errorCode = ErrInvalidVersion
		return false
	}

	path, query, fragment := splitTarget(target)

	p.req.Method = method
	p.req.Version = version
	p.req.Path = path
	p.req.Query = query
	p.req.Fragment = fragment
	return true
}

func parseVersionToken(tok string) (httpmsg.Version, bool) {
	switch tok {
	case "HTTP/1.0":
		return httpmsg.Version10, true
	case "HTTP/1.1":
		return httpmsg.Version11, true
	default:
		return 0, false
	}
}

func splitTarget(target string) (path, query, fragment string) {
	if i := strings.IndexByte(target, '#'); i != -1 {
		fragment = target[i+1:]
		target = target[:i]
	}
	if i := strings.IndexByte(target, '?'); i != -1 {
		query = target[i+1:]
		target = target[:i]
	}
	path = target
	return
}

// parseHeaderLine parses "field-name:" OWS field-value OWS, rejecting
// a zero-length name.
func (p *RequestParser) parseHeaderLine(line []byte) bool {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		p.errorCode = ErrEmptyHeaderName
		return false
	}
	name := string(bytes.TrimSpace(line[:colon]))
	if name == "" {
		p.errorCode = ErrEmptyHeaderName
		return false
	}
	value := string(bytes.TrimSpace(line[colon+1:]))
	p.req.SetHeader(name, value)
	if strings.EqualFold(name, "Connection") {
		p.req.Close = strings.EqualFold(value, "close")
	}
	return true
}

// ContentLength reads the Content-Length header, returning 0 if absent
// or unparsable.
func ContentLength(req *httpmsg.Request) int {
	v, ok := req.Header("Content-Length")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// IsCloseRequested reports whether req's Connection header asked for
// the connection to close: the value is compared
// ASCII-case-insensitively to "close"; anything else means keep-alive.
func IsCloseRequested(req *httpmsg.Request) bool {
	v, ok := req.Header("Connection")
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(v), "close")
}
