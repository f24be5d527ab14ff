// Package httpsess implements per-connection HTTP session state: an
// owned request parser, an accumulation buffer of not-yet-consumed
// bytes, ok/error flags, and an optional idle-timer id. A session
// yields at most one request.
package httpsess

import (
	"github.com/s00inx/skyline/pkg/buffer"
	"github.com/s00inx/skyline/pkg/httpmsg"
	"github.com/s00inx/skyline/pkg/httpparse"
)

// Session is per-connection HTTP parse state between request arrivals.
// The zero value is not usable; use New.
type Session struct {
	parser *httpparse.RequestParser
	acc    *buffer.Buffer

	ok      bool
	errored bool

	contentLength int
	headersDone   bool

	request *httpmsg.Request

	timerID    uint64
	hasTimerID bool
}

// New returns an empty session with a fresh parser.
func New() *Session {
	return &Session{
		parser: httpparse.NewRequestParser(),
		acc:    buffer.New(),
	}
}

// SetTimerID records the id of this session's idle timer, so it can be
// cancelled later without the caller threading it through separately.
func (s *Session) SetTimerID(id uint64) { s.timerID = id; s.hasTimerID = true }

// TimerID returns the recorded idle-timer id, if any.
func (s *Session) TimerID() (uint64, bool) { return s.timerID, s.hasTimerID }

// Errored reports whether a sticky parse error terminated the session.
func (s *Session) Errored() bool { return s.errored }

// Parse feeds newly-arrived bytes into the session. It is a no-op once
// the session is terminal (ok or errored). Bytes are appended to the
// accumulation buffer, then the request-line/header parser is driven
// as far as it can go over complete lines; the consumed prefix is
// erased. Once headers are complete, Content-Length is read (absent
// means 0); once the remaining buffer holds at least that many bytes,
// the ENTIRE remaining buffer (not just the body bytes) is moved into
// request.Body and the session becomes ok. This last detail preserves
// a quirk of the original HttpSession::Parse rather than trimming the
// buffer to exactly body_len bytes.
func (s *Session) Parse(data []byte) {
	if s.ok || s.errored {
		return
	}
	s.acc.Write(data)

	if !s.headersDone {
		consumed := s.parser.Execute(s.acc.Bytes(), 0)
		if consumed > 0 {
			s.acc.Read(consumed)
		}
		if s.parser.HasError() {
			s.errored = true
			return
		}
		if s.parser.IsFinished() {
			s.headersDone = true
			s.request = s.parser.Data()
			s.contentLength = httpparse.ContentLength(s.request)
		}
	}

	if s.headersDone && s.acc.Len() >= s.contentLength {
		s.request.Body = s.acc.ReadAll()
		s.ok = true
	}
}

// TryGet is a one-shot accessor: if a complete request is available it
// is returned and the session immediately transitions to errored
// (terminal), even though this call itself succeeded. A second call
// always returns nil, false. This mirrors HttpSession::TryGet in the
// original exactly, quirk included.
func (s *Session) TryGet() (*httpmsg.Request, bool) {
	if !s.ok {
		return nil, false
	}
	req := s.request
	s.ok = false
	s.errored = true
	return req, true
}
