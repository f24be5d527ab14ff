package httpparse

import (
	"testing"

	"github.com/s00inx/skyline/pkg/httpmsg"
)

func TestExecuteParsesRequestLineAndHeaders(t *testing.T) {
	p := NewRequestParser()
	buf := []byte("GET /skyline/xx HTTP/1.1\r\nHost: x\r\n\r\n")

	consumed := p.Execute(buf, 0)
	if consumed != len(buf) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buf))
	}
	if !p.IsFinished() {
		t.Fatal("expected IsFinished after blank line")
	}
	if p.HasError() {
		t.Fatalf("unexpected error %d", p.Error())
	}

	req := p.Data()
	if req.Method != httpmsg.Get {
		t.Fatalf("Method = %v, want GET", req.Method)
	}
	if req.Path != "/skyline/xx" {
		t.Fatalf("Path = %q", req.Path)
	}
	if v, ok := req.Header("Host"); !ok || v != "x" {
		t.Fatalf("Host header = %q,%v", v, ok)
	}
}

func TestExecuteWithoutTrailingNewlineConsumesNothing(t *testing.T) {
	p := NewRequestParser()
	buf := []byte("GET /x HTTP/1.1")
	if consumed := p.Execute(buf, 0); consumed != 0 {
		t.Fatalf("consumed = %d, want 0 with no trailing newline", consumed)
	}
	if p.IsFinished() || p.HasError() {
		t.Fatal("partial line should not finish or error the parser")
	}
}

func TestExecuteAcrossMultipleCallsAccumulates(t *testing.T) {
	p := NewRequestParser()
	full := []byte("GET /x HTTP/1.1\r\nHost: x\r\nX-Foo: bar\r\n\r\n")

	// Feed only the request line first.
	part1 := full[:len("GET /x HTTP/1.1\r\n")]
	n1 := p.Execute(part1, 0)
	if n1 != len(part1) {
		t.Fatalf("n1 = %d, want %d", n1, len(part1))
	}
	if p.IsFinished() {
		t.Fatal("should not be finished after only the request line")
	}

	n2 := p.Execute(full, n1)
	if n1+n2 != len(full) {
		t.Fatalf("total consumed = %d, want %d", n1+n2, len(full))
	}
	if !p.IsFinished() {
		t.Fatal("expected finished after remaining headers fed")
	}
	if v, _ := p.Data().Header("X-Foo"); v != "bar" {
		t.Fatalf("X-Foo = %q", v)
	}
}

func TestExecuteRejectsInvalidMethod(t *testing.T) {
	p := NewRequestParser()
	buf := []byte("BOGUS /x HTTP/1.1\r\n\r\n")
	p.Execute(buf, 0)
	if !p.HasError() || p.Error() != ErrInvalidMethod {
		t.Fatalf("Error() = %d, want %d", p.Error(), ErrInvalidMethod)
	}
}

func TestExecuteRejectsInvalidVersion(t *testing.T) {
	p := NewRequestParser()
	buf := []byte("GET /x HTTP/9.9\r\n\r\n")
	p.Execute(buf, 0)
	if !p.HasError() || p.Error() != ErrInvalidVersion {
		t.Fatalf("Error() = %d, want %d", p.Error(), ErrInvalidVersion)
	}
}

func TestExecuteRejectsEmptyHeaderName(t *testing.T) {
	p := NewRequestParser()
	buf := []byte("GET /x HTTP/1.1\r\n: value\r\n\r\n")
	p.Execute(buf, 0)
	if !p.HasError() || p.Error() != ErrEmptyHeaderName {
		t.Fatalf("Error() = %d, want %d", p.Error(), ErrEmptyHeaderName)
	}
}

func TestExecuteOffsetOutOfBounds(t *testing.T) {
	p := NewRequestParser()
	buf := []byte("GET / HTTP/1.1\r\n\r\n")
	if consumed := p.Execute(buf, len(buf)+1); consumed != 0 {
		t.Fatalf("consumed = %d, want 0", consumed)
	}
	if p.Error() != ErrOffsetOutOfBounds {
		t.Fatalf("Error() = %d, want %d", p.Error(), ErrOffsetOutOfBounds)
	}
}

func TestContentLengthAbsentIsZero(t *testing.T) {
	req := httpmsg.NewRequest(httpmsg.Version11, false)
	if ContentLength(req) != 0 {
		t.Fatal("ContentLength without header should be 0")
	}
	req.SetHeader("Content-Length", "42")
	if ContentLength(req) != 42 {
		t.Fatalf("ContentLength = %d, want 42", ContentLength(req))
	}
}

func TestIsCloseRequested(t *testing.T) {
	req := httpmsg.NewRequest(httpmsg.Version11, false)
	if IsCloseRequested(req) {
		t.Fatal("no Connection header should not request close")
	}
	req.SetHeader("Connection", "Close")
	if !IsCloseRequested(req) {
		t.Fatal("Connection: Close should request close, case-insensitively")
	}
}
