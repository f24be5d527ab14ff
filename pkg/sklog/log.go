// Package sklog adapts the standard library's slog to the minimal
// logging contract the core assumes: log(level, file, line, goroutine,
// ts, message). The reactor and HTTP layers never construct a logger
// themselves; one is always passed in by the embedder.
package sklog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Level enumerates the severities Logger accepts.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case Debug:
		return slog.LevelDebug
	case Warn:
		return slog.LevelWarn
	case Error, Fatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the contract the core depends on. Any embedder can satisfy
// it; SlogLogger wraps log/slog.
type Logger interface {
	Log(level Level, file string, line int, goroutineID int64, ts time.Time, msg string)
}

// SlogLogger is the default Logger, backed by log/slog.
type SlogLogger struct {
	h       *slog.Logger
	onFatal func()
}

// New builds a SlogLogger writing through h, or through slog.Default()
// when h is nil.
func New(h *slog.Logger) *SlogLogger {
	if h == nil {
		h = slog.Default()
	}
	return &SlogLogger{h: h, onFatal: func() { os.Exit(1) }}
}

func (l *SlogLogger) Log(level Level, file string, line int, goroutineID int64, ts time.Time, msg string) {
	l.h.LogAttrs(context.Background(), level.slogLevel(), msg,
		slog.String("file", fmt.Sprintf("%s:%d", file, line)),
		slog.Int64("goroutine", goroutineID),
		slog.Time("ts", ts),
	)
	if level == Fatal && l.onFatal != nil {
		l.onFatal()
	}
}

// SetFatalHook overrides the action taken after a Fatal log line; tests
// use this to avoid exiting the process.
func (l *SlogLogger) SetFatalHook(f func()) { l.onFatal = f }

// Callsite reports the file/line of the caller `skip` frames up, and the
// id of the calling goroutine parsed off its own stack trace. Go has no
// native thread identifier; this is the idiomatic substitute used by
// goroutine-aware log libraries.
func Callsite(skip int) (file string, line int, goroutineID int64) {
	_, file, line, _ = runtime.Caller(skip + 1)
	return file, line, goroutineID0()
}

// GoroutineID returns the id of the calling goroutine, parsed off its
// own stack trace header. Exported so other packages (reactor's
// RunInLoop owner check in particular) can use the same substitute for
// a native thread id that the logger uses.
func GoroutineID() int64 { return goroutineID0() }

func goroutineID0() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id int64
	for _, c := range buf[len("goroutine "):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}

// Debugf, Infof, Warnf, Errorf, Fatalf are convenience wrappers that fill
// in the callsite and timestamp automatically.
func logf(l Logger, level Level, format string, args ...any) {
	file, line, gid := Callsite(2)
	l.Log(level, file, line, gid, time.Now(), fmt.Sprintf(format, args...))
}

func Debugf(l Logger, format string, args ...any) { logf(l, Debug, format, args...) }
func Infof(l Logger, format string, args ...any)  { logf(l, Info, format, args...) }
func Warnf(l Logger, format string, args ...any)  { logf(l, Warn, format, args...) }
func Errorf(l Logger, format string, args ...any) { logf(l, Error, format, args...) }
func Fatalf(l Logger, format string, args ...any) { logf(l, Fatal, format, args...) }
