// Package reactor implements a main/sub reactor core: one readiness
// loop per OS thread, each with its own epoll instance, wakeup fd,
// fd->context table, pending-task queue and timer, composed into a
// Reactor of one main loop plus N sub loops.
package reactor

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/s00inx/skyline/pkg/sklog"
	"github.com/s00inx/skyline/pkg/timer"
)

const maxEvents = 1000

// InitError reports a fatal failure constructing a Loop (epoll/eventfd
// creation or registration), surfaced as a typed error from NewLoop
// instead of a panic.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string { return fmt.Sprintf("reactor: %s: %v", e.Op, e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// Loop is one readiness-based event loop bound to a single OS thread
// for its entire lifetime (it locks itself to an OS thread in Run).
type Loop struct {
	epfd     int
	wakeupFD int
	events   []unix.EpollEvent

	timer *timer.Timer

	contexts map[int]Context // owning-thread only: mutated only from Run's goroutine

	pendingMu sync.Mutex
	pending   *queue.Queue

	ownerGoroutine int64 // set once Run starts
	quit           chan struct{}
	quitOnce       sync.Once
	quitClosed     bool

	log sklog.Logger
}

// NewLoop creates one epoll instance and its wakeup fd. A fatal failure
// here means the loop can never run; the caller must not call Run.
func NewLoop(log sklog.Logger) (*Loop, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, &InitError{Op: "epoll_create1", Err: err}
	}
	r0, _, errno := unix.Syscall(unix.SYS_EVENTFD2, 0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC, 0)
	if errno != 0 {
		unix.Close(epfd)
		return nil, &InitError{Op: "eventfd2", Err: errno}
	}
	wakeupFD := int(r0)

	l := &Loop{
		epfd:     epfd,
		wakeupFD: wakeupFD,
		events:   make([]unix.EpollEvent, maxEvents),
		timer:    timer.New(),
		contexts: make(map[int]Context),
		pending:  queue.New(),
		quit:     make(chan struct{}),
		log:      log,
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLPRI, Fd: int32(wakeupFD)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeupFD, &ev); err != nil {
		unix.Close(epfd)
		unix.Close(wakeupFD)
		return nil, &InitError{Op: "epoll_ctl(wakeup)", Err: err}
	}
	return l, nil
}

// Run records the calling goroutine as the owner and repeats until
// Stop: wait for readiness (timeout = time until next timer, or block
// indefinitely if none), dispatch ready fds, drain pending tasks, then
// fire expired timers.
func (l *Loop) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.ownerGoroutine = sklog.GoroutineID()

	for {
		select {
		case <-l.quit:
			return
		default:
		}

		timeout := -1
		if d := l.timer.TimeToSleep(); d >= 0 {
			timeout = int(d / time.Millisecond)
		}

		n, err := unix.EpollWait(l.epfd, l.events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			sklog.Errorf(l.log, "epoll wait error: %v", err)
			return
		}

		for i := 0; i < n; i++ {
			ev := l.events[i]
			fd := int(ev.Fd)

			if fd == l.wakeupFD {
				l.drainWakeup()
				continue
			}

			ctx, ok := l.contexts[fd]
			if !ok {
				continue // removed between epoll_wait and dispatch
			}

			if ev.Events&unix.EPOLLERR != 0 {
				sklog.Errorf(l.log, "epoll error event: fd=%d", fd)
				l.RemoveSocketContext(fd)
				continue
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				if !ctx.HandleWriteEvent() {
					sklog.Errorf(l.log, "epoll write fail: fd=%d", fd)
					l.RemoveSocketContext(fd)
					continue
				}
				if !ctx.NeedWrite() {
					ctx.SetEvents(ctx.Events() &^ uint32(unix.EPOLLOUT))
					l.UpdateSocketContext(fd, ctx.Events())
				}
			}
			if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
				if !ctx.HandleReadEvent() {
					l.RemoveSocketContext(fd)
				}
			}
		}

		l.doPendingTasks()
		l.timer.CheckTimer()
	}
}

func closeFdQuiet(fd int) {
	if fd >= 0 {
		unix.Close(fd)
	}
}

func (l *Loop) drainWakeup() {
	var buf [8]byte
	unix.Read(l.wakeupFD, buf[:])
}

// Stop is idempotent; it sets the quit flag and wakes the loop so it
// observes it promptly.
func (l *Loop) Stop() {
	l.quitOnce.Do(func() {
		l.quitClosed = true
		close(l.quit)
	})
	l.Wakeup()
}

// IsQuit reports whether Stop has been called.
func (l *Loop) IsQuit() bool { return l.quitClosed }

// Wakeup writes to the wakeup fd, an edge-triggered counter increment;
// missed wakeups are impossible because RunInLoop always enqueues its
// task before waking.
func (l *Loop) Wakeup() {
	var one [8]byte
	one[0] = 1
	unix.Write(l.wakeupFD, one[:])
}

// RunInLoop executes f inline if called from the owning goroutine,
// otherwise enqueues it under the pending mutex and wakes the loop.
func (l *Loop) RunInLoop(f func()) {
	if sklog.GoroutineID() == l.ownerGoroutine {
		f()
		return
	}
	l.pendingMu.Lock()
	l.pending.Add(f)
	l.pendingMu.Unlock()
	l.Wakeup()
}

func (l *Loop) doPendingTasks() {
	l.pendingMu.Lock()
	n := l.pending.Length()
	tasks := make([]func(), 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, l.pending.Remove().(func()))
	}
	l.pendingMu.Unlock()

	for _, t := range tasks {
		t()
	}
}

// AddSocketContext registers ctx with this loop's epoll set. Must be
// posted via RunInLoop since it mutates the fd table; callers off-loop
// get that for free by calling this method directly (it self-dispatches).
func (l *Loop) AddSocketContext(ctx Context) {
	l.RunInLoop(func() {
		fd := ctx.FD()
		if fd < 0 {
			return
		}
		if _, exists := l.contexts[fd]; exists {
			return
		}
		ev := unix.EpollEvent{Events: ctx.Events(), Fd: int32(fd)}
		l.contexts[fd] = ctx
		if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			delete(l.contexts, fd)
			sklog.Errorf(l.log, "epoll add fail: fd=%d: %v", fd, err)
			return
		}
		sklog.Debugf(l.log, "fd=%d added into epoll", fd)
	})
}

// UpdateSocketContext runs directly; callers are always already on the
// loop thread (either the loop's own dispatch, or a RunInLoop task).
func (l *Loop) UpdateSocketContext(fd int, events uint32) {
	if fd < 0 {
		return
	}
	if _, ok := l.contexts[fd]; !ok {
		return
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		sklog.Errorf(l.log, "epoll mod fail: fd=%d: %v", fd, err)
		l.RemoveSocketContext(fd)
	}
}

// RemoveSocketContext deletes fd from epoll then erases it from the
// table, posted via RunInLoop since it mutates the fd table. The fd is
// actually closed exactly once: Go has no shared_ptr-style destructor
// to hang the close off, so Close happens synchronously here, right
// after the epoll_ctl(DEL), rather than when the last reference is
// garbage collected.
func (l *Loop) RemoveSocketContext(fd int) {
	l.RunInLoop(func() {
		if fd < 0 {
			return
		}
		ctx, ok := l.contexts[fd]
		if !ok {
			return
		}
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(l.contexts, fd)
		sklog.Debugf(l.log, "fd=%d removed from epoll", fd)
		if closer, ok := ctx.(interface{ closeFD() }); ok {
			closer.closeFD()
		}
	})
}

// AddTimer schedules cb via this loop's Timer.
func (l *Loop) AddTimer(delay time.Duration, cb timer.Callback) uint64 {
	return l.timer.AddTimer(delay, cb, false)
}

// AddRecurringTimer schedules a self-re-arming timer.
func (l *Loop) AddRecurringTimer(delay time.Duration, cb timer.Callback) uint64 {
	return l.timer.AddTimer(delay, cb, true)
}

// RemoveTimer cancels a timer on a best-effort basis: a timer that has
// already fired and queued its callback is unaffected.
func (l *Loop) RemoveTimer(id uint64) bool {
	return l.timer.DelTimer(id)
}

// contextCount reports the number of live fds, used by tests asserting
// the epoll set and the fd table stay in lockstep.
func (l *Loop) contextCount() int { return len(l.contexts) }
