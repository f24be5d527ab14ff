package reactor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/s00inx/skyline/pkg/sklog"
)

// Reactor owns one main Loop (the acceptor loop) and N sub loops, the
// I/O loops new connections are handed off to. A Reactor with zero sub
// loops runs everything on the main loop.
type Reactor struct {
	log      sklog.Logger
	main     *Loop
	subs     []*Loop
	next     atomic.Uint64
	wg       sync.WaitGroup
	started  bool
	startMu  sync.Mutex
}

// NewReactor creates the main loop plus min(numSubLoops,
// runtime.NumCPU()) sub loops. A failure to create any loop tears down
// everything already created and returns the InitError from the
// failing NewLoop call; for a sub loop that InitError is wrapped in an
// error naming the sub loop's index.
func NewReactor(numSubLoops int, log sklog.Logger) (*Reactor, error) {
	if n := runtime.NumCPU(); numSubLoops > n {
		numSubLoops = n
	}

	main, err := NewLoop(log)
	if err != nil {
		return nil, err
	}

	r := &Reactor{log: log, main: main}
	for i := 0; i < numSubLoops; i++ {
		sub, err := NewLoop(log)
		if err != nil {
			for _, s := range r.subs {
				s.closeLoop()
			}
			main.closeLoop()
			return nil, fmt.Errorf("reactor: sub loop %d: %w", i, err)
		}
		r.subs = append(r.subs, sub)
	}
	return r, nil
}

// MainLoop returns the acceptor loop, where listening sockets should
// be registered.
func (r *Reactor) MainLoop() *Loop { return r.main }

// NextLoop round-robins across the sub loops. With no sub loops it
// returns the main loop, so single-loop deployments work unmodified.
func (r *Reactor) NextLoop() *Loop {
	if len(r.subs) == 0 {
		return r.main
	}
	i := r.next.Add(1) - 1
	return r.subs[i%uint64(len(r.subs))]
}

// NumSubLoops reports how many sub loops were created.
func (r *Reactor) NumSubLoops() int { return len(r.subs) }

// Start runs every sub loop on its own goroutine, then blocks running
// the main loop on the calling goroutine until Stop. Call Stop from
// another goroutine (typically a signal handler owned by the embedder)
// to unblock it.
func (r *Reactor) Start() {
	r.startMu.Lock()
	if r.started {
		r.startMu.Unlock()
		return
	}
	r.started = true
	r.startMu.Unlock()

	for _, sub := range r.subs {
		sub := sub
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			sub.Run()
		}()
	}
	r.main.Run()
}

// Stop signals every loop to return from Run and waits for the sub
// loop goroutines to exit. The main loop's Run returns on the calling
// goroutine of Start, not inside Stop.
func (r *Reactor) Stop() {
	r.main.Stop()
	for _, sub := range r.subs {
		sub.Stop()
	}
	r.wg.Wait()
}

// closeLoop releases epfd/wakeupFD for a loop that never ran, used
// only when NewReactor itself fails partway through construction.
func (l *Loop) closeLoop() {
	closeFdQuiet(l.epfd)
	closeFdQuiet(l.wakeupFD)
}
