// Package runloop provides the single cooperative loop that owns all
// observables, printer state and renderer state. Transport goroutines never
// touch those directly; they post closures here and the loop runs them in
// arrival order, one at a time.
package runloop

import (
	"errors"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("runloop: loop closed")

// Poster is the posting side of a loop. The Moonraker client only needs
// this; tests substitute an immediate executor.
type Poster interface {
	Post(fn func())
}

// Loop is a FIFO executor. Post may be called from any goroutine; Run must
// be called from exactly one.
type Loop struct {
	ops    chan func()
	quit   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func New() *Loop {
	return &Loop{
		ops:  make(chan func(), 256),
		quit: make(chan struct{}),
	}
}

// Post enqueues fn for execution on the loop goroutine. Posts after Stop
// are dropped.
func (l *Loop) Post(fn func()) {
	if l.closed.Load() {
		return
	}
	select {
	case l.ops <- fn:
	case <-l.quit:
	}
}

// Run processes posted closures until Stop is called. Closures run strictly
// in the order they were posted.
func (l *Loop) Run() {
	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.quit:
			// Drain whatever was already queued so pending continuations
			// still run before shutdown.
			for {
				select {
				case fn := <-l.ops:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Stop ends Run after the queue drains.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.quit)
	})
}

// Immediate is a Poster that runs closures inline. It exists for tests and
// for tools that drive the core from a single goroutine anyway.
type Immediate struct{}

func (Immediate) Post(fn func()) { fn() }
