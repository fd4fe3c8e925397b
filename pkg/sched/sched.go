// Package sched runs every piece of coordination state on one goroutine.
//
// Components never start goroutines of their own. They receive a Scheduler
// and register deferred work through it; the Loop delivers that work on its
// own goroutine, serialized with every other posted event. Tests use Manual
// to advance time deterministically.
package sched

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrStopped = errors.New("sched: loop stopped")

// Timer is a handle for a scheduled callback.
type Timer interface {
	// Stop prevents any further invocation of the callback. It is safe to
	// call more than once and from inside the callback.
	Stop()
}

// Scheduler registers deferred callbacks. Callbacks run on the same
// goroutine as the code that registered them.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func()) Timer
	ScheduleRepeating(interval time.Duration, fn func()) Timer
	Now() time.Time
}

// Loop is a single-goroutine event loop.
type Loop struct {
	events chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

var _ Scheduler = (*Loop)(nil)

// NewLoop creates a Loop with the given event queue depth.
func NewLoop(queue int, logger *slog.Logger) *Loop {
	if queue <= 0 {
		queue = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		events: make(chan func(), queue),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.events:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event handler panicked", "panic", r)
		}
	}()
	fn()
}

// Post queues fn for execution on the loop. It returns ErrStopped once the
// loop has exited.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.events <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

func (l *Loop) Now() time.Time {
	return time.Now().UTC()
}

// ScheduleOnce runs fn on the loop after delay.
func (l *Loop) ScheduleOnce(delay time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(delay, func() {
		_ = l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

// ScheduleRepeating runs fn on the loop every interval until stopped.
func (l *Loop) ScheduleRepeating(interval time.Duration, fn func()) Timer {
	t := &loopTimer{}
	var arm func()
	arm = func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.stopped.Load() {
			return
		}
		t.timer = time.AfterFunc(interval, func() {
			_ = l.Post(func() {
				if t.stopped.Load() {
					return
				}
				fn()
				arm()
			})
		})
	}
	arm()
	return t
}

type loopTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() {
	t.stopped.Store(true)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}
