// Package loop runs every state mutation of the orchestrator on one logical
// thread. Network callbacks, timers and blocking dials never touch state
// directly; they hand closures to the loop, which executes them one at a
// time and to completion.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const defaultBuffer = 256

// Scheduler is the surface components use to get work onto the loop thread.
type Scheduler interface {
	// Run queues fn for execution on the loop thread. Safe from any goroutine.
	Run(fn func())
	// Go runs work off the loop thread and queues the closure it returns.
	Go(work func() func())
	// After runs fn on the loop thread once d has elapsed, unless cancelled.
	After(d time.Duration, fn func()) *Timer
	// Every runs fn on the loop thread every d until cancelled.
	Every(d time.Duration, fn func()) *Timer
	Now() time.Time
}

// Timer is the cancellation handle for a scheduled callback. Cancel takes
// effect exactly once; a callback whose firing was already queued when the
// timer got cancelled does not run.
type Timer struct {
	once      sync.Once
	cancelled atomic.Bool
	stop      func()
}

// Cancel stops the timer. It reports whether this call did the cancelling;
// later calls, or calls after a one-shot timer fired, return false.
func (t *Timer) Cancel() bool {
	if t == nil {
		return false
	}
	did := false
	t.once.Do(func() {
		did = true
		t.cancelled.Store(true)
		if t.stop != nil {
			t.stop()
		}
	})
	return did
}

// Active reports whether the timer can still fire.
func (t *Timer) Active() bool {
	return t != nil && !t.cancelled.Load()
}

// expire retires a one-shot timer at fire time. It returns false when the
// timer was cancelled first.
func (t *Timer) expire() bool {
	fired := false
	t.once.Do(func() {
		fired = true
		t.cancelled.Store(true)
	})
	return fired
}

// Event carries one queued closure through bubbletea's message pump.
type Event struct{ fn func() }

// Loop is the production Scheduler. It is drained either by a bubbletea
// program (Next/Handle) or headlessly by Serve.
type Loop struct {
	ctx    context.Context
	events chan func()
}

// New creates a loop that stops accepting work when ctx is done.
func New(ctx context.Context) *Loop {
	return &Loop{
		ctx:    ctx,
		events: make(chan func(), defaultBuffer),
	}
}

func (l *Loop) Run(fn func()) {
	if fn == nil {
		return
	}
	select {
	case l.events <- fn:
	case <-l.ctx.Done():
	}
}

func (l *Loop) Go(work func() func()) {
	go func() {
		if fn := work(); fn != nil {
			l.Run(fn)
		}
	}()
}

func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	tm := time.AfterFunc(d, func() {
		l.Run(func() {
			if t.expire() {
				fn()
			}
		})
	})
	t.stop = func() { tm.Stop() }
	return t
}

func (l *Loop) Every(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	t.stop = func() {
		ticker.Stop()
		close(done)
	}
	go func() {
		for {
			select {
			case <-ticker.C:
				l.Run(func() {
					if t.Active() {
						fn()
					}
				})
			case <-done:
				return
			case <-l.ctx.Done():
				return
			}
		}
	}()
	return t
}

func (l *Loop) Now() time.Time { return time.Now() }

// Next returns a bubbletea command that waits for the next queued closure.
// Re-arm it after every Event, the same way a read loop is re-armed.
func (l *Loop) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-l.events:
			return Event{fn: fn}
		case <-l.ctx.Done():
			return nil
		}
	}
}

// Handle executes the closure carried by ev on the calling goroutine, which
// must be the one that owns the loop (bubbletea's Update).
func (l *Loop) Handle(ev Event) {
	if ev.fn != nil {
		ev.fn()
	}
}

// Serve drains the loop on the calling goroutine until ctx or the loop's own
// context is done.
func (l *Loop) Serve(ctx context.Context) error {
	for {
		select {
		case fn := <-l.events:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return l.ctx.Err()
		}
	}
}
