package authcard

import (
	"sync"
	"time"
)

// Timings holds the fixed delays of the handoff and exit sequence.
type Timings struct {
	// HandoffDelay runs between a successful sign in and the completion
	// callback, so the success message can play.
	HandoffDelay time.Duration
	// ExitDuration is how long the exit overlay transition plays.
	ExitDuration time.Duration
	// RedirectDelay is measured from the exit trigger to the hard redirect.
	RedirectDelay time.Duration
}

// DefaultTimings returns the stock delays.
func DefaultTimings() Timings {
	return Timings{
		HandoffDelay:  700 * time.Millisecond,
		ExitDuration:  700 * time.Millisecond,
		RedirectDelay: 1300 * time.Millisecond,
	}
}

func (t Timings) withDefaults() Timings {
	def := DefaultTimings()
	if t.HandoffDelay <= 0 {
		t.HandoffDelay = def.HandoffDelay
	}
	if t.ExitDuration <= 0 {
		t.ExitDuration = def.ExitDuration
	}
	if t.RedirectDelay <= 0 {
		t.RedirectDelay = def.RedirectDelay
	}
	return t
}

// TimerScheduler runs continuations on runtime timers.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// EventLoop serializes every mutation of one page: UI events, network
// completions and timer continuations run one at a time.
type EventLoop struct {
	mu sync.Mutex
	// settled runs with the lock held after each Do; the returned func
	// runs after the lock is released.
	settled func() func()
}

// Do runs fn on the loop.
// A panic in fn releases the loop and skips the settled hook.
func (l *EventLoop) Do(fn func()) {
	if after := l.run(fn); after != nil {
		after()
	}
}

func (l *EventLoop) run(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	fn()
	if l.settled != nil {
		return l.settled()
	}
	return nil
}

// Read runs fn on the loop without notifying observers.
func (l *EventLoop) Read(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// schedule posts fn back onto the loop after d.
func (e *flowEnv) schedule(d time.Duration, fn func()) {
	e.scheduler.AfterFunc(d, func() {
		e.loop.Do(fn)
	})
}
