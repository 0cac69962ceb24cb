// Package countdown runs a cancellable auto-confirm timer: unless cancelled
// before the deadline, it confirms on its own.
package countdown

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultTimeout = 5000 * time.Millisecond
	DefaultTick    = 50 * time.Millisecond
)

type State int

const (
	Idle State = iota
	Running
	Confirmed
	Cancelled
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no callback can fire any more.
func (s State) Terminal() bool {
	return s == Confirmed || s == Cancelled || s == Stopped
}

var ErrAlreadyStarted = errors.New("countdown already started")

type Options struct {
	Timeout time.Duration
	Tick    time.Duration
}

// Handlers are invoked from the timer goroutine, except OnCancel which runs on
// the goroutine that called Cancel. Each fires at most once per Timer, OnTick aside.
type Handlers struct {
	OnTick    func(progress float64)
	OnConfirm func()
	OnCancel  func()
}

type Timer struct {
	opts Options

	mu       sync.Mutex
	state    State
	handlers Handlers
	started  time.Time
	progress float64
	quit     chan struct{}
	done     chan struct{}
}

func New(opts Options) *Timer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	return &Timer{
		opts:     opts,
		progress: 100,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (t *Timer) Timeout() time.Duration {
	return t.opts.Timeout
}

// Start arms the timer. A Timer runs once; start a new one to count again.
func (t *Timer) Start(ctx context.Context, h Handlers) error {
	t.mu.Lock()
	if t.state != Idle {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.state = Running
	t.handlers = h
	t.started = time.Now()
	t.mu.Unlock()

	go t.run(ctx, h)
	return nil
}

func (t *Timer) run(ctx context.Context, h Handlers) {
	defer close(t.done)

	ticker := time.NewTicker(t.opts.Tick)
	defer ticker.Stop()
	deadline := time.NewTimer(t.opts.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-ctx.Done():
			t.finish(Stopped)
			return
		case <-deadline.C:
			// Cancel may have won the race for the lock; state decides.
			if !t.finish(Confirmed) {
				return
			}
			if h.OnConfirm != nil {
				h.OnConfirm()
			}
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.state != Running {
				t.mu.Unlock()
				return
			}
			t.progress = remaining(time.Since(t.started), t.opts.Timeout)
			p := t.progress
			t.mu.Unlock()
			if h.OnTick != nil {
				h.OnTick(p)
			}
		}
	}
}

// finish moves a running timer to a terminal state. It returns false when the
// timer had already left Running.
func (t *Timer) finish(to State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return false
	}
	t.state = to
	if to == Confirmed {
		t.progress = 0
	}
	return true
}

// Cancel stops a running timer and fires OnCancel. It returns false, and fires
// nothing, when the timer is not running.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return false
	}
	t.state = Cancelled
	t.progress = remaining(time.Since(t.started), t.opts.Timeout)
	close(t.quit)
	h := t.handlers
	t.mu.Unlock()

	if h.OnCancel != nil {
		h.OnCancel()
	}
	return true
}

// Stop tears the timer down without firing anything.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Running:
		t.state = Stopped
		t.progress = remaining(time.Since(t.started), t.opts.Timeout)
		close(t.quit)
	case Idle:
		t.state = Stopped
		close(t.done)
	}
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress is the share of the window left, draining from 100 to 0.
func (t *Timer) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Running {
		return remaining(time.Since(t.started), t.opts.Timeout)
	}
	return t.progress
}

// Done is closed once the timer goroutine has exited.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

func remaining(elapsed, timeout time.Duration) float64 {
	if elapsed >= timeout {
		return 0
	}
	return 100 * float64(timeout-elapsed) / float64(timeout)
}
