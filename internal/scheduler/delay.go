// Package scheduler holds the restartable single-shot delay timer used to
// reveal a partner notification after a page has been on screen for a while.
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var ErrInvalidDelay = errors.New("scheduler: invalid delay")

type State int

const (
	StateIdle State = iota
	StateRunning
	StateFired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFired:
		return "fired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option func(*DelayTimer)

func WithClock(c Clock) Option {
	return func(t *DelayTimer) { t.clock = c }
}

// DelayTimer invokes onExpire once the configured delay has passed since the
// last Start, unless Stop or Reset intervenes first. It can be re-armed after
// firing.
type DelayTimer struct {
	mu       sync.Mutex
	clock    Clock
	delay    time.Duration
	onExpire func()

	state   State
	started time.Time
	handle  Handle
	// gen is bumped on every arm and disarm; an expiry only fires when it
	// still carries the current generation.
	gen uint64
}

// New builds an idle timer. A negative delay or a nil callback is rejected.
func New(delay time.Duration, onExpire func(), opts ...Option) (*DelayTimer, error) {
	if delay < 0 {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidDelay, delay)
	}
	if onExpire == nil {
		return nil, fmt.Errorf("%w: nil expiry callback", ErrInvalidDelay)
	}
	t := &DelayTimer{
		clock:    SystemClock,
		delay:    delay,
		onExpire: onExpire,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// NewSeconds is New with the delay given in (possibly fractional) seconds.
func NewSeconds(seconds float64, onExpire func(), opts ...Option) (*DelayTimer, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, fmt.Errorf("%w: %v is not finite", ErrInvalidDelay, seconds)
	}
	if seconds < 0 {
		return nil, fmt.Errorf("%w: %v is negative", ErrInvalidDelay, seconds)
	}
	// The bound itself rounds up to 2^63 nanoseconds, which overflows.
	if seconds >= math.MaxInt64/float64(time.Second) {
		return nil, fmt.Errorf("%w: %v is too large", ErrInvalidDelay, seconds)
	}
	return New(time.Duration(seconds*float64(time.Second)), onExpire, opts...)
}

func (t *DelayTimer) Delay() time.Duration { return t.delay }

// Start arms the timer. It is a no-op while already running.
func (t *DelayTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked()
}

// Stop cancels a pending expiry and returns to idle. Safe to call in any state.
func (t *DelayTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Reset discards any pending expiry and arms a fresh full-length delay.
func (t *DelayTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.startLocked()
}

func (t *DelayTimer) startLocked() {
	if t.state == StateRunning {
		return
	}
	t.gen++
	gen := t.gen
	t.state = StateRunning
	t.started = t.clock.Now()
	t.handle = t.clock.AfterFunc(t.delay, func() { t.expire(gen) })
}

func (t *DelayTimer) stopLocked() {
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	t.gen++
	t.state = StateIdle
	t.started = time.Time{}
}

func (t *DelayTimer) expire(gen uint64) {
	t.mu.Lock()
	if t.state != StateRunning || t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.state = StateFired
	t.handle = nil
	t.started = time.Time{}
	t.mu.Unlock()

	t.onExpire()
}

func (t *DelayTimer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *DelayTimer) IsActive() bool {
	return t.State() == StateRunning
}

// ElapsedSeconds is the whole number of seconds since Start, or 0 when not running.
func (t *DelayTimer) ElapsedSeconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

// RemainingSeconds is the delay left before expiry, or 0 when not running.
func (t *DelayTimer) RemainingSeconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return 0
	}
	return math.Max(0, t.delay.Seconds()-t.elapsedLocked())
}

func (t *DelayTimer) elapsedLocked() float64 {
	if t.state != StateRunning {
		return 0
	}
	elapsed := t.clock.Now().Sub(t.started)
	if elapsed < 0 {
		return 0
	}
	return math.Floor(elapsed.Seconds())
}
