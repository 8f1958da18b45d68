package scheduler

import "time"

// Clock is the time source a DelayTimer arms its expiry against.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Handle
}

// Handle is an armed one-shot expiry. Stop reports whether it prevented f from running.
type Handle interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Handle { return time.AfterFunc(d, f) }

// SystemClock is backed by the runtime timer.
var SystemClock Clock = realClock{}
