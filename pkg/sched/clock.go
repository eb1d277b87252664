package sched

import "time"

// Stopper cancels a pending callback registered with a Clock.
type Stopper interface {
    Stop() bool
}

// Clock is the time source of a Loop. Tests inject a fake one to fire timers
// deterministically.
type Clock interface {
    Now() time.Time
    AfterFunc(d time.Duration, f func()) Stopper
}

// RealClock is backed by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }
