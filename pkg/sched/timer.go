package sched

import (
    "errors"
    "sync"
    "time"
)

// ErrTimerReleased is returned when stopping a timer that already fired or
// was already stopped.
var ErrTimerReleased = errors.New("sched: timer already released")

// Timer is a handle to a one-shot or repeating callback delivered via Post.
type Timer struct {
    l        *Loop
    fn       Task
    interval time.Duration
    repeat   bool

    mu       sync.Mutex
    pending  Stopper
    released bool
    fired    uint64
}

// AfterFunc arms a one-shot timer. The handle releases itself when it fires.
func (l *Loop) AfterFunc(d time.Duration, fn Task) *Timer {
    return l.newTimer(d, fn, false)
}

// Every arms a repeating timer. Ticks do not pile up: the next period starts
// once the previous callback has been delivered to the loop.
func (l *Loop) Every(d time.Duration, fn Task) *Timer {
    if d <= 0 { d = time.Millisecond }
    return l.newTimer(d, fn, true)
}

func (l *Loop) newTimer(d time.Duration, fn Task, repeat bool) *Timer {
    if d < 0 { d = 0 }
    t := &Timer{l: l, fn: fn, interval: d, repeat: repeat}
    l.mu.Lock()
    if l.closed {
        l.mu.Unlock()
        t.released = true
        l.log.Debug("timer dropped on closed loop")
        return t
    }
    l.timers[t] = struct{}{}
    l.mu.Unlock()
    l.outstanding.Add(1)

    t.mu.Lock()
    t.arm()
    t.mu.Unlock()
    return t
}

// arm registers the next fire; caller holds t.mu.
func (t *Timer) arm() {
    t.pending = t.l.clock.AfterFunc(t.interval, func() { t.l.Post(t.deliver) })
}

func (t *Timer) deliver() error {
    t.mu.Lock()
    if t.released {
        t.mu.Unlock()
        return nil
    }
    t.fired++
    if t.repeat {
        t.arm()
    } else {
        t.released = true
        t.pending = nil
    }
    t.mu.Unlock()
    if !t.repeat { t.detach() }
    if t.fn == nil { return nil }
    return t.fn()
}

// Stop releases the handle. A released handle cannot be stopped again.
func (t *Timer) Stop() error {
    t.mu.Lock()
    if t.released {
        t.mu.Unlock()
        return ErrTimerReleased
    }
    t.released = true
    if t.pending != nil { t.pending.Stop(); t.pending = nil }
    t.mu.Unlock()
    t.detach()
    t.l.wake()
    return nil
}

// Active reports whether the timer is still armed.
func (t *Timer) Active() bool {
    t.mu.Lock()
    defer t.mu.Unlock()
    return !t.released
}

// Fired returns how many times the callback was delivered.
func (t *Timer) Fired() uint64 {
    t.mu.Lock()
    defer t.mu.Unlock()
    return t.fired
}

func (t *Timer) detach() {
    t.l.mu.Lock()
    _, ok := t.l.timers[t]
    delete(t.l.timers, t)
    t.l.mu.Unlock()
    if ok { t.l.outstanding.Add(-1) }
}

// release is used by loop teardown; the loop has already forgotten t.
func (t *Timer) release() {
    t.mu.Lock()
    t.released = true
    if t.pending != nil { t.pending.Stop(); t.pending = nil }
    t.mu.Unlock()
}
