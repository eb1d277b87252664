// Package schedtest provides test helpers for the cooperative scheduler.
package schedtest

import (
    "sort"
    "sync"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
)

// FakeClock is a deterministic Clock. Callbacks registered with AfterFunc
// fire from Advance, in deadline order, on the caller's goroutine.
type FakeClock struct {
    mu      sync.Mutex
    now     time.Time
    seq     int
    pending []*fakeTimer
}

var _ sched.Clock = (*FakeClock)(nil)

type fakeTimer struct {
    c       *FakeClock
    when    time.Time
    seq     int
    f       func()
    stopped bool
}

// NewFakeClock returns a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock { return &FakeClock{now: start} }

// Now implements sched.Clock.
func (c *FakeClock) Now() time.Time {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.now
}

// AfterFunc implements sched.Clock.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) sched.Stopper {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.seq++
    t := &fakeTimer{c: c, when: c.now.Add(d), seq: c.seq, f: f}
    c.pending = append(c.pending, t)
    return t
}

func (t *fakeTimer) Stop() bool {
    t.c.mu.Lock()
    defer t.c.mu.Unlock()
    if t.stopped { return false }
    t.stopped = true
    for i, p := range t.c.pending {
        if p == t {
            t.c.pending = append(t.c.pending[:i], t.c.pending[i+1:]...)
            break
        }
    }
    return true
}

// Advance moves time forward by d and fires every callback that became due.
func (c *FakeClock) Advance(d time.Duration) {
    c.mu.Lock()
    c.now = c.now.Add(d)
    now := c.now
    var due, rest []*fakeTimer
    for _, t := range c.pending {
        if !t.when.After(now) {
            t.stopped = true
            due = append(due, t)
        } else {
            rest = append(rest, t)
        }
    }
    c.pending = rest
    c.mu.Unlock()

    sort.Slice(due, func(i, j int) bool {
        if due[i].when.Equal(due[j].when) { return due[i].seq < due[j].seq }
        return due[i].when.Before(due[j].when)
    })
    for _, t := range due { t.f() }
}

// Pending reports how many callbacks are armed.
func (c *FakeClock) Pending() int {
    c.mu.Lock()
    defer c.mu.Unlock()
    return len(c.pending)
}
