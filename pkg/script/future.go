package script

import (
    "context"
    "sync"

    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
)

// Future is a single-assignment result settled on the loop. Callbacks added
// with Then always run as separate continuations, never inline.
type Future struct {
    loop *sched.Loop

    mu      sync.Mutex
    done    chan struct{}
    settled bool
    val     any
    err     error
    cbs     []func(any, error) error
}

// NewFuture creates a pending future whose callbacks run on l.
func NewFuture(l *sched.Loop) *Future {
    return &Future{loop: l, done: make(chan struct{})}
}

// Resolve settles the future with v. Only the first settle wins.
func (f *Future) Resolve(v any) bool { return f.settle(v, nil) }

// Reject settles the future with err. Only the first settle wins.
func (f *Future) Reject(err error) bool { return f.settle(nil, err) }

func (f *Future) settle(v any, err error) bool {
    f.mu.Lock()
    if f.settled {
        f.mu.Unlock()
        return false
    }
    f.settled, f.val, f.err = true, v, err
    cbs := f.cbs
    f.cbs = nil
    close(f.done)
    f.mu.Unlock()
    for _, cb := range cbs { f.dispatch(cb, v, err) }
    return true
}

func (f *Future) dispatch(cb func(any, error) error, v any, err error) {
    f.loop.Schedule(func() error { return cb(v, err) })
}

// Then registers cb to run on the loop once the future settles. An error
// returned by cb ends the run like any other task error.
func (f *Future) Then(cb func(v any, err error) error) *Future {
    if cb == nil { return f }
    f.mu.Lock()
    if !f.settled {
        f.cbs = append(f.cbs, cb)
        f.mu.Unlock()
        return f
    }
    v, err := f.val, f.err
    f.mu.Unlock()
    f.dispatch(cb, v, err)
    return f
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Settled reports whether a result is available.
func (f *Future) Settled() bool {
    f.mu.Lock(); defer f.mu.Unlock()
    return f.settled
}

// Result returns the settled value and error; both are zero while pending.
func (f *Future) Result() (any, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    return f.val, f.err
}

// Wait blocks until the future settles or ctx is done. It must not be called
// from the loop goroutine.
func (f *Future) Wait(ctx context.Context) (any, error) {
    select {
    case <-f.done:
        return f.Result()
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}
