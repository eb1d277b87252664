package script

import (
    "fmt"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
)

// While runs pred once per scheduler turn until it returns true. The returned
// future resolves when pred reports done and fails with cancel.ErrStopped when
// the run is stopped first. An always-false predicate yields between every
// iteration and only ends on cancellation.
func (c *Context) While(pred func() (bool, error)) *Future {
    f := NewFuture(c.loop)
    if c.CheckStopLoop() {
        f.Reject(c.stopped("while", "loop"))
        return f
    }
    var step func() error
    step = func() error {
        if c.CheckStopLoop() {
            err := c.stopped("while", "loop")
            f.Reject(err)
            return err
        }
        done, err := pred()
        if err != nil {
            f.Reject(err)
            return fmt.Errorf("while: %w", err)
        }
        if done {
            f.Resolve(nil)
            return nil
        }
        c.loop.Schedule(step)
        return nil
    }
    c.loop.Schedule(step)
    return f
}

// Once schedules body exactly once. When the run is already stopped body is
// never scheduled and cancel.ErrStopped is returned after reporting it.
func (c *Context) Once(body func() error) error {
    if c.CheckStopLoop() { return c.stopped("once", "execution") }
    c.loop.Schedule(body)
    return nil
}

// Next chains a follow-up step after an asynchronous operation. It checks
// cancellation now and again on the turn body would run.
func (c *Context) Next(body func() error) error {
    if c.CheckStopLoop() { return c.stopped("next", "continuation") }
    c.loop.Schedule(func() error {
        if c.CheckStopLoop() { return c.stopped("next", "continuation") }
        return body()
    })
    return nil
}

// Stopped is a convenience for tasks that poll the token themselves.
func (c *Context) Stopped() error {
    if c.CheckStopLoop() { return cancel.ErrStopped }
    return nil
}
