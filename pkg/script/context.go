// Package script provides the execution context a script run sees: the
// yielding loop primitives, timed suspension and futures, all driven by the
// run's cooperative scheduler and cancellation token.
package script

import (
    "errors"
    "io"
    "sync"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
    "go.uber.org/zap"
)

// Context is the per-run execution context. Its methods are meant to be
// called from tasks running on the run's loop.
type Context struct {
    loop  *sched.Loop
    token cancel.Token
    runID string
    log   *zap.Logger

    mu     sync.Mutex
    owned  []io.Closer
    closed bool
}

// NewContext binds a loop and a cancellation token into a script context.
func NewContext(loop *sched.Loop, token cancel.Token, runID string) *Context {
    return &Context{
        loop:  loop,
        token: token,
        runID: runID,
        log:   loop.Logger().With(zap.String("run", runID)),
    }
}

func (c *Context) Loop() *sched.Loop { return c.loop }

func (c *Context) Token() cancel.Token { return c.token }

func (c *Context) RunID() string { return c.runID }

func (c *Context) Logger() *zap.Logger { return c.log }

// Sink returns the error sink reports are delivered to.
func (c *Context) Sink() observability.ErrorSink { return c.loop.Sink() }

// CheckStopLoop reports whether the run has been asked to stop.
func (c *Context) CheckStopLoop() bool { return c.token.Stopped() }

// ReportError forwards a user-facing report to the run's sink.
func (c *Context) ReportError(scope, message string) {
    c.loop.Sink().ReportError(scope, message)
}

// Schedule queues fn as the next continuation of this run.
func (c *Context) Schedule(fn sched.Task) { c.loop.Schedule(fn) }

// Own registers a resource that is closed when the run ends. Resources
// registered after the run ended are closed immediately.
func (c *Context) Own(r io.Closer) {
    if r == nil { return }
    c.mu.Lock()
    if c.closed {
        c.mu.Unlock()
        if err := r.Close(); err != nil { c.log.Debug("close late resource", zap.Error(err)) }
        return
    }
    c.owned = append(c.owned, r)
    c.mu.Unlock()
}

// release closes owned resources in reverse registration order.
func (c *Context) release() error {
    c.mu.Lock()
    owned := c.owned
    c.owned = nil
    c.closed = true
    c.mu.Unlock()

    var errs []error
    for i := len(owned) - 1; i >= 0; i-- {
        if err := owned[i].Close(); err != nil { errs = append(errs, err) }
    }
    return errors.Join(errs...)
}

// stopped reports the cancellation for scope and returns ErrStopped.
func (c *Context) stopped(scope, what string) error {
    c.ReportError(scope, what+" stopped by cancellation")
    return cancel.ErrStopped
}
