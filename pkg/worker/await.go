package worker

import (
    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
)

// Await dispatches method on s from a script run and returns a future for the
// reply. Awaiting a worker is a suspension point: the run's cancellation is
// checked before dispatch and again when the reply arrives.
func Await(c *script.Context, s *Session, method string, args ...any) *script.Future {
    f := script.NewFuture(c.Loop())
    if c.CheckStopLoop() {
        c.ReportError("worker", "call "+method+" stopped by cancellation")
        f.Reject(cancel.ErrStopped)
        return f
    }
    err := s.Call(c.Loop(), method, args, func(v any, err error) error {
        if c.CheckStopLoop() {
            c.ReportError("worker", "reply to "+method+" dropped after cancellation")
            f.Reject(cancel.ErrStopped)
            return cancel.ErrStopped
        }
        if err != nil {
            f.Reject(err)
            return nil
        }
        f.Resolve(v)
        return nil
    })
    if err != nil {
        c.ReportError("worker", err.Error())
        f.Reject(err)
    }
    return f
}
