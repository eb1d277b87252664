package script

import (
    "time"
)

// Sleep returns a future that resolves no earlier than d from now. The
// cancellation check happens before the timer is armed and again when it
// fires.
func (c *Context) Sleep(d time.Duration) *Future {
    f := NewFuture(c.loop)
    if c.CheckStopLoop() {
        f.Reject(c.stopped("sleep", "sleep"))
        return f
    }
    if d < 0 { d = 0 }
    c.loop.AfterFunc(d, func() error {
        if c.CheckStopLoop() {
            err := c.stopped("sleep", "sleep")
            f.Reject(err)
            return err
        }
        f.Resolve(d)
        return nil
    })
    return f
}

// SleepSeconds is Sleep expressed in seconds.
func (c *Context) SleepSeconds(s float64) *Future {
    return c.Sleep(time.Duration(s * float64(time.Second)))
}

// SleepMinutes is Sleep expressed in minutes.
func (c *Context) SleepMinutes(m float64) *Future {
    return c.SleepSeconds(m * 60)
}
