package consumer

import (
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
)

// Poller owns the single repeating timer of a consumer.
type Poller struct {
    c        *script.Context
    scope    string
    interval time.Duration
    tick     func()
    onStop   func()
    timer    *sched.Timer
    ticks    uint64
}

// NewPoller creates a disarmed poller. tick performs one read of the
// consumer's state; onStop closes the consumer once the run is cancelled.
func NewPoller(c *script.Context, scope string, interval time.Duration, tick, onStop func()) *Poller {
    return &Poller{c: c, scope: scope, interval: interval, tick: tick, onStop: onStop}
}

// Arm starts polling. An already armed timer is stopped first, so a poller
// never holds more than one active timer.
func (p *Poller) Arm() {
    p.Disarm()
    p.timer = p.c.Loop().Every(p.interval, p.run)
}

// Disarm stops the timer; it is a no-op when not armed.
func (p *Poller) Disarm() {
    if p.timer == nil { return }
    _ = p.timer.Stop()
    p.timer = nil
}

// Armed reports whether a timer is active.
func (p *Poller) Armed() bool { return p.timer != nil && p.timer.Active() }

// Ticks returns how many ticks ran.
func (p *Poller) Ticks() uint64 { return p.ticks }

func (p *Poller) run() error {
    if p.c.CheckStopLoop() {
        p.c.ReportError(p.scope, p.scope+" polling stopped by cancellation")
        p.Disarm()
        if p.onStop != nil { p.onStop() }
        return nil
    }
    p.ticks++
    p.tick()
    return nil
}
