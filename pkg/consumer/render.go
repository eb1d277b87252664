package consumer

import (
    "sync"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/core/priocq"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
)

// Frame describes one render the gate let through.
type Frame struct {
    Seq uint64
    At  time.Time
    // Coalesced is how many triggers this frame covers.
    Coalesced int
}

// RenderOptions configures a RenderGate.
type RenderOptions struct {
    // Debounce is the quiet time required after the last trigger.
    Debounce time.Duration
    // MaxFPS caps the render rate; zero means uncapped.
    MaxFPS int
    // PollInterval defaults to a quarter of Debounce, at least 1ms.
    PollInterval time.Duration
}

// RenderOptionsFromConfig maps the consumers.render config section.
func RenderOptionsFromConfig(c config.RenderConfig) RenderOptions {
    return RenderOptions{Debounce: config.Millis(c.DebounceMS), MaxFPS: c.MaxFPS}
}

// RenderGate decides when a render callback runs. Triggers mark the gate
// dirty; a tick renders once the debounce window has passed since the last
// trigger and the frame-rate bucket has a token.
type RenderGate struct {
    c      *script.Context
    opts   RenderOptions
    poller *Poller
    bucket *priocq.TokenBucket

    dirty    bool
    pending  int
    lastTrig time.Time
    seq      uint64
    onRender DataObserver[Frame]

    closeMu sync.Mutex
    closed  bool
}

// NewRenderGate starts the gate on the run's loop.
func NewRenderGate(c *script.Context, opts RenderOptions, onRender DataObserver[Frame]) *RenderGate {
    if opts.PollInterval <= 0 { opts.PollInterval = max(opts.Debounce/4, time.Millisecond) }
    g := &RenderGate{c: c, opts: opts, onRender: onRender}
    if opts.MaxFPS > 0 {
        g.bucket = priocq.NewTokenBucketWithClock(int64(opts.MaxFPS), 1, c.Loop().Clock().Now)
    }
    g.poller = NewPoller(c, "render", opts.PollInterval, g.tick, func() { _ = g.Close() })
    g.poller.Arm()
    c.Own(g)
    return g
}

// Trigger requests a render.
func (g *RenderGate) Trigger() {
    if g.isClosed() { return }
    g.dirty = true
    g.pending++
    g.lastTrig = g.c.Loop().Clock().Now()
}

// Dirty reports whether a render is pending.
func (g *RenderGate) Dirty() bool { return g.dirty }

// Frames returns how many renders ran.
func (g *RenderGate) Frames() uint64 { return g.seq }

// Rearm restarts the poll timer, replacing the current one.
func (g *RenderGate) Rearm() {
    if g.isClosed() { return }
    g.poller.Arm()
}

func (g *RenderGate) tick() {
    if !g.dirty { return }
    now := g.c.Loop().Clock().Now()
    if now.Sub(g.lastTrig) < g.opts.Debounce { return }
    if g.bucket != nil {
        if ok, _ := g.bucket.Allow(1); !ok { return }
    }
    g.seq++
    f := Frame{Seq: g.seq, At: now, Coalesced: g.pending}
    g.dirty, g.pending = false, 0
    if g.onRender != nil { g.onRender.OnData(f) }
}

func (g *RenderGate) isClosed() bool {
    g.closeMu.Lock(); defer g.closeMu.Unlock()
    return g.closed
}

// Close stops the gate; pending triggers are dropped. It is safe to call
// more than once.
func (g *RenderGate) Close() error {
    g.closeMu.Lock()
    if g.closed {
        g.closeMu.Unlock()
        return nil
    }
    g.closed = true
    g.closeMu.Unlock()
    g.poller.Disarm()
    g.dirty, g.onRender = false, nil
    return nil
}
