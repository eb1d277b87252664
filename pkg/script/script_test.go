package script

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched/schedtest"
    "github.com/stretchr/testify/require"
)

type reports struct {
    mu  sync.Mutex
    got []observability.Report
}

func (r *reports) ReportError(scope, msg string) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.got = append(r.got, observability.Report{Scope: scope, Message: msg})
}

func (r *reports) scopes() []string {
    r.mu.Lock(); defer r.mu.Unlock()
    var out []string
    for _, g := range r.got { out = append(out, g.Scope) }
    return out
}

func newTestContext(t *testing.T, opts ...sched.Option) (*Context, *cancel.Flag, *reports) {
    t.Helper()
    rep := &reports{}
    flag := cancel.NewFlag()
    opts = append([]sched.Option{sched.WithExitOnIdle(), sched.WithSink(rep)}, opts...)
    l := sched.New(opts...)
    return NewContext(l, flag.Arm(), "test"), flag, rep
}

func run(t *testing.T, c *Context) error {
    t.Helper()
    ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancelFn()
    return c.Loop().Run(ctx)
}

func TestWhileCallsPredicateOncePerTurn(t *testing.T) {
    c, _, rep := newTestContext(t)
    var turns []uint64
    f := c.While(func() (bool, error) {
        turns = append(turns, c.Loop().Turns())
        return len(turns) == 4, nil
    })
    require.Empty(t, turns, "first iteration must be scheduled, not run inline")
    require.NoError(t, run(t, c))

    require.Len(t, turns, 4)
    for i := 1; i < len(turns); i++ {
        require.Greater(t, turns[i], turns[i-1], "iterations share a turn")
    }
    require.True(t, f.Settled())
    _, err := f.Result()
    require.NoError(t, err)
    require.Empty(t, rep.scopes())
}

func TestWhileInterleavesWithOtherWork(t *testing.T) {
    c, _, _ := newTestContext(t)
    var trace []string
    n := 0
    c.While(func() (bool, error) { n++; trace = append(trace, "pred"); return n == 3, nil })
    c.Schedule(func() error { trace = append(trace, "other"); return nil })
    require.NoError(t, run(t, c))
    require.Equal(t, []string{"pred", "other", "pred", "pred"}, trace)
}

func TestWhileStoppedBeforeFirstCheck(t *testing.T) {
    c, flag, rep := newTestContext(t)
    flag.Stop()
    called := false
    f := c.While(func() (bool, error) { called = true; return true, nil })

    require.True(t, f.Settled(), "future fails synchronously")
    _, err := f.Result()
    require.ErrorIs(t, err, cancel.ErrStopped)
    require.Equal(t, []string{"while"}, rep.scopes())
    require.NoError(t, run(t, c))
    require.False(t, called)
}

func TestWhileEndsRunOnCancellation(t *testing.T) {
    c, flag, rep := newTestContext(t)
    n := 0
    f := c.While(func() (bool, error) {
        n++
        if n == 5 { flag.Stop() }
        return false, nil
    })
    require.ErrorIs(t, run(t, c), cancel.ErrStopped)
    require.Equal(t, 5, n)
    _, err := f.Result()
    require.ErrorIs(t, err, cancel.ErrStopped)
    require.Equal(t, []string{"while"}, rep.scopes())
}

func TestWhilePredicateErrorIsTerminal(t *testing.T) {
    c, _, _ := newTestContext(t)
    boom := errors.New("bad predicate")
    f := c.While(func() (bool, error) { return false, boom })
    require.ErrorIs(t, run(t, c), boom)
    _, err := f.Result()
    require.ErrorIs(t, err, boom)
}

func TestOnceWhileStoppedReportsSynchronously(t *testing.T) {
    c, flag, rep := newTestContext(t)
    flag.Stop()
    called := false
    err := c.Once(func() error { called = true; return nil })
    require.ErrorIs(t, err, cancel.ErrStopped)
    require.Equal(t, []string{"once"}, rep.scopes())
    require.NoError(t, run(t, c))
    require.False(t, called)
}

func TestOnceRunsBodyExactlyOnce(t *testing.T) {
    c, _, _ := newTestContext(t)
    n := 0
    require.NoError(t, c.Once(func() error { n++; return nil }))
    require.Zero(t, n)
    require.NoError(t, run(t, c))
    require.Equal(t, 1, n)
}

func TestNextRechecksAtItsTurn(t *testing.T) {
    c, flag, rep := newTestContext(t)
    called := false
    require.NoError(t, c.Next(func() error { called = true; return nil }))
    flag.Stop()
    require.ErrorIs(t, run(t, c), cancel.ErrStopped)
    require.False(t, called)
    require.Equal(t, []string{"next"}, rep.scopes())
}

func TestFutureThenIsNeverInline(t *testing.T) {
    c, _, _ := newTestContext(t)
    f := NewFuture(c.Loop())
    require.True(t, f.Resolve(42))
    require.False(t, f.Reject(errors.New("late")))

    var got any
    f.Then(func(v any, err error) error { got = v; return err })
    require.Nil(t, got)
    require.NoError(t, run(t, c))
    require.Equal(t, 42, got)
}

func TestSleepResolvesNoEarlierThanDelay(t *testing.T) {
    c, _, _ := newTestContext(t)
    start := time.Now()
    var elapsed time.Duration
    c.Sleep(25 * time.Millisecond).Then(func(any, error) error {
        elapsed = time.Since(start)
        return nil
    })
    require.NoError(t, run(t, c))
    require.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestSleepWhenStoppedFailsWithoutTimer(t *testing.T) {
    clk := schedtest.NewFakeClock(time.Unix(0, 0))
    c, flag, rep := newTestContext(t, sched.WithClock(clk))
    flag.Stop()
    f := c.SleepSeconds(1)
    require.True(t, f.Settled())
    _, err := f.Result()
    require.ErrorIs(t, err, cancel.ErrStopped)
    require.Zero(t, clk.Pending())
    require.Equal(t, []string{"sleep"}, rep.scopes())
}

func TestSleepUnitConversions(t *testing.T) {
    clk := schedtest.NewFakeClock(time.Unix(0, 0))
    c, _, _ := newTestContext(t, sched.WithClock(clk))
    secs := c.SleepSeconds(1.5)
    mins := c.SleepMinutes(0.5)

    clk.Advance(1499 * time.Millisecond)
    clk.Advance(time.Millisecond)
    clk.Advance(28500 * time.Millisecond)
    require.NoError(t, run(t, c))

    v, err := secs.Result()
    require.NoError(t, err)
    require.Equal(t, 1500*time.Millisecond, v)
    v, err = mins.Result()
    require.NoError(t, err)
    require.Equal(t, 30*time.Second, v)
}

func TestOwnedResourcesReleasedInReverse(t *testing.T) {
    c, _, _ := newTestContext(t)
    var order []int
    for i := 0; i < 3; i++ {
        i := i
        c.Own(closerFunc(func() error { order = append(order, i); return nil }))
    }
    require.NoError(t, c.release())
    require.Equal(t, []int{2, 1, 0}, order)

    c.Own(closerFunc(func() error { order = append(order, 9); return nil }))
    require.Equal(t, []int{2, 1, 0, 9}, order)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
