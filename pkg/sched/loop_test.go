package sched_test

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched/schedtest"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
)

func runIdle(t *testing.T, l *sched.Loop) error {
    t.Helper()
    ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancelFn()
    return l.Run(ctx)
}

func TestScheduleIsFIFOAndNeverSynchronous(t *testing.T) {
    l := sched.New(sched.WithExitOnIdle(), sched.WithLogger(zap.NewNop()))
    var got []int
    for i := 0; i < 5; i++ {
        i := i
        l.Schedule(func() error { got = append(got, i); return nil })
    }
    require.Empty(t, got, "schedule must not run the task in the caller's turn")
    require.NoError(t, runIdle(t, l))
    require.Equal(t, []int{0, 1, 2, 3, 4}, got)
    require.Equal(t, uint64(5), l.Turns())
}

func TestHostEventsRunBetweenContinuations(t *testing.T) {
    l := sched.New(sched.WithExitOnIdle())
    var got []string
    l.Schedule(func() error {
        got = append(got, "a")
        l.Post(func() error { got = append(got, "host"); return nil })
        return nil
    })
    l.Schedule(func() error { got = append(got, "b"); return nil })
    require.NoError(t, runIdle(t, l))
    require.Equal(t, []string{"a", "host", "b"}, got)
}

func TestTaskErrorIsTerminal(t *testing.T) {
    var reports []string
    sink := observability.SinkFunc(func(scope, msg string) { reports = append(reports, scope+": "+msg) })
    l := sched.New(sched.WithExitOnIdle(), sched.WithSink(sink))
    boom := errors.New("boom")
    ran := false
    l.Schedule(func() error { return boom })
    l.Schedule(func() error { ran = true; return nil })

    err := runIdle(t, l)
    require.ErrorIs(t, err, boom)
    require.False(t, ran, "queued work is discarded after a failure")
    require.Equal(t, []string{"loop: boom"}, reports)

    require.ErrorIs(t, l.Run(context.Background()), sched.ErrLoopClosed)
    l.Schedule(func() error { ran = true; return nil })
    require.False(t, ran)
}

func TestStoppedErrorIsNotReportedTwice(t *testing.T) {
    n := 0
    l := sched.New(sched.WithExitOnIdle(), sched.WithSink(observability.SinkFunc(func(string, string) { n++ })))
    l.Schedule(func() error { return cancel.ErrStopped })
    require.ErrorIs(t, runIdle(t, l), cancel.ErrStopped)
    require.Zero(t, n)
}

func TestPanicIsRecovered(t *testing.T) {
    l := sched.New(sched.WithExitOnIdle())
    l.Schedule(func() error { panic("kaput") })
    err := runIdle(t, l)
    var pe *sched.PanicError
    require.ErrorAs(t, err, &pe)
    require.Equal(t, "kaput", pe.Value)
    require.NotEmpty(t, pe.Stack)
}

func TestRunStopsOnContextAndClose(t *testing.T) {
    l := sched.New()
    ctx, cancelFn := context.WithCancel(context.Background())
    done := make(chan error, 1)
    go func() { done <- l.Run(ctx) }()
    cancelFn()
    select {
    case err := <-done:
        require.NoError(t, err)
    case <-time.After(time.Second):
        t.Fatal("run did not return after cancel")
    }

    l2 := sched.New()
    go func() { done <- l2.Run(context.Background()) }()
    l2.Close()
    select {
    case err := <-done:
        require.NoError(t, err)
    case <-time.After(time.Second):
        t.Fatal("run did not return after close")
    }
}

func TestHoldKeepsLoopAlive(t *testing.T) {
    l := sched.New(sched.WithExitOnIdle())
    release := l.Hold()
    done := make(chan error, 1)
    go func() { done <- l.Run(context.Background()) }()

    select {
    case <-done:
        t.Fatal("loop went idle while held")
    case <-time.After(30 * time.Millisecond):
    }
    release()
    release()
    select {
    case err := <-done:
        require.NoError(t, err)
    case <-time.After(time.Second):
        t.Fatal("loop did not exit after release")
    }
}

func TestOneShotTimerReleasesOnFire(t *testing.T) {
    clk := schedtest.NewFakeClock(time.Unix(0, 0))
    l := sched.New(sched.WithExitOnIdle(), sched.WithClock(clk))
    fired := 0
    tm := l.AfterFunc(time.Second, func() error { fired++; return nil })
    require.True(t, tm.Active())

    clk.Advance(999 * time.Millisecond)
    require.Equal(t, 1, clk.Pending())
    clk.Advance(time.Millisecond)
    require.NoError(t, runIdle(t, l))

    require.Equal(t, 1, fired)
    require.False(t, tm.Active())
    require.ErrorIs(t, tm.Stop(), sched.ErrTimerReleased)
}

func TestTimerStopTwiceFails(t *testing.T) {
    clk := schedtest.NewFakeClock(time.Unix(0, 0))
    l := sched.New(sched.WithExitOnIdle(), sched.WithClock(clk))
    tm := l.AfterFunc(time.Second, func() error { t.Fatal("stopped timer fired"); return nil })
    require.NoError(t, tm.Stop())
    require.ErrorIs(t, tm.Stop(), sched.ErrTimerReleased)
    require.Zero(t, clk.Pending())
    require.True(t, l.Idle())
    require.NoError(t, runIdle(t, l))
}

func TestEveryRepeatsUntilStopped(t *testing.T) {
    clk := schedtest.NewFakeClock(time.Unix(0, 0))
    l := sched.New(sched.WithExitOnIdle(), sched.WithClock(clk))
    var tm *sched.Timer
    ticks := 0
    tm = l.Every(10*time.Millisecond, func() error {
        ticks++
        if ticks == 3 { return tm.Stop() }
        return nil
    })

    done := make(chan error, 1)
    go func() { done <- l.Run(context.Background()) }()
    var runErr error
    require.Eventually(t, func() bool {
        select {
        case runErr = <-done:
            return true
        default:
        }
        clk.Advance(10 * time.Millisecond)
        return false
    }, 2*time.Second, time.Millisecond)
    require.NoError(t, runErr)

    require.Equal(t, 3, ticks)
    require.False(t, tm.Active())
    require.Equal(t, uint64(3), tm.Fired())
}

func TestRealTimerResolvesNoEarlierThanDelay(t *testing.T) {
    l := sched.New(sched.WithExitOnIdle())
    start := time.Now()
    var at time.Time
    l.AfterFunc(20*time.Millisecond, func() error { at = time.Now(); return nil })
    require.NoError(t, runIdle(t, l))
    require.GreaterOrEqual(t, at.Sub(start), 20*time.Millisecond)
}
