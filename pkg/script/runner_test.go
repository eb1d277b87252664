package script

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
)

func TestRunnerCompletesAndRecordsHistory(t *testing.T) {
    r := NewRunner()
    n := 0
    info, err := r.Run(context.Background(), "count", func(c *Context) error {
        c.While(func() (bool, error) { n++; return n == 3, nil })
        return nil
    })
    require.NoError(t, err)
    require.Equal(t, StateCompleted, info.State)
    require.Equal(t, uint64(4), info.Turns)
    require.Len(t, r.History(), 1)
    _, ok := r.Active()
    require.False(t, ok)
}

func TestRunnerStopEndsInfiniteLoop(t *testing.T) {
    rep := &reports{}
    r := NewRunner(WithRunnerSink(rep))
    started := make(chan struct{})
    id, err := r.Start(context.Background(), "spin", func(c *Context) error {
        close(started)
        c.While(func() (bool, error) { return false, nil })
        return nil
    })
    require.NoError(t, err)
    require.NotEmpty(t, id)
    <-started

    _, err = r.Start(context.Background(), "other", func(*Context) error { return nil })
    require.ErrorIs(t, err, ErrBusy)

    active, ok := r.Active()
    require.True(t, ok)
    require.Equal(t, id, active.ID)

    require.True(t, r.Stop())
    r.Wait()
    h := r.History()
    require.Len(t, h, 1)
    require.Equal(t, StateStopped, h[0].State)
    require.Contains(t, rep.scopes(), "while")

    // a new run is not affected by the earlier stop
    info, err := r.Run(context.Background(), "after", func(c *Context) error { return c.Stopped() })
    require.NoError(t, err)
    require.Equal(t, StateCompleted, info.State)
}

func TestRunnerFailedRun(t *testing.T) {
    r := NewRunner()
    info, err := r.Run(context.Background(), "bad", func(*Context) error { return errors.New("nope") })
    require.EqualError(t, err, "nope")
    require.Equal(t, StateFailed, info.State)
    require.Equal(t, "nope", info.Error)
}

func TestRunnerForcesUncooperativeRun(t *testing.T) {
    rep := &reports{}
    r := NewRunner(WithRunnerSink(rep), WithStopGrace(20*time.Millisecond))
    started := make(chan struct{})
    _, err := r.Start(context.Background(), "held", func(c *Context) error {
        c.Loop().Hold()
        close(started)
        return nil
    })
    require.NoError(t, err)
    <-started
    r.Stop()
    r.Wait()
    require.Equal(t, StateStopped, r.History()[0].State)
    require.Contains(t, rep.scopes(), "run")
}
