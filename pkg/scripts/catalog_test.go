package scripts

import (
    "context"
    "testing"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker/tasks"
    "github.com/stretchr/testify/require"
)

func TestCatalogListsBuiltins(t *testing.T) {
    c := NewCatalog(Env{})
    var names []string
    for _, e := range c.List() { names = append(names, e.Name) }
    require.Equal(t, []string{"count", "gamepad", "offload", "render", "udp-echo"}, names)
    _, ok := c.Get("nope")
    require.False(t, ok)
}

func TestCountScriptRunsUntilStopped(t *testing.T) {
    c := NewCatalog(Env{})
    s, ok := c.Get("count")
    require.True(t, ok)
    r := script.NewRunner()
    _, err := r.Start(context.Background(), "count", s)
    require.NoError(t, err)
    require.Eventually(t, func() bool {
        info, ok := r.Active()
        return ok && info.Turns > 100
    }, 2*time.Second, 5*time.Millisecond)
    require.True(t, r.Stop())
    r.Wait()
    require.Equal(t, script.StateStopped, r.History()[0].State)
}

func TestOffloadScriptCompletes(t *testing.T) {
    sp, err := worker.NewSpawner(tasks.NewRegistry())
    require.NoError(t, err)
    c := NewCatalog(Env{Config: config.Default(), Spawner: sp})
    s, _ := c.Get("offload")

    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
    defer cancel()
    info, err := script.NewRunner().Run(ctx, "offload", s)
    require.NoError(t, err)
    require.Equal(t, script.StateCompleted, info.State)
    sp.Wait()
}

func TestOffloadWithoutSpawnerFails(t *testing.T) {
    s, _ := NewCatalog(Env{}).Get("offload")
    info, err := script.NewRunner().Run(context.Background(), "offload", s)
    require.Error(t, err)
    require.Equal(t, script.StateFailed, info.State)
}

func TestGamepadScriptStops(t *testing.T) {
    s, _ := NewCatalog(Env{}).Get("gamepad")
    r := script.NewRunner()
    _, err := r.Start(context.Background(), "gamepad", s)
    require.NoError(t, err)
    time.Sleep(50 * time.Millisecond)
    require.True(t, r.Stop())
    r.Wait()
    require.Equal(t, script.StateStopped, r.History()[0].State)
}
