package scripts

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/consumer"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker/tasks"
    "go.uber.org/zap"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func builtins() []Entry {
    return []Entry{
        {Name: "count", Description: "counts forever one step per turn; stop it to end", build: countScript},
        {Name: "offload", Description: "counts primes on a worker while the loop keeps ticking", build: offloadScript},
        {Name: "udp-echo", Description: "echoes datagrams received on consumers.socket.listen", build: udpEchoScript},
        {Name: "render", Description: "drives the render gate with bursts of triggers for five seconds", build: renderScript},
        {Name: "gamepad", Description: "logs pad connects and state changes", build: gamepadScript},
    }
}

func countScript(Env) script.Script {
    return func(c *script.Context) error {
        var n uint64
        c.While(func() (bool, error) {
            n++
            if n%100_000 == 0 { c.Logger().Info("count", zap.Uint64("n", n)) }
            return false, nil
        })
        return nil
    }
}

func offloadScript(env Env) script.Script {
    return func(c *script.Context) error {
        if env.Spawner == nil { return errors.New("offload: no worker spawner configured") }
        ctx, cancel := context.WithCancel(context.Background())
        c.Own(closerFunc(func() error { cancel(); return nil }))
        s, err := env.Spawner.Spawn(ctx, env.Config.Worker, tasks.PrimesPath)
        if err != nil { return err }
        c.Own(s)

        // keep the loop visibly busy while the worker computes
        var ticks uint64
        done := false
        c.While(func() (bool, error) {
            ticks++
            return done, nil
        })
        start := time.Now()
        worker.Await(c, s, "count", 5_000_000).Then(func(v any, err error) error {
            if err != nil { return err }
            c.Logger().Info("primes counted", zap.Any("count", v), zap.Duration("took", time.Since(start)), zap.Uint64("loop_ticks", ticks))
            return c.Next(func() error {
                worker.Await(c, s, "nth", 10_000).Then(func(v any, err error) error {
                    done = true
                    if err != nil { return err }
                    c.Logger().Info("10000th prime", zap.Any("prime", v))
                    return s.Close()
                })
                return nil
            })
        })
        return nil
    }
}

func udpEchoScript(env Env) script.Script {
    return func(c *script.Context) error {
        sock, err := consumer.NewSocket(c, consumer.SocketOptionsFromConfig(env.Config.Consumers.Socket))
        if err != nil { return err }
        log := c.Logger().With(zap.Stringer("addr", sock.LocalAddr()))
        log.Info("udp echo listening")
        sock.SetOnConnect(consumer.ConnFunc(func(id string) { log.Info("peer connected", zap.String("peer", id)) }))
        sock.SetOnDisconnect(consumer.ConnFunc(func(id string) { log.Info("peer idle", zap.String("peer", id)) }))
        _, err = sock.SetOnData(consumer.DataFunc[[]consumer.Packet](func(pkts []consumer.Packet) {
            for _, p := range pkts {
                reply := []byte(strings.ToUpper(string(p.Data)))
                if err := sock.Send(p.From.String(), reply); err != nil {
                    c.ReportError("udp-echo", "send: "+err.Error())
                }
            }
        }))
        return err
    }
}

func renderScript(env Env) script.Script {
    return func(c *script.Context) error {
        gate := consumer.NewRenderGate(c, consumer.RenderOptionsFromConfig(env.Config.Consumers.Render),
            consumer.DataFunc[consumer.Frame](func(f consumer.Frame) {
                c.Logger().Info("render", zap.Uint64("frame", f.Seq), zap.Int("coalesced", f.Coalesced))
            }))
        burst := c.Loop().Every(5*time.Millisecond, func() error {
            gate.Trigger()
            return nil
        })
        c.Own(closerFunc(func() error { _ = burst.Stop(); return nil }))
        c.Loop().AfterFunc(5*time.Second, func() error {
            _ = burst.Stop()
            return gate.Close()
        })
        return nil
    }
}

func gamepadScript(env Env) script.Script {
    return func(c *script.Context) error {
        pad := consumer.NewGamepad(c, env.Pads, config.Millis(env.Config.Consumers.Gamepad.PollIntervalMS))
        pad.SetOnConnect(consumer.ConnFunc(func(id string) { c.Logger().Info("pad connected", zap.String("index", id)) }))
        pad.SetOnDisconnect(consumer.ConnFunc(func(id string) { c.Logger().Info("pad disconnected", zap.String("index", id)) }))
        _, err := pad.SetOnData(consumer.DataFunc[consumer.PadState](func(p consumer.PadState) {
            c.Logger().Debug("pad state", zap.Int("index", p.Index), zap.Float64s("axes", p.Axes), zap.Float64s("buttons", p.Buttons))
        }))
        return err
    }
}
