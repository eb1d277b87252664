package main

import (
    "context"
    "errors"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/control"
    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/scripts"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker/tasks"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("nbrun started", zap.String("app", cfg.AppName))
    zap.L().Debug("effective configuration", zap.Any("config", cfg))

    spawner, err := worker.NewSpawnerFromConfig(tasks.NewRegistry(), cfg.Worker, logger)
    if err != nil {
        zap.L().Error("failed to create worker spawner", zap.Error(err))
        return 1
    }
    catalog := scripts.NewCatalog(scripts.Env{Config: cfg, Spawner: spawner})
    if opts.List {
        for _, e := range catalog.List() { fmt.Printf("%-10s %s\n", e.Name, e.Description) }
        return 0
    }

    reports := observability.NewReporter(logger, cfg.Log.ReportHistory)
    runner := script.NewRunner(
        script.WithRunnerLogger(logger),
        script.WithRunnerSink(reports),
        script.WithQueueHint(cfg.Scheduler.QueueHint),
    )

    ctx, stopAll := context.WithCancel(context.Background())
    defer stopAll()
    go handleSignals(ctx, runner, stopAll)

    serveErr := make(chan error, 1)
    if cfg.Control.Enable {
        srv := control.New(control.Options{Runner: runner, Catalog: catalog, Reports: reports, Logger: logger, Base: ctx})
        go func() { serveErr <- srv.Serve(ctx, cfg.Control.Listen) }()
    }

    code := 0
    if opts.Script != "" {
        s, ok := catalog.Get(opts.Script)
        if !ok {
            zap.L().Error("unknown script", zap.String("script", opts.Script))
            return 2
        }
        info, err := runner.Run(ctx, opts.Script, s)
        switch {
        case err == nil:
        case errors.Is(err, cancel.ErrStopped):
            zap.L().Info("script stopped", zap.String("run", info.ID))
        default:
            zap.L().Error("script failed", zap.String("run", info.ID), zap.Error(err))
            code = 1
        }
        if !cfg.Control.Enable { stopAll() }
    }

    if cfg.Control.Enable {
        zap.L().Info("control api enabled; press Ctrl+C to stop a run, twice to exit")
        if err := <-serveErr; err != nil {
            zap.L().Error("control api failed", zap.Error(err))
            code = 1
        }
    }
    stopAll()
    runner.Stop()
    runner.Wait()
    spawner.Wait()
    zap.L().Info("nbrun exiting")
    return code
}

// handleSignals stops the active run on the first interrupt and shuts down
// on the next one, or on the first when nothing is running.
func handleSignals(ctx context.Context, runner *script.Runner, shutdown context.CancelFunc) {
    sigCh := make(chan os.Signal, 2)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
    defer signal.Stop(sigCh)
    var stoppedRun string
    for {
        select {
        case <-ctx.Done():
            return
        case sig := <-sigCh:
            if info, active := runner.Active(); active && sig == os.Interrupt && info.ID != stoppedRun {
                stoppedRun = info.ID
                zap.L().Info("stopping active run; interrupt again to exit")
                runner.Stop()
                continue
            }
            zap.L().Info("shutting down", zap.Stringer("signal", sig))
            shutdown()
            return
        }
    }
}
