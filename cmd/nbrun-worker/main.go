package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "github.com/PR-DC/JSLAB-sub002/pkg/transports"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker/tasks"
)

func main() {
    cfgPath := flag.String("config", "", "Path to YAML config file")
    kind := flag.String("kind", "", "transport kind: tcp|quic|udp|winpipe (default worker.transport)")
    addr := flag.String("addr", "", "listen address (default worker.address)")
    flag.Parse()

    cfg, err := config.Load(*cfgPath)
    if err != nil { fatalf("load config: %v", err) }
    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil { fatalf("setup logger: %v", err) }
    defer func() { _ = logger.Sync() }()

    if *kind == "" { *kind = cfg.Worker.Transport }
    if *addr == "" { *addr = cfg.Worker.Address }
    if k, ok := transport.ParseKind(*kind); ok && k == transport.KindMem {
        fatalf("transport %q is in-process only; pick tcp, quic, udp or winpipe", *kind)
    }
    if *addr == "" { fatalf("no listen address; pass --addr or set worker.address") }

    tr, err := transports.NewByKind(*kind)
    if err != nil { fatalf("new transport: %v", err) }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    reg := tasks.NewRegistry()
    zap.L().Info("nbrun-worker serving", zap.Strings("modules", reg.Paths()))
    if err := worker.ListenAndServe(ctx, tr, *addr, reg, worker.ServeOptions{Logger: logger}); err != nil {
        zap.L().Error("worker host failed", zap.Error(err))
        os.Exit(1)
    }
}

func fatalf(format string, a ...any) {
    fmt.Fprintf(os.Stderr, format+"\n", a...)
    os.Exit(1)
}
