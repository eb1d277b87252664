package worker

import (
    "context"
    "fmt"
    "sync"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/protocol"
    "github.com/PR-DC/JSLAB-sub002/pkg/protocol/codec"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport/mem"
    "github.com/PR-DC/JSLAB-sub002/pkg/transports"
    "github.com/google/uuid"
    "go.uber.org/zap"
)

// Spawner creates worker sessions, either as in-process workers or by
// dialing a worker host.
type Spawner struct {
    reg     *Registry
    format  protocol.Format
    codecs  *codec.Registry
    log     *zap.Logger
    backoff transports.Backoff

    wg sync.WaitGroup
}

// SpawnOption configures a Spawner.
type SpawnOption func(*Spawner)

func WithFormat(f protocol.Format) SpawnOption { return func(s *Spawner) { s.format = f } }

func WithSpawnLogger(l *zap.Logger) SpawnOption { return func(s *Spawner) { if l != nil { s.log = l } } }

func WithBackoff(b transports.Backoff) SpawnOption { return func(s *Spawner) { s.backoff = b } }

// NewSpawner creates a spawner resolving local modules from reg.
func NewSpawner(reg *Registry, opts ...SpawnOption) (*Spawner, error) {
    codecs, err := codec.NewDefaultRegistry()
    if err != nil { return nil, err }
    s := &Spawner{reg: reg, format: protocol.FormatCBOR, codecs: codecs, log: zap.L()}
    for _, o := range opts { o(s) }
    return s, nil
}

func (sp *Spawner) sessionOptions() SessionOptions {
    return SessionOptions{Format: sp.format, Codecs: sp.codecs, Logger: sp.log}
}

// Local starts an in-process worker for modulePath on a private link.
// The worker shares no memory with the caller; every message is serialized.
func (sp *Spawner) Local(ctx context.Context, modulePath string) (*Session, error) {
    cli, srv := mem.Pipe("worker-" + uuid.NewString())
    sp.wg.Add(1)
    go func() {
        defer sp.wg.Done()
        defer srv.Close()
        st, err := srv.AcceptStream(ctx)
        if err != nil { return }
        if err := Serve(ctx, st, sp.reg, ServeOptions{Codecs: sp.codecs, Logger: sp.log}); err != nil {
            sp.log.Debug("local worker ended", zap.String("module", NormalizePath(modulePath)), zap.Error(err))
        }
    }()
    s, err := Open(ctx, cli, modulePath, sp.sessionOptions())
    if err != nil {
        _ = cli.Close()
        return nil, err
    }
    return s, nil
}

// Remote dials a worker host over the named transport and configures a
// worker for modulePath.
func (sp *Spawner) Remote(ctx context.Context, kind, address, modulePath string) (*Session, error) {
    tr, err := transports.NewByKind(kind)
    if err != nil { return nil, err }
    link, err := transports.Dial(ctx, tr, address, sp.backoff)
    if err != nil { return nil, err }
    s, err := Open(ctx, link, modulePath, sp.sessionOptions())
    if err != nil {
        _ = link.Close()
        return nil, err
    }
    return s, nil
}

// Spawn picks Local or Remote according to cfg.
func (sp *Spawner) Spawn(ctx context.Context, cfg config.WorkerConfig, modulePath string) (*Session, error) {
    if k, ok := transport.ParseKind(cfg.Transport); ok && k == transport.KindMem && cfg.Address == "" {
        return sp.Local(ctx, modulePath)
    }
    if cfg.Address == "" { return nil, fmt.Errorf("worker transport %q needs an address", cfg.Transport) }
    return sp.Remote(ctx, cfg.Transport, cfg.Address, modulePath)
}

// Wait blocks until every local worker has ended.
func (sp *Spawner) Wait() { sp.wg.Wait() }

// NewSpawnerFromConfig builds a spawner honoring the worker config section.
func NewSpawnerFromConfig(reg *Registry, cfg config.WorkerConfig, log *zap.Logger) (*Spawner, error) {
    f, err := protocol.ParseFormat(cfg.Format)
    if err != nil { return nil, err }
    return NewSpawner(reg, WithFormat(f), WithSpawnLogger(log), WithBackoff(transports.BackoffFromConfig(cfg.Net)))
}
