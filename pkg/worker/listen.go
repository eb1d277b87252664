package worker

import (
    "context"
    "errors"
    "net"
    "sync"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "go.uber.org/zap"
)

// Host accepts links and serves one worker per stream.
type Host struct {
    l    transport.Listener
    reg  *Registry
    opts ServeOptions

    wg sync.WaitGroup

    mu       sync.Mutex
    sessions map[transport.Session]struct{}
}

// Listen starts a worker host on address using tr.
func Listen(ctx context.Context, tr transport.Transport, address string, reg *Registry, opts ServeOptions) (*Host, error) {
    opts, err := opts.withDefaults()
    if err != nil { return nil, err }
    l, err := tr.Listen(ctx, address)
    if err != nil { return nil, err }
    h := &Host{l: l, reg: reg, opts: opts, sessions: make(map[transport.Session]struct{})}
    h.wg.Add(1)
    go h.acceptLoop(ctx)
    opts.Logger.Info("worker host listening", zap.Stringer("kind", tr.Kind()), zap.Stringer("addr", l.Addr()))
    return h, nil
}

func (h *Host) Addr() net.Addr { return h.l.Addr() }

func (h *Host) acceptLoop(ctx context.Context) {
    defer h.wg.Done()
    for {
        sess, err := h.l.Accept(ctx)
        if err != nil {
            if !errors.Is(err, context.Canceled) && !errors.Is(err, transport.ErrClosed) {
                h.opts.Logger.Warn("accept failed", zap.Error(err))
            }
            return
        }
        h.wg.Add(1)
        go h.serveSession(ctx, sess)
    }
}

// serveSession runs a worker for every stream the peer opens.
func (h *Host) serveSession(ctx context.Context, sess transport.Session) {
    defer h.wg.Done()
    h.mu.Lock()
    h.sessions[sess] = struct{}{}
    h.mu.Unlock()
    defer func() {
        h.mu.Lock()
        delete(h.sessions, sess)
        h.mu.Unlock()
        _ = sess.Close()
    }()
    _, multiplexed := sess.(transport.Multiplexer)
    log := h.opts.Logger.With(zap.Stringer("remote", sess.RemoteAddr()))
    log.Debug("worker link accepted")
    var streams sync.WaitGroup
    defer streams.Wait()
    for {
        st, err := sess.AcceptStream(ctx)
        if err != nil { return }
        streams.Add(1)
        go func() {
            defer streams.Done()
            defer st.Close()
            opts := h.opts
            opts.Logger = log
            if err := Serve(ctx, st, h.reg, opts); err != nil {
                log.Info("worker ended", zap.Error(err))
            }
            // single-stream links end with their only worker
            if !multiplexed { _ = sess.Close() }
        }()
    }
}

// Close stops accepting, closes open links and waits for workers to end.
func (h *Host) Close() error {
    err := h.l.Close()
    h.mu.Lock()
    for s := range h.sessions { _ = s.Close() }
    h.mu.Unlock()
    h.wg.Wait()
    return err
}

// ListenAndServe serves workers on address until ctx is done.
func ListenAndServe(ctx context.Context, tr transport.Transport, address string, reg *Registry, opts ServeOptions) error {
    h, err := Listen(ctx, tr, address, reg, opts)
    if err != nil { return err }
    <-ctx.Done()
    return h.Close()
}
