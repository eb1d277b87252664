package worker

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net"
    "runtime/debug"
    "strings"

    "github.com/PR-DC/JSLAB-sub002/pkg/protocol"
    "github.com/PR-DC/JSLAB-sub002/pkg/protocol/codec"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "go.uber.org/zap"
)

// ServeOptions configures a worker.
type ServeOptions struct {
    // Codecs used for body encoding; defaults to every built-in codec.
    Codecs *codec.Registry
    Logger *zap.Logger
}

func (o ServeOptions) withDefaults() (ServeOptions, error) {
    if o.Logger == nil { o.Logger = zap.L() }
    if o.Codecs == nil {
        r, err := codec.NewDefaultRegistry()
        if err != nil { return o, err }
        o.Codecs = r
    }
    return o, nil
}

// Serve runs one worker on st until the session closes the link, sends
// Close, or violates the protocol. Replies use the body format the
// Configure message arrived in. A protocol violation is answered with a
// Fault and returned as an error wrapping ErrProtocol.
func Serve(ctx context.Context, st transport.Stream, reg *Registry, opts ServeOptions) error {
    opts, err := opts.withDefaults()
    if err != nil { return err }
    w := newWire(st, protocol.FormatCBOR, opts.Codecs)
    log := opts.Logger

    // configure first, exactly once
    m, h, f, err := w.recv()
    if err != nil { return recvFailed(w, log, h, err) }
    w.setFormat(f)
    cfg, ok := m.(Configure)
    if !ok {
        return fault(w, log, h.Correlation, fmt.Sprintf("expected configure, got %s", protocol.TypeName(h.Type)))
    }
    mod, name, err := reg.Resolve(cfg.ModulePath)
    if err != nil { return fault(w, log, h.Correlation, err.Error()) }
    methods := mod.Methods()
    log = log.With(zap.String("module", name))
    log.Debug("worker configured", zap.Stringer("format", f))

    for {
        m, h, _, err := w.recv()
        if err != nil { return recvFailed(w, log, h, err) }
        switch msg := m.(type) {
        case Invoke:
            fn, ok := methods[msg.Method]
            if !ok {
                reason := fmt.Sprintf("%v: %q on module %q", ErrUnknownMethod, msg.Method, name)
                if s := methods.Suggest(msg.Method); s != "" { reason += fmt.Sprintf(" (did you mean %q?)", s) }
                return fault(w, log, h.Correlation, reason)
            }
            rep := call(ctx, fn, msg)
            if rep.Err != "" { log.Debug("method failed", zap.String("method", msg.Method), zap.String("error", rep.Err)) }
            if err := w.sendReply(rep, h.Correlation); err != nil { return fmt.Errorf("send reply: %w", err) }
        case Configure:
            return fault(w, log, h.Correlation, "module already configured")
        case Close:
            log.Debug("worker closed by session")
            return nil
        default:
            return fault(w, log, h.Correlation, fmt.Sprintf("unexpected %s message", protocol.TypeName(h.Type)))
        }
    }
}

// call runs fn; a panic inside a method is the module's failure, not the
// worker's, and is reported as a reply error.
func call(ctx context.Context, fn Method, msg Invoke) (rep Reply) {
    rep.Method = msg.Method
    defer func() {
        if r := recover(); r != nil {
            zap.L().Error("method panicked", zap.String("method", msg.Method), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
            rep.Value, rep.Err = nil, fmt.Sprintf("panic: %v", r)
        }
    }()
    v, err := fn(ctx, Args(msg.Args))
    if err != nil {
        rep.Err = err.Error()
        return rep
    }
    rep.Value = v
    return rep
}

func fault(w *wire, log *zap.Logger, corr [16]byte, reason string) error {
    log.Warn("worker fault", zap.String("reason", reason))
    if err := w.send(Fault{Reason: reason}, corr); err != nil { log.Debug("send fault", zap.Error(err)) }
    return fmt.Errorf("%w: %s", ErrProtocol, reason)
}

// recvFailed faults on undecodable input and treats a closed link as a
// clean end.
func recvFailed(w *wire, log *zap.Logger, h protocol.Header, err error) error {
    if errors.Is(err, ErrProtocol) {
        return fault(w, log, h.Correlation, strings.TrimPrefix(err.Error(), ErrProtocol.Error()+": "))
    }
    if linkClosed(err) { return nil }
    return err
}

func linkClosed(err error) bool {
    return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrClosed)
}
