package worker

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/priocq"
    "github.com/PR-DC/JSLAB-sub002/pkg/protocol"
    "github.com/PR-DC/JSLAB-sub002/pkg/protocol/codec"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "github.com/google/uuid"
    "go.uber.org/zap"
)

// Poster is the part of the scheduler a session delivers replies through.
type Poster interface {
    Post(fn sched.Task)
    Hold() (release func())
}

// SessionOptions configures Open.
type SessionOptions struct {
    Format protocol.Format
    Codecs *codec.Registry
    Logger *zap.Logger
}

type pending struct {
    method  string
    deliver func(v any, err error)
}

type outbound struct {
    msg  Message
    corr [16]byte
}

// closeGrace bounds how long Close waits for queued messages to be written.
const closeGrace = 500 * time.Millisecond

// Session is the caller's handle to one worker. Messages on a session are
// processed by the worker in send order.
type Session struct {
    id     string
    module string
    link   transport.Session
    w      *wire
    log    *zap.Logger

    // out feeds the writer goroutine so callers never block on the link
    out       *priocq.Queue
    writeDone chan struct{}

    mu      sync.Mutex
    calls   map[[16]byte]*pending
    failErr error
    closed  bool
    done    chan struct{}
}

// Open opens a stream on link and configures the worker with modulePath.
// The worker loads the module before it processes anything else.
func Open(ctx context.Context, link transport.Session, modulePath string, opts SessionOptions) (*Session, error) {
    if opts.Logger == nil { opts.Logger = zap.L() }
    if opts.Format == protocol.FormatUnknown { opts.Format = protocol.FormatCBOR }
    if opts.Codecs == nil {
        r, err := codec.NewDefaultRegistry()
        if err != nil { return nil, err }
        opts.Codecs = r
    }
    st, err := link.OpenStream(ctx)
    if err != nil { return nil, fmt.Errorf("open worker stream: %w", err) }

    id := uuid.NewString()
    s := &Session{
        id:     id,
        module: NormalizePath(modulePath),
        link:   link,
        w:      newWire(st, opts.Format, opts.Codecs),
        log:    opts.Logger.With(zap.String("session", id), zap.String("module", NormalizePath(modulePath))),
        calls:  make(map[[16]byte]*pending),
        done:   make(chan struct{}),
        out:       priocq.New(0),
        writeDone: make(chan struct{}),
    }
    s.enqueue(Configure{ModulePath: modulePath}, protocol.NewCorrelation())
    go s.writeLoop()
    go s.readLoop()
    s.log.Debug("worker session opened", zap.Stringer("link", link.TransportKind()))
    return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Module() string { return s.module }

// Done is closed once the session has failed or closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the failure that ended the session, if any.
func (s *Session) Err() error {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.failErr
}

func (s *Session) enqueue(m Message, corr [16]byte) bool {
    _, err := s.out.Push(priocq.ClassScript, outbound{msg: m, corr: corr})
    return err == nil
}

func (s *Session) writeLoop() {
    defer close(s.writeDone)
    for {
        it, ok := s.out.Pop(nil)
        if !ok { return }
        o := it.Value.(outbound)
        if err := s.w.send(o.msg, o.corr); err != nil {
            s.fail(fmt.Errorf("%w: send %s: %v", ErrSessionFailed, protocol.TypeName(o.msg.msgType()), err))
            return
        }
    }
}

func (s *Session) readLoop() {
    for {
        m, h, _, err := s.w.recv()
        if err != nil {
            s.mu.Lock()
            closed := s.closed
            s.mu.Unlock()
            if !closed { s.fail(fmt.Errorf("%w: link: %v", ErrSessionFailed, err)) }
            return
        }
        switch msg := m.(type) {
        case Reply:
            s.mu.Lock()
            p := s.calls[h.Correlation]
            delete(s.calls, h.Correlation)
            s.mu.Unlock()
            if p == nil {
                s.log.Warn("reply for unknown call", zap.String("method", msg.Method))
                continue
            }
            var err error
            if msg.Err != "" { err = &MethodError{Method: msg.Method, Message: msg.Err} }
            p.deliver(msg.Value, err)
        case Fault:
            s.fail(fmt.Errorf("%w: %s", ErrSessionFailed, msg.Reason))
            return
        default:
            s.fail(fmt.Errorf("%w: unexpected %s from worker", ErrSessionFailed, protocol.TypeName(h.Type)))
            return
        }
    }
}

// MethodError is a failure reported by the module method itself.
type MethodError struct {
    Method  string
    Message string
}

func (e *MethodError) Error() string { return fmt.Sprintf("method %s: %s", e.Method, e.Message) }

// fail marks the session failed and fails every pending call.
func (s *Session) fail(err error) {
    s.mu.Lock()
    if s.failErr != nil || s.closed {
        s.mu.Unlock()
        return
    }
    s.failErr = err
    calls := s.calls
    s.calls = map[[16]byte]*pending{}
    close(s.done)
    s.mu.Unlock()

    s.log.Warn("worker session failed", zap.Error(err))
    s.out.Close()
    _ = s.link.Close()
    for _, p := range calls { p.deliver(nil, err) }
}

func (s *Session) send(method string, args []any, deliver func(any, error)) error {
    corr := protocol.NewCorrelation()
    s.mu.Lock()
    if s.closed {
        s.mu.Unlock()
        return ErrSessionClosed
    }
    if s.failErr != nil {
        err := s.failErr
        s.mu.Unlock()
        return err
    }
    s.calls[corr] = &pending{method: method, deliver: deliver}
    // pushed under the lock so Close cannot slip in between
    ok := s.enqueue(Invoke{Method: method, Args: args}, corr)
    if !ok { delete(s.calls, corr) }
    s.mu.Unlock()
    if !ok { return ErrSessionClosed }
    return nil
}

// Call dispatches method and delivers the result as a host event on p. The
// loop is held non-idle until the result is delivered.
func (s *Session) Call(p Poster, method string, args []any, cb func(v any, err error) error) error {
    release := p.Hold()
    err := s.send(method, args, func(v any, err error) {
        p.Post(func() error {
            release()
            if cb == nil { return nil }
            return cb(v, err)
        })
    })
    if err != nil { release() }
    return err
}

// Invoke is the blocking form of Call for code that is not on a loop.
func (s *Session) Invoke(ctx context.Context, method string, args ...any) (any, error) {
    type result struct {
        v   any
        err error
    }
    ch := make(chan result, 1)
    if err := s.send(method, args, func(v any, err error) { ch <- result{v, err} }); err != nil { return nil, err }
    select {
    case r := <-ch:
        return r.v, r.err
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

// Close ends the session. Pending calls fail with ErrSessionClosed. It is
// safe to call more than once.
func (s *Session) Close() error {
    s.mu.Lock()
    if s.closed {
        s.mu.Unlock()
        return nil
    }
    s.closed = true
    wasFailed := s.failErr != nil
    calls := s.calls
    s.calls = map[[16]byte]*pending{}
    if !wasFailed { close(s.done) }
    s.mu.Unlock()

    if !wasFailed {
        s.enqueue(Close{}, protocol.NewCorrelation())
        s.out.Close()
        select {
        case <-s.writeDone:
        case <-time.After(closeGrace):
            s.log.Debug("worker close message not flushed")
        }
    }
    for _, p := range calls { p.deliver(nil, ErrSessionClosed) }
    err := s.link.Close()
    if wasFailed || errors.Is(err, transport.ErrClosed) { return nil }
    return err
}
