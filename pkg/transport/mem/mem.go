package mem

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
)

var (
    ErrListenerExists = errors.New("mem: listener already exists")
    ErrNoListener     = errors.New("mem: no such listener")
)

// Backlog is how many frames a link buffers per direction before SendBytes
// waits for the peer to read.
const Backlog = 1024

// Transport is an in-process transport over buffered frame channels. Every
// frame is still serialized and copied, so peers share no memory.
type Transport struct {
    mu        sync.Mutex
    listeners map[string]*transport.ChanListener
}

func New() *Transport { return &Transport{listeners: make(map[string]*transport.ChanListener)} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    t.mu.Lock(); defer t.mu.Unlock()
    if _, ok := t.listeners[name]; ok { return nil, ErrListenerExists }
    var l *transport.ChanListener
    l = transport.NewChanListener(Addr(name), 8, func() error {
        t.mu.Lock()
        if t.listeners[name] == l { delete(t.listeners, name) }
        t.mu.Unlock()
        return nil
    })
    t.listeners[name] = l
    go func() {
        select {
        case <-ctx.Done():
        case <-l.Done():
        }
        _ = l.Close()
    }()
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, name string) (transport.Session, error) {
    t.mu.Lock(); l := t.listeners[name]; t.mu.Unlock()
    if l == nil { return nil, ErrNoListener }
    cli, srv := Pipe(name)
    if !l.Offer(srv) {
        _ = cli.Close()
        return nil, transport.ErrClosed
    }
    return cli, nil
}

// Pipe returns both ends of a private in-process link. Sends complete
// without the peer reading until Backlog frames are queued.
func Pipe(name string) (client, server transport.Session) {
    sh := &shared{done: make(chan struct{})}
    ab, ba := make(chan []byte, Backlog), make(chan []byte, Backlog)
    now := time.Now()
    return newSession(Addr(name), &stream{in: ba, out: ab, sh: sh, establishedAt: now}),
        newSession(Addr(name), &stream{in: ab, out: ba, sh: sh, establishedAt: now})
}

// Addr is the address of an in-process link.
type Addr string

func (a Addr) Network() string { return "mem" }
func (a Addr) String() string  { return string(a) }

// shared is closed by whichever end closes first.
type shared struct {
    done chan struct{}
    once sync.Once
}

func (s *shared) close() { s.once.Do(func() { close(s.done) }) }

type stream struct {
    in  <-chan []byte
    out chan<- []byte
    sh  *shared

    establishedAt time.Time
    lastSeen      atomic.Int64
    sent, recv    atomic.Uint64
}

func (s *stream) SendBytes(b []byte) error {
    if len(b) > transport.MaxFrameSize { return fmt.Errorf("%w: %d bytes", transport.ErrFrameTooLarge, len(b)) }
    select {
    case <-s.sh.done:
        return io.ErrClosedPipe
    default:
    }
    cp := append([]byte(nil), b...)
    select {
    case s.out <- cp:
    case <-s.sh.done:
        return io.ErrClosedPipe
    }
    s.sent.Add(1)
    s.lastSeen.Store(time.Now().UnixNano())
    return nil
}

// RecvBytes returns frames queued before the link closed, then io.EOF.
func (s *stream) RecvBytes() ([]byte, error) {
    var b []byte
    select {
    case b = <-s.in:
    default:
        select {
        case b = <-s.in:
        case <-s.sh.done:
            select {
            case b = <-s.in:
            default:
                return nil, io.EOF
            }
        }
    }
    s.recv.Add(1)
    s.lastSeen.Store(time.Now().UnixNano())
    return b, nil
}

func (s *stream) Close() error { s.sh.close(); return nil }

func (s *stream) stats() transport.Stats {
    st := transport.Stats{EstablishedAt: s.establishedAt, FramesSent: s.sent.Load(), FramesRecv: s.recv.Load()}
    if ns := s.lastSeen.Load(); ns != 0 { st.LastSeen = time.Unix(0, ns) }
    return st
}

// session carries exactly one stream, like transport.ConnSession.
type session struct {
    addr   Addr
    stream *stream

    mu     sync.Mutex
    taken  bool
    closed chan struct{}
    once   sync.Once
}

func newSession(addr Addr, st *stream) *session {
    return &session{addr: addr, stream: st, closed: make(chan struct{})}
}

func (s *session) TransportKind() transport.Kind { return transport.KindMem }
func (s *session) LocalAddr() net.Addr            { return s.addr }
func (s *session) RemoteAddr() net.Addr           { return s.addr }
func (s *session) Stats() transport.Stats         { return s.stream.stats() }

func (s *session) OpenStream(ctx context.Context) (transport.Stream, error) { return s.take(ctx) }

func (s *session) AcceptStream(ctx context.Context) (transport.Stream, error) { return s.take(ctx) }

func (s *session) take(ctx context.Context) (transport.Stream, error) {
    s.mu.Lock()
    if !s.taken {
        s.taken = true
        s.mu.Unlock()
        return s.stream, nil
    }
    s.mu.Unlock()
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-s.closed:
        return nil, transport.ErrClosed
    }
}

func (s *session) Close() error {
    s.once.Do(func() {
        close(s.closed)
        s.stream.Close()
    })
    return nil
}
