package udp

import (
    "context"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
)

// maxDatagram is the largest frame sent in one datagram; larger messages
// must be fragmented by the caller.
const maxDatagram = 60 * 1024

// Transport implements a datagram transport carrying one frame per datagram.
// It does not support multiplexed streams; one logical stream per remote is used.
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindUDP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    laddr, err := net.ResolveUDPAddr("udp", address)
    if err != nil { return nil, err }
    c, err := net.ListenUDP("udp", laddr)
    if err != nil { return nil, err }
    ul := &listener{conn: c, sessions: make(map[string]*session)}
    ul.ChanListener = transport.NewChanListener(c.LocalAddr(), 8, ul.shutdown)
    go ul.readLoop()
    go func() {
        select {
        case <-ctx.Done():
        case <-ul.Done():
        }
        _ = ul.Close()
    }()
    return ul, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    raddr, err := net.ResolveUDPAddr("udp", address)
    if err != nil { return nil, err }
    var d net.Dialer
    nc, err := d.DialContext(ctx, "udp", raddr.String())
    if err != nil { return nil, err }
    c := nc.(*net.UDPConn)
    s := newSession(c, raddr, true)
    go s.recvLoop()
    return s, nil
}

// ---- Listener/demux ----

type listener struct {
    *transport.ChanListener
    conn *net.UDPConn

    mu       sync.Mutex
    sessions map[string]*session
}

func (l *listener) shutdown() error {
    l.mu.Lock()
    for _, s := range l.sessions { s.markClosed() }
    l.sessions = map[string]*session{}
    l.mu.Unlock()
    return l.conn.Close()
}

func (l *listener) readLoop() {
    buf := make([]byte, 64*1024)
    for {
        n, raddr, err := l.conn.ReadFromUDP(buf)
        if err != nil { return }
        key := raddr.String()
        l.mu.Lock()
        s, ok := l.sessions[key]
        if !ok {
            s = newSession(l.conn, raddr, false)
            s.onClose = func() {
                l.mu.Lock()
                if l.sessions[key] == s { delete(l.sessions, key) }
                l.mu.Unlock()
            }
            l.sessions[key] = s
        }
        l.mu.Unlock()
        if !ok && !l.Offer(s) { continue }
        pkt := make([]byte, n)
        copy(pkt, buf[:n])
        s.deliver(pkt)
    }
}

// ---- Session/Stream ----

type session struct {
    conn     *net.UDPConn
    raddr    *net.UDPAddr
    outbound bool
    rxCh     chan []byte
    onClose  func()

    closeOnce     sync.Once
    closed        chan struct{}
    taken         atomic.Bool
    establishedAt time.Time
    lastSeen      atomic.Int64
    sent, recv    atomic.Uint64
}

func newSession(c *net.UDPConn, raddr *net.UDPAddr, outbound bool) *session {
    return &session{conn: c, raddr: raddr, outbound: outbound, rxCh: make(chan []byte, 64), closed: make(chan struct{}), establishedAt: time.Now()}
}

func (s *session) TransportKind() transport.Kind { return transport.KindUDP }
func (s *session) LocalAddr() net.Addr           { return s.conn.LocalAddr() }
func (s *session) RemoteAddr() net.Addr          { return s.raddr }

func (s *session) OpenStream(ctx context.Context) (transport.Stream, error) { return s.take(ctx) }

func (s *session) AcceptStream(ctx context.Context) (transport.Stream, error) { return s.take(ctx) }

func (s *session) take(ctx context.Context) (transport.Stream, error) {
    if s.taken.CompareAndSwap(false, true) { return &stream{s: s}, nil }
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-s.closed:
        return nil, transport.ErrClosed
    }
}

func (s *session) Stats() transport.Stats {
    st := transport.Stats{EstablishedAt: s.establishedAt, FramesSent: s.sent.Load(), FramesRecv: s.recv.Load()}
    if ns := s.lastSeen.Load(); ns != 0 { st.LastSeen = time.Unix(0, ns) }
    return st
}

func (s *session) recvLoop() {
    buf := make([]byte, 64*1024)
    for {
        n, err := s.conn.Read(buf)
        if err != nil {
            s.markClosed()
            return
        }
        pkt := make([]byte, n)
        copy(pkt, buf[:n])
        s.deliver(pkt)
    }
}

// deliver queues pkt; datagrams are dropped when the reader falls behind.
func (s *session) deliver(pkt []byte) {
    select {
    case <-s.closed:
    case s.rxCh <- pkt:
    default:
    }
}

func (s *session) markClosed() {
    s.closeOnce.Do(func() {
        close(s.closed)
        if s.onClose != nil { s.onClose() }
    })
}

func (s *session) Close() error {
    s.markClosed()
    if s.outbound { return s.conn.Close() }
    return nil
}

type stream struct{ s *session }

func (st *stream) MaxFrame() int { return maxDatagram }

func (st *stream) SendBytes(b []byte) error {
    if len(b) > maxDatagram { return transport.ErrFrameTooLarge }
    select {
    case <-st.s.closed:
        return transport.ErrClosed
    default:
    }
    var err error
    if st.s.outbound {
        _, err = st.s.conn.Write(b)
    } else {
        _, err = st.s.conn.WriteToUDP(b, st.s.raddr)
    }
    if err != nil { return err }
    st.s.sent.Add(1)
    st.s.lastSeen.Store(time.Now().UnixNano())
    return nil
}

func (st *stream) RecvBytes() ([]byte, error) {
    select {
    case pkt := <-st.s.rxCh:
        st.s.recv.Add(1)
        st.s.lastSeen.Store(time.Now().UnixNano())
        return pkt, nil
    case <-st.s.closed:
        return nil, transport.ErrClosed
    }
}

func (st *stream) Close() error { return st.s.Close() }
