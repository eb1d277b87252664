package transport

import (
    "bufio"
    "context"
    "encoding/binary"
    "fmt"
    "io"
    "net"
    "sync"
    "sync/atomic"
    "time"
)

// FramedStream carries u32 LE length-prefixed frames over a byte stream.
type FramedStream struct {
    c  io.ReadWriteCloser
    wm sync.Mutex
    br *bufio.Reader
    bw *bufio.Writer

    establishedAt time.Time
    lastSeen      atomic.Int64
    sent, recv    atomic.Uint64
    closeOnce     sync.Once
    closeErr      error
}

// NewFramedStream wraps rw.
func NewFramedStream(rw io.ReadWriteCloser) *FramedStream {
    return &FramedStream{c: rw, br: bufio.NewReader(rw), bw: bufio.NewWriter(rw), establishedAt: time.Now()}
}

func (s *FramedStream) SendBytes(b []byte) error {
    if len(b) > MaxFrameSize { return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(b)) }
    s.wm.Lock(); defer s.wm.Unlock()
    var lenbuf [4]byte
    binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
    if _, err := s.bw.Write(lenbuf[:]); err != nil { return err }
    if _, err := s.bw.Write(b); err != nil { return err }
    if err := s.bw.Flush(); err != nil { return err }
    s.sent.Add(1)
    s.lastSeen.Store(time.Now().UnixNano())
    return nil
}

func (s *FramedStream) RecvBytes() ([]byte, error) {
    var lenbuf [4]byte
    if _, err := io.ReadFull(s.br, lenbuf[:]); err != nil { return nil, err }
    n := int(binary.LittleEndian.Uint32(lenbuf[:]))
    if n > MaxFrameSize { return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n) }
    buf := make([]byte, n)
    if _, err := io.ReadFull(s.br, buf); err != nil { return nil, err }
    s.recv.Add(1)
    s.lastSeen.Store(time.Now().UnixNano())
    return buf, nil
}

func (s *FramedStream) Close() error {
    s.closeOnce.Do(func() { s.closeErr = s.c.Close() })
    return s.closeErr
}

// Stats reports frame counters.
func (s *FramedStream) Stats() Stats {
    st := Stats{EstablishedAt: s.establishedAt, FramesSent: s.sent.Load(), FramesRecv: s.recv.Load()}
    if ns := s.lastSeen.Load(); ns != 0 { st.LastSeen = time.Unix(0, ns) }
    return st
}

// ConnSession adapts a net.Conn into a Session with exactly one stream.
type ConnSession struct {
    kind   Kind
    conn   net.Conn
    stream *FramedStream

    mu     sync.Mutex
    taken  bool
    closed chan struct{}
    once   sync.Once
}

// NewConnSession wraps c; kind is reported by TransportKind.
func NewConnSession(kind Kind, c net.Conn) *ConnSession {
    return &ConnSession{kind: kind, conn: c, stream: NewFramedStream(c), closed: make(chan struct{})}
}

func (s *ConnSession) TransportKind() Kind { return s.kind }
func (s *ConnSession) LocalAddr() net.Addr { return s.conn.LocalAddr() }
func (s *ConnSession) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
func (s *ConnSession) Stats() Stats { return s.stream.Stats() }

func (s *ConnSession) OpenStream(ctx context.Context) (Stream, error) { return s.take(ctx) }

func (s *ConnSession) AcceptStream(ctx context.Context) (Stream, error) { return s.take(ctx) }

func (s *ConnSession) take(ctx context.Context) (Stream, error) {
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
        return nil, ErrClosed
    }
}

func (s *ConnSession) Close() error {
    var err error
    s.once.Do(func() {
        close(s.closed)
        err = s.stream.Close()
    })
    return err
}

// ChanListener is a Listener fed by an accept goroutine.
type ChanListener struct {
    addr    net.Addr
    newCh   chan Session
    closeCh chan struct{}
    once    sync.Once
    onClose func() error
}

// NewChanListener creates a listener; onClose releases the underlying socket.
func NewChanListener(addr net.Addr, backlog int, onClose func() error) *ChanListener {
    if backlog <= 0 { backlog = 8 }
    return &ChanListener{addr: addr, newCh: make(chan Session, backlog), closeCh: make(chan struct{}), onClose: onClose}
}

func (l *ChanListener) Addr() net.Addr { return l.addr }

func (l *ChanListener) Accept(ctx context.Context) (Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, ErrClosed
    case s := <-l.newCh:
        return s, nil
    }
}

// Offer hands s to Accept; it closes s when the backlog is full or the
// listener is closed.
func (l *ChanListener) Offer(s Session) bool {
    select {
    case <-l.closeCh:
        _ = s.Close()
        return false
    default:
    }
    select {
    case l.newCh <- s:
        return true
    default:
        _ = s.Close()
        return false
    }
}

// Done is closed once the listener is closed.
func (l *ChanListener) Done() <-chan struct{} { return l.closeCh }

func (l *ChanListener) Close() error {
    var err error
    l.once.Do(func() {
        close(l.closeCh)
        if l.onClose != nil { err = l.onClose() }
    })
    return err
}
