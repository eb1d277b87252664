package udp

import (
    "errors"
    "net"
    "sync"
    "time"
)

// Packet is one received datagram.
type Packet struct {
    From *net.UDPAddr
    Data []byte
    At   time.Time
}

// Socket is a bound UDP socket whose received datagrams are queued in
// arrival order until drained. A background goroutine does the blocking
// reads; Drain never blocks.
type Socket struct {
    conn  *net.UDPConn
    limit int

    mu      sync.Mutex
    queue   []Packet
    dropped uint64
    err     error

    closeOnce sync.Once
    done      chan struct{}
}

// ListenSocket binds address and starts receiving. limit bounds the queue;
// the oldest datagram is dropped when it is full.
func ListenSocket(address string, limit int) (*Socket, error) {
    laddr, err := net.ResolveUDPAddr("udp", address)
    if err != nil { return nil, err }
    c, err := net.ListenUDP("udp", laddr)
    if err != nil { return nil, err }
    if limit <= 0 { limit = 4096 }
    s := &Socket{conn: c, limit: limit, done: make(chan struct{})}
    go s.readLoop()
    return s, nil
}

func (s *Socket) LocalAddr() *net.UDPAddr { return s.conn.LocalAddr().(*net.UDPAddr) }

func (s *Socket) readLoop() {
    defer close(s.done)
    buf := make([]byte, 64*1024)
    for {
        n, raddr, err := s.conn.ReadFromUDP(buf)
        if err != nil {
            if !errors.Is(err, net.ErrClosed) {
                s.mu.Lock(); s.err = err; s.mu.Unlock()
            }
            return
        }
        pkt := Packet{From: raddr, Data: append([]byte(nil), buf[:n]...), At: time.Now()}
        s.mu.Lock()
        if len(s.queue) >= s.limit {
            s.queue[0] = Packet{}
            s.queue = s.queue[1:]
            s.dropped++
        }
        s.queue = append(s.queue, pkt)
        s.mu.Unlock()
    }
}

// Drain removes and returns up to max queued packets (all when max <= 0).
func (s *Socket) Drain(max int) []Packet {
    s.mu.Lock(); defer s.mu.Unlock()
    n := len(s.queue)
    if max > 0 && max < n { n = max }
    if n == 0 { return nil }
    out := make([]Packet, n)
    copy(out, s.queue[:n])
    rest := copy(s.queue, s.queue[n:])
    for i := rest; i < len(s.queue); i++ { s.queue[i] = Packet{} }
    s.queue = s.queue[:rest]
    return out
}

// Pending returns the number of queued packets.
func (s *Socket) Pending() int {
    s.mu.Lock(); defer s.mu.Unlock()
    return len(s.queue)
}

// Dropped counts packets discarded because the queue was full.
func (s *Socket) Dropped() uint64 {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.dropped
}

// Err reports a read failure that stopped the socket, if any.
func (s *Socket) Err() error {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.err
}

// WriteTo sends b to address ("host:port").
func (s *Socket) WriteTo(b []byte, address string) error {
    raddr, err := net.ResolveUDPAddr("udp", address)
    if err != nil { return err }
    _, err = s.conn.WriteToUDP(b, raddr)
    return err
}

// Close stops receiving; it is safe to call more than once.
func (s *Socket) Close() error {
    var err error
    s.closeOnce.Do(func() {
        err = s.conn.Close()
        <-s.done
    })
    return err
}
