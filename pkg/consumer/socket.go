package consumer

import (
    "net"
    "sync"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport/udp"
    "go.uber.org/zap"
)

// Packet is one received datagram.
type Packet = udp.Packet

// SocketOptions configures a Socket consumer.
type SocketOptions struct {
    Listen       string
    PollInterval time.Duration
    // BufferLimit bounds the backlog; the oldest packet is dropped when full.
    BufferLimit int
    // PeerIdle is how long a remote may stay silent before it counts as
    // disconnected. Zero disables disconnect detection.
    PeerIdle time.Duration
}

// SocketOptionsFromConfig maps the consumers.socket config section.
func SocketOptionsFromConfig(c config.SocketConfig) SocketOptions {
    return SocketOptions{
        Listen:       c.Listen,
        PollInterval: config.Millis(c.PollIntervalMS),
        BufferLimit:  c.BufferLimit,
        PeerIdle:     config.Millis(c.PeerIdleMS),
    }
}

// Socket is a buffered UDP consumer. Without a data observer it queues
// packets for Read; SetOnData flushes that backlog to the observer and
// switches to delivering.
type Socket struct {
    c      *script.Context
    sock   *udp.Socket
    poller *Poller
    log    *zap.Logger
    opts   SocketOptions

    mode    Mode
    gen     uint64
    onData  DataObserver[[]Packet]
    onConn  ConnObserver
    onDisc  ConnObserver
    backlog []Packet
    dropped uint64

    peers   map[string]time.Time
    joined  []string

    closeMu sync.Mutex
    closed  bool
}

// NewSocket binds opts.Listen and starts polling on the run's loop. The
// socket is closed when the run ends.
func NewSocket(c *script.Context, opts SocketOptions) (*Socket, error) {
    if opts.BufferLimit <= 0 { opts.BufferLimit = 4096 }
    if opts.PollInterval <= 0 { opts.PollInterval = 10 * time.Millisecond }
    sock, err := udp.ListenSocket(opts.Listen, opts.BufferLimit)
    if err != nil { return nil, err }
    s := &Socket{
        c:     c,
        sock:  sock,
        opts:  opts,
        log:   c.Logger().With(zap.String("consumer", "socket"), zap.Stringer("addr", sock.LocalAddr())),
        peers: make(map[string]time.Time),
    }
    s.poller = NewPoller(c, "socket", opts.PollInterval, s.tick, func() { _ = s.Close() })
    s.poller.Arm()
    c.Own(s)
    s.log.Debug("socket consumer listening")
    return s, nil
}

// LocalAddr is the bound address.
func (s *Socket) LocalAddr() *net.UDPAddr { return s.sock.LocalAddr() }

// Mode reports whether the socket is buffering or delivering.
func (s *Socket) Mode() Mode { return s.mode }

// Rearm restarts the poll timer, replacing the current one.
func (s *Socket) Rearm() {
    if s.isClosed() { return }
    s.poller.Arm()
}

// SetOnData registers obs and synchronously flushes the backlog to it in
// arrival order. Unsubscribing returns the socket to buffering. It fails
// with ErrClosed once the socket is closed.
func (s *Socket) SetOnData(obs DataObserver[[]Packet]) (*Subscription, error) {
    if s.isClosed() { return nil, ErrClosed }
    if obs == nil { return newSubscription(nil), nil }
    s.pull()
    s.gen++
    gen := s.gen
    s.onData, s.mode = obs, ModeDelivering
    if len(s.backlog) > 0 {
        batch := s.backlog
        s.backlog = nil
        obs.OnData(batch)
    }
    return newSubscription(func() {
        if s.gen != gen { return }
        s.onData, s.mode = nil, ModeBuffering
    }), nil
}

// SetOnConnect registers the observer told about the first packet from a
// new remote. Passing nil clears it.
func (s *Socket) SetOnConnect(obs ConnObserver) { s.onConn = obs }

// SetOnDisconnect registers the observer told when a remote has been silent
// for PeerIdle. Passing nil clears it.
func (s *Socket) SetOnDisconnect(obs ConnObserver) { s.onDisc = obs }

// Read removes and returns up to max packets from the front of the backlog.
// A max of zero or less reads nothing. It fails with ErrClosed once the
// socket is closed.
func (s *Socket) Read(max int) ([]Packet, error) {
    if s.isClosed() { return nil, ErrClosed }
    if max <= 0 { return nil, nil }
    s.pull()
    if max > len(s.backlog) { max = len(s.backlog) }
    if max == 0 { return nil, nil }
    out := make([]Packet, max)
    copy(out, s.backlog)
    s.backlog = append(s.backlog[:0], s.backlog[max:]...)
    return out, nil
}

// Available returns the number of buffered packets; a closed socket has none.
func (s *Socket) Available() int {
    if s.isClosed() { return 0 }
    s.pull()
    return len(s.backlog)
}

// AvailableBytes returns the total payload size of buffered packets.
func (s *Socket) AvailableBytes() int {
    if s.isClosed() { return 0 }
    s.pull()
    n := 0
    for _, p := range s.backlog { n += len(p.Data) }
    return n
}

// Dropped counts packets discarded because the buffer was full.
func (s *Socket) Dropped() uint64 { return s.dropped + s.sock.Dropped() }

// Send writes b to address.
func (s *Socket) Send(address string, b []byte) error {
    if s.isClosed() { return ErrClosed }
    return s.sock.WriteTo(b, address)
}

// pull moves received packets into the backlog and tracks remotes.
func (s *Socket) pull() {
    pkts := s.sock.Drain(0)
    if len(pkts) == 0 { return }
    now := s.c.Loop().Clock().Now()
    for _, p := range pkts {
        id := p.From.String()
        if _, seen := s.peers[id]; !seen { s.joined = append(s.joined, id) }
        s.peers[id] = now
    }
    s.backlog = append(s.backlog, pkts...)
    if over := len(s.backlog) - s.opts.BufferLimit; over > 0 {
        s.backlog = append(s.backlog[:0], s.backlog[over:]...)
        s.dropped += uint64(over)
    }
}

func (s *Socket) tick() {
    if err := s.sock.Err(); err != nil {
        s.c.ReportError("socket", "receive failed: "+err.Error())
        _ = s.Close()
        return
    }
    s.pull()
    for _, id := range s.joined {
        if s.onConn != nil { s.onConn.OnConn(id) }
    }
    s.joined = nil
    if s.opts.PeerIdle > 0 {
        now := s.c.Loop().Clock().Now()
        for id, last := range s.peers {
            if now.Sub(last) < s.opts.PeerIdle { continue }
            delete(s.peers, id)
            if s.onDisc != nil { s.onDisc.OnConn(id) }
        }
    }
    if s.mode == ModeDelivering && s.onData != nil && len(s.backlog) > 0 {
        batch := s.backlog
        s.backlog = nil
        s.onData.OnData(batch)
    }
}

func (s *Socket) isClosed() bool {
    s.closeMu.Lock(); defer s.closeMu.Unlock()
    return s.closed
}

// Close stops polling and releases the socket. It is safe to call more than
// once.
func (s *Socket) Close() error {
    s.closeMu.Lock()
    if s.closed {
        s.closeMu.Unlock()
        return nil
    }
    s.closed = true
    s.closeMu.Unlock()
    s.poller.Disarm()
    s.backlog, s.onData, s.onConn, s.onDisc = nil, nil, nil, nil
    s.log.Debug("socket consumer closed", zap.Uint64("dropped", s.Dropped()))
    return s.sock.Close()
}
