package transport

import (
    "context"
    "errors"
    "net"
    "strings"
    "time"
)

// Kind identifies the link type.
type Kind int

const (
    KindUnknown Kind = iota
    KindMem
    KindTCP
    KindQUIC
    KindUDP
    KindWinPipe
)

func (k Kind) String() string {
    switch k {
    case KindMem:
        return "mem"
    case KindTCP:
        return "tcp"
    case KindQUIC:
        return "quic"
    case KindUDP:
        return "udp"
    case KindWinPipe:
        return "winpipe"
    default:
        return "unknown"
    }
}

// ParseKind maps a config name to a Kind.
func ParseKind(s string) (Kind, bool) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "mem":
        return KindMem, true
    case "tcp":
        return KindTCP, true
    case "quic":
        return KindQUIC, true
    case "udp":
        return KindUDP, true
    case "winpipe", "pipe":
        return KindWinPipe, true
    default:
        return KindUnknown, false
    }
}

var (
    // ErrClosed is returned by operations on a closed session, stream or listener.
    ErrClosed = errors.New("transport: closed")
    // ErrFrameTooLarge is returned when a frame exceeds the link limit.
    ErrFrameTooLarge = errors.New("transport: frame too large")
)

// MaxFrameSize bounds a single frame on stream links.
const MaxFrameSize = 1 << 24

// Stats is a snapshot of link activity.
type Stats struct {
    EstablishedAt time.Time
    LastSeen      time.Time
    FramesSent    uint64
    FramesRecv    uint64
}

// Stream is a bidirectional frame stream.
// Exactly one reader and one writer goroutine are expected.
type Stream interface {
    // SendBytes sends one frame.
    SendBytes([]byte) error
    // RecvBytes blocks for the next frame.
    RecvBytes() ([]byte, error)
    Close() error
}

// FrameLimiter is implemented by streams that cannot carry arbitrarily large
// frames (datagram links). Callers fragment above MaxFrame.
type FrameLimiter interface {
    MaxFrame() int
}

// Multiplexer is implemented by sessions that carry independent streams.
type Multiplexer interface {
    Multiplexed() bool
}

// Session is a connection to a peer carrying one or more streams.
type Session interface {
    TransportKind() Kind
    LocalAddr() net.Addr
    RemoteAddr() net.Addr

    // OpenStream opens a new outbound stream. Transports without
    // multiplexing return their single stream once.
    OpenStream(ctx context.Context) (Stream, error)

    // AcceptStream waits for the next inbound stream. Transports without
    // multiplexing yield their single stream once and then block until the
    // session closes.
    AcceptStream(ctx context.Context) (Stream, error)

    Stats() Stats

    Close() error
}

// Listener accepts inbound sessions.
type Listener interface {
    // Accept blocks until an inbound session is available or ctx is done.
    Accept(ctx context.Context) (Session, error)
    // Addr returns the local listening address.
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport provides dialing/listening for a specific link kind.
type Transport interface {
    Kind() Kind
    // Listen starts accepting inbound sessions on address (transport-specific format).
    Listen(ctx context.Context, address string) (Listener, error)
    // Dial creates an outbound session to address.
    Dial(ctx context.Context, address string) (Session, error)
}
