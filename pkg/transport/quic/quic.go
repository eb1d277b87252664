package quic

import (
    "context"
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "math/big"
    "net"
    "sync"
    "time"

    quicgo "github.com/quic-go/quic-go"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
)

const alpn = "nbrun-worker"

// Transport implements QUIC sessions. Each worker runs on its own
// bidirectional stream, so one connection can carry several workers.
type Transport struct {
    tlsConf  *tls.Config
    quicConf *quicgo.Config
}

func New() (*Transport, error) {
    // Ephemeral self-signed certificate for the listening side.
    cert, err := selfSignedCert()
    if err != nil { return nil, err }
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{alpn},
        MinVersion:   tls.VersionTLS13,
    }
    qconf := &quicgo.Config{KeepAlivePeriod: 15 * time.Second, MaxIdleTimeout: time.Minute}
    return &Transport{tlsConf: tlsConf, quicConf: qconf}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
    if err != nil { return nil, err }
    ql := transport.NewChanListener(l.Addr(), 8, l.Close)
    go acceptLoop(ctx, l, ql)
    go func() {
        select {
        case <-ctx.Done():
        case <-ql.Done():
        }
        _ = ql.Close()
    }()
    return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    // Workers are trusted peers on a private link; the certificate is ephemeral.
    tlsClient := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{alpn},
        MinVersion:         tls.VersionTLS13,
    }
    c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
    if err != nil { return nil, err }
    return newSession(c), nil
}

func acceptLoop(ctx context.Context, l *quicgo.Listener, ql *transport.ChanListener) {
    for {
        c, err := l.Accept(ctx)
        if err != nil { return }
        ql.Offer(newSession(c))
    }
}

type session struct {
    c             *quicgo.Conn
    establishedAt time.Time

    mu      sync.Mutex
    streams []*transport.FramedStream
}

func newSession(c *quicgo.Conn) *session { return &session{c: c, establishedAt: time.Now()} }

func (s *session) TransportKind() transport.Kind { return transport.KindQUIC }
func (s *session) LocalAddr() net.Addr           { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr          { return s.c.RemoteAddr() }

func (s *session) Multiplexed() bool { return true }

func (s *session) OpenStream(ctx context.Context) (transport.Stream, error) {
    qs, err := s.c.OpenStreamSync(ctx)
    if err != nil { return nil, err }
    return s.track(qs), nil
}

func (s *session) AcceptStream(ctx context.Context) (transport.Stream, error) {
    qs, err := s.c.AcceptStream(ctx)
    if err != nil { return nil, err }
    return s.track(qs), nil
}

func (s *session) track(qs *quicgo.Stream) *transport.FramedStream {
    st := transport.NewFramedStream(qs)
    s.mu.Lock()
    s.streams = append(s.streams, st)
    s.mu.Unlock()
    return st
}

// Stats aggregates the frame counters of every stream.
func (s *session) Stats() transport.Stats {
    out := transport.Stats{EstablishedAt: s.establishedAt}
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, st := range s.streams {
        ss := st.Stats()
        out.FramesSent += ss.FramesSent
        out.FramesRecv += ss.FramesRecv
        if ss.LastSeen.After(out.LastSeen) { out.LastSeen = ss.LastSeen }
    }
    return out
}

func (s *session) Close() error { return s.c.CloseWithError(0, "") }

// selfSignedCert generates a short-lived self-signed TLS certificate for local QUIC use.
func selfSignedCert() (tls.Certificate, error) {
    priv, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
