package tcp

import (
    "context"
    "net"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
)

// Transport implements a stream-based TCP transport with length-prefixed frames (u32 LE).
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    var lc net.ListenConfig
    l, err := lc.Listen(ctx, "tcp", address)
    if err != nil { return nil, err }
    tl := transport.NewChanListener(l.Addr(), 8, l.Close)
    go acceptLoop(l, tl)
    go func() {
        select {
        case <-ctx.Done():
        case <-tl.Done():
        }
        _ = tl.Close()
    }()
    return tl, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    d := &net.Dialer{}
    c, err := d.DialContext(ctx, "tcp", address)
    if err != nil { return nil, err }
    if tc, ok := c.(*net.TCPConn); ok { _ = tc.SetNoDelay(true) }
    return transport.NewConnSession(transport.KindTCP, c), nil
}

func acceptLoop(l net.Listener, tl *transport.ChanListener) {
    for {
        c, err := l.Accept()
        if err != nil { return }
        tl.Offer(transport.NewConnSession(transport.KindTCP, c))
    }
}
