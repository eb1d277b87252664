//go:build windows

package winpipe

import (
    "context"
    "net"

    "github.com/Microsoft/go-winio"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
)

// Transport carries frames over Windows named pipes (\\.\pipe\name).
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func (t *Transport) Listen(ctx context.Context, pipeName string) (transport.Listener, error) {
    l, err := winio.ListenPipe(pipeName, &winio.PipeConfig{MessageMode: false})
    if err != nil { return nil, err }
    wl := transport.NewChanListener(l.Addr(), 8, l.Close)
    go acceptLoop(l, wl)
    go func() {
        select {
        case <-ctx.Done():
        case <-wl.Done():
        }
        _ = wl.Close()
    }()
    return wl, nil
}

func (t *Transport) Dial(ctx context.Context, pipeName string) (transport.Session, error) {
    conn, err := winio.DialPipeContext(ctx, pipeName)
    if err != nil { return nil, err }
    return transport.NewConnSession(transport.KindWinPipe, conn), nil
}

func acceptLoop(l net.Listener, wl *transport.ChanListener) {
    for {
        c, err := l.Accept()
        if err != nil { return }
        wl.Offer(transport.NewConnSession(transport.KindWinPipe, c))
    }
}
