package consumer

import (
    "context"
    "net"
    "strconv"
    "sync"
    "testing"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched/schedtest"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/stretchr/testify/require"
)

type harness struct {
    c     *script.Context
    clock *schedtest.FakeClock
    flag  *cancel.Flag

    mu      sync.Mutex
    reports []observability.Report
}

func newHarness(t *testing.T) *harness {
    t.Helper()
    h := &harness{clock: schedtest.NewFakeClock(time.Unix(1_000, 0)), flag: cancel.NewFlag()}
    sink := observability.SinkFunc(func(scope, msg string) {
        h.mu.Lock(); defer h.mu.Unlock()
        h.reports = append(h.reports, observability.Report{Scope: scope, Message: msg})
    })
    l := sched.New(sched.WithClock(h.clock), sched.WithSink(sink), sched.WithExitOnIdle())
    h.c = script.NewContext(l, h.flag.Arm(), "test")
    return h
}

func (h *harness) run(t *testing.T) error {
    t.Helper()
    ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancelFn()
    return h.c.Loop().Run(ctx)
}

func (h *harness) scopes() []string {
    h.mu.Lock(); defer h.mu.Unlock()
    var out []string
    for _, r := range h.reports { out = append(out, r.Scope) }
    return out
}

func newTestSocket(t *testing.T, h *harness, opts SocketOptions) (*Socket, *net.UDPConn) {
    t.Helper()
    if opts.Listen == "" { opts.Listen = "127.0.0.1:0" }
    s, err := NewSocket(h.c, opts)
    require.NoError(t, err)
    t.Cleanup(func() { _ = s.Close() })
    peer, err := net.DialUDP("udp", nil, s.LocalAddr())
    require.NoError(t, err)
    t.Cleanup(func() { _ = peer.Close() })
    return s, peer
}

func sendN(t *testing.T, peer *net.UDPConn, from, n int) {
    t.Helper()
    for i := from; i < from+n; i++ {
        _, err := peer.Write([]byte(strconv.Itoa(i)))
        require.NoError(t, err)
    }
}

func payloads(pkts []Packet) []string {
    out := make([]string, len(pkts))
    for i, p := range pkts { out[i] = string(p.Data) }
    return out
}

func read(t *testing.T, s *Socket, max int) []string {
    t.Helper()
    pkts, err := s.Read(max)
    require.NoError(t, err)
    return payloads(pkts)
}

func subscribe[T any](t *testing.T, set func(DataObserver[T]) (*Subscription, error), fn func(T)) *Subscription {
    t.Helper()
    sub, err := set(DataFunc[T](fn))
    require.NoError(t, err)
    return sub
}

func TestSocketReadDrainsFront(t *testing.T) {
    h := newHarness(t)
    s, peer := newTestSocket(t, h, SocketOptions{})
    sendN(t, peer, 0, 5)
    require.Eventually(t, func() bool { return s.Available() == 5 }, 2*time.Second, 5*time.Millisecond)
    require.Equal(t, 5, s.AvailableBytes())

    require.Empty(t, read(t, s, 0))
    require.Empty(t, read(t, s, -1))
    require.Equal(t, 5, s.Available(), "a non-positive read must leave the backlog alone")

    require.Equal(t, []string{"0", "1", "2"}, read(t, s, 3))
    require.Equal(t, 2, s.Available())
    require.Equal(t, []string{"3", "4"}, read(t, s, 10))
    require.Empty(t, read(t, s, 1))
}

func TestSocketSetOnDataFlushesBacklogOnce(t *testing.T) {
    h := newHarness(t)
    s, peer := newTestSocket(t, h, SocketOptions{})
    sendN(t, peer, 0, 5)
    require.Eventually(t, func() bool { return s.Available() == 5 }, 2*time.Second, 5*time.Millisecond)

    var got []string
    calls := 0
    sub := subscribe(t, s.SetOnData, func(p []Packet) { calls++; got = append(got, payloads(p)...) })
    require.Equal(t, 1, calls)
    require.Equal(t, []string{"0", "1", "2", "3", "4"}, got)
    require.Equal(t, ModeDelivering, s.Mode())
    require.Equal(t, 0, s.Available())

    s.tick()
    require.Equal(t, 1, calls, "an empty tick must not call the observer")

    sendN(t, peer, 5, 2)
    require.Eventually(t, func() bool { s.tick(); return len(got) == 7 }, 2*time.Second, 5*time.Millisecond)
    require.Equal(t, []string{"5", "6"}, got[5:])

    sub.Unsubscribe()
    sub.Unsubscribe()
    require.Equal(t, ModeBuffering, s.Mode())
    sendN(t, peer, 7, 1)
    require.Eventually(t, func() bool { return s.Available() == 1 }, 2*time.Second, 5*time.Millisecond)
    require.Len(t, got, 7)
}

func TestSocketStaleSubscriptionKeepsNewObserver(t *testing.T) {
    h := newHarness(t)
    s, _ := newTestSocket(t, h, SocketOptions{})
    first := subscribe(t, s.SetOnData, func([]Packet) {})
    subscribe(t, s.SetOnData, func([]Packet) {})
    first.Unsubscribe()
    require.Equal(t, ModeDelivering, s.Mode())
}

func TestSocketBufferLimitDropsOldest(t *testing.T) {
    h := newHarness(t)
    s, peer := newTestSocket(t, h, SocketOptions{BufferLimit: 3})
    sendN(t, peer, 0, 5)
    require.Eventually(t, func() bool { return uint64(s.Available())+s.Dropped() == 5 }, 2*time.Second, 5*time.Millisecond)
    require.Equal(t, []string{"2", "3", "4"}, read(t, s, 10))
    require.Equal(t, uint64(2), s.Dropped())
}

func TestSocketPeerConnectAndIdleDisconnect(t *testing.T) {
    h := newHarness(t)
    s, peer := newTestSocket(t, h, SocketOptions{PeerIdle: time.Second})
    var joined, left []string
    s.SetOnConnect(ConnFunc(func(id string) { joined = append(joined, id) }))
    s.SetOnDisconnect(ConnFunc(func(id string) { left = append(left, id) }))

    sendN(t, peer, 0, 2)
    require.Eventually(t, func() bool { return s.Available() == 2 }, 2*time.Second, 5*time.Millisecond)
    s.tick()
    require.Equal(t, []string{peer.LocalAddr().String()}, joined)
    s.tick()
    require.Len(t, joined, 1)
    require.Empty(t, left)

    h.clock.Advance(time.Second)
    s.tick()
    require.Equal(t, joined, left)
}

func TestSocketSendAndClose(t *testing.T) {
    h := newHarness(t)
    s, peer := newTestSocket(t, h, SocketOptions{})
    require.NoError(t, s.Send(peer.LocalAddr().String(), []byte("pong")))
    buf := make([]byte, 16)
    require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
    n, err := peer.Read(buf)
    require.NoError(t, err)
    require.Equal(t, "pong", string(buf[:n]))

    require.NoError(t, s.Close())
    require.NoError(t, s.Close())
    require.ErrorIs(t, s.Send(peer.LocalAddr().String(), []byte("x")), ErrClosed)
    _, err = s.Read(1)
    require.ErrorIs(t, err, ErrClosed)
    _, err = s.SetOnData(DataFunc[[]Packet](func([]Packet) {}))
    require.ErrorIs(t, err, ErrClosed)
    require.Zero(t, s.Available())
    require.Zero(t, h.clock.Pending())
}

func TestSocketClosesOnCancellation(t *testing.T) {
    h := newHarness(t)
    s, _ := newTestSocket(t, h, SocketOptions{PollInterval: 10 * time.Millisecond})
    h.flag.Stop()
    h.clock.Advance(10 * time.Millisecond)
    require.NoError(t, h.run(t))
    require.Equal(t, []string{"socket"}, h.scopes())
    require.ErrorIs(t, s.Send("127.0.0.1:9", nil), ErrClosed)
}

func TestRearmKeepsOneTimer(t *testing.T) {
    h := newHarness(t)
    frames := 0
    g := NewRenderGate(h.c, RenderOptions{PollInterval: 10 * time.Millisecond}, DataFunc[Frame](func(Frame) { frames++ }))
    g.Rearm()
    g.Rearm()
    require.Equal(t, 1, h.clock.Pending())

    h.clock.Advance(10 * time.Millisecond)
    h.c.Schedule(func() error { return g.Close() })
    require.NoError(t, h.run(t))
    require.Equal(t, uint64(1), g.poller.Ticks())
    require.Zero(t, h.clock.Pending())
}

func TestRenderGateDebouncesAndCaps(t *testing.T) {
    h := newHarness(t)
    var frames []Frame
    g := NewRenderGate(h.c, RenderOptions{Debounce: 50 * time.Millisecond, MaxFPS: 10}, DataFunc[Frame](func(f Frame) { frames = append(frames, f) }))
    defer g.Close()

    g.tick()
    require.Empty(t, frames, "nothing to render")

    g.Trigger()
    g.Trigger()
    h.clock.Advance(20 * time.Millisecond)
    g.Trigger()
    g.tick()
    require.Empty(t, frames, "debounce window still open")

    h.clock.Advance(50 * time.Millisecond)
    g.tick()
    require.Len(t, frames, 1)
    require.Equal(t, 3, frames[0].Coalesced)
    require.False(t, g.Dirty())
    g.tick()
    require.Len(t, frames, 1, "one render per trigger burst")

    g.Trigger()
    h.clock.Advance(50 * time.Millisecond)
    g.tick()
    require.Len(t, frames, 2)

    g.Trigger()
    h.clock.Advance(50 * time.Millisecond)
    g.tick()
    require.Len(t, frames, 2, "frame rate cap")
    h.clock.Advance(50 * time.Millisecond)
    g.tick()
    require.Len(t, frames, 3)
    require.Equal(t, uint64(3), g.Frames())
}

type fakePads struct{ states []PadState }

func (f *fakePads) Snapshot() []PadState { return f.states }

func TestGamepadEdges(t *testing.T) {
    h := newHarness(t)
    src := &fakePads{}
    g := NewGamepad(h.c, src, 0)
    defer g.Close()

    var events []string
    g.SetOnConnect(ConnFunc(func(id string) { events = append(events, "connect "+id) }))
    g.SetOnDisconnect(ConnFunc(func(id string) { events = append(events, "disconnect "+id) }))
    subscribe(t, g.SetOnData, func(p PadState) { events = append(events, "data "+strconv.Itoa(p.Index)) })

    g.tick()
    require.Empty(t, events)

    src.states = []PadState{{Index: 1, ID: "pad", Connected: true, Axes: []float64{0}}}
    g.tick()
    g.tick()
    require.Equal(t, []string{"connect 1"}, events)

    src.states = []PadState{{Index: 1, ID: "pad", Connected: true, Axes: []float64{0.5}}}
    g.tick()
    require.Equal(t, []string{"connect 1", "data 1"}, events)
    st, ok := g.State(1)
    require.True(t, ok)
    require.Equal(t, []float64{0.5}, st.Axes)

    src.states = []PadState{{Index: 1, Connected: false}}
    g.tick()
    require.Equal(t, []string{"connect 1", "data 1", "disconnect 1"}, events)
    _, ok = g.State(1)
    require.False(t, ok)

    require.NoError(t, g.Close())
    _, err := g.SetOnData(DataFunc[PadState](func(PadState) {}))
    require.ErrorIs(t, err, ErrClosed)
}

func TestSimulatedPadsChange(t *testing.T) {
    now := time.Unix(0, 0)
    sim := &SimulatedPads{Now: func() time.Time { return now }, Period: time.Second}
    a := sim.Snapshot()[0]
    now = now.Add(250 * time.Millisecond)
    b := sim.Snapshot()[0]
    require.False(t, a.same(b))
    require.Equal(t, 1.0, b.Axes[0])
}
