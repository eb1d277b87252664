package consumer

import (
    "math"
    "slices"
    "strconv"
    "sync"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "go.uber.org/zap"
)

// PadState is a snapshot of one pad slot.
type PadState struct {
    Index     int       `json:"index"`
    ID        string    `json:"id"`
    Connected bool      `json:"connected"`
    Buttons   []float64 `json:"buttons"`
    Axes      []float64 `json:"axes"`
    Timestamp time.Time `json:"timestamp"`
}

func (p PadState) same(o PadState) bool {
    return p.Connected == o.Connected && p.ID == o.ID && p.Timestamp.Equal(o.Timestamp) &&
        slices.Equal(p.Buttons, o.Buttons) && slices.Equal(p.Axes, o.Axes)
}

// PadSource reads the current state of every pad slot. It must not block.
type PadSource interface {
    Snapshot() []PadState
}

// Gamepad polls a PadSource and reports connects, disconnects and state
// changes per pad index.
type Gamepad struct {
    c      *script.Context
    src    PadSource
    poller *Poller
    log    *zap.Logger

    last   map[int]PadState
    gen    uint64
    onData DataObserver[PadState]
    onConn ConnObserver
    onDisc ConnObserver

    closeMu sync.Mutex
    closed  bool
}

// NewGamepad starts polling src every interval on the run's loop.
func NewGamepad(c *script.Context, src PadSource, interval time.Duration) *Gamepad {
    if interval <= 0 { interval = 16 * time.Millisecond }
    g := &Gamepad{c: c, src: src, last: make(map[int]PadState), log: c.Logger().With(zap.String("consumer", "gamepad"))}
    g.poller = NewPoller(c, "gamepad", interval, g.tick, func() { _ = g.Close() })
    g.poller.Arm()
    c.Own(g)
    return g
}

// SetOnData registers the observer of state changes of connected pads.
// It fails with ErrClosed once the gamepad is closed.
func (g *Gamepad) SetOnData(obs DataObserver[PadState]) (*Subscription, error) {
    if g.isClosed() { return nil, ErrClosed }
    g.gen++
    gen := g.gen
    g.onData = obs
    return newSubscription(func() { if g.gen == gen { g.onData = nil } }), nil
}

// SetOnConnect registers the observer of newly connected pad indexes.
func (g *Gamepad) SetOnConnect(obs ConnObserver) { g.onConn = obs }

// SetOnDisconnect registers the observer of disconnected pad indexes.
func (g *Gamepad) SetOnDisconnect(obs ConnObserver) { g.onDisc = obs }

// Rearm restarts the poll timer, replacing the current one.
func (g *Gamepad) Rearm() {
    if g.isClosed() { return }
    g.poller.Arm()
}

// State returns the last observed state of pad index.
func (g *Gamepad) State(index int) (PadState, bool) {
    s, ok := g.last[index]
    return s, ok
}

func (g *Gamepad) tick() {
    seen := make(map[int]bool)
    for _, cur := range g.src.Snapshot() {
        if !cur.Connected { continue }
        seen[cur.Index] = true
        prev, known := g.last[cur.Index]
        g.last[cur.Index] = cur
        id := strconv.Itoa(cur.Index)
        switch {
        case !known:
            g.log.Debug("pad connected", zap.Int("index", cur.Index), zap.String("id", cur.ID))
            if g.onConn != nil { g.onConn.OnConn(id) }
        case !prev.same(cur):
            if g.onData != nil { g.onData.OnData(cur) }
        }
    }
    for idx := range g.last {
        if seen[idx] { continue }
        delete(g.last, idx)
        g.log.Debug("pad disconnected", zap.Int("index", idx))
        if g.onDisc != nil { g.onDisc.OnConn(strconv.Itoa(idx)) }
    }
}

func (g *Gamepad) isClosed() bool {
    g.closeMu.Lock(); defer g.closeMu.Unlock()
    return g.closed
}

// Close stops polling. It is safe to call more than once.
func (g *Gamepad) Close() error {
    g.closeMu.Lock()
    if g.closed {
        g.closeMu.Unlock()
        return nil
    }
    g.closed = true
    g.closeMu.Unlock()
    g.poller.Disarm()
    g.onData, g.onConn, g.onDisc = nil, nil, nil
    return nil
}

// SimulatedPads is a PadSource with one pad whose first axis follows a sine
// wave of the given period. It stands in for real devices in demos.
type SimulatedPads struct {
    Now    func() time.Time
    Period time.Duration
    start  time.Time
}

func (s *SimulatedPads) Snapshot() []PadState {
    now := time.Now()
    if s.Now != nil { now = s.Now() }
    if s.start.IsZero() { s.start = now }
    period := s.Period
    if period <= 0 { period = 2 * time.Second }
    phase := float64(now.Sub(s.start)%period) / float64(period)
    axis := math.Round(math.Sin(2*math.Pi*phase)*100) / 100
    var button float64
    if phase >= 0.5 { button = 1 }
    return []PadState{{
        Index:     0,
        ID:        "simulated pad",
        Connected: true,
        Buttons:   []float64{button},
        Axes:      []float64{axis, 0},
        Timestamp: now.Truncate(10 * time.Millisecond),
    }}
}
