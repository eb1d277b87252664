package script

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/sched"
    "github.com/google/uuid"
    "go.uber.org/zap"
)

// ErrBusy is returned when a run is requested while another one is active.
var ErrBusy = errors.New("script: a run is already active")

// Script is the entry point of a run. It executes as the first task on the
// run's loop; the run ends once the loop has nothing left to do.
type Script func(c *Context) error

// Run states.
const (
    StateRunning   = "running"
    StateCompleted = "completed"
    StateStopped   = "stopped"
    StateFailed    = "failed"
)

// RunInfo describes one run for status displays.
type RunInfo struct {
    ID      string    `json:"id"`
    Script  string    `json:"script"`
    State   string    `json:"state"`
    Error   string    `json:"error,omitempty"`
    Turns   uint64    `json:"turns"`
    Started time.Time `json:"started"`
    Ended   time.Time `json:"ended,omitempty"`
}

type activeRun struct {
    info RunInfo
    loop *sched.Loop
    done chan struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithRunnerLogger(l *zap.Logger) RunnerOption { return func(r *Runner) { if l != nil { r.log = l } } }

func WithRunnerSink(s observability.ErrorSink) RunnerOption {
    return func(r *Runner) { if s != nil { r.sink = s } }
}

func WithRunnerClock(c sched.Clock) RunnerOption { return func(r *Runner) { r.clock = c } }

func WithQueueHint(n int) RunnerOption { return func(r *Runner) { r.queueHint = n } }

// WithStopGrace bounds how long a stopped run may keep its loop alive before
// the loop is closed from outside.
func WithStopGrace(d time.Duration) RunnerOption { return func(r *Runner) { r.grace = d } }

// WithHistory bounds the number of finished runs remembered.
func WithHistory(n int) RunnerOption { return func(r *Runner) { if n > 0 { r.historyLimit = n } } }

// Runner executes one script run at a time and owns the cancellation flag
// that Stop writes.
type Runner struct {
    flag         *cancel.Flag
    log          *zap.Logger
    sink         observability.ErrorSink
    clock        sched.Clock
    queueHint    int
    grace        time.Duration
    historyLimit int

    mu      sync.Mutex
    active  *activeRun
    history []RunInfo
    wg      sync.WaitGroup
}

func NewRunner(opts ...RunnerOption) *Runner {
    r := &Runner{
        flag:         cancel.NewFlag(),
        log:          zap.L(),
        sink:         observability.NopSink{},
        grace:        2 * time.Second,
        historyLimit: 32,
    }
    for _, o := range opts { o(r) }
    return r
}

// Run executes s on a fresh loop and blocks until it finishes. The error is
// cancel.ErrStopped when the run observed a stop request.
func (r *Runner) Run(ctx context.Context, name string, s Script) (RunInfo, error) {
    ar, tok, err := r.begin(name)
    if err != nil { return RunInfo{}, err }
    return r.execute(ctx, ar, tok, s)
}

// Start launches s in the background and returns the run id.
func (r *Runner) Start(ctx context.Context, name string, s Script) (string, error) {
    ar, tok, err := r.begin(name)
    if err != nil { return "", err }
    r.wg.Add(1)
    go func() {
        defer r.wg.Done()
        _, _ = r.execute(ctx, ar, tok, s)
    }()
    return ar.info.ID, nil
}

func (r *Runner) begin(name string) (*activeRun, cancel.Token, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.active != nil { return nil, cancel.Token{}, ErrBusy }

    id := uuid.NewString()
    log := r.log.With(zap.String("run", id), zap.String("script", name))
    opts := []sched.Option{sched.WithExitOnIdle(), sched.WithLogger(log), sched.WithSink(r.sink), sched.WithQueueHint(r.queueHint)}
    if r.clock != nil { opts = append(opts, sched.WithClock(r.clock)) }
    ar := &activeRun{
        info: RunInfo{ID: id, Script: name, State: StateRunning, Started: time.Now()},
        loop: sched.New(opts...),
        done: make(chan struct{}),
    }
    r.active = ar
    return ar, r.flag.Arm(), nil
}

func (r *Runner) execute(ctx context.Context, ar *activeRun, tok cancel.Token, s Script) (RunInfo, error) {
    sc := NewContext(ar.loop, tok, ar.info.ID)
    ar.loop.Schedule(func() error { return s(sc) })
    go r.watch(ar, tok)

    sc.Logger().Info("run started")
    err := ar.loop.Run(ctx)
    close(ar.done)
    if cerr := sc.release(); cerr != nil {
        sc.Logger().Warn("release run resources", zap.Error(cerr))
    }
    if err == nil && tok.Stopped() { err = cancel.ErrStopped }

    info := ar.info
    info.Ended = time.Now()
    info.Turns = ar.loop.Turns()
    switch {
    case err == nil:
        info.State = StateCompleted
    case errors.Is(err, cancel.ErrStopped):
        info.State = StateStopped
    default:
        info.State = StateFailed
        info.Error = err.Error()
    }
    sc.Logger().Info("run finished", zap.String("state", info.State), zap.Uint64("turns", info.Turns))

    r.mu.Lock()
    r.active = nil
    r.history = append(r.history, info)
    if over := len(r.history) - r.historyLimit; over > 0 { r.history = r.history[over:] }
    r.mu.Unlock()
    return info, err
}

// watch closes a stopped run's loop if it does not wind down within grace.
func (r *Runner) watch(ar *activeRun, tok cancel.Token) {
    select {
    case <-ar.done:
        return
    case <-tok.Done():
    }
    if r.grace <= 0 { return }
    t := time.NewTimer(r.grace)
    defer t.Stop()
    select {
    case <-ar.done:
    case <-t.C:
        r.log.Warn("run ignored stop request; closing loop", zap.String("run", ar.info.ID))
        r.sink.ReportError("run", "run did not yield after stop; forced to end")
        ar.loop.Close()
    }
}

// Stop requests the active run to stop at its next yield point. It reports
// whether a run was active.
func (r *Runner) Stop() bool {
    r.mu.Lock()
    active := r.active != nil
    r.mu.Unlock()
    r.flag.Stop()
    return active
}

// Active returns the running run, if any.
func (r *Runner) Active() (RunInfo, bool) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.active == nil { return RunInfo{}, false }
    info := r.active.info
    info.Turns = r.active.loop.Turns()
    return info, true
}

// History returns finished runs, oldest first.
func (r *Runner) History() []RunInfo {
    r.mu.Lock()
    defer r.mu.Unlock()
    return append([]RunInfo(nil), r.history...)
}

// Wait blocks until every run launched with Start has finished.
func (r *Runner) Wait() { r.wg.Wait() }
