// Package sched implements the cooperative single-threaded loop that script
// runs execute on. Continuations and host events are queued and executed one
// per turn on the goroutine that called Run.
package sched

import (
    "context"
    "errors"
    "fmt"
    "runtime/debug"
    "sync"
    "sync/atomic"

    "github.com/PR-DC/JSLAB-sub002/pkg/core/cancel"
    "github.com/PR-DC/JSLAB-sub002/pkg/core/priocq"
    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "go.uber.org/zap"
)

// Task is one unit of work executed on the loop. A non-nil error ends the run.
type Task func() error

var (
    // ErrLoopClosed is returned by Run when the loop was already closed.
    ErrLoopClosed = errors.New("sched: loop closed")
    // ErrLoopRunning is returned by a second concurrent Run.
    ErrLoopRunning = errors.New("sched: loop already running")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
    Value any
    Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("task panicked: %v", e.Value) }

// entry is the queued value. A nil fn only wakes the loop so it re-checks
// quiescence; it is not counted as outstanding work.
type entry struct {
    fn Task
}

// Option configures a Loop.
type Option func(*Loop)

func WithClock(c Clock) Option { return func(l *Loop) { if c != nil { l.clock = c } } }

func WithLogger(log *zap.Logger) Option { return func(l *Loop) { if log != nil { l.log = log } } }

func WithSink(s observability.ErrorSink) Option { return func(l *Loop) { if s != nil { l.sink = s } } }

// WithExitOnIdle makes Run return nil once nothing is queued, armed or held.
func WithExitOnIdle() Option { return func(l *Loop) { l.exitOnIdle = true } }

func WithQueueHint(n int) Option { return func(l *Loop) { l.hint = n } }

// Loop is a cooperative scheduler with two lanes: host events (Post) are
// always drained before the next script continuation (Schedule).
type Loop struct {
    clock      Clock
    log        *zap.Logger
    sink       observability.ErrorSink
    exitOnIdle bool
    hint       int

    q *priocq.Queue

    // outstanding counts queued tasks, armed timers and holds
    outstanding atomic.Int64
    turns       atomic.Uint64
    running     atomic.Bool

    mu     sync.Mutex
    timers map[*Timer]struct{}
    closed bool

    stopOnce sync.Once
    stop     chan struct{}
}

// New creates an idle loop. Tasks may be queued before Run is called.
func New(opts ...Option) *Loop {
    l := &Loop{
        clock:  RealClock{},
        log:    zap.L(),
        sink:   observability.NopSink{},
        timers: make(map[*Timer]struct{}),
        stop:   make(chan struct{}),
    }
    for _, o := range opts { o(l) }
    l.q = priocq.New(l.hint)
    return l
}

// Clock returns the loop's time source.
func (l *Loop) Clock() Clock { return l.clock }

// Logger returns the loop's logger.
func (l *Loop) Logger() *zap.Logger { return l.log }

// Sink returns the loop's error sink.
func (l *Loop) Sink() observability.ErrorSink { return l.sink }

// Turns returns how many tasks have been executed so far.
func (l *Loop) Turns() uint64 { return l.turns.Load() }

// Schedule queues a script continuation. It never runs fn in the caller's turn.
func (l *Loop) Schedule(fn Task) { l.push(priocq.ClassScript, fn) }

// Post queues a host event. Host events take priority over continuations.
func (l *Loop) Post(fn Task) { l.push(priocq.ClassHost, fn) }

func (l *Loop) push(c priocq.Class, fn Task) {
    if fn == nil { return }
    l.outstanding.Add(1)
    if _, err := l.q.Push(c, entry{fn: fn}); err != nil {
        l.outstanding.Add(-1)
        l.log.Debug("task dropped on closed loop", zap.Stringer("lane", c))
    }
}

// wake nudges a blocked Run so it re-evaluates quiescence.
func (l *Loop) wake() { _, _ = l.q.Push(priocq.ClassHost, entry{}) }

// Hold marks asynchronous work in flight so the loop does not go idle. The
// returned release is safe to call more than once and from any goroutine.
func (l *Loop) Hold() (release func()) {
    l.outstanding.Add(1)
    var once sync.Once
    return func() {
        once.Do(func() {
            l.outstanding.Add(-1)
            l.wake()
        })
    }
}

// Close stops a running loop after the current task and discards the queue.
func (l *Loop) Close() {
    l.stopOnce.Do(func() { close(l.stop) })
}

// Run executes tasks on the calling goroutine until ctx is done, Close is
// called, a task fails, or the loop is idle when WithExitOnIdle is set.
func (l *Loop) Run(ctx context.Context) error {
    l.mu.Lock()
    closed := l.closed
    l.mu.Unlock()
    if closed { return ErrLoopClosed }
    if !l.running.CompareAndSwap(false, true) { return ErrLoopRunning }
    defer l.running.Store(false)
    defer l.teardown()

    halt := make(chan struct{})
    go func() {
        select {
        case <-ctx.Done():
        case <-l.stop:
        }
        close(halt)
    }()
    defer l.Close()

    for {
        if l.exitOnIdle && l.outstanding.Load() <= 0 { return nil }
        it, ok := l.q.Pop(halt)
        if !ok { return nil }
        select {
        case <-halt:
            return nil
        default:
        }
        e, _ := it.Value.(entry)
        if e.fn == nil { continue }
        l.turns.Add(1)
        err := l.safeExecute(e.fn)
        l.outstanding.Add(-1)
        if err != nil {
            if errors.Is(err, cancel.ErrStopped) {
                l.log.Info("run stopped", zap.Uint64("turn", l.turns.Load()))
            } else {
                l.log.Error("task failed", zap.Error(err), zap.Uint64("turn", l.turns.Load()))
                l.sink.ReportError("loop", err.Error())
            }
            return err
        }
    }
}

func (l *Loop) safeExecute(fn Task) (err error) {
    defer func() {
        if r := recover(); r != nil {
            err = &PanicError{Value: r, Stack: debug.Stack()}
        }
    }()
    return fn()
}

// teardown closes the queue, discards pending work and releases timers.
func (l *Loop) teardown() {
    l.mu.Lock()
    l.closed = true
    timers := make([]*Timer, 0, len(l.timers))
    for t := range l.timers { timers = append(timers, t) }
    l.timers = map[*Timer]struct{}{}
    l.mu.Unlock()

    for _, t := range timers { t.release() }
    l.q.Close()
    if dropped := l.q.Drain(); len(dropped) > 0 {
        l.log.Debug("discarded queued tasks", zap.Int("count", len(dropped)))
    }
}

// Idle reports whether nothing is queued, armed or held.
func (l *Loop) Idle() bool { return l.outstanding.Load() <= 0 }
