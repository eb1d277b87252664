package observability

import (
    "sync"
    "time"

    "go.uber.org/zap"
)

// ErrorSink receives user-facing error reports, for example a loop that was
// stopped by cancellation or a worker that faulted.
type ErrorSink interface {
    ReportError(scope, message string)
}

// Report is one entry surfaced to the user.
type Report struct {
    Scope   string    `json:"scope"`
    Message string    `json:"message"`
    At      time.Time `json:"at"`
}

// Reporter logs reports and keeps the most recent ones for display.
type Reporter struct {
    log   *zap.Logger
    limit int

    mu    sync.Mutex
    ring  []Report
    next  int
    total uint64
}

// NewReporter creates a Reporter keeping at most limit reports. A nil logger
// falls back to the global zap logger.
func NewReporter(log *zap.Logger, limit int) *Reporter {
    if limit <= 0 { limit = 64 }
    return &Reporter{log: log, limit: limit}
}

func (r *Reporter) logger() *zap.Logger {
    if r.log != nil { return r.log }
    return zap.L()
}

// ReportError implements ErrorSink.
func (r *Reporter) ReportError(scope, message string) {
    r.logger().Warn(message, zap.String("scope", scope))
    rep := Report{Scope: scope, Message: message, At: time.Now()}
    r.mu.Lock()
    if len(r.ring) < r.limit {
        r.ring = append(r.ring, rep)
    } else {
        r.ring[r.next] = rep
    }
    r.next = (r.next + 1) % r.limit
    r.total++
    r.mu.Unlock()
}

// Recent returns the retained reports, oldest first.
func (r *Reporter) Recent() []Report {
    r.mu.Lock(); defer r.mu.Unlock()
    out := make([]Report, 0, len(r.ring))
    if len(r.ring) < r.limit {
        return append(out, r.ring...)
    }
    out = append(out, r.ring[r.next:]...)
    return append(out, r.ring[:r.next]...)
}

// Total counts every report ever received, including evicted ones.
func (r *Reporter) Total() uint64 {
    r.mu.Lock(); defer r.mu.Unlock()
    return r.total
}

// NopSink discards reports.
type NopSink struct{}

func (NopSink) ReportError(string, string) {}

// SinkFunc adapts a function to ErrorSink.
type SinkFunc func(scope, message string)

func (f SinkFunc) ReportError(scope, message string) { f(scope, message) }
