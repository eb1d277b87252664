package transports

import (
    "context"
    "fmt"
    "math/rand/v2"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "go.uber.org/zap"
)

// Backoff controls dial retries.
type Backoff struct {
    Attempts int
    Timeout  time.Duration
    Initial  time.Duration
    Max      time.Duration
    Jitter   time.Duration
}

// BackoffFromConfig converts the millisecond config fields.
func BackoffFromConfig(c config.NetConfig) Backoff {
    return Backoff{
        Attempts: c.DialAttempts,
        Timeout:  config.Millis(c.DialTimeoutMS),
        Initial:  config.Millis(c.DialBackoffInitialMS),
        Max:      config.Millis(c.DialBackoffMaxMS),
        Jitter:   config.Millis(c.DialBackoffJitterMS),
    }
}

// Dial connects to address, retrying with exponential backoff plus jitter.
// Attempts <= 0 retries until ctx is done.
func Dial(ctx context.Context, tr transport.Transport, address string, b Backoff) (transport.Session, error) {
    backoff := b.Initial
    if backoff <= 0 { backoff = 200 * time.Millisecond }
    maxBackoff := b.Max
    if maxBackoff <= 0 { maxBackoff = 5 * time.Second }

    var lastErr error
    for attempt := 1; b.Attempts <= 0 || attempt <= b.Attempts; attempt++ {
        dctx, cancelFn := ctx, context.CancelFunc(func() {})
        if b.Timeout > 0 { dctx, cancelFn = context.WithTimeout(ctx, b.Timeout) }
        sess, err := tr.Dial(dctx, address)
        cancelFn()
        if err == nil {
            zap.L().Debug("dialed", zap.Stringer("kind", tr.Kind()), zap.String("addr", address), zap.Int("attempt", attempt))
            return sess, nil
        }
        lastErr = err
        zap.L().Warn("dial failed", zap.Stringer("kind", tr.Kind()), zap.String("addr", address), zap.Int("attempt", attempt), zap.Error(err))
        t := time.NewTimer(withJitter(backoff, b.Jitter))
        select {
        case <-ctx.Done():
            t.Stop()
            return nil, ctx.Err()
        case <-t.C:
        }
        if backoff < maxBackoff { backoff *= 2; if backoff > maxBackoff { backoff = maxBackoff } }
    }
    return nil, fmt.Errorf("dial %s %s: %w", tr.Kind(), address, lastErr)
}

func withJitter(d, jitter time.Duration) time.Duration {
    if jitter <= 0 { return d }
    // add random 0..jitter
    return d + rand.N(jitter)
}
