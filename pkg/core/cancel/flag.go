// Package cancel provides the stop signal observed by scripts at their yield points.
//
// A Flag is written only by the top-level run/stop control. Everything else
// receives a Token, a read-only view of one run's generation of the flag.
package cancel

import (
    "errors"
    "sync"
    "sync/atomic"
)

// ErrStopped is reported when a yield point observes a stop request.
var ErrStopped = errors.New("stopped")

type generation struct {
    stopped atomic.Bool
    once    sync.Once
    done    chan struct{}
}

func newGeneration() *generation { return &generation{done: make(chan struct{})} }

func (g *generation) stop() {
    g.once.Do(func() {
        g.stopped.Store(true)
        close(g.done)
    })
}

// Flag is the single-writer stop control.
type Flag struct {
    mu  sync.Mutex
    cur *generation
}

func NewFlag() *Flag { return &Flag{cur: newGeneration()} }

// Arm clears the signal for a new run and returns its token. Tokens from
// earlier generations keep their state.
func (f *Flag) Arm() Token {
    f.mu.Lock(); defer f.mu.Unlock()
    f.cur = newGeneration()
    return Token{g: f.cur}
}

// Stop marks the current generation as stopped. Calling it again is a no-op.
func (f *Flag) Stop() {
    f.mu.Lock(); g := f.generation(); f.mu.Unlock()
    g.stop()
}

// Stopped reports the state of the current generation.
func (f *Flag) Stopped() bool {
    f.mu.Lock(); defer f.mu.Unlock()
    return f.generation().stopped.Load()
}

// Token returns the read-only view of the current generation.
func (f *Flag) Token() Token {
    f.mu.Lock(); defer f.mu.Unlock()
    return Token{g: f.generation()}
}

func (f *Flag) generation() *generation {
    if f.cur == nil { f.cur = newGeneration() }
    return f.cur
}

// Token is a read-only view of one generation of a Flag.
// The zero Token is never stopped.
type Token struct{ g *generation }

// Stopped reports whether a stop was requested.
func (t Token) Stopped() bool { return t.g != nil && t.g.stopped.Load() }

// Done is closed once a stop was requested. It is nil for the zero Token.
func (t Token) Done() <-chan struct{} {
    if t.g == nil { return nil }
    return t.g.done
}

// Err returns ErrStopped once a stop was requested, nil before.
func (t Token) Err() error {
    if t.Stopped() { return ErrStopped }
    return nil
}
