// Package consumer implements polling consumers: a UDP socket buffer, a
// gamepad reader and a render gate. Each is driven by one repeating timer on
// the run's loop and observes the run's cancellation token every tick.
//
// Consumers are confined to the loop goroutine: callbacks run there, and
// Read, Available and the setters must be called from loop tasks.
package consumer

import (
    "errors"
    "sync"
)

// ErrClosed is returned by operations on a closed consumer.
var ErrClosed = errors.New("consumer: closed")

// Mode tells whether a buffered consumer is queueing data for Read or
// handing it to an observer.
type Mode int

const (
    ModeBuffering Mode = iota
    ModeDelivering
)

func (m Mode) String() string {
    switch m {
    case ModeBuffering:
        return "buffering"
    case ModeDelivering:
        return "delivering"
    default:
        return "unknown"
    }
}

// DataObserver receives data from a consumer.
type DataObserver[T any] interface {
    OnData(v T)
}

// DataFunc adapts a function to DataObserver.
type DataFunc[T any] func(v T)

func (f DataFunc[T]) OnData(v T) { f(v) }

// ConnObserver is told about a connect or disconnect of the peer or device id.
type ConnObserver interface {
    OnConn(id string)
}

// ConnFunc adapts a function to ConnObserver.
type ConnFunc func(id string)

func (f ConnFunc) OnConn(id string) { f(id) }

// Subscription detaches an observer. Unsubscribe is idempotent.
type Subscription struct {
    once sync.Once
    fn   func()
}

func newSubscription(fn func()) *Subscription { return &Subscription{fn: fn} }

func (s *Subscription) Unsubscribe() {
    if s == nil { return }
    s.once.Do(func() { if s.fn != nil { s.fn() } })
}
