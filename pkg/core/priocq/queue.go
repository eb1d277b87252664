package priocq

import (
    "errors"
    "sync"
)

// Class is a priority class: host events > script continuations.
type Class int

const (
    ClassHost Class = iota
    ClassScript
    numClasses
)

func (c Class) String() string {
    switch c {
    case ClassHost:
        return "host"
    case ClassScript:
        return "script"
    default:
        return "unknown"
    }
}

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("priocq: queue closed")

// Item is one queued unit of work. Seq is assigned by Push and is strictly
// increasing across the whole queue.
type Item struct {
    Seq   uint64
    Class Class
    Value any
}

// fifo is a slice-backed ring that reuses its head space.
type fifo struct {
    buf  []Item
    head int
}

func (f *fifo) push(it Item) { f.buf = append(f.buf, it) }

func (f *fifo) pop() (Item, bool) {
    if f.head >= len(f.buf) { return Item{}, false }
    it := f.buf[f.head]
    f.buf[f.head] = Item{}
    f.head++
    // compact once the consumed prefix dominates
    if f.head > 64 && f.head*2 >= len(f.buf) {
        n := copy(f.buf, f.buf[f.head:])
        f.buf = f.buf[:n]
        f.head = 0
    }
    return it, true
}

func (f *fifo) len() int { return len(f.buf) - f.head }

// Queue keeps strict priority between classes and FIFO order within a class.
// It is safe for concurrent producers; Pop is meant for a single consumer.
type Queue struct {
    mu     sync.Mutex
    lvls   [numClasses]fifo
    seq    uint64
    closed bool
    // signal has capacity 1; a pending token means "something may be ready"
    signal chan struct{}
}

func New(hint int) *Queue {
    q := &Queue{signal: make(chan struct{}, 1)}
    if hint > 0 {
        for i := range q.lvls { q.lvls[i].buf = make([]Item, 0, hint) }
    }
    return q
}

// Push appends v to the given class and returns its sequence number.
func (q *Queue) Push(c Class, v any) (uint64, error) {
    if c < 0 || c >= numClasses { c = ClassScript }
    q.mu.Lock()
    if q.closed { q.mu.Unlock(); return 0, ErrClosed }
    q.seq++
    seq := q.seq
    q.lvls[c].push(Item{Seq: seq, Class: c, Value: v})
    q.mu.Unlock()
    select { case q.signal <- struct{}{}: default: }
    return seq, nil
}

// TryPop returns the next item without blocking.
func (q *Queue) TryPop() (Item, bool) {
    q.mu.Lock(); defer q.mu.Unlock()
    for i := range q.lvls {
        if it, ok := q.lvls[i].pop(); ok { return it, true }
    }
    return Item{}, false
}

// Pop blocks until an item is available, the queue is closed, or stop fires.
func (q *Queue) Pop(stop <-chan struct{}) (Item, bool) {
    for {
        if it, ok := q.TryPop(); ok { return it, true }
        q.mu.Lock(); closed := q.closed; q.mu.Unlock()
        if closed { return Item{}, false }
        select {
        case <-stop:
            return Item{}, false
        case <-q.signal:
        }
    }
}

// Len returns the number of queued items across all classes.
func (q *Queue) Len() int {
    q.mu.Lock(); defer q.mu.Unlock()
    n := 0
    for i := range q.lvls { n += q.lvls[i].len() }
    return n
}

// Close rejects further pushes and wakes a blocked Pop. Queued items remain
// available to TryPop and Drain.
func (q *Queue) Close() {
    q.mu.Lock()
    q.closed = true
    q.mu.Unlock()
    select { case q.signal <- struct{}{}: default: }
}

// Drain removes and returns every queued item in priority order.
func (q *Queue) Drain() []Item {
    q.mu.Lock(); defer q.mu.Unlock()
    var out []Item
    for i := range q.lvls {
        for {
            it, ok := q.lvls[i].pop()
            if !ok { break }
            out = append(out, it)
        }
    }
    return out
}
