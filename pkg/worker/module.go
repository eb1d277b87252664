package worker

import (
    "context"
    "fmt"
    "math"
    "path"
    "sort"
    "strings"
    "sync"

    "github.com/agnivade/levenshtein"
)

// Args are the decoded arguments of an Invoke. Numbers arrive as float64,
// int64 or uint64 depending on the body format; the accessors normalise them.
type Args []any

func (a Args) Len() int { return len(a) }

// Value returns argument i or nil when absent.
func (a Args) Value(i int) any {
    if i < 0 || i >= len(a) { return nil }
    return a[i]
}

// Float returns argument i as a float64.
func (a Args) Float(i int) (float64, error) {
    switch x := a.Value(i).(type) {
    case float64:
        return x, nil
    case float32:
        return float64(x), nil
    case int64:
        return float64(x), nil
    case uint64:
        return float64(x), nil
    case int:
        return float64(x), nil
    case nil:
        return 0, fmt.Errorf("argument %d: missing", i)
    default:
        return 0, fmt.Errorf("argument %d: want number, got %T", i, x)
    }
}

// Int returns argument i as an int64; fractional numbers are rejected.
func (a Args) Int(i int) (int64, error) {
    f, err := a.Float(i)
    if err != nil { return 0, err }
    if f != math.Trunc(f) { return 0, fmt.Errorf("argument %d: want integer, got %v", i, f) }
    if u, ok := a.Value(i).(uint64); ok && u > math.MaxInt64 { return 0, fmt.Errorf("argument %d: out of range", i) }
    if n, ok := a.Value(i).(int64); ok { return n, nil }
    return int64(f), nil
}

// String returns argument i as a string.
func (a Args) String(i int) (string, error) {
    switch x := a.Value(i).(type) {
    case string:
        return x, nil
    case nil:
        return "", fmt.Errorf("argument %d: missing", i)
    default:
        return "", fmt.Errorf("argument %d: want string, got %T", i, x)
    }
}

// List returns argument i as a list, so a method can take either variadic
// arguments or a single array.
func (a Args) List(i int) (Args, bool) {
    l, ok := a.Value(i).([]any)
    return Args(l), ok
}

// Method is one callable entry of a module. A returned error is sent back as
// a Reply error; the worker keeps running.
type Method func(ctx context.Context, args Args) (any, error)

// MethodSet maps method names to implementations.
type MethodSet map[string]Method

// Names returns the method names in sorted order.
func (ms MethodSet) Names() []string {
    out := make([]string, 0, len(ms))
    for n := range ms { out = append(out, n) }
    sort.Strings(out)
    return out
}

// Suggest returns the method name closest to name, or "" when nothing is close.
func (ms MethodSet) Suggest(name string) string {
    best, bestDist := "", math.MaxInt
    for _, n := range ms.Names() {
        if d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(n)); d < bestDist {
            best, bestDist = n, d
        }
    }
    limit := max(2, len(name)/2)
    if bestDist > limit { return "" }
    return best
}

// Module is an instantiated loadable unit. Each worker owns one instance.
type Module interface {
    Methods() MethodSet
}

// Factory creates a fresh module instance.
type Factory func() (Module, error)

// Registry resolves module paths to factories.
type Registry struct {
    mu        sync.RWMutex
    factories map[string]Factory
}

func NewRegistry() *Registry { return &Registry{factories: make(map[string]Factory)} }

// Register binds a factory to a module path. The path is normalized.
func (r *Registry) Register(modulePath string, f Factory) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.factories[NormalizePath(modulePath)] = f
}

// Resolve instantiates the module at modulePath and returns its canonical path.
func (r *Registry) Resolve(modulePath string) (Module, string, error) {
    name := NormalizePath(modulePath)
    r.mu.RLock()
    f, ok := r.factories[name]
    r.mu.RUnlock()
    if !ok { return nil, name, fmt.Errorf("%w: %q", ErrUnknownModule, modulePath) }
    m, err := f()
    if err != nil { return nil, name, fmt.Errorf("load module %q: %w", name, err) }
    return m, name, nil
}

// Paths lists the registered module paths in sorted order.
func (r *Registry) Paths() []string {
    r.mu.RLock(); defer r.mu.RUnlock()
    out := make([]string, 0, len(r.factories))
    for p := range r.factories { out = append(out, p) }
    sort.Strings(out)
    return out
}

// NormalizePath makes "./tasks/sum.js", "/tasks/sum" and "tasks\sum.go" all
// resolve to "tasks/sum".
func NormalizePath(p string) string {
    p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
    p = path.Clean("/" + p)
    p = strings.TrimPrefix(p, "/")
    if ext := path.Ext(p); ext != "" { p = strings.TrimSuffix(p, ext) }
    return strings.ToLower(p)
}
