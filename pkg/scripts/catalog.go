// Package scripts is the catalog of named scripts the runtime can run.
package scripts

import (
    "sort"
    "sync"

    "github.com/PR-DC/JSLAB-sub002/pkg/config"
    "github.com/PR-DC/JSLAB-sub002/pkg/consumer"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
)

// Env holds what scripts may use besides their run context.
type Env struct {
    Config  *config.Config
    Spawner *worker.Spawner
    // Pads feeds the gamepad script; a simulated pad is used when nil.
    Pads consumer.PadSource
}

// Entry is one named script.
type Entry struct {
    Name        string `json:"name"`
    Description string `json:"description"`
    build       func(Env) script.Script
}

// Catalog maps names to scripts.
type Catalog struct {
    env Env

    mu      sync.RWMutex
    entries map[string]Entry
}

// NewCatalog returns a catalog holding the built-in scripts.
func NewCatalog(env Env) *Catalog {
    if env.Config == nil { env.Config = config.Default() }
    if env.Pads == nil { env.Pads = &consumer.SimulatedPads{} }
    c := &Catalog{env: env, entries: make(map[string]Entry)}
    for _, e := range builtins() { c.Register(e.Name, e.Description, e.build) }
    return c
}

// Register adds or replaces a script.
func (c *Catalog) Register(name, description string, build func(Env) script.Script) {
    c.mu.Lock(); defer c.mu.Unlock()
    c.entries[name] = Entry{Name: name, Description: description, build: build}
}

// Get returns the script registered under name.
func (c *Catalog) Get(name string) (script.Script, bool) {
    c.mu.RLock()
    e, ok := c.entries[name]
    c.mu.RUnlock()
    if !ok { return nil, false }
    return e.build(c.env), true
}

// List returns every entry sorted by name.
func (c *Catalog) List() []Entry {
    c.mu.RLock(); defer c.mu.RUnlock()
    out := make([]Entry, 0, len(c.entries))
    for _, e := range c.entries { out = append(out, e) }
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out
}
