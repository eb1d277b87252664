// Package tasks holds the built-in offload modules.
package tasks

import "github.com/PR-DC/JSLAB-sub002/pkg/worker"

// Module paths.
const (
    SumPath    = "tasks/sum"
    PrimesPath = "tasks/primes"
    TextPath   = "tasks/text"
)

// Register adds every built-in module to reg.
func Register(reg *worker.Registry) {
    reg.Register(SumPath, func() (worker.Module, error) { return &Sum{}, nil })
    reg.Register(PrimesPath, func() (worker.Module, error) { return &Primes{}, nil })
    reg.Register(TextPath, func() (worker.Module, error) { return Text{}, nil })
}

// NewRegistry returns a registry with the built-in modules.
func NewRegistry() *worker.Registry {
    reg := worker.NewRegistry()
    Register(reg)
    return reg
}
