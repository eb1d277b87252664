package tasks

import (
    "context"
    "errors"
    "math"

    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
)

// Sum adds numbers. It keeps a running total per worker instance.
type Sum struct {
    total float64
}

func (s *Sum) Methods() worker.MethodSet {
    return worker.MethodSet{
        "add":   s.add,
        "sum":   s.sum,
        "acc":   s.acc,
        "reset": s.reset,
    }
}

func (s *Sum) add(_ context.Context, args worker.Args) (any, error) {
    if args.Len() != 2 { return nil, errors.New("add takes exactly two numbers") }
    a, err := args.Float(0)
    if err != nil { return nil, err }
    b, err := args.Float(1)
    if err != nil { return nil, err }
    return number(a + b), nil
}

// sum accepts either variadic numbers or a single list.
func (s *Sum) sum(_ context.Context, args worker.Args) (any, error) {
    if l, ok := args.List(0); ok && args.Len() == 1 { args = l }
    var total float64
    for i := 0; i < args.Len(); i++ {
        v, err := args.Float(i)
        if err != nil { return nil, err }
        total += v
    }
    return number(total), nil
}

func (s *Sum) acc(_ context.Context, args worker.Args) (any, error) {
    v, err := args.Float(0)
    if err != nil { return nil, err }
    s.total += v
    return number(s.total), nil
}

func (s *Sum) reset(context.Context, worker.Args) (any, error) {
    s.total = 0
    return number(0), nil
}

// number keeps whole results integral so every body format carries them alike.
func number(f float64) any {
    if f == math.Trunc(f) && math.Abs(f) < 1<<53 { return int64(f) }
    return f
}
