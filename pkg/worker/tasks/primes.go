package tasks

import (
    "context"
    "errors"
    "fmt"

    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
)

// maxPrimeLimit bounds the sieve so one call cannot exhaust memory.
const maxPrimeLimit = 50_000_000

// Primes is a CPU-bound module: counting and finding primes with a sieve.
type Primes struct{}

func (p *Primes) Methods() worker.MethodSet {
    return worker.MethodSet{
        "count": p.count,
        "nth":   p.nth,
    }
}

// count returns how many primes are <= n.
func (p *Primes) count(ctx context.Context, args worker.Args) (any, error) {
    n, err := args.Int(0)
    if err != nil { return nil, err }
    if n > maxPrimeLimit { return nil, fmt.Errorf("limit %d exceeds %d", n, maxPrimeLimit) }
    if n < 2 { return int64(0), nil }
    composite, err := sieve(ctx, int(n))
    if err != nil { return nil, err }
    var c int64
    for i := 2; i <= int(n); i++ {
        if !composite[i] { c++ }
    }
    return c, nil
}

// nth returns the n-th prime (1-based).
func (p *Primes) nth(ctx context.Context, args worker.Args) (any, error) {
    n, err := args.Int(0)
    if err != nil { return nil, err }
    if n < 1 { return nil, errors.New("nth needs n >= 1") }
    limit := 16
    for {
        if limit > maxPrimeLimit { return nil, fmt.Errorf("prime #%d is beyond %d", n, maxPrimeLimit) }
        composite, err := sieve(ctx, limit)
        if err != nil { return nil, err }
        var c int64
        for i := 2; i <= limit; i++ {
            if composite[i] { continue }
            c++
            if c == n { return int64(i), nil }
        }
        limit *= 2
    }
}

func sieve(ctx context.Context, n int) ([]bool, error) {
    composite := make([]bool, n+1)
    for i := 2; i*i <= n; i++ {
        if composite[i] { continue }
        if i%1024 == 0 {
            if err := ctx.Err(); err != nil { return nil, err }
        }
        for j := i * i; j <= n; j += i { composite[j] = true }
    }
    return composite, nil
}
