package tasks

import (
    "context"
    "testing"

    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
    "github.com/stretchr/testify/require"
)

func invoke(t *testing.T, m worker.Module, method string, args ...any) (any, error) {
    t.Helper()
    fn, ok := m.Methods()[method]
    require.True(t, ok, "missing method %s", method)
    return fn(context.Background(), worker.Args(args))
}

func TestRegisterResolvesEveryModule(t *testing.T) {
    reg := NewRegistry()
    require.Equal(t, []string{PrimesPath, SumPath, TextPath}, reg.Paths())
    for _, p := range []string{"tasks/sum.js", "tasks/primes", "./tasks/text.go"} {
        _, _, err := reg.Resolve(p)
        require.NoError(t, err, p)
    }
}

func TestSumKeepsStatePerInstance(t *testing.T) {
    a, b := &Sum{}, &Sum{}
    v, err := invoke(t, a, "acc", 2)
    require.NoError(t, err)
    require.Equal(t, int64(2), v)
    v, _ = invoke(t, a, "acc", 0.5)
    require.Equal(t, 2.5, v)
    v, _ = invoke(t, b, "acc", 1)
    require.Equal(t, int64(1), v)

    _, err = invoke(t, a, "add", 1)
    require.Error(t, err)
    v, err = invoke(t, a, "sum", 1, 2, 3)
    require.NoError(t, err)
    require.Equal(t, int64(6), v)
}

func TestPrimes(t *testing.T) {
    p := &Primes{}
    v, err := invoke(t, p, "count", 1000)
    require.NoError(t, err)
    require.Equal(t, int64(168), v)
    v, err = invoke(t, p, "nth", 1)
    require.NoError(t, err)
    require.Equal(t, int64(2), v)
    v, _ = invoke(t, p, "nth", 100)
    require.Equal(t, int64(541), v)

    _, err = invoke(t, p, "nth", 0)
    require.Error(t, err)
    _, err = invoke(t, p, "count", 2.5)
    require.Error(t, err)
}

func TestText(t *testing.T) {
    v, err := invoke(t, Text{}, "words", "Go, go GO! stop.")
    require.NoError(t, err)
    require.Equal(t, map[string]any{"count": int64(4), "unique": int64(2), "top": "go"}, v)
    _, err = invoke(t, Text{}, "upper", 3)
    require.Error(t, err)
}
