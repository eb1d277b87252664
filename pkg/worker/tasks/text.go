package tasks

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "strings"

    "github.com/PR-DC/JSLAB-sub002/pkg/worker"
)

// Text is a stateless module of string utilities.
type Text struct{}

func (Text) Methods() worker.MethodSet {
    return worker.MethodSet{
        "hash":  hash,
        "upper": upper,
        "words": words,
    }
}

// hash returns the hex SHA-256 of its string argument.
func hash(_ context.Context, args worker.Args) (any, error) {
    s, err := args.String(0)
    if err != nil { return nil, err }
    sum := sha256.Sum256([]byte(s))
    return hex.EncodeToString(sum[:]), nil
}

func upper(_ context.Context, args worker.Args) (any, error) {
    s, err := args.String(0)
    if err != nil { return nil, err }
    return strings.ToUpper(s), nil
}

// words returns the word count and the most frequent word.
func words(_ context.Context, args worker.Args) (any, error) {
    s, err := args.String(0)
    if err != nil { return nil, err }
    fields := strings.Fields(strings.ToLower(s))
    freq := map[string]int{}
    top, topN := "", 0
    for _, w := range fields {
        w = strings.Trim(w, ".,;:!?\"'()")
        if w == "" { continue }
        freq[w]++
        if freq[w] > topN || (freq[w] == topN && w < top) { top, topN = w, freq[w] }
    }
    return map[string]any{"count": int64(len(fields)), "unique": int64(len(freq)), "top": top}, nil
}
