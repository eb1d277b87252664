package protocol

import (
    "errors"
    "fmt"
    "io"
    "sort"

    "github.com/google/uuid"
)

// MaxPayload guards against absurd payload lengths on the wire.
const MaxPayload = 1 << 24

// MaxFragments bounds how many fragments one envelope may be split into.
const MaxFragments = 1<<16 - 1

var ErrPayloadTooLarge = errors.New("protocol: payload too large")

// Envelope is a header + payload wrapper for a single link frame.
type Envelope struct {
    Header  Header
    Payload []byte
}

// NewCorrelation generates a random 16-byte id.
func NewCorrelation() [16]byte { return uuid.New() }

// HasFlag checks whether a flag is set.
func (e *Envelope) HasFlag(flag uint32) bool { return (e.Header.Flags & flag) != 0 }

// EncodeFrame returns header+payload as a single byte slice.
func (e *Envelope) EncodeFrame() ([]byte, error) {
    e.Header.PayloadLen = uint32(len(e.Payload))
    hb, err := e.Header.MarshalBinary()
    if err != nil { return nil, err }
    out := make([]byte, headerSize+len(e.Payload))
    copy(out, hb)
    copy(out[headerSize:], e.Payload)
    return out, nil
}

// DecodeFrame parses a single frame from buf.
func (e *Envelope) DecodeFrame(buf []byte) error {
    if len(buf) < headerSize {
        return io.ErrUnexpectedEOF
    }
    if err := e.Header.UnmarshalBinary(buf[:headerSize]); err != nil {
        return err
    }
    if e.Header.PayloadLen > MaxPayload {
        return fmt.Errorf("%w: %d", ErrPayloadTooLarge, e.Header.PayloadLen)
    }
    need := int(e.Header.PayloadLen)
    if headerSize+need > len(buf) {
        return io.ErrUnexpectedEOF
    }
    e.Payload = append(e.Payload[:0], buf[headerSize:headerSize+need]...)
    return nil
}

// Fragments splits the payload into chunks and yields envelopes.
func (e *Envelope) Fragments(chunk int) ([]Envelope, error) {
    if chunk <= 0 {
        return nil, fmt.Errorf("invalid chunk size")
    }
    data := e.Payload
    total := (len(data) + chunk - 1) / chunk
    if total > MaxFragments {
        return nil, fmt.Errorf("%w: %d fragments of %d bytes", ErrPayloadTooLarge, total, chunk)
    }
    if total <= 1 {
        return []Envelope{*e}, nil
    }
    out := make([]Envelope, 0, total)
    for i := 0; i < total; i++ {
        start := i * chunk
        end := start + chunk
        if end > len(data) { end = len(data) }
        ne := Envelope{Header: e.Header}
        ne.Payload = append([]byte(nil), data[start:end]...)
        ne.Header.FragIndex = uint16(i)
        ne.Header.FragTotal = uint16(total)
        ne.Header.Flags |= FlagFragment
        if i == total-1 { ne.Header.Flags |= FlagLastFrag }
        out = append(out, ne)
    }
    return out, nil
}

// Reassemble merges a complete set of fragments into a single envelope.
// Fragments may arrive in any order.
func Reassemble(frags []Envelope) (Envelope, error) {
    if len(frags) == 0 {
        return Envelope{}, fmt.Errorf("no fragments")
    }
    sort.Slice(frags, func(i, j int) bool { return frags[i].Header.FragIndex < frags[j].Header.FragIndex })
    for i, f := range frags {
        if int(f.Header.FragIndex) != i || int(f.Header.FragTotal) != len(frags) {
            return Envelope{}, fmt.Errorf("incomplete fragments: have %d of %d", len(frags), f.Header.FragTotal)
        }
    }
    base := frags[0]
    var totalLen int
    for _, f := range frags {
        totalLen += len(f.Payload)
    }
    buf := make([]byte, 0, totalLen)
    for _, f := range frags {
        buf = append(buf, f.Payload...)
    }
    base.Payload = buf
    base.Header.Flags &^= (FlagFragment | FlagLastFrag)
    base.Header.FragIndex, base.Header.FragTotal = 0, 0
    base.Header.PayloadLen = uint32(len(buf))
    return base, nil
}

