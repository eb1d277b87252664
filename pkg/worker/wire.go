package worker

import (
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/protocol"
    "github.com/PR-DC/JSLAB-sub002/pkg/protocol/codec"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "google.golang.org/protobuf/types/known/structpb"
)

// maxReassemblies bounds the fragmented messages a wire reassembles at once.
const maxReassemblies = 16

// encodeError marks a message whose body cannot be represented in the
// session's format.
type encodeError struct{ err error }

func (e *encodeError) Error() string { return "encode body: " + e.err.Error() }
func (e *encodeError) Unwrap() error { return e.err }

// wire moves Messages over a transport stream as protocol envelopes. Sends
// are serialized; recv must only be called from one goroutine.
type wire struct {
    st       transport.Stream
    codecs   *codec.Registry
    maxFrame int

    mu     sync.Mutex
    format protocol.Format
    seq    uint64

    partial map[[16]byte][]protocol.Envelope
}

func newWire(st transport.Stream, format protocol.Format, codecs *codec.Registry) *wire {
    w := &wire{st: st, codecs: codecs, format: format, partial: make(map[[16]byte][]protocol.Envelope)}
    if fl, ok := st.(transport.FrameLimiter); ok { w.maxFrame = fl.MaxFrame() }
    return w
}

func (w *wire) setFormat(f protocol.Format) {
    w.mu.Lock(); w.format = f; w.mu.Unlock()
}

func (w *wire) send(m Message, corr [16]byte) error {
    w.mu.Lock()
    defer w.mu.Unlock()
    frames, err := w.encode(m, corr)
    if err != nil { return err }
    return w.write(frames)
}

// sendReply sends rep, or a Reply carrying the encode error when rep's value
// cannot be represented in the session's body format. Only a failed write
// is returned.
func (w *wire) sendReply(rep Reply, corr [16]byte) error {
    w.mu.Lock()
    defer w.mu.Unlock()
    frames, err := w.encode(rep, corr)
    var ee *encodeError
    if errors.As(err, &ee) {
        rep = Reply{Method: rep.Method, Err: fmt.Sprintf("encode result: %v", ee.err)}
        frames, err = w.encode(rep, corr)
    }
    if err != nil { return err }
    return w.write(frames)
}

// encode turns m into wire frames, fragmenting above the link's frame limit.
// Body failures are *encodeError. Callers hold w.mu.
func (w *wire) encode(m Message, corr [16]byte) ([][]byte, error) {
    body := m.body()
    var v any = body
    if w.format == protocol.FormatProto {
        s, err := structpb.NewStruct(body)
        if err != nil { return nil, &encodeError{err} }
        v = s
    }
    seq := w.seq + 1
    h := protocol.Header{Version: protocol.Version, Type: m.msgType(), Correlation: corr, Seq: seq, SentAt: time.Now().UnixNano()}
    if r, ok := m.(Reply); ok && r.Err != "" { h.Flags |= protocol.FlagError }
    env, err := protocol.NewEnvelopeWithBody(h, w.format, v, w.codecs)
    if err != nil { return nil, &encodeError{err} }

    envs := []protocol.Envelope{env}
    if w.maxFrame > 0 && protocol.HeaderSize+len(env.Payload) > w.maxFrame {
        envs, err = env.Fragments(w.maxFrame - protocol.HeaderSize)
        if err != nil { return nil, err }
    }
    frames := make([][]byte, 0, len(envs))
    for i := range envs {
        b, err := envs[i].EncodeFrame()
        if err != nil { return nil, err }
        frames = append(frames, b)
    }
    w.seq = seq
    return frames, nil
}

func (w *wire) write(frames [][]byte) error {
    for _, b := range frames {
        if err := w.st.SendBytes(b); err != nil { return err }
    }
    return nil
}

// recv returns the next complete message, its header and body format.
func (w *wire) recv() (Message, protocol.Header, protocol.Format, error) {
    for {
        b, err := w.st.RecvBytes()
        if err != nil { return nil, protocol.Header{}, protocol.FormatUnknown, err }
        var env protocol.Envelope
        if err := env.DecodeFrame(b); err != nil {
            return nil, protocol.Header{}, protocol.FormatUnknown, fmt.Errorf("%w: %v", ErrProtocol, err)
        }
        if env.HasFlag(protocol.FlagFragment) {
            id := env.Header.Correlation
            if err := w.checkFragment(&env); err != nil {
                delete(w.partial, id)
                return nil, env.Header, protocol.FormatUnknown, fmt.Errorf("%w: %v", ErrProtocol, err)
            }
            w.partial[id] = append(w.partial[id], env)
            if len(w.partial[id]) < int(env.Header.FragTotal) { continue }
            env, err = protocol.Reassemble(w.partial[id])
            delete(w.partial, id)
            if err != nil { return nil, protocol.Header{}, protocol.FormatUnknown, fmt.Errorf("%w: %v", ErrProtocol, err) }
        }
        m, f, err := w.decode(&env)
        return m, env.Header, f, err
    }
}

// checkFragment rejects fragments that could never complete a set and caps
// how many sets may be open at once.
func (w *wire) checkFragment(env *protocol.Envelope) error {
    total, idx := int(env.Header.FragTotal), int(env.Header.FragIndex)
    if total < 2 || idx >= total { return fmt.Errorf("fragment %d of %d", idx, total) }
    set, pending := w.partial[env.Header.Correlation]
    if !pending {
        if len(w.partial) >= maxReassemblies { return fmt.Errorf("more than %d partial messages", maxReassemblies) }
        return nil
    }
    if prev := int(set[0].Header.FragTotal); prev != total {
        return fmt.Errorf("fragment total changed from %d to %d", prev, total)
    }
    return nil
}

func (w *wire) decode(env *protocol.Envelope) (Message, protocol.Format, error) {
    if len(env.Payload) == 0 { return nil, protocol.FormatUnknown, fmt.Errorf("%w: %v", ErrProtocol, protocol.ErrEmptyPayload) }
    var body map[string]any
    f := protocol.Format(env.Payload[0])
    if f == protocol.FormatProto {
        var s structpb.Struct
        if _, err := protocol.DecodeEnvelopeBody(env, &s, w.codecs); err != nil {
            return nil, f, fmt.Errorf("%w: decode body: %v", ErrProtocol, err)
        }
        body = s.AsMap()
    } else if _, err := protocol.DecodeEnvelopeBody(env, &body, w.codecs); err != nil {
        return nil, f, fmt.Errorf("%w: decode body: %v", ErrProtocol, err)
    }
    m, err := fromBody(env.Header.Type, body)
    return m, f, err
}
