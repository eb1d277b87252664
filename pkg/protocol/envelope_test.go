package protocol

import (
    "bytes"
    "errors"
    "testing"
)

func TestEnvelopeFrameEncodeDecode(t *testing.T) {
    e := Envelope{Header: Header{
        Version:     Version,
        Type:        MsgReply,
        Flags:       FlagError,
        Seq:         7,
        Correlation: NewCorrelation(),
    }}
    e.Payload = []byte("hello")

    frame, err := e.EncodeFrame()
    if err != nil { t.Fatalf("encode: %v", err) }

    var d Envelope
    if err := d.DecodeFrame(frame); err != nil { t.Fatalf("decode: %v", err) }

    if !bytes.Equal(d.Payload, e.Payload) { t.Fatalf("payload mismatch") }
    if d.Header.Type != e.Header.Type || !d.HasFlag(FlagError) || d.Header.Seq != 7 || d.Header.Correlation != e.Header.Correlation {
        t.Fatalf("header mismatch: %#v", d.Header)
    }
    if err := d.DecodeFrame(frame[:HeaderSize+2]); err == nil { t.Fatalf("expected truncated frame error") }
}

func TestFragmentsAndReassemble(t *testing.T) {
    e := Envelope{Header: Header{Version: Version, Type: MsgInvoke, Correlation: NewCorrelation()}}
    data := bytes.Repeat([]byte{0xAB}, 1024)
    e.Payload = data
    frags, err := e.Fragments(128)
    if err != nil { t.Fatalf("fragments: %v", err) }
    if len(frags) != 8 { t.Fatalf("want 8 frags, got %d", len(frags)) }
    for i, f := range frags {
        if f.Header.FragIndex != uint16(i) { t.Fatalf("frag index mismatch") }
        if f.Header.FragTotal != uint16(len(frags)) { t.Fatalf("frag total mismatch") }
        if i == len(frags)-1 && (f.Header.Flags&FlagLastFrag) == 0 { t.Fatalf("last flag not set") }
    }
    // out of order arrival
    frags[0], frags[5] = frags[5], frags[0]
    re, err := Reassemble(frags)
    if err != nil { t.Fatalf("reassemble: %v", err) }
    if !bytes.Equal(re.Payload, data) { t.Fatalf("reassembled payload mismatch") }
    if re.HasFlag(FlagFragment) { t.Fatalf("fragment flag left on reassembled envelope") }

    if _, err := Reassemble(frags[:3]); err == nil { t.Fatalf("expected incomplete set error") }
}

func TestFragmentsRejectsTooManyChunks(t *testing.T) {
    e := Envelope{Payload: make([]byte, MaxFragments+1)}
    if _, err := e.Fragments(1); !errors.Is(err, ErrPayloadTooLarge) { t.Fatalf("want ErrPayloadTooLarge, got %v", err) }
}
