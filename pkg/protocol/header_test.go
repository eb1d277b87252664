package protocol

import (
    "bytes"
    "errors"
    "testing"
)

func TestHeaderRoundtrip(t *testing.T) {
    var h Header
    h.Version = Version
    h.Type = MsgInvoke
    h.Flags = FlagError | FlagFragment
    h.PayloadLen = 1234
    for i := 0; i < len(h.Correlation); i++ { h.Correlation[i] = byte(i) }
    h.Seq = 0x1122334455667788
    h.SentAt = 1700000000123456789
    h.FragIndex = 2
    h.FragTotal = 5

    b, err := h.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(b) != HeaderSize { t.Fatalf("header size = %d", len(b)) }

    var h2 Header
    if err := h2.UnmarshalBinary(b); err != nil { t.Fatalf("unmarshal: %v", err) }

    if h2.Version != h.Version || h2.Type != h.Type || h2.Flags != h.Flags ||
        h2.PayloadLen != h.PayloadLen || !bytes.Equal(h2.Correlation[:], h.Correlation[:]) ||
        h2.Seq != h.Seq || h2.SentAt != h.SentAt || h2.FragIndex != h.FragIndex || h2.FragTotal != h.FragTotal {
        t.Fatalf("headers differ: %#v vs %#v", h2, h)
    }
}

func TestHeaderRejectsGarbage(t *testing.T) {
    var h Header
    if err := h.UnmarshalBinary(make([]byte, 10)); !errors.Is(err, ErrShortHeader) { t.Fatalf("want short header, got %v", err) }
    if err := h.UnmarshalBinary(make([]byte, HeaderSize)); !errors.Is(err, ErrBadMagic) { t.Fatalf("want bad magic, got %v", err) }
}
