package protocol

import (
    "bytes"
    "errors"
    "testing"

    "github.com/PR-DC/JSLAB-sub002/pkg/protocol/codec"
    "google.golang.org/protobuf/types/known/structpb"
)

func TestEncodeDecodeBodyJSON(t *testing.T) {
    reg := codec.NewRegistry()
    // no registration => default JSON used
    in := map[string]any{"x": 1, "y": "z"}
    b, err := EncodeBody(reg, FormatJSON, in)
    if err != nil { t.Fatalf("encode: %v", err) }
    if b[0] != byte(FormatJSON) { t.Fatalf("format prefix mismatch") }
    var out map[string]any
    f, err := DecodeBody(reg, b, &out)
    if err != nil { t.Fatalf("decode: %v", err) }
    if f != FormatJSON { t.Fatalf("format mismatch") }
}

func TestEncodeDecodeBodyCBOR(t *testing.T) {
    reg := codec.NewRegistry()
    c, err := codec.CBOR()
    if err != nil { t.Fatalf("cbor: %v", err) }
    reg.Register(c)
    buf := bytes.Repeat([]byte{0xAA}, 16)
    in := map[string]any{"buf": buf}
    b, err := EncodeBody(reg, FormatCBOR, in)
    if err != nil { t.Fatalf("encode: %v", err) }
    var out map[string]any
    if _, err := DecodeBody(reg, b, &out); err != nil { t.Fatalf("decode: %v", err) }
}

func TestEncodeDecodeBodyProto(t *testing.T) {
    reg := codec.NewRegistry()
    reg.Register(codec.Proto())
    s, err := structpb.NewStruct(map[string]any{"k": "v"})
    if err != nil { t.Fatalf("struct: %v", err) }
    b, err := EncodeBody(reg, FormatProto, s)
    if err != nil { t.Fatalf("encode: %v", err) }
    var out structpb.Struct
    if _, err := DecodeBody(reg, b, &out); err != nil { t.Fatalf("decode: %v", err) }
    if out.Fields["k"].GetStringValue() != "v" { t.Fatalf("value mismatch") }
}


func TestParseFormat(t *testing.T) {
    cases := map[string]Format{"json": FormatJSON, "CBOR": FormatCBOR, "": FormatCBOR, "protobuf": FormatProto}
    for in, want := range cases {
        f, err := ParseFormat(in)
        if err != nil || f != want { t.Fatalf("ParseFormat(%q) = %v, %v", in, f, err) }
    }
    if _, err := ParseFormat("xml"); err == nil { t.Fatalf("expected error for xml") }
}

func TestDecodeBodyRejectsEmptyAndUnknown(t *testing.T) {
    reg := codec.NewRegistry()
    var out map[string]any
    if _, err := DecodeBody(reg, nil, &out); !errors.Is(err, ErrEmptyPayload) { t.Fatalf("want ErrEmptyPayload, got %v", err) }
    if _, err := DecodeBody(reg, []byte{42, 1}, &out); err == nil { t.Fatalf("expected unknown format error") }
}
