package codec

import (
    "reflect"

    cbor "github.com/fxamacker/cbor/v2"
)

type cborCodec struct{ enc cbor.EncMode; dec cbor.DecMode }

// CBOR returns a deterministic CBOR codec (RFC 8949) with core profile.
// Maps decoded into interface values use string keys so bodies look the same
// as their JSON counterparts.
func CBOR() (Codec, error) {
    em, err := cbor.CanonicalEncOptions().EncMode()
    if err != nil { return nil, err }
    dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string { return "application/cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
