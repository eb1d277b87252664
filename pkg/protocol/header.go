package protocol

import (
    "encoding/binary"
    "errors"
)

// Fixed header layout (64 bytes) for fast parsing over any link.
// All integer fields are little-endian.
//
//  0  ..1   Magic   'N''B' (0x4e42)
//  2        Version u8
//  3        Type    u8
//  4  ..7   Flags   u32
//  8        Reserved u8
//  9        Reserved u8
//  10 ..13  PayloadLen u32
//  14 ..29  CorrelationID [16]byte
//  30 ..37  Seq    u64  per-session send order
//  38 ..45  SentAt i64  unix nanoseconds
//  46 ..57  Reserved2
//  58 ..59  FragTotal u16
//  60 ..61  FragIndex u16
//  62 ..63  Reserved3 u16
const (
    headerSize = 64
    magicWord  = uint16(0x4e42) // 'N''B'

    // Version is the current header version.
    Version = 1
)

var (
    ErrShortHeader = errors.New("protocol: short header")
    ErrBadMagic    = errors.New("protocol: bad magic")
)

// HeaderSize is the encoded header length.
const HeaderSize = headerSize

// Header describes metadata for an envelope.
type Header struct {
    Version     uint8
    Type        uint8
    Flags       uint32
    PayloadLen  uint32
    Correlation [16]byte
    Seq         uint64
    SentAt      int64
    FragTotal   uint16
    FragIndex   uint16
}

// MarshalBinary encodes header to 64-byte buffer.
func (h *Header) MarshalBinary() ([]byte, error) {
    buf := make([]byte, headerSize)
    binary.LittleEndian.PutUint16(buf[0:2], magicWord)
    buf[2] = h.Version
    buf[3] = h.Type
    binary.LittleEndian.PutUint32(buf[4:8], h.Flags)
    binary.LittleEndian.PutUint32(buf[10:14], h.PayloadLen)
    copy(buf[14:30], h.Correlation[:])
    binary.LittleEndian.PutUint64(buf[30:38], h.Seq)
    binary.LittleEndian.PutUint64(buf[38:46], uint64(h.SentAt))
    binary.LittleEndian.PutUint16(buf[58:60], h.FragTotal)
    binary.LittleEndian.PutUint16(buf[60:62], h.FragIndex)
    return buf, nil
}

// UnmarshalBinary decodes header from 64-byte buffer.
func (h *Header) UnmarshalBinary(buf []byte) error {
    if len(buf) < headerSize { return ErrShortHeader }
    if binary.LittleEndian.Uint16(buf[0:2]) != magicWord { return ErrBadMagic }
    h.Version = buf[2]
    h.Type = buf[3]
    h.Flags = binary.LittleEndian.Uint32(buf[4:8])
    h.PayloadLen = binary.LittleEndian.Uint32(buf[10:14])
    copy(h.Correlation[:], buf[14:30])
    h.Seq = binary.LittleEndian.Uint64(buf[30:38])
    h.SentAt = int64(binary.LittleEndian.Uint64(buf[38:46]))
    h.FragTotal = binary.LittleEndian.Uint16(buf[58:60])
    h.FragIndex = binary.LittleEndian.Uint16(buf[60:62])
    return nil
}
