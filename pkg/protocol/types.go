package protocol

// Message types exchanged between a session and its worker.
const (
    MsgUnknown   uint8 = iota
    MsgConfigure       // load a module into the worker, first message
    MsgInvoke          // call a method on the loaded module
    MsgReply           // method result or method error
    MsgFault           // protocol violation, worker is ending
    MsgClose           // orderly end of the session
)

// TypeName returns a readable message type for logs.
func TypeName(t uint8) string {
    switch t {
    case MsgConfigure:
        return "configure"
    case MsgInvoke:
        return "invoke"
    case MsgReply:
        return "reply"
    case MsgFault:
        return "fault"
    case MsgClose:
        return "close"
    default:
        return "unknown"
    }
}

// Flags bitmask (uint32)
const (
    FlagError    uint32 = 1 << 0 // reply carries a method error
    FlagFragment uint32 = 1 << 4 // this envelope is a fragment
    FlagLastFrag uint32 = 1 << 5 // last fragment
)

// ContentType is optional hint for payload decoding.
// Kept as constants to avoid coupling; not serialized in header.
const (
    ContentUnknown = "application/octet-stream"
    ContentCBOR    = "application/cbor"
    ContentJSON    = "application/json"
    ContentProto   = "application/x-protobuf"
)
