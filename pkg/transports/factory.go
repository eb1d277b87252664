// Package transports builds concrete transports by kind and dials them with
// retry.
package transports

import (
    "strings"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport/mem"
    tquic "github.com/PR-DC/JSLAB-sub002/pkg/transport/quic"
    ttcp "github.com/PR-DC/JSLAB-sub002/pkg/transport/tcp"
    "github.com/PR-DC/JSLAB-sub002/pkg/transport/udp"
)

// inproc is shared so that mem listeners and dialers in one process meet.
var inproc = mem.New()

// NewByKind constructs a Transport by string kind.
func NewByKind(kind string) (transport.Transport, error) {
    switch strings.ToLower(strings.TrimSpace(kind)) {
    case "udp":
        return udp.New(), nil
    case "tcp":
        return ttcp.New(), nil
    case "quic":
        return tquic.New()
    case "mem", "inproc":
        return inproc, nil
    case "winpipe", "pipe":
        return newWinPipeTransport()
    default:
        return nil, ErrUnknownKind(kind)
    }
}

// ErrUnknownKind is returned for an unrecognised transport name.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
