//go:build !windows

package transports

import (
    "errors"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport"
)

// ErrUnsupported is returned for transports unavailable on this platform.
var ErrUnsupported = errors.New("winpipe transport is not supported on this platform")

func newWinPipeTransport() (transport.Transport, error) { return nil, ErrUnsupported }
