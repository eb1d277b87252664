// Package transport defines the link interfaces worker sessions run over and
// shares the length-prefixed framing used by the stream-oriented transports.
//
// Key concepts:
// - Transport: dials/listens for Sessions of a specific Kind (mem/tcp/quic/udp/winpipe)
// - Session: a connection to a worker host; may carry several streams (quic)
// - Stream: a Send/Recv channel of whole frames, one worker per stream
package transport
