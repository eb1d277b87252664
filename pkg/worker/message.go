// Package worker runs offloaded module methods in isolated worker contexts.
// A session and its worker exchange serialized messages only: one Configure
// first, then Invoke messages answered in order by Reply messages. Protocol
// violations end the worker with a Fault.
package worker

import (
    "errors"
    "fmt"

    "github.com/PR-DC/JSLAB-sub002/pkg/protocol"
)

var (
    // ErrProtocol marks a violation of the configure-then-invoke protocol.
    ErrProtocol = errors.New("worker: protocol violation")
    // ErrUnknownModule is returned when a module path does not resolve.
    ErrUnknownModule = errors.New("worker: unknown module")
    // ErrUnknownMethod is returned when the loaded module lacks a method.
    ErrUnknownMethod = errors.New("worker: unknown method")
    // ErrSessionFailed is returned for calls on a session whose worker faulted
    // or whose link broke; the session must be recreated.
    ErrSessionFailed = errors.New("worker: session failed")
    // ErrSessionClosed is returned for calls after Close.
    ErrSessionClosed = errors.New("worker: session closed")
)

// Message is one of Configure, Invoke, Reply, Fault or Close.
type Message interface {
    msgType() uint8
    body() map[string]any
}

// Configure asks a fresh worker to load the module at ModulePath.
type Configure struct {
    ModulePath string
}

// Invoke calls Method on the loaded module.
type Invoke struct {
    Method string
    Args   []any
}

// Reply carries a method result. Err is the method's own failure, reported
// back as data; it does not end the worker.
type Reply struct {
    Method string
    Value  any
    Err    string
}

// Fault reports a protocol violation; the worker ends after sending it.
type Fault struct {
    Reason string
}

// Close ends a session in an orderly way.
type Close struct{}

func (Configure) msgType() uint8 { return protocol.MsgConfigure }
func (Invoke) msgType() uint8    { return protocol.MsgInvoke }
func (Reply) msgType() uint8     { return protocol.MsgReply }
func (Fault) msgType() uint8     { return protocol.MsgFault }
func (Close) msgType() uint8     { return protocol.MsgClose }

func (m Configure) body() map[string]any { return map[string]any{"module_path": m.ModulePath} }

func (m Invoke) body() map[string]any {
    args := make([]any, len(m.Args))
    for i, a := range m.Args { args[i] = normalize(a) }
    return map[string]any{"method": m.Method, "args": args}
}

func (m Reply) body() map[string]any {
    return map[string]any{"method": m.Method, "value": normalize(m.Value), "error": m.Err}
}

func (m Fault) body() map[string]any { return map[string]any{"reason": m.Reason} }

func (Close) body() map[string]any { return map[string]any{} }

// fromBody rebuilds a message of type t from a decoded body.
func fromBody(t uint8, b map[string]any) (Message, error) {
    str := func(k string) string { s, _ := b[k].(string); return s }
    switch t {
    case protocol.MsgConfigure:
        return Configure{ModulePath: str("module_path")}, nil
    case protocol.MsgInvoke:
        args, _ := b["args"].([]any)
        return Invoke{Method: str("method"), Args: args}, nil
    case protocol.MsgReply:
        return Reply{Method: str("method"), Value: b["value"], Err: str("error")}, nil
    case protocol.MsgFault:
        return Fault{Reason: str("reason")}, nil
    case protocol.MsgClose:
        return Close{}, nil
    default:
        return nil, fmt.Errorf("%w: unknown message type %d", ErrProtocol, t)
    }
}
