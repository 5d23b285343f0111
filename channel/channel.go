// Package channel implements named method channels: a method call goes in,
// exactly one result comes out.
//
// A result is a success value, an error triple (code, message, details) or
// "not implemented". The three are distinct on the wire, so a caller can
// always tell an unknown method from an empty success.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// MethodCall is a named invocation with optional arguments. Arguments is
// usually a map[string]any decoded from JSON.
type MethodCall struct {
	Method    string `json:"method"`
	Arguments any    `json:"args"`
}

// Argument returns the named argument when Arguments is a map.
func (c MethodCall) Argument(key string) (any, bool) {
	args, ok := c.Arguments.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := args[key]
	return v, ok
}

// ResultKind tells the three result shapes apart.
type ResultKind int

const (
	KindSuccess ResultKind = iota
	KindError
	KindNotImplemented
)

func (k ResultKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindNotImplemented:
		return "notImplemented"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the reply to a MethodCall.
type Result struct {
	kind    ResultKind
	value   any
	code    string
	message string
	details any
}

// Success wraps a successful reply value.
func Success(value any) Result {
	return Result{kind: KindSuccess, value: value}
}

// Error builds an error reply.
func Error(code string, message string, details any) Result {
	return Result{kind: KindError, code: code, message: message, details: details}
}

// NotImplemented is the reply for methods a handler does not know.
func NotImplemented() Result {
	return Result{kind: KindNotImplemented}
}

func (r Result) Kind() ResultKind { return r.kind }
func (r Result) Value() any       { return r.value }
func (r Result) Code() string     { return r.code }
func (r Result) Message() string  { return r.message }
func (r Result) Details() any     { return r.details }

// Handler answers method calls on one channel.
type Handler interface {
	HandleMethodCall(ctx context.Context, call MethodCall) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call MethodCall) Result

// HandleMethodCall calls f.
func (f HandlerFunc) HandleMethodCall(ctx context.Context, call MethodCall) Result {
	return f(ctx, call)
}

// Messenger routes method calls to handlers by channel name.
type Messenger struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *slog.Logger
}

// NewMessenger returns an empty Messenger. A nil logger means slog.Default.
func NewMessenger(log *slog.Logger) *Messenger {
	if log == nil {
		log = slog.Default()
	}
	return &Messenger{handlers: make(map[string]Handler), log: log}
}

// SetMethodCallHandler registers h for channel. A nil h removes the channel.
func (m *Messenger) SetMethodCallHandler(channel string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		delete(m.handlers, channel)
		return
	}
	m.handlers[channel] = h
}

// Channels lists registered channel names in sorted order.
func (m *Messenger) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke delivers call to the channel handler. Calls on unknown channels get
// NotImplemented. A panicking handler yields an error result.
func (m *Messenger) Invoke(ctx context.Context, channel string, call MethodCall) (result Result) {
	m.mu.RLock()
	h, ok := m.handlers[channel]
	m.mu.RUnlock()
	if !ok {
		m.log.Debug("no handler for channel", "channel", channel, "method", call.Method)
		return NotImplemented()
	}

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("method handler panicked", "channel", channel, "method", call.Method, "panic", r)
			result = Error("panic", fmt.Sprintf("handler for %s panicked", call.Method), nil)
		}
	}()
	return h.HandleMethodCall(ctx, call)
}
