// Package smschannel serves the SMS inbox over a method channel.
//
// Methods
//
//   - getMessages {count?: int}: the count most recent inbox messages.
//   - searchMessages {query?: string, limit?: int}: recent messages whose
//     address or body contains query.
//
// Both reply with a list of {address, body, date}. Any other method gets a
// not-implemented reply. Missing, non-integer or non-positive bounds fall back
// to the inbox defaults (20 and 10).
package smschannel

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/spachava753/smsbridge/channel"
	"github.com/spachava753/smsbridge/inbox"
)

// DefaultChannelName is the channel the application shell talks to.
const DefaultChannelName = "com.aura.mobile/sms"

const (
	MethodGetMessages    = "getMessages"
	MethodSearchMessages = "searchMessages"
)

// Reader is the part of inbox.Adapter the handler needs.
type Reader interface {
	Fetch(ctx context.Context, count int) []inbox.Message
	Search(ctx context.Context, query string, limit int) []inbox.Message
}

// Handler implements channel.Handler on top of a Reader.
type Handler struct {
	reader Reader
}

// NewHandler returns a Handler reading from r.
func NewHandler(r Reader) *Handler {
	return &Handler{reader: r}
}

// Register installs a Handler for r on m under name. An empty name means
// DefaultChannelName.
func Register(m *channel.Messenger, name string, r Reader) {
	if name == "" {
		name = DefaultChannelName
	}
	m.SetMethodCallHandler(name, NewHandler(r))
}

// HandleMethodCall implements channel.Handler.
func (h *Handler) HandleMethodCall(ctx context.Context, call channel.MethodCall) channel.Result {
	switch call.Method {
	case MethodGetMessages:
		count := IntArgument(call, "count", inbox.DefaultFetchCount)
		return channel.Success(h.reader.Fetch(ctx, count))
	case MethodSearchMessages:
		query := StringArgument(call, "query")
		limit := IntArgument(call, "limit", inbox.DefaultSearchLimit)
		return channel.Success(h.reader.Search(ctx, query, limit))
	default:
		return channel.NotImplemented()
	}
}

// IntArgument returns the positive integer argument key, or def when it is
// missing, not an integer or not positive.
func IntArgument(call channel.MethodCall, key string, def int) int {
	v, ok := call.Argument(key)
	if !ok {
		return def
	}
	n, ok := toInt(v)
	if !ok || n <= 0 {
		return def
	}
	return n
}

// StringArgument returns the string argument key, or "" when it is missing or
// not a string.
func StringArgument(call channel.MethodCall, key string) string {
	v, ok := call.Argument(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return toInt(f)
		}
		return toInt(i)
	default:
		return 0, false
	}
}
