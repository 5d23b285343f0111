package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

const (
	// DefaultFetchCount is the bound used by Fetch when count is not positive.
	DefaultFetchCount = 20
	// DefaultSearchLimit is the bound used by Search when limit is not positive.
	DefaultSearchLimit = 10
	// DefaultMaxBound caps any requested bound.
	DefaultMaxBound = 500
)

// ErrAccessDenied reports that the store refused access to the inbox.
var ErrAccessDenied = errors.New("inbox: access denied")

// Column names a projectable inbox column.
type Column string

const (
	// ColumnAddress is the sender address.
	ColumnAddress Column = "address"
	// ColumnBody is the message text.
	ColumnBody Column = "body"
	// ColumnDate is the receive time in epoch milliseconds.
	ColumnDate Column = "date"
)

// Projection is the column set every adapter query requests, in scan order.
var Projection = []Column{ColumnAddress, ColumnBody, ColumnDate}

// Message is one inbox row. Address and Body are nil when the store has no
// value for them.
type Message struct {
	Address *string `json:"address" yaml:"address"`
	Body    *string `json:"body" yaml:"body"`
	Date    int64   `json:"date" yaml:"date"`
}

// NewMessage builds a Message with non-nil text fields.
func NewMessage(address string, body string, date int64) Message {
	return Message{Address: &address, Body: &body, Date: date}
}

// Filter is a substring predicate ORed across Columns.
type Filter struct {
	Contains string
	Columns  []Column
}

// Order is the requested sort order.
type Order struct {
	Column     Column
	Descending bool
}

// Query is the request an Adapter sends to a Store.
//
// Limit is a hint; the adapter stops scanning at its own bound either way.
type Query struct {
	Projection []Column
	Filter     *Filter
	Order      Order
	Limit      int
}

// Rows is a forward-only cursor over query results. *sql.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Store is a read-only source of inbox rows.
//
// Query may return nil Rows with a nil error when the provider has nothing to
// hand back; the adapter treats that as zero rows.
type Store interface {
	Query(ctx context.Context, q Query) (Rows, error)
}

// Authorizer is implemented by stores that need permission before reads.
type Authorizer interface {
	RequestAccess(ctx context.Context) error
}

// Adapter runs bounded reads against a Store.
type Adapter struct {
	store      Store
	log        *slog.Logger
	maxBound   int
	authorized atomic.Bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMaxBound caps every bound at n. Values <= 0 keep DefaultMaxBound.
func WithMaxBound(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxBound = n
		}
	}
}

// New returns an Adapter reading from store.
func New(store Store, opts ...Option) *Adapter {
	a := &Adapter{
		store:    store,
		log:      slog.Default(),
		maxBound: DefaultMaxBound,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchBound returns the effective bound for a fetch of count messages.
func FetchBound(count int) int {
	if count <= 0 {
		return DefaultFetchCount
	}
	return count
}

// SearchBound returns the effective bound for a search limited to limit.
func SearchBound(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}

// Fetch returns up to count most recent messages, newest first.
func (a *Adapter) Fetch(ctx context.Context, count int) []Message {
	return a.collect(ctx, "fetch", Query{
		Projection: Projection,
		Order:      Order{Column: ColumnDate, Descending: true},
		Limit:      a.clamp(FetchBound(count)),
	})
}

// Search returns up to limit most recent messages whose address or body
// contains query.
func (a *Adapter) Search(ctx context.Context, query string, limit int) []Message {
	return a.collect(ctx, "search", Query{
		Projection: Projection,
		Filter: &Filter{
			Contains: query,
			Columns:  []Column{ColumnAddress, ColumnBody},
		},
		Order: Order{Column: ColumnDate, Descending: true},
		Limit: a.clamp(SearchBound(limit)),
	})
}

func (a *Adapter) clamp(bound int) int {
	if bound > a.maxBound {
		return a.maxBound
	}
	return bound
}

func (a *Adapter) collect(ctx context.Context, op string, q Query) []Message {
	messages, err := a.scan(ctx, q)
	if err != nil {
		a.log.Warn("inbox read failed, returning empty result", "op", op, "limit", q.Limit, "error", err)
		return []Message{}
	}
	return messages
}

func (a *Adapter) scan(ctx context.Context, q Query) (messages []Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			messages = nil
			err = fmt.Errorf("inbox: store panicked: %v", r)
		}
	}()

	if a.store == nil {
		return nil, errors.New("inbox: no store configured")
	}
	if err := a.authorize(ctx); err != nil {
		return nil, err
	}

	rows, err := a.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("inbox: query failed: %w", err)
	}
	if rows == nil {
		return []Message{}, nil
	}
	defer rows.Close()

	messages = make([]Message, 0, min(q.Limit, 64))
	for len(messages) < q.Limit && rows.Next() {
		var (
			address sql.NullString
			body    sql.NullString
			date    sql.NullInt64
		)
		if err := rows.Scan(&address, &body, &date); err != nil {
			return nil, fmt.Errorf("inbox: scanning row failed: %w", err)
		}
		messages = append(messages, Message{
			Address: nullableString(address),
			Body:    nullableString(body),
			Date:    date.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inbox: iterating rows failed: %w", err)
	}
	return messages, nil
}

func (a *Adapter) authorize(ctx context.Context) error {
	auth, ok := a.store.(Authorizer)
	if !ok || a.authorized.Load() {
		return nil
	}
	if err := auth.RequestAccess(ctx); err != nil {
		return fmt.Errorf("inbox: access not granted: %w", err)
	}
	a.authorized.Store(true)
	return nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
