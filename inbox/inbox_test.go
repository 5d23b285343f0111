package inbox

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestAdapter(store Store, opts ...Option) *Adapter {
	return New(store, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func dates(messages []Message) []int64 {
	out := make([]int64, len(messages))
	for i, m := range messages {
		out[i] = m.Date
	}
	return out
}

func TestBoundsFallBackToDefaults(t *testing.T) {
	be.Equal(t, FetchBound(0), DefaultFetchCount)
	be.Equal(t, FetchBound(-3), DefaultFetchCount)
	be.Equal(t, FetchBound(7), 7)
	be.Equal(t, SearchBound(0), DefaultSearchLimit)
	be.Equal(t, SearchBound(-1), DefaultSearchLimit)
	be.Equal(t, SearchBound(3), 3)
}

func TestFetchReturnsNewestFirst(t *testing.T) {
	store := NewMemoryStore(
		NewMessage("A", "one", 300),
		NewMessage("B", "two", 100),
		NewMessage("C", "three", 500),
		NewMessage("D", "four", 200),
		NewMessage("E", "five", 400),
	)
	got := newTestAdapter(store).Fetch(context.Background(), 20)
	be.Equal(t, dates(got), []int64{500, 400, 300, 200, 100})
}

func TestFetchOneReturnsMostRecent(t *testing.T) {
	store := NewMemoryStore(
		NewMessage("A", "hi", 100),
		NewMessage("B", "yo", 200),
	)
	got := newTestAdapter(store).Fetch(context.Background(), 1)
	be.Equal(t, got, []Message{NewMessage("B", "yo", 200)})
}

func TestFetchEmptyStore(t *testing.T) {
	got := newTestAdapter(NewMemoryStore()).Fetch(context.Background(), 20)
	be.True(t, got != nil)
	be.Equal(t, len(got), 0)
}

func TestFetchDefaultsCount(t *testing.T) {
	store := NewMemoryStore()
	for i := range 30 {
		store.Add(NewMessage("A", "body", int64(i)))
	}
	adapter := newTestAdapter(store)
	be.Equal(t, len(adapter.Fetch(context.Background(), 0)), DefaultFetchCount)
	be.Equal(t, len(adapter.Fetch(context.Background(), -4)), DefaultFetchCount)
	be.Equal(t, len(adapter.Fetch(context.Background(), 25)), 25)
}

func TestFetchClampsToMaxBound(t *testing.T) {
	store := NewMemoryStore()
	for i := range 10 {
		store.Add(NewMessage("A", "body", int64(i)))
	}
	got := newTestAdapter(store, WithMaxBound(4)).Fetch(context.Background(), 100)
	be.Equal(t, dates(got), []int64{9, 8, 7, 6})
}

func TestFetchKeepsNullFields(t *testing.T) {
	store := NewMemoryStore(Message{Date: 42})
	got := newTestAdapter(store).Fetch(context.Background(), 5)
	be.Equal(t, len(got), 1)
	be.True(t, got[0].Address == nil)
	be.True(t, got[0].Body == nil)
	be.Equal(t, got[0].Date, int64(42))
}

func TestSearchMatchesAddressOrBody(t *testing.T) {
	store := NewMemoryStore(
		NewMessage("+15550001", "dinner at 8", 100),
		NewMessage("BANK", "Your code is 1234", 200),
		NewMessage("+15550002", "see you at the bank", 300),
		NewMessage("+15550003", "nothing here", 400),
	)
	got := newTestAdapter(store).Search(context.Background(), "bank", 10)
	be.Equal(t, dates(got), []int64{300, 200})

	got = newTestAdapter(store).Search(context.Background(), "5550", 10)
	be.Equal(t, dates(got), []int64{400, 300, 100})
}

func TestSearchRespectsLimit(t *testing.T) {
	store := NewMemoryStore()
	for i := range 12 {
		store.Add(NewMessage("A", fmt.Sprintf("ping %d", i), int64(i)))
	}
	adapter := newTestAdapter(store)

	got := adapter.Search(context.Background(), "ping", 3)
	be.Equal(t, dates(got), []int64{11, 10, 9})

	got = adapter.Search(context.Background(), "ping", 0)
	be.Equal(t, len(got), DefaultSearchLimit)
}

func TestSearchEmptyQueryMatchesAll(t *testing.T) {
	store := NewMemoryStore(
		NewMessage("A", "hi", 100),
		Message{Date: 150},
		NewMessage("B", "yo", 200),
	)
	got := newTestAdapter(store).Search(context.Background(), "", 10)
	be.Equal(t, dates(got), []int64{200, 150, 100})
}

func TestSearchResultsContainQuery(t *testing.T) {
	store := NewMemoryStore(
		NewMessage("alice", "lunch?", 1),
		NewMessage("bob", "call alice back", 2),
		NewMessage("carol", "ok", 3),
	)
	for _, m := range newTestAdapter(store).Search(context.Background(), "alice", 10) {
		be.True(t, strings.Contains(*m.Address, "alice") || strings.Contains(*m.Body, "alice"))
	}
}

func TestDeniedAccessYieldsEmpty(t *testing.T) {
	store := NewMemoryStore(NewMessage("A", "x marks", 1))
	store.SetDenied(true)
	adapter := newTestAdapter(store)

	fetched := adapter.Fetch(context.Background(), 20)
	be.True(t, fetched != nil)
	be.Equal(t, len(fetched), 0)

	searched := adapter.Search(context.Background(), "x", 10)
	be.True(t, searched != nil)
	be.Equal(t, len(searched), 0)
}

func TestDeniedAccessIsLogged(t *testing.T) {
	var buf bytes.Buffer
	store := NewMemoryStore(NewMessage("A", "hi", 1))
	store.SetDenied(true)

	New(store, WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))).Fetch(context.Background(), 5)
	be.True(t, strings.Contains(buf.String(), "access denied"))
	be.True(t, strings.Contains(buf.String(), "op=fetch"))
}

type countingAuthStore struct {
	Store
	calls   int
	denials int
}

func (s *countingAuthStore) RequestAccess(context.Context) error {
	s.calls++
	if s.calls <= s.denials {
		return ErrAccessDenied
	}
	return nil
}

func TestAccessRequestedUntilGranted(t *testing.T) {
	store := &countingAuthStore{Store: NewMemoryStore(NewMessage("A", "hi", 1)), denials: 1}
	adapter := newTestAdapter(store)

	be.Equal(t, len(adapter.Fetch(context.Background(), 5)), 0)
	be.Equal(t, len(adapter.Fetch(context.Background(), 5)), 1)
	be.Equal(t, len(adapter.Search(context.Background(), "hi", 5)), 1)
	be.Equal(t, store.calls, 2)
}

type scriptedRows struct {
	total   int
	nexts   int
	scanErr error
	iterErr error
	panicOn int
	closed  bool
}

func (r *scriptedRows) Next() bool {
	if r.nexts >= r.total {
		return false
	}
	r.nexts++
	return true
}

func (r *scriptedRows) Scan(dest ...any) error {
	if r.panicOn > 0 && r.nexts == r.panicOn {
		panic("cursor exploded")
	}
	if r.scanErr != nil {
		return r.scanErr
	}
	_ = dest[0].(*sql.NullString).Scan(fmt.Sprintf("sender-%d", r.nexts))
	_ = dest[1].(*sql.NullString).Scan("body")
	return dest[2].(*sql.NullInt64).Scan(int64(1000 - r.nexts))
}

func (r *scriptedRows) Err() error { return r.iterErr }

func (r *scriptedRows) Close() error {
	r.closed = true
	return nil
}

type stubStore struct {
	rows  Rows
	err   error
	query Query
}

func (s *stubStore) Query(_ context.Context, q Query) (Rows, error) {
	s.query = q
	return s.rows, s.err
}

func TestScanStopsAtBound(t *testing.T) {
	rows := &scriptedRows{total: 50}
	store := &stubStore{rows: rows}
	got := newTestAdapter(store).Fetch(context.Background(), 3)

	be.Equal(t, len(got), 3)
	be.Equal(t, rows.nexts, 3)
	be.True(t, rows.closed)
	be.Equal(t, store.query.Limit, 3)
	be.Equal(t, store.query.Order, Order{Column: ColumnDate, Descending: true})
	be.Equal(t, store.query.Projection, Projection)
	be.True(t, store.query.Filter == nil)
}

func TestSearchSendsFilter(t *testing.T) {
	store := &stubStore{rows: &scriptedRows{}}
	newTestAdapter(store).Search(context.Background(), "otp", 0)

	be.True(t, store.query.Filter != nil)
	be.Equal(t, *store.query.Filter, Filter{Contains: "otp", Columns: []Column{ColumnAddress, ColumnBody}})
	be.Equal(t, store.query.Limit, DefaultSearchLimit)
}

func TestStoreFailuresYieldEmpty(t *testing.T) {
	tests := []struct {
		name  string
		store *stubStore
	}{
		{name: "query error", store: &stubStore{err: errors.New("provider missing")}},
		{name: "nil rows", store: &stubStore{}},
		{name: "scan error", store: &stubStore{rows: &scriptedRows{total: 3, scanErr: errors.New("bad column")}}},
		{name: "iteration error", store: &stubStore{rows: &scriptedRows{total: 2, iterErr: errors.New("cursor reset")}}},
		{name: "panic", store: &stubStore{rows: &scriptedRows{total: 4, panicOn: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(tt.store)

			got := adapter.Fetch(context.Background(), 20)
			be.True(t, got != nil)
			be.Equal(t, len(got), 0)

			if rows, ok := tt.store.rows.(*scriptedRows); ok {
				be.True(t, rows.closed)
				rows.nexts, rows.closed = 0, false
			}

			got = adapter.Search(context.Background(), "x", 10)
			be.True(t, got != nil)
			be.Equal(t, len(got), 0)
		})
	}
}

func TestNilStoreYieldsEmpty(t *testing.T) {
	got := newTestAdapter(nil).Fetch(context.Background(), 5)
	be.True(t, got != nil)
	be.Equal(t, len(got), 0)
}
