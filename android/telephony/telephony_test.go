package telephony

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"github.com/spachava753/smsbridge/inbox"
	"github.com/spachava753/smsbridge/testutil"
)

func newAdapter(store *Store) *inbox.Adapter {
	return inbox.New(store, inbox.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
}

func TestBuildQueryFetch(t *testing.T) {
	stmt, args, err := buildQuery(inbox.Query{
		Projection: inbox.Projection,
		Order:      inbox.Order{Column: inbox.ColumnDate, Descending: true},
		Limit:      20,
	})
	be.Err(t, err, nil)
	be.Equal(t, stmt, "SELECT address, body, date FROM sms WHERE type = ? ORDER BY date DESC LIMIT ?")
	be.Equal(t, args, []any{MessageTypeInbox, 20})
}

func TestBuildQuerySearch(t *testing.T) {
	stmt, args, err := buildQuery(inbox.Query{
		Projection: inbox.Projection,
		Filter:     &inbox.Filter{Contains: "50%_off", Columns: []inbox.Column{inbox.ColumnAddress, inbox.ColumnBody}},
		Order:      inbox.Order{Column: inbox.ColumnDate, Descending: true},
		Limit:      10,
	})
	be.Err(t, err, nil)
	be.Equal(t, stmt, `SELECT address, body, date FROM sms WHERE type = ? AND (address LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\') ORDER BY date DESC LIMIT ?`)
	be.Equal(t, args, []any{MessageTypeInbox, `%50\%\_off%`, `%50\%\_off%`, 10})
}

func TestBuildQueryEmptyFilterAddsNoPredicate(t *testing.T) {
	stmt, _, err := buildQuery(inbox.Query{
		Projection: inbox.Projection,
		Filter:     &inbox.Filter{Columns: []inbox.Column{inbox.ColumnAddress, inbox.ColumnBody}},
	})
	be.Err(t, err, nil)
	be.Equal(t, stmt, "SELECT address, body, date FROM sms WHERE type = ?")
}

func TestBuildQueryRejectsUnknownColumns(t *testing.T) {
	_, _, err := buildQuery(inbox.Query{Projection: []inbox.Column{"address; DROP TABLE sms"}})
	var target *Error
	be.True(t, errors.As(err, &target))
	be.Equal(t, target.Code, ErrorCodeValidation)

	_, _, err = buildQuery(inbox.Query{})
	be.Err(t, err)

	_, _, err = buildQuery(inbox.Query{
		Projection: inbox.Projection,
		Filter:     &inbox.Filter{Contains: "x", Columns: []inbox.Column{inbox.ColumnDate}},
	})
	be.Err(t, err)
}

func TestEscapeLike(t *testing.T) {
	be.Equal(t, escapeLike("plain"), "plain")
	be.Equal(t, escapeLike(`100% a_b c\d`), `100\% a\_b c\\d`)
}

func TestStatusFromError(t *testing.T) {
	status, err := statusFromError("/x", fs.ErrPermission)
	be.Err(t, err, nil)
	be.Equal(t, status, AuthStatusDenied)

	_, err = statusFromError("/x", fs.ErrNotExist)
	be.Err(t, err, ErrProviderUnavailable)
}

func TestPermissionErrorMatchesAccessDenied(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Code: ErrorCodePermissionDenied})
	be.True(t, errors.Is(err, inbox.ErrAccessDenied))
	be.True(t, !errors.Is(&Error{Code: ErrorCodeQuery}, inbox.ErrAccessDenied))
}

func TestAuthorizationStatusAuthorized(t *testing.T) {
	store := New(testutil.SMSFixturePath(t))
	status, err := store.AuthorizationStatus()
	be.Err(t, err, nil)
	be.Equal(t, status, AuthStatusAuthorized)
	be.Err(t, store.RequestAccess(context.Background()), nil)
}

func TestMissingDatabase(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "absent.db"))

	err := store.RequestAccess(context.Background())
	be.Err(t, err, ErrProviderUnavailable)

	_, err = store.Query(context.Background(), inbox.Query{Projection: inbox.Projection})
	be.Err(t, err, ErrProviderUnavailable)

	got := newAdapter(store).Fetch(context.Background(), 20)
	be.True(t, got != nil)
	be.Equal(t, len(got), 0)
}

func TestDefaultPath(t *testing.T) {
	be.Equal(t, New("").Path(), DefaultDatabasePath)
	be.Equal(t, New("  /tmp/mmssms.db ").Path(), "/tmp/mmssms.db")
}

func TestFetchReadsInboxNewestFirst(t *testing.T) {
	rows := append(
		testutil.Inbox(
			inbox.NewMessage("A", "hi", 100),
			inbox.NewMessage("B", "yo", 200),
			inbox.NewMessage("C", "late", 300),
		),
		testutil.Sent(inbox.NewMessage("A", "outgoing", 400))...,
	)
	store := New(testutil.SMSFixturePath(t, rows...))
	adapter := newAdapter(store)

	got := adapter.Fetch(context.Background(), 20)
	be.Equal(t, got, []inbox.Message{
		inbox.NewMessage("C", "late", 300),
		inbox.NewMessage("B", "yo", 200),
		inbox.NewMessage("A", "hi", 100),
	})

	got = adapter.Fetch(context.Background(), 1)
	be.Equal(t, got, []inbox.Message{inbox.NewMessage("C", "late", 300)})
}

func TestFetchKeepsNullColumns(t *testing.T) {
	store := New(testutil.SMSFixturePath(t, testutil.Inbox(inbox.Message{Date: 7})...))
	got := newAdapter(store).Fetch(context.Background(), 5)
	be.Equal(t, len(got), 1)
	be.True(t, got[0].Address == nil)
	be.True(t, got[0].Body == nil)
	be.Equal(t, got[0].Date, int64(7))
}

func TestSearchMatchesLiterally(t *testing.T) {
	store := New(testutil.SMSFixturePath(t, testutil.Inbox(
		inbox.NewMessage("SHOP", "50% off today", 100),
		inbox.NewMessage("SHOP", "500 points", 200),
		inbox.NewMessage("+15551234", "call me", 300),
		inbox.Message{Date: 400},
	)...))
	adapter := newAdapter(store)

	got := adapter.Search(context.Background(), "50%", 10)
	be.Equal(t, got, []inbox.Message{inbox.NewMessage("SHOP", "50% off today", 100)})

	got = adapter.Search(context.Background(), "shop", 10)
	be.Equal(t, len(got), 2)

	got = adapter.Search(context.Background(), "1555", 10)
	be.Equal(t, got, []inbox.Message{inbox.NewMessage("+15551234", "call me", 300)})

	got = adapter.Search(context.Background(), "", 10)
	be.Equal(t, len(got), 4)
	be.Equal(t, got[0].Date, int64(400))
}

func TestQueryRowsClose(t *testing.T) {
	store := New(testutil.SMSFixturePath(t, testutil.Inbox(inbox.NewMessage("A", "hi", 1))...))
	rows, err := store.Query(context.Background(), inbox.Query{Projection: inbox.Projection, Limit: 1})
	be.Err(t, err, nil)
	be.True(t, rows.Next())
	be.Err(t, rows.Close(), nil)
	be.True(t, !rows.Next())
}
