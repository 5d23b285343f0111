package telephony

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spachava753/smsbridge/inbox"
)

const (
	// DefaultDatabasePath is where the telephony provider keeps mmssms.db.
	DefaultDatabasePath = "/data/data/com.android.providers.telephony/databases/mmssms.db"

	// MessageTypeInbox is Telephony.Sms.MESSAGE_TYPE_INBOX.
	MessageTypeInbox = 1

	smsTable           = "sms"
	defaultBusyTimeout = 5 * time.Second
)

// AuthStatus describes read permission on the provider database.
type AuthStatus string

const (
	// AuthStatusNotDetermined indicates access has not been checked yet.
	AuthStatusNotDetermined AuthStatus = "not_determined"
	// AuthStatusDenied indicates the process cannot read the database.
	AuthStatusDenied AuthStatus = "denied"
	// AuthStatusAuthorized indicates the database is readable.
	AuthStatusAuthorized AuthStatus = "authorized"
)

// ErrorCode classifies Store errors.
type ErrorCode string

const (
	// ErrorCodePermissionDenied indicates the database is not readable.
	ErrorCodePermissionDenied ErrorCode = "permission_denied"
	// ErrorCodeUnavailable indicates the provider database is missing or
	// cannot be opened.
	ErrorCodeUnavailable ErrorCode = "unavailable"
	// ErrorCodeQuery indicates SQLite rejected the query.
	ErrorCodeQuery ErrorCode = "query"
	// ErrorCodeValidation indicates an unsupported query shape.
	ErrorCodeValidation ErrorCode = "validation"
)

// Error is a typed package error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e == nil {
		return "telephony: <nil>"
	}
	msg := fmt.Sprintf("telephony: %s", e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is lets permission errors match inbox.ErrAccessDenied.
func (e *Error) Is(target error) bool {
	return e != nil && e.Code == ErrorCodePermissionDenied && target == inbox.ErrAccessDenied
}

// ErrProviderUnavailable is wrapped by errors for a missing database.
var ErrProviderUnavailable = errors.New("telephony: sms provider unavailable")

var columnNames = map[inbox.Column]string{
	inbox.ColumnAddress: "address",
	inbox.ColumnBody:    "body",
	inbox.ColumnDate:    "date",
}

// Store reads inbox rows from an mmssms.db file.
type Store struct {
	path        string
	busyTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithBusyTimeout sets the SQLite busy timeout. The provider keeps writing
// to the file while we read it.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// New returns a Store for the database at path. An empty path means
// DefaultDatabasePath.
func New(path string, opts ...Option) *Store {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultDatabasePath
	}
	s := &Store{path: path, busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// AuthorizationStatus reports whether the database file is readable.
func (s *Store) AuthorizationStatus() (AuthStatus, error) {
	if _, err := os.Stat(s.path); err != nil {
		return statusFromError(s.path, err)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return statusFromError(s.path, err)
	}
	f.Close()
	return AuthStatusAuthorized, nil
}

// RequestAccess implements inbox.Authorizer.
func (s *Store) RequestAccess(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	status, err := s.AuthorizationStatus()
	if err != nil {
		return err
	}
	if status != AuthStatusAuthorized {
		return &Error{Code: ErrorCodePermissionDenied, Message: fmt.Sprintf("read access to %s is %s", s.path, status)}
	}
	return nil
}

// Query implements inbox.Store.
func (s *Store) Query(ctx context.Context, q inbox.Query) (inbox.Rows, error) {
	stmt, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		db.Close()
		return nil, &Error{Code: ErrorCodeQuery, Message: "sqlite query failed", Err: err}
	}
	return &dbRows{Rows: rows, db: db}, nil
}

// dbRows releases the database handle together with the cursor.
type dbRows struct {
	*sql.Rows
	db *sql.DB
}

func (r *dbRows) Close() error {
	return errors.Join(r.Rows.Close(), r.db.Close())
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	if _, err := os.Stat(s.path); err != nil {
		_, statErr := statusFromError(s.path, err)
		if statErr != nil {
			return nil, statErr
		}
		return nil, &Error{Code: ErrorCodePermissionDenied, Message: s.path, Err: err}
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", strings.ReplaceAll(s.path, " ", "%20"), s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &Error{Code: ErrorCodeUnavailable, Message: "opening sqlite database failed", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &Error{Code: ErrorCodeUnavailable, Message: "connecting to sqlite database failed", Err: err}
	}
	return db, nil
}

func statusFromError(path string, err error) (AuthStatus, error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return AuthStatusNotDetermined, &Error{
			Code:    ErrorCodeUnavailable,
			Message: fmt.Sprintf("sms database unavailable at %s", path),
			Err:     errors.Join(ErrProviderUnavailable, err),
		}
	case errors.Is(err, fs.ErrPermission):
		return AuthStatusDenied, nil
	default:
		return AuthStatusNotDetermined, &Error{Code: ErrorCodeUnavailable, Message: path, Err: err}
	}
}

func buildQuery(q inbox.Query) (string, []any, error) {
	if len(q.Projection) == 0 {
		return "", nil, &Error{Code: ErrorCodeValidation, Message: "projection is required"}
	}
	columns := make([]string, 0, len(q.Projection))
	for _, column := range q.Projection {
		name, ok := columnNames[column]
		if !ok {
			return "", nil, &Error{Code: ErrorCodeValidation, Message: fmt.Sprintf("unknown column %q", column)}
		}
		columns = append(columns, name)
	}

	where := []string{"type = ?"}
	args := []any{MessageTypeInbox}

	if q.Filter != nil && q.Filter.Contains != "" && len(q.Filter.Columns) > 0 {
		pattern := "%" + escapeLike(q.Filter.Contains) + "%"
		pieces := make([]string, 0, len(q.Filter.Columns))
		for _, column := range q.Filter.Columns {
			name, ok := columnNames[column]
			if !ok || column == inbox.ColumnDate {
				return "", nil, &Error{Code: ErrorCodeValidation, Message: fmt.Sprintf("column %q cannot be filtered", column)}
			}
			pieces = append(pieces, name+` LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		}
		where = append(where, "("+strings.Join(pieces, " OR ")+")")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), smsTable, strings.Join(where, " AND "))

	if q.Order.Column != "" {
		name, ok := columnNames[q.Order.Column]
		if !ok {
			return "", nil, &Error{Code: ErrorCodeValidation, Message: fmt.Sprintf("unknown order column %q", q.Order.Column)}
		}
		direction := "ASC"
		if q.Order.Descending {
			direction = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", name, direction)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
