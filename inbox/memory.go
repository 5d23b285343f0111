package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
	denied   bool
}

// NewMemoryStore returns a store holding messages in insertion order.
func NewMemoryStore(messages ...Message) *MemoryStore {
	s := &MemoryStore{}
	s.Add(messages...)
	return s
}

// Add appends messages to the store.
func (s *MemoryStore) Add(messages ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, messages...)
}

// SetDenied toggles access denial. While denied, RequestAccess and Query
// return ErrAccessDenied.
func (s *MemoryStore) SetDenied(denied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied = denied
}

// RequestAccess implements Authorizer.
func (s *MemoryStore) RequestAccess(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.denied {
		return ErrAccessDenied
	}
	return ctx.Err()
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, q Query) (Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, column := range q.Projection {
		if !knownColumn(column) {
			return nil, fmt.Errorf("inbox: unknown column %q", column)
		}
	}
	if q.Order.Column != "" && !knownColumn(q.Order.Column) {
		return nil, fmt.Errorf("inbox: unknown order column %q", q.Order.Column)
	}

	s.mu.RLock()
	if s.denied {
		s.mu.RUnlock()
		return nil, ErrAccessDenied
	}
	matched := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if q.Filter == nil || matchesFilter(m, *q.Filter) {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	if q.Order.Column != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			if q.Order.Descending {
				return lessBy(matched[j], matched[i], q.Order.Column)
			}
			return lessBy(matched[i], matched[j], q.Order.Column)
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	records := make([][]any, 0, len(matched))
	for _, m := range matched {
		record := make([]any, len(q.Projection))
		for i, column := range q.Projection {
			record[i] = columnValue(m, column)
		}
		records = append(records, record)
	}
	return &memoryRows{records: records, pos: -1}, nil
}

type memoryRows struct {
	records [][]any
	pos     int
	closed  bool
}

func (r *memoryRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *memoryRows) Scan(dest ...any) error {
	if r.closed {
		return errors.New("inbox: rows are closed")
	}
	if r.pos < 0 || r.pos >= len(r.records) {
		return errors.New("inbox: scan called without a current row")
	}
	record := r.records[r.pos]
	if len(dest) != len(record) {
		return fmt.Errorf("inbox: expected %d scan destinations, got %d", len(record), len(dest))
	}
	for i, value := range record {
		if err := assign(dest[i], value); err != nil {
			return fmt.Errorf("inbox: column %d: %w", i, err)
		}
	}
	return nil
}

func (r *memoryRows) Err() error { return nil }

func (r *memoryRows) Close() error {
	r.closed = true
	return nil
}

func assign(dest any, value any) error {
	switch d := dest.(type) {
	case sql.Scanner:
		return d.Scan(value)
	case *any:
		*d = value
		return nil
	case *string:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("cannot assign %T to *string", value)
		}
		*d = s
		return nil
	case *int64:
		n, ok := value.(int64)
		if !ok {
			return fmt.Errorf("cannot assign %T to *int64", value)
		}
		*d = n
		return nil
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
}

func knownColumn(column Column) bool {
	switch column {
	case ColumnAddress, ColumnBody, ColumnDate:
		return true
	}
	return false
}

func columnValue(m Message, column Column) any {
	switch column {
	case ColumnAddress:
		if m.Address == nil {
			return nil
		}
		return *m.Address
	case ColumnBody:
		if m.Body == nil {
			return nil
		}
		return *m.Body
	default:
		return m.Date
	}
}

func lessBy(a Message, b Message, column Column) bool {
	if column == ColumnDate {
		return a.Date < b.Date
	}
	av, _ := columnValue(a, column).(string)
	bv, _ := columnValue(b, column).(string)
	return av < bv
}

func matchesFilter(m Message, f Filter) bool {
	if f.Contains == "" {
		return true
	}
	needle := asciiLower(f.Contains)
	for _, column := range f.Columns {
		value, ok := columnValue(m, column).(string)
		if !ok {
			continue
		}
		if strings.Contains(asciiLower(value), needle) {
			return true
		}
	}
	return false
}

// asciiLower folds only A-Z, matching SQLite's default LIKE.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
