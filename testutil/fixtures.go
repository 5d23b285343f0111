// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spachava753/smsbridge/inbox"
)

// Telephony sms.type values.
const (
	TypeInbox = 1
	TypeSent  = 2
	TypeDraft = 3
)

// SMSRow is one row of the fixture sms table.
type SMSRow struct {
	Message inbox.Message
	Type    int
}

// Inbox wraps messages as received rows.
func Inbox(messages ...inbox.Message) []SMSRow {
	rows := make([]SMSRow, len(messages))
	for i, m := range messages {
		rows[i] = SMSRow{Message: m, Type: TypeInbox}
	}
	return rows
}

// Sent wraps messages as outgoing rows.
func Sent(messages ...inbox.Message) []SMSRow {
	rows := make([]SMSRow, len(messages))
	for i, m := range messages {
		rows[i] = SMSRow{Message: m, Type: TypeSent}
	}
	return rows
}

const smsSchema = `
CREATE TABLE IF NOT EXISTS sms (
	_id INTEGER PRIMARY KEY,
	thread_id INTEGER,
	address TEXT,
	person INTEGER,
	date INTEGER,
	date_sent INTEGER DEFAULT 0,
	protocol INTEGER,
	read INTEGER DEFAULT 0,
	status INTEGER DEFAULT -1,
	type INTEGER,
	reply_path_present INTEGER,
	subject TEXT,
	body TEXT,
	service_center TEXT,
	locked INTEGER DEFAULT 0,
	sub_id INTEGER DEFAULT -1,
	error_code INTEGER DEFAULT 0,
	creator TEXT,
	seen INTEGER DEFAULT 0
)`

// CreateSMSFixture writes an mmssms.db-shaped database at dbPath.
func CreateSMSFixture(t *testing.T, dbPath string, rows ...SMSRow) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(smsSchema); err != nil {
		t.Fatalf("Failed to create sms table: %v", err)
	}

	insert := "INSERT INTO sms (thread_id, address, date, type, body, read) VALUES (?, ?, ?, ?, ?, 0)"
	for i, row := range rows {
		if _, err := db.Exec(insert, i+1, nullable(row.Message.Address), row.Message.Date, row.Type, nullable(row.Message.Body)); err != nil {
			t.Fatalf("Failed to insert sms row %d: %v", i, err)
		}
	}
}

// SMSFixturePath creates a fixture in a fresh temp dir and returns its path.
func SMSFixturePath(t *testing.T, rows ...SMSRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmssms.db")
	CreateSMSFixture(t, path, rows...)
	return path
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
