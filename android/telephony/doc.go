// Package telephony reads the Android SMS inbox straight from the telephony
// provider database.
//
// The package implements [inbox.Store] and [inbox.Authorizer] so it can sit
// behind an [inbox.Adapter]. It is read-only.
//
// Data source
//
//   - SQLite (mmssms.db, table sms): the backing store of the
//     content://sms/inbox provider. Only rows with type = 1 (inbox) are read.
//     The default location is
//     /data/data/com.android.providers.telephony/databases/mmssms.db.
//
// Exported API
//
//  1. New(path, opts...)
//     Build a Store. No I/O happens until the first call.
//  2. Store.AuthorizationStatus()
//     Check whether the process can read the database file.
//  3. Store.RequestAccess(ctx)
//     Resolve access before reading. There is no interactive prompt outside
//     the Android runtime, so this returns an *Error with
//     ErrorCodePermissionDenied when the file is not readable.
//  4. Store.Query(ctx, query)
//     Run a projected, filtered, ordered read and return a cursor. Closing the
//     cursor also closes the database handle.
//
// Query mapping
//
//	SELECT address, body, date FROM sms
//	WHERE type = 1 AND (address LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')
//	ORDER BY date DESC
//	LIMIT ?
//
// The filter text is escaped so that %, _ and \ match literally. An empty
// filter adds no predicate, so rows with NULL address and body still match.
// LIKE is ASCII case-insensitive in SQLite.
//
// Operational notes
//
//   - SQLite access uses github.com/mattn/go-sqlite3 (CGO required).
//   - Reading the provider database directly requires root or the
//     telephony provider's uid on a real device.
package telephony
