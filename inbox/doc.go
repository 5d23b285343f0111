// Package inbox provides a bounded, filterable reader over an SMS inbox store.
//
// The package is the retrieval core behind the SMS method channel. It does not
// talk to any platform API itself: every read goes through a [Store], which is
// a read-only tabular source with column projection, an optional substring
// filter and a sort order.
//
// Exported API
//
//  1. New(store, opts...)
//     Build an [Adapter] over a store. WithLogger and WithMaxBound tune it.
//  2. Adapter.Fetch(ctx, count)
//     Up to count most recent messages, newest first. count <= 0 means 20.
//  3. Adapter.Search(ctx, query, limit)
//     Up to limit most recent messages whose address or body contains query.
//     limit <= 0 means 10. An empty query matches every message.
//
// Failure policy
//
// Fetch and Search never return an error. Authorization denial, a missing
// provider, a nil cursor, a bad row or a panicking store all produce an empty,
// non-nil slice. The cause is logged at warn level on the adapter logger so
// operators can still tell "no messages" apart from "access denied".
//
// Stores
//
//   - MemoryStore: in-process store for tests and demos. Matching mirrors
//     SQLite LIKE (ASCII case-insensitive).
//   - github.com/spachava753/smsbridge/android/telephony: the Android
//     telephony provider database.
//
// A store that also implements [Authorizer] is asked for access before the
// first query and on every later call until access is granted.
package inbox
