// Package sqlite is a local document store driver backed by SQLite.
//
// Documents live in a single table keyed by their full path. Each row keeps
// the owning collection path and the document id so collection scans and
// listings stay index-only. Document data is stored as wire JSON produced by
// the codec, so every native kind (references, timestamps, geo points)
// survives a round trip.
//
// Queries are evaluated in Go against the collection's rows using
// Firestore's cross-type ordering:
//
//	null < bool < number < timestamp < string < bytes < reference < geo point < array < map
//
// Listen re-runs the query after every committed write that touches the
// collection. A subscription therefore sees every commit as one delivery.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection, so ":memory:" databases are shared by all callers
package sqlite
