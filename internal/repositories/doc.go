// Package repositories implements SQLite persistence for the admin client's local state.
//
// Key Implementations:
//   - [TokenRepository] : API token pair per profile, usable as a services.TokenStore
//   - [StreamRunRepository] : history of observed event stream sessions and their logs
//   - [EventRepository] : offline copy of the event listing, keyed by id and listing hash
//
// Stream runs carry sequence numbers for human-readable ordering (run #42) independent of UUIDs.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
// Runs are soft deleted via deleted_at and excluded from queries by default.
package repositories
