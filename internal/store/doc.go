// Package store persists deployments, their event logs and the audit trail.
//
// # Data Models
//
//   - Deployment: one AccessControl instance and the token bound to it
//   - AccessEventRecord: AdminChanged / AuthorizationChanged notifications
//   - TokenEventRecord: mints and transfers
//   - AuditEntry: every call, accepted or rejected
//
// Event logs are append-only. In-memory state is never stored directly; the
// ledger rebuilds it at startup by replaying the logs.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Two drivers are registered: "sqlite" (modernc.org/sqlite, pure Go, the
// default) and "sqlite3" (github.com/mattn/go-sqlite3, needs cgo).
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package store
