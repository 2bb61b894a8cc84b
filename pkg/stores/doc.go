// Package stores provides the persistence layer for stasis capsules.
// It includes SQLite-based storage with WAL mode, connection pooling,
// embedded migrations, and an audit trail of store mutations.
package stores
