// Package connector owns the lifecycle of each lane's database session:
// establishing it, detecting loss, retrying until the store is reachable
// again, and narrating every transition to the event log.
package connector

import "context"

// Connection is one lane's live session to the backing store. A lane holds
// at most one at a time; replacing it always retires the prior one through
// Manager.Release.
type Connection interface {
	// Exec runs a statement and returns the number of rows it affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	// QueryRow runs a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row
	// Health verifies the session is still usable.
	Health(ctx context.Context) error
	// Stats reports pool statistics for the session.
	Stats() Stats
	// Close releases the session. Safe to call more than once.
	Close() error
}

// Row is the result of a single-row query.
type Row interface {
	Scan(dest ...any) error
}

// Stats represents connection pool statistics.
type Stats struct {
	OpenConnections int
	InUse           int
	Idle            int
}

// DialFunc opens a session to the store for one lane. The production
// implementation is OpenPostgres; tests substitute scripted dialers.
type DialFunc func(ctx context.Context, lane int, cfg Config) (Connection, error)
