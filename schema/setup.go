// Package schema owns the test table: its name, its DDL, and the three
// statements the workload issues against it.
package schema

import (
	"context"
	"fmt"
)

// DefaultBase is the singular base name the test table derives from.
const DefaultBase = "probe_row"

// Execer is the slice of a database session that setup needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// EnsureTable creates the test table if it does not exist. Safe to invoke
// repeatedly; an error here is fatal to startup since no lane can make
// progress without the table.
func EnsureTable(ctx context.Context, db Execer, table string) error {
	if _, err := db.Exec(ctx, CreateTableSQL(table)); err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}

// CreateTableSQL returns the idempotent DDL for the test table.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	lane_id INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ
)`, table)
}

// ProbeSQL is the trivial liveness read issued at the top of every cycle.
const ProbeSQL = `SELECT now()`

// InsertSQL returns the statement that creates a test row for a lane with a
// server-assigned creation timestamp.
func InsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (lane_id, created_at) VALUES ($1, now())`, table)
}

// UpdateLatestSQL returns the statement that stamps updated_at on the single
// most recently created row for a lane. The subquery's order-by plus limit
// one is load-bearing: widening it to multiple rows changes failure
// semantics under concurrent lanes.
func UpdateLatestSQL(table string) string {
	return fmt.Sprintf(`UPDATE %s SET updated_at = now()
WHERE id = (SELECT id FROM %s WHERE lane_id = $1 ORDER BY created_at DESC LIMIT 1)`, table, table)
}
