package schema

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"probe_row", "probe_rows"},
		{"ProbeRow", "probe_rows"},
		{"testEntry", "test_entries"},
		{"DBCheck", "db_checks"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, TableName(tt.in))
		})
	}
}

type recordingExecer struct {
	stmts []string
	err   error
}

func (e *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	e.stmts = append(e.stmts, sql)
	return 0, e.err
}

func TestEnsureTableIdempotent(t *testing.T) {
	db := &recordingExecer{}

	require.NoError(t, EnsureTable(context.Background(), db, "probe_rows"))
	require.NoError(t, EnsureTable(context.Background(), db, "probe_rows"))

	require.Len(t, db.stmts, 2)
	for _, stmt := range db.stmts {
		assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS probe_rows")
	}
}

func TestEnsureTableWrapsError(t *testing.T) {
	db := &recordingExecer{err: errors.New("permission denied")}

	err := EnsureTable(context.Background(), db, "probe_rows")
	require.ErrorContains(t, err, "ensure table probe_rows")
	require.ErrorContains(t, err, "permission denied")
}

func TestStatements(t *testing.T) {
	ddl := CreateTableSQL("probe_rows")
	assert.Contains(t, ddl, "id BIGSERIAL PRIMARY KEY")
	assert.Contains(t, ddl, "lane_id INTEGER NOT NULL")
	assert.Contains(t, ddl, "created_at TIMESTAMPTZ NOT NULL DEFAULT now()")
	assert.Contains(t, ddl, "updated_at TIMESTAMPTZ")

	insert := InsertSQL("probe_rows")
	assert.Equal(t, "INSERT INTO probe_rows (lane_id, created_at) VALUES ($1, now())", insert)

	update := UpdateLatestSQL("probe_rows")
	assert.Contains(t, update, "ORDER BY created_at DESC LIMIT 1")
	assert.Equal(t, 1, strings.Count(update, "$1"), "update is parameterized by lane only")
}
