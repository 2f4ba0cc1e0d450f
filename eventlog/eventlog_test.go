package eventlog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppendWritesHeaderAndRecord(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)

	require.NoError(t, l.Append(3, KindConnected, "session established"))

	rows := readAll(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"record_id", "timestamp", "lane", "event", "message"}, rows[0])

	rec := rows[1]
	assert.Len(t, rec[0], 26) // ULID text form
	_, err := time.Parse(time.RFC3339Nano, rec[1])
	assert.NoError(t, err)
	assert.Equal(t, "lane-3", rec[2])
	assert.Equal(t, "connected", rec[3])
	assert.Equal(t, "session established", rec[4])
}

func TestAppendPreservesPerLaneOrder(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)

	require.NoError(t, l.Append(1, KindQueryFailed, "probe lost"))
	require.NoError(t, l.Append(1, KindReconnect, "reacquiring session"))
	require.NoError(t, l.Append(1, KindConnected, "session established"))

	rows := readAll(t, &buf)
	require.Len(t, rows, 4)
	assert.Equal(t, "query_failed", rows[1][3])
	assert.Equal(t, "reconnect", rows[2][3])
	assert.Equal(t, "connected", rows[3][3])

	// Record ids are monotonic, so order survives a sort by id.
	assert.Less(t, rows[1][0], rows[2][0])
	assert.Less(t, rows[2][0], rows[3][0])
}

func TestAppendConcurrentLanes(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)

	const lanes = 8
	const perLane = 50

	var wg sync.WaitGroup
	for lane := 1; lane <= lanes; lane++ {
		wg.Add(1)
		go func(lane int) {
			defer wg.Done()
			for i := 0; i < perLane; i++ {
				assert.NoError(t, l.Append(lane, KindQuerySuccess, fmt.Sprintf("cycle %d", i)))
			}
		}(lane)
	}
	wg.Wait()

	rows := readAll(t, &buf)
	require.Len(t, rows, 1+lanes*perLane)

	// No torn rows: every record parses with the full field set.
	for _, rec := range rows[1:] {
		assert.Len(t, rec, 5)
	}
}

func TestCreateTruncatesExistingSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale contents\n"), 0o644))

	l, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(1, KindConnected, "ok"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale contents")
	assert.Contains(t, string(data), "record_id,timestamp,lane,event,message")
	assert.Contains(t, string(data), "lane-1,connected,ok")
}

func TestAppendAfterCloseReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	l, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assert.Error(t, l.Append(1, KindConnected, "late"))
}

func TestLaneLabel(t *testing.T) {
	assert.Equal(t, "lane-1", LaneLabel(1))
	assert.Equal(t, "lane-12", LaneLabel(12))
}
