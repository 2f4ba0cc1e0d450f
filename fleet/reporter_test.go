package fleet

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/proxyprobe/counter"
)

func TestReportFormatsEveryLaneInOrder(t *testing.T) {
	counts := counter.NewSet()
	counts.IncInsertOK(2)
	counts.IncInsertOK(2)
	counts.IncUpdateOK(2)
	counts.IncInsertOK(1)
	counts.IncInsertFail(1)
	counts.IncUpdateFail(1)

	var buf bytes.Buffer
	r := NewReporter(counts, time.Second, &buf)
	r.now = func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }

	r.Report()

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "---- operation summary 2026-08-29T10:00:00Z ----", lines[0])
	assert.Equal(t, "lane-1: insert ok/fail 1/1, update ok/fail 0/1", lines[1])
	assert.Equal(t, "lane-2: insert ok/fail 2/0, update ok/fail 1/0", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "-----"))
}

func TestReporterRunEmitsPeriodically(t *testing.T) {
	counts := counter.NewSet()
	counts.IncInsertOK(1)

	var buf syncBuffer
	r := NewReporter(counts, 5*time.Millisecond, &buf)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	blocks := strings.Count(string(buf.Bytes()), "operation summary")
	assert.GreaterOrEqual(t, blocks, 2)
}

func TestSummaryKeyAndBody(t *testing.T) {
	started := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	snap := map[int]counter.Counts{
		1: {InsertOK: 10, UpdateOK: 9, UpdateFail: 1},
		2: {InsertOK: 8, InsertFail: 2, UpdateOK: 8, UpdateFail: 2},
	}

	s := newSummary("run-abc", 2, started, finished, snap)

	assert.Equal(t, "proxyprobe-results/run-abc/2026/08/29/100130.json", s.archiveKey())

	body := s.notifyBody()
	assert.Contains(t, body, "run run-abc finished")
	assert.Contains(t, body, "2 lanes")
	assert.Contains(t, body, "35 operations succeeded")
	assert.Contains(t, body, "5 failed")
	assert.Contains(t, body, "1m30s")
}
