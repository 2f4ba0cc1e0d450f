// Package eventlog provides the append-only record stream that every lane
// writes its lifecycle transitions and operation outcomes to.
package eventlog

import (
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the kind of lifecycle event a record describes.
type Kind string

const (
	KindConnected        Kind = "connected"
	KindConnectionFailed Kind = "connection_failed"
	KindQuerySuccess     Kind = "query_success"
	KindQueryFailed      Kind = "query_failed"
	KindInsertSuccess    Kind = "insert_success"
	KindInsertFail       Kind = "insert_fail"
	KindUpdateSuccess    Kind = "update_success"
	KindUpdateFail       Kind = "update_fail"
	KindDMLFailed        Kind = "dml_failed"
	KindReconnect        Kind = "reconnect"
)

// Record is one immutable event log entry.
type Record struct {
	ID      string
	Time    time.Time
	Lane    string
	Kind    Kind
	Message string
}

var header = []string{"record_id", "timestamp", "lane", "event", "message"}

// Log is a mutex-guarded append-only event sink. Appends are synchronous,
// so records from one lane land in the order the lane produced them.
type Log struct {
	mu      sync.Mutex
	csv     *csv.Writer
	closer  io.Closer
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// Create truncates (or creates) the file at path and starts a fresh log
// with a header row. One sink exists per run.
func Create(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	l := NewWriter(f)
	l.closer = f
	return l, nil
}

// NewWriter starts a log on an arbitrary writer. The header row is written
// immediately; it surfaces on the first Append if the writer is broken.
func NewWriter(w io.Writer) *Log {
	cw := csv.NewWriter(w)
	_ = cw.Write(header)
	cw.Flush()
	return &Log{
		csv:     cw,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Append writes one record for the given lane. Records are flushed
// per append so an abrupt termination loses at most the in-flight record.
// An append failure means observability is gone; callers treat it as
// fatal to the lane.
func (l *Log) Append(lane int, kind Kind, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), l.entropy)
	if err != nil {
		return fmt.Errorf("event record id: %w", err)
	}

	rec := []string{
		id.String(),
		now.Format(time.RFC3339Nano),
		LaneLabel(lane),
		string(kind),
		message,
	}
	if err := l.csv.Write(rec); err != nil {
		return fmt.Errorf("append event record: %w", err)
	}
	l.csv.Flush()
	if err := l.csv.Error(); err != nil {
		return fmt.Errorf("flush event record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.csv.Flush()
	if l.closer != nil {
		return l.closer.Close()
	}
	return l.csv.Error()
}

// LaneLabel renders the lane ordinal as the label used in the sink.
func LaneLabel(lane int) string {
	return fmt.Sprintf("lane-%d", lane)
}
