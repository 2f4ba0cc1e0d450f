// Package connectortest provides an in-memory stand-in for the backing
// store, with dial- and session-level failure injection for exercising
// recovery paths without a live database.
package connectortest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Konsultn-Engineering/proxyprobe/connector"
)

// ErrUnreachable is returned by Dial while the store is marked unreachable.
var ErrUnreachable = errors.New("store unreachable: connection refused")

// ErrSevered is returned by operations on a session whose lane has been
// severed since the session was established.
var ErrSevered = errors.New("connection severed: unexpected EOF")

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("connection closed")

// TestRow mirrors the persisted test table row.
type TestRow struct {
	ID      int64
	Lane    int
	Created time.Time
	Updated *time.Time
}

// Store is a shared in-memory database. Sessions handed out by Dial all
// operate on the same row set, the way lanes share one physical store.
type Store struct {
	mu          sync.Mutex
	nextID      int64
	clock       time.Time
	rows        []*TestRow
	tables      map[string]int
	unreachable     bool
	laneUnreachable map[int]bool
	failDials       int
	failInserts     int
	failUpdates     int
	severed         map[int]bool
	dials           int
}

// ErrDMLRejected stands in for a statement-level failure on a live session,
// such as a constraint violation.
var ErrDMLRejected = errors.New("statement rejected by server")

// NewStore returns an empty reachable store.
func NewStore() *Store {
	return &Store{
		nextID:          1,
		clock:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		tables:          make(map[string]int),
		severed:         make(map[int]bool),
		laneUnreachable: make(map[int]bool),
	}
}

// Dial implements connector.DialFunc against this store. Dialing a severed
// lane heals it, modelling the proxy routing the client to a healthy
// endpoint.
func (s *Store) Dial(ctx context.Context, lane int, _ connector.Config) (connector.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dials++
	if s.unreachable || s.laneUnreachable[lane] {
		return nil, ErrUnreachable
	}
	if s.failDials > 0 {
		s.failDials--
		return nil, ErrUnreachable
	}
	delete(s.severed, lane)
	return &Conn{store: s, lane: lane}, nil
}

// SetUnreachable makes every subsequent dial fail (true) or succeed (false).
func (s *Store) SetUnreachable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreachable = v
}

// SetLaneUnreachable makes dials for one lane fail while dials for other
// lanes keep working.
func (s *Store) SetLaneUnreachable(lane int, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.laneUnreachable[lane] = true
	} else {
		delete(s.laneUnreachable, lane)
	}
}

// FailNextDials makes the next n dials fail regardless of lane.
func (s *Store) FailNextDials(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDials = n
}

// FailNextInserts makes the next n insert statements fail on an otherwise
// live session.
func (s *Store) FailNextInserts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInserts = n
}

// FailNextUpdates makes the next n update statements fail on an otherwise
// live session.
func (s *Store) FailNextUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdates = n
}

// Sever breaks every existing session for the lane. The next dial for the
// lane succeeds.
func (s *Store) Sever(lane int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.severed[lane] = true
}

// Dials reports how many dial attempts the store has seen.
func (s *Store) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// CreateCount reports how many times DDL ran for the table.
func (s *Store) CreateCount(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[table]
}

// Rows returns copies of the lane's rows in creation order.
func (s *Store) Rows(lane int) []TestRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TestRow
	for _, r := range s.rows {
		if r.Lane != lane {
			continue
		}
		cp := *r
		if r.Updated != nil {
			u := *r.Updated
			cp.Updated = &u
		}
		out = append(out, cp)
	}
	return out
}

// tick advances the store clock so every server-assigned timestamp is
// strictly later than the previous one.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// Conn is one fake session bound to a lane.
type Conn struct {
	store  *Store
	lane   int
	mu     sync.Mutex
	closed bool
}

func (c *Conn) check() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.severed[c.lane] {
		return ErrSevered
	}
	return nil
}

// Exec interprets the DDL, insert and update statements the exerciser
// issues. Unknown statements fail loudly so a drifted query text cannot
// silently pass tests.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := c.check(); err != nil {
		return 0, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	switch {
	case strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS"):
		fields := strings.Fields(sql)
		c.store.tables[fields[5]]++
		return 0, nil

	case strings.HasPrefix(sql, "INSERT INTO"):
		lane, err := argLane(args)
		if err != nil {
			return 0, err
		}
		if c.store.failInserts > 0 {
			c.store.failInserts--
			return 0, ErrDMLRejected
		}
		c.store.rows = append(c.store.rows, &TestRow{
			ID:      c.store.nextID,
			Lane:    lane,
			Created: c.store.tick(),
		})
		c.store.nextID++
		return 1, nil

	case strings.HasPrefix(sql, "UPDATE"):
		lane, err := argLane(args)
		if err != nil {
			return 0, err
		}
		if c.store.failUpdates > 0 {
			c.store.failUpdates--
			return 0, ErrDMLRejected
		}
		var latest *TestRow
		for _, r := range c.store.rows {
			if r.Lane == lane && (latest == nil || r.Created.After(latest.Created)) {
				latest = r
			}
		}
		if latest == nil {
			return 0, nil
		}
		u := c.store.tick()
		latest.Updated = &u
		return 1, nil

	default:
		return 0, errors.New("unrecognized statement: " + sql)
	}
}

// QueryRow answers the liveness probe.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) connector.Row {
	if err := ctx.Err(); err != nil {
		return errRow{err}
	}
	if err := c.check(); err != nil {
		return errRow{err}
	}
	if !strings.HasPrefix(sql, "SELECT now()") {
		return errRow{errors.New("unrecognized query: " + sql)}
	}

	c.store.mu.Lock()
	now := c.store.tick()
	c.store.mu.Unlock()
	return timeRow{now}
}

// Health reports severance the same way an operation would.
func (c *Conn) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.check()
}

// Stats reports a single open session while the conn is usable.
func (c *Conn) Stats() connector.Stats {
	if c.check() != nil {
		return connector.Stats{}
	}
	return connector.Stats{OpenConnections: 1, Idle: 1}
}

// Close retires the session.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func argLane(args []any) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one statement parameter")
	}
	lane, ok := args[0].(int)
	if !ok {
		return 0, errors.New("lane parameter must be an int")
	}
	return lane, nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type timeRow struct{ t time.Time }

func (r timeRow) Scan(dest ...any) error {
	if len(dest) != 1 {
		return errors.New("expected one scan destination")
	}
	p, ok := dest[0].(*time.Time)
	if !ok {
		return errors.New("scan destination must be *time.Time")
	}
	*p = r.t
	return nil
}
