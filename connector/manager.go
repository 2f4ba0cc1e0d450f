package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/proxyprobe/eventlog"
)

// State describes where a lane's session currently is in its lifecycle.
type State int

const (
	StateAbsent State = iota
	StateEstablishing
	StateLive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateEstablishing:
		return "establishing"
	case StateLive:
		return "live"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Notifier receives out-of-band outage and recovery notices. Calls are
// fire-and-forget; failures are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// ManagerConfig wires a Manager's collaborators. Events is mandatory; a nil
// Dial defaults to OpenPostgres and a nil Diag to a no-op logger.
type ManagerConfig struct {
	Conn          Config
	RetryInterval time.Duration
	Dial          DialFunc
	Events        *eventlog.Log
	Diag          *zap.Logger
	Notifier      Notifier
}

// Manager owns session lifecycle for every lane: it establishes sessions,
// retires failed ones, and retries until the store becomes reachable again.
// Per-lane state is tracked so recovery duration can be reported when a
// severed lane reconnects.
type Manager struct {
	cfg      Config
	retry    time.Duration
	dial     DialFunc
	events   *eventlog.Log
	diag     *zap.Logger
	notifier Notifier

	mu     sync.Mutex
	states map[int]State
	downAt map[int]time.Time

	now func() time.Time
}

// NewManager creates a connection manager.
func NewManager(mc ManagerConfig) *Manager {
	dial := mc.Dial
	if dial == nil {
		dial = OpenPostgres
	}
	diag := mc.Diag
	if diag == nil {
		diag = zap.NewNop()
	}
	return &Manager{
		cfg:      mc.Conn,
		retry:    mc.RetryInterval,
		dial:     dial,
		events:   mc.Events,
		diag:     diag,
		notifier: mc.Notifier,
		states:   make(map[int]State),
		downAt:   make(map[int]time.Time),
		now:      time.Now,
	}
}

// Acquire blocks until a live session is obtained for the lane or ctx is
// cancelled. Every failed attempt logs connection_failed and waits the retry
// interval; there is no attempt cap, since a failover may outlast any
// reasonable one. Success logs connected, with the outage duration when the
// lane is recovering from a loss.
func (m *Manager) Acquire(ctx context.Context, lane int) (Connection, error) {
	for {
		m.setState(lane, StateEstablishing)

		conn, err := m.dial(ctx, lane, m.cfg)
		if err == nil {
			return conn, m.established(lane, conn)
		}

		m.markFailed(lane)
		m.diag.Warn("connection attempt failed",
			zap.Int("lane", lane),
			zap.Error(err),
			zap.Duration("retry_in", m.retry))

		if aerr := m.events.Append(lane, eventlog.KindConnectionFailed, err.Error()); aerr != nil {
			return nil, aerr
		}
		if werr := SleepCtx(ctx, m.retry); werr != nil {
			m.setState(lane, StateAbsent)
			return nil, werr
		}
	}
}

// established records a successful acquisition and logs connected.
func (m *Manager) established(lane int, conn Connection) error {
	m.mu.Lock()
	down, wasDown := m.downAt[lane]
	delete(m.downAt, lane)
	m.states[lane] = StateLive
	m.mu.Unlock()

	msg := "session established"
	if wasDown {
		outage := m.now().Sub(down).Round(time.Millisecond)
		msg = fmt.Sprintf("session established (recovered after %s)", outage)
		m.notify(
			fmt.Sprintf("%s recovered", eventlog.LaneLabel(lane)),
			fmt.Sprintf("%s reconnected after %s of lost connectivity", eventlog.LaneLabel(lane), outage),
		)
		m.diag.Info("lane recovered", zap.Int("lane", lane), zap.Duration("outage", outage))
	}

	if err := m.events.Append(lane, eventlog.KindConnected, msg); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// Release retires a lane's session. This is the sole recovery entry point:
// the workload calls Release then Acquire; there is no partial repair.
func (m *Manager) Release(lane int, conn Connection) {
	if conn != nil {
		_ = conn.Close()
	}

	m.mu.Lock()
	prev := m.states[lane]
	m.states[lane] = StateFailed
	if _, ok := m.downAt[lane]; !ok {
		m.downAt[lane] = m.now()
	}
	m.mu.Unlock()

	if prev == StateLive {
		m.notify(
			fmt.Sprintf("%s lost its session", eventlog.LaneLabel(lane)),
			fmt.Sprintf("%s released a failed session and is reconnecting", eventlog.LaneLabel(lane)),
		)
	}
}

// Discard closes a lane's session at shutdown without treating it as an
// outage: no failure state, no notification.
func (m *Manager) Discard(lane int, conn Connection) {
	if conn != nil {
		_ = conn.Close()
	}
	m.setState(lane, StateAbsent)
}

// State reports the lane's current lifecycle state.
func (m *Manager) State(lane int) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[lane]
}

func (m *Manager) setState(lane int, s State) {
	m.mu.Lock()
	m.states[lane] = s
	m.mu.Unlock()
}

// markFailed flags the lane down, keeping the earliest failure time so the
// eventual recovery duration spans the whole outage.
func (m *Manager) markFailed(lane int) {
	m.mu.Lock()
	m.states[lane] = StateFailed
	if _, ok := m.downAt[lane]; !ok {
		m.downAt[lane] = m.now()
	}
	m.mu.Unlock()
}

// notify publishes out-of-band without blocking the retry loop.
func (m *Manager) notify(subject, body string) {
	if m.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.notifier.Notify(ctx, subject, body); err != nil {
			m.diag.Debug("notify failed", zap.String("subject", subject), zap.Error(err))
		}
	}()
}
