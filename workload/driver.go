// Package workload runs one lane's operation loop: probe, insert, update,
// sleep. Any store failure sends the lane through the release/reacquire
// recovery path; no store error is ever fatal to the lane.
package workload

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/proxyprobe/connector"
	"github.com/Konsultn-Engineering/proxyprobe/counter"
	"github.com/Konsultn-Engineering/proxyprobe/eventlog"
	"github.com/Konsultn-Engineering/proxyprobe/schema"
)

// Config fixes one lane's identity and cadence.
type Config struct {
	Lane       int
	Table      string
	OpInterval time.Duration
}

// Driver owns one lane: its connection handle, its operation loop, and its
// counter entry. Nothing here is shared with other lanes except the event
// log and counter set, which guard themselves.
type Driver struct {
	lane     int
	interval time.Duration

	probeSQL  string
	insertSQL string
	updateSQL string

	mgr    *connector.Manager
	events *eventlog.Log
	counts *counter.Set
	diag   *zap.Logger

	conn connector.Connection
}

// New creates a driver for one lane.
func New(cfg Config, mgr *connector.Manager, events *eventlog.Log, counts *counter.Set, diag *zap.Logger) *Driver {
	if diag == nil {
		diag = zap.NewNop()
	}
	return &Driver{
		lane:      cfg.Lane,
		interval:  cfg.OpInterval,
		probeSQL:  schema.ProbeSQL,
		insertSQL: schema.InsertSQL(cfg.Table),
		updateSQL: schema.UpdateLatestSQL(cfg.Table),
		mgr:       mgr,
		events:    events,
		counts:    counts,
		diag:      diag.With(zap.Int("lane", cfg.Lane)),
	}
}

// Run drives the lane until ctx is cancelled or the event sink fails.
// A sink failure is deliberately lane-fatal: a silently failing logger
// would defeat the tool's purpose.
func (d *Driver) Run(ctx context.Context) error {
	conn, err := d.mgr.Acquire(ctx, d.lane)
	if err != nil {
		return err
	}
	d.conn = conn
	defer func() {
		if d.conn != nil {
			d.mgr.Discard(d.lane, d.conn)
			d.conn = nil
		}
	}()

	for {
		live, err := d.probe(ctx)
		if err != nil {
			return err
		}
		if !live {
			if err := d.recover(ctx); err != nil {
				return err
			}
			// Restart from the probe; the write phase is skipped this cycle.
			continue
		}

		ok, err := d.insert(ctx)
		if err != nil {
			return err
		}
		if !ok {
			if err := d.recover(ctx); err != nil {
				return err
			}
			continue
		}

		ok, err = d.update(ctx)
		if err != nil {
			return err
		}
		if !ok {
			if err := d.recover(ctx); err != nil {
				return err
			}
			continue
		}

		if err := connector.SleepCtx(ctx, d.interval); err != nil {
			return err
		}
	}
}

// probe issues the trivial liveness read. live=false routes the caller into
// recovery; a non-nil error is lane-fatal.
func (d *Driver) probe(ctx context.Context) (live bool, err error) {
	var now time.Time
	if err := d.conn.QueryRow(ctx, d.probeSQL).Scan(&now); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return false, cerr
		}
		d.diag.Warn("liveness probe failed", zap.Error(err))
		return false, d.events.Append(d.lane, eventlog.KindQueryFailed, err.Error())
	}
	return true, d.events.Append(d.lane, eventlog.KindQuerySuccess, now.Format(time.RFC3339Nano))
}

// insert creates a test row tagged with the lane id. A failure counts
// against the insert tally and, because the update phase is skipped, the
// update tally as well.
func (d *Driver) insert(ctx context.Context) (ok bool, err error) {
	if _, err := d.conn.Exec(ctx, d.insertSQL, d.lane); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return false, cerr
		}
		d.counts.IncInsertFail(d.lane)
		d.counts.IncUpdateFail(d.lane)
		d.diag.Warn("insert failed", zap.Error(err))
		return false, d.events.Append(d.lane, eventlog.KindDMLFailed, fmt.Sprintf("insert failed: %s", err))
	}
	d.counts.IncInsertOK(d.lane)
	return true, d.events.Append(d.lane, eventlog.KindInsertSuccess, "test row inserted")
}

// update stamps the most recently created row owned by this lane.
func (d *Driver) update(ctx context.Context) (ok bool, err error) {
	affected, uerr := d.conn.Exec(ctx, d.updateSQL, d.lane)
	if uerr != nil {
		if cerr := ctx.Err(); cerr != nil {
			return false, cerr
		}
		d.counts.IncUpdateFail(d.lane)
		d.diag.Warn("update failed", zap.Error(uerr))
		return false, d.events.Append(d.lane, eventlog.KindDMLFailed, fmt.Sprintf("update failed: %s", uerr))
	}
	d.counts.IncUpdateOK(d.lane)
	return true, d.events.Append(d.lane, eventlog.KindUpdateSuccess, fmt.Sprintf("updated %d row(s)", affected))
}

// recover retires the suspect handle and blocks until a fresh one is live.
func (d *Driver) recover(ctx context.Context) error {
	d.mgr.Release(d.lane, d.conn)
	d.conn = nil

	if err := d.events.Append(d.lane, eventlog.KindReconnect, "reacquiring session"); err != nil {
		return err
	}

	conn, err := d.mgr.Acquire(ctx, d.lane)
	if err != nil {
		return err
	}
	d.conn = conn
	return nil
}
