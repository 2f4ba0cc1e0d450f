// Package fleet starts and supervises the whole run: N workload lanes, one
// reporter, and the end-of-run summary publication.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/proxyprobe/connector"
	"github.com/Konsultn-Engineering/proxyprobe/counter"
	"github.com/Konsultn-Engineering/proxyprobe/eventlog"
	"github.com/Konsultn-Engineering/proxyprobe/schema"
	"github.com/Konsultn-Engineering/proxyprobe/workload"
)

// Config fixes the shape of one run. Nothing is reloadable mid-run.
type Config struct {
	Lanes          int
	Table          string
	OpInterval     time.Duration
	RetryInterval  time.Duration
	ReportInterval time.Duration
	// Duration bounds the run; zero means run until externally cancelled.
	Duration time.Duration
}

// Archiver stores the final run summary. Fire-and-forget: a storage
// failure is logged, never propagated.
type Archiver interface {
	Put(ctx context.Context, key string, payload []byte) error
}

// Options wires a Coordinator's collaborators. Conn and Events are
// mandatory; the rest default sensibly.
type Options struct {
	Fleet    Config
	Conn     connector.Config
	Dial     connector.DialFunc
	Events   *eventlog.Log
	Diag     *zap.Logger
	Notifier connector.Notifier
	Archive  Archiver
	Out      io.Writer
}

// Coordinator runs the fleet until cancelled.
type Coordinator struct {
	cfg      Config
	conn     connector.Config
	dial     connector.DialFunc
	mgr      *connector.Manager
	events   *eventlog.Log
	counts   *counter.Set
	reporter *Reporter
	diag     *zap.Logger
	notifier connector.Notifier
	archive  Archiver
	runID    string
}

// New assembles a coordinator and its per-run state.
func New(opts Options) *Coordinator {
	cfg := opts.Fleet
	if cfg.Lanes <= 0 {
		cfg.Lanes = 1
	}
	if cfg.Table == "" {
		cfg.Table = schema.TableName(schema.DefaultBase)
	}

	dial := opts.Dial
	if dial == nil {
		dial = connector.OpenPostgres
	}
	diag := opts.Diag
	if diag == nil {
		diag = zap.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	counts := counter.NewSet()
	mgr := connector.NewManager(connector.ManagerConfig{
		Conn:          opts.Conn,
		RetryInterval: cfg.RetryInterval,
		Dial:          dial,
		Events:        opts.Events,
		Diag:          diag,
		Notifier:      opts.Notifier,
	})

	return &Coordinator{
		cfg:      cfg,
		conn:     opts.Conn,
		dial:     dial,
		mgr:      mgr,
		events:   opts.Events,
		counts:   counts,
		reporter: NewReporter(counts, cfg.ReportInterval, out),
		diag:     diag,
		notifier: opts.Notifier,
		archive:  opts.Archive,
		runID:    uuid.NewString(),
	}
}

// RunID identifies this run in archives and notifications.
func (c *Coordinator) RunID() string { return c.runID }

// Counters exposes the run's counter set, primarily for inspection.
func (c *Coordinator) Counters() *counter.Set { return c.counts }

// Run performs schema setup, starts every lane plus the reporter, and
// blocks until the run ends. The only error returned before cancellation
// is a setup failure: without the table no lane can make progress.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.setup(ctx); err != nil {
		return err
	}

	started := time.Now()
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.cfg.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Duration)
	}
	defer cancel()

	c.diag.Info("fleet starting",
		zap.String("run_id", c.runID),
		zap.Int("lanes", c.cfg.Lanes),
		zap.Duration("op_interval", c.cfg.OpInterval),
		zap.Duration("retry_interval", c.cfg.RetryInterval))

	var wg sync.WaitGroup
	for lane := 1; lane <= c.cfg.Lanes; lane++ {
		driver := workload.New(workload.Config{
			Lane:       lane,
			Table:      c.cfg.Table,
			OpInterval: c.cfg.OpInterval,
		}, c.mgr, c.events, c.counts, c.diag)

		wg.Add(1)
		go func(lane int) {
			defer wg.Done()
			err := driver.Run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				c.diag.Error("lane terminated", zap.Int("lane", lane), zap.Error(err))
			}
		}(lane)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.reporter.Run(runCtx)
	}()

	wg.Wait()

	c.reporter.Report()
	c.publishSummary(c.cfg.Lanes, started, time.Now())
	return nil
}

// setup ensures the test table exists before any lane starts. This is the
// one unrecoverable error in the whole system.
func (c *Coordinator) setup(ctx context.Context) error {
	conn, err := c.dial(ctx, 0, c.conn)
	if err != nil {
		return fmt.Errorf("setup: connect: %w", err)
	}
	defer conn.Close()

	if err := schema.EnsureTable(ctx, conn, c.cfg.Table); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	return nil
}

// publishSummary archives the final tallies and notifies, fire-and-forget.
// The run context is already cancelled here, so publication gets its own
// bounded one.
func (c *Coordinator) publishSummary(lanes int, started, finished time.Time) {
	s := newSummary(c.runID, lanes, started, finished, c.counts.Snapshot())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if c.archive != nil {
		payload, err := s.payload()
		if err != nil {
			c.diag.Error("summary encode failed", zap.Error(err))
		} else if err := c.archive.Put(ctx, s.archiveKey(), payload); err != nil {
			c.diag.Warn("summary archive failed", zap.String("key", s.archiveKey()), zap.Error(err))
		} else {
			c.diag.Info("summary archived", zap.String("key", s.archiveKey()))
		}
	}

	if c.notifier != nil {
		subject := fmt.Sprintf("proxyprobe run %s finished", c.runID)
		if err := c.notifier.Notify(ctx, subject, s.notifyBody()); err != nil {
			c.diag.Warn("summary notification failed", zap.Error(err))
		}
	}
}
