package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxConnection implements Connection over a pgx connection pool.
type pgxConnection struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// OpenPostgres establishes a PostgreSQL session for the given configuration.
// The pool is pinged before being handed out, so a returned Connection has
// proven reachability at least once. The lane shows up as application_name
// in pg_stat_activity.
func OpenPostgres(ctx context.Context, lane int, cfg Config) (Connection, error) {
	// Copy before annotating: the params map is shared across lanes.
	params := make(map[string]string, len(cfg.Params)+1)
	for k, v := range cfg.Params {
		params[k] = v
	}
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = fmt.Sprintf("proxyprobe-lane-%d", lane)
	}
	cfg.Params = params

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool := cfg.Pool
	if pool.MaxOpen <= 0 {
		pool.MaxOpen = 2
	}
	if pool.MaxIdle < 0 {
		pool.MaxIdle = 0
	}
	if pool.MaxLifetime == 0 {
		pool.MaxLifetime = time.Hour
	}
	if pool.MaxIdleTime == 0 {
		pool.MaxIdleTime = 30 * time.Minute
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(pool.MaxOpen)
	poolCfg.MinConns = int32(pool.MaxIdle)
	poolCfg.MaxConnLifetime = pool.MaxLifetime
	poolCfg.MaxConnIdleTime = pool.MaxIdleTime

	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &pgxConnection{pool: p, queryTimeout: cfg.QueryTimeout}, nil
}

// opCtx applies the per-call query timeout, when one is configured.
func (c *pgxConnection) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout > 0 {
		return context.WithTimeout(ctx, c.queryTimeout)
	}
	return ctx, func() {}
}

// Exec executes a statement and returns the affected row count.
func (c *pgxConnection) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// QueryRow executes a single-row query. The per-call timeout, if any, stays
// armed until Scan completes.
func (c *pgxConnection) QueryRow(ctx context.Context, sql string, args ...any) Row {
	ctx, cancel := c.opCtx(ctx)
	return &cancelRow{row: c.pool.QueryRow(ctx, sql, args...), cancel: cancel}
}

// Health verifies the session is alive.
func (c *pgxConnection) Health(ctx context.Context) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.pool.Ping(ctx)
}

// Stats returns connection pool statistics.
func (c *pgxConnection) Stats() Stats {
	s := c.pool.Stat()
	return Stats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
	}
}

// Close closes the pool. pgxpool tolerates repeated Close calls.
func (c *pgxConnection) Close() error {
	c.pool.Close()
	return nil
}

// cancelRow defers the timeout cancel until the row has been scanned.
type cancelRow struct {
	row    Row
	cancel context.CancelFunc
}

func (r *cancelRow) Scan(dest ...any) error {
	defer r.cancel()
	return r.row.Scan(dest...)
}
