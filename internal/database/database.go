package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manuchak/detecta-core/config"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/metrics"
)

const (
	execTimeout   = 30 * time.Second
	healthTimeout = 5 * time.Second
	statsInterval = 30 * time.Second
)

// ErrNotConfigured is returned by reads when no DATABASE_URL was given
var ErrNotConfigured = errors.New("database not configured")

// DB wraps a pgx pool. A DB without a pool is valid and reports
// IsConfigured() == false so callers can fall back to in-memory state.
type DB struct {
	pool   *pgxpool.Pool
	cfg    config.DatabaseConfig
	cancel context.CancelFunc
}

// New creates a new database connection
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.URL == "" {
		logger.Info("DATABASE_URL not set; using in-memory store only")
		return &DB{cfg: cfg}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		logger.Debug("Database connection established", "pid", conn.PgConn().PID())
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	statsCtx, statsCancel := context.WithCancel(context.Background())
	db := &DB{pool: pool, cfg: cfg, cancel: statsCancel}
	go db.collectMetrics(statsCtx)

	logger.Info("Database connection established",
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)

	return db, nil
}

// Close stops the stats loop and closes the pool
func (d *DB) Close(ctx context.Context) {
	if d.cancel != nil {
		d.cancel()
	}
	if d.pool != nil {
		d.pool.Close()
		logger.Info("Database connection closed")
	}
}

func (d *DB) collectMetrics(ctx context.Context) {
	if d.pool == nil {
		return
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetDBConnectionsActive(float64(d.pool.Stat().AcquiredConns()))
		}
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Exec executes a statement. Without a pool it is a no-op.
func (d *DB) Exec(ctx context.Context, sql string, args ...any) error {
	if d.pool == nil {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	_, err := d.pool.Exec(ctx, sql, args...)
	logger.Debug("Database exec", "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		logger.Error("Database exec failed", "error", err)
	}
	metrics.RecordDBQuery("exec", statusOf(err))

	return err
}

// Query executes a query and returns pgx.Rows as interface{}. The rows stay
// bound to ctx, so no extra timeout is applied here.
func (d *DB) Query(ctx context.Context, sql string, args ...any) (interface{}, error) {
	if d.pool == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	rows, err := d.pool.Query(ctx, sql, args...)
	logger.Debug("Database query", "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		logger.Error("Database query failed", "error", err)
	}
	metrics.RecordDBQuery("query", statusOf(err))

	return rows, err
}

// QueryRow executes a query that returns a single row
func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) interface{} {
	if d.pool == nil {
		return nil
	}
	metrics.RecordDBQuery("query_row", "success")
	return d.pool.QueryRow(ctx, sql, args...)
}

// Health checks database connectivity
func (d *DB) Health(ctx context.Context) error {
	if d.pool == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	return d.pool.Ping(ctx)
}

// IsConfigured returns true if database is configured
func (d *DB) IsConfigured() bool {
	return d.pool != nil
}
