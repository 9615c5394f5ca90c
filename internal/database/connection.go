package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/rowline-app/rowline/internal/config"
	"github.com/rowline-app/rowline/internal/observability"
)

// slowQueryThreshold is how long a query may run before it is logged as slow.
const slowQueryThreshold = 500 * time.Millisecond

// Connection wraps a pgx connection pool for one configured database.
type Connection struct {
	pool    *pgxpool.Pool
	cfg     config.DatabaseConfig
	metrics *observability.Metrics
}

// Connect establishes a connection pool to the database described by cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig, metrics *observability.Metrics) (*Connection, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MinConns = cfg.MinConnections
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Int64("database_id", cfg.ID).
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", cfg.MaxConnections).
		Msg("Database connection established")

	return &Connection{pool: pool, cfg: cfg, metrics: metrics}, nil
}

// Query runs a query and records its latency. Slow queries are logged
// with their SQL so they can be traced back to the compiled predicate.
func (c *Connection) Query(ctx context.Context, operation, table, sql string, args ...interface{}) (pgx.Rows, error) {
	start := time.Now()
	rows, err := c.pool.Query(ctx, sql, args...)
	c.observe(operation, table, sql, time.Since(start), err)
	return rows, err
}

// QueryRow runs a single-row query and records its latency.
func (c *Connection) QueryRow(ctx context.Context, operation, table, sql string, args ...interface{}) pgx.Row {
	start := time.Now()
	row := c.pool.QueryRow(ctx, sql, args...)
	c.observe(operation, table, sql, time.Since(start), nil)
	return row
}

func (c *Connection) observe(operation, table, sql string, elapsed time.Duration, err error) {
	if c.metrics != nil {
		c.metrics.RecordDBQuery(operation, table, elapsed, err)
	}
	if elapsed > slowQueryThreshold {
		log.Warn().
			Int64("database_id", c.cfg.ID).
			Str("operation", operation).
			Dur("elapsed", elapsed).
			Str("sql", sql).
			Msg("Slow query")
	}
}

// Health checks whether the database is reachable.
func (c *Connection) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.pool.Ping(ctx)
}

// Stats returns pool statistics for diagnostics.
func (c *Connection) Stats() *pgxpool.Stat {
	return c.pool.Stat()
}

// Close closes the connection pool.
func (c *Connection) Close() {
	c.pool.Close()
	log.Info().Int64("database_id", c.cfg.ID).Msg("Database connection closed")
}
