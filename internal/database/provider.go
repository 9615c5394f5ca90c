package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rowline-app/rowline/internal/config"
	"github.com/rowline-app/rowline/internal/observability"
)

// ErrUnknownDatabase is returned when a request names a database_id
// that is not configured.
var ErrUnknownDatabase = fmt.Errorf("unknown database id")

// Provider holds the connection pools for every configured database,
// keyed by the id RPC callers use to address them. The set is fixed at
// startup, so lookups need no locking.
type Provider struct {
	connections map[int64]*Connection
}

// NewProvider connects to every configured database. If any connection
// fails, the ones already opened are closed before returning.
func NewProvider(ctx context.Context, configs []config.DatabaseConfig, metrics *observability.Metrics) (*Provider, error) {
	p := &Provider{connections: make(map[int64]*Connection, len(configs))}
	for _, cfg := range configs {
		conn, err := Connect(ctx, cfg, metrics)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("database %d: %w", cfg.ID, err)
		}
		p.connections[cfg.ID] = conn
	}
	log.Info().Int("databases", len(p.connections)).Msg("Database provider ready")
	return p, nil
}

// Get returns the connection for the given database id.
func (p *Provider) Get(databaseID int64) (*Connection, error) {
	conn, ok := p.connections[databaseID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDatabase, databaseID)
	}
	return conn, nil
}

// Health checks every configured database and returns the first error.
func (p *Provider) Health(ctx context.Context) error {
	for id, conn := range p.connections {
		if err := conn.Health(ctx); err != nil {
			return fmt.Errorf("database %d: %w", id, err)
		}
	}
	return nil
}

// Close closes all connection pools.
func (p *Provider) Close() {
	for _, conn := range p.connections {
		conn.Close()
	}
}
