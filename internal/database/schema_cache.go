package database

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rowline-app/rowline/internal/records"
)

type cacheKey struct {
	databaseID int64
	tableOID   uint32
}

type cacheEntry struct {
	schema    *records.TableSchema
	expiresAt time.Time
}

// SchemaCache caches inspected table schemas with a TTL so every
// request does not hit the catalogs. It implements
// records.SchemaResolver. Entries expire rather than invalidate
// precisely, so a DDL change is visible within one TTL.
type SchemaCache struct {
	provider  *Provider
	inspector *Inspector
	ttl       time.Duration

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// NewSchemaCache creates a schema cache on top of the provider.
func NewSchemaCache(provider *Provider, inspector *Inspector, ttl time.Duration) *SchemaCache {
	return &SchemaCache{
		provider:  provider,
		inspector: inspector,
		ttl:       ttl,
		entries:   make(map[cacheKey]cacheEntry),
	}
}

// ResolveTable returns the table's schema, inspecting the catalogs on
// a cache miss or an expired entry.
func (sc *SchemaCache) ResolveTable(ctx context.Context, databaseID int64, tableOID uint32) (*records.TableSchema, error) {
	key := cacheKey{databaseID: databaseID, tableOID: tableOID}

	sc.mu.RLock()
	entry, ok := sc.entries[key]
	sc.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.schema, nil
	}

	conn, err := sc.provider.Get(databaseID)
	if err != nil {
		return nil, err
	}
	schema, err := sc.inspector.InspectTable(ctx, conn, tableOID)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	sc.entries[key] = cacheEntry{schema: schema, expiresAt: time.Now().Add(sc.ttl)}
	sc.mu.Unlock()

	log.Debug().
		Int64("database_id", databaseID).
		Uint32("table_oid", tableOID).
		Msg("Schema cached")

	return schema, nil
}

// Invalidate drops the cached schema for one table.
func (sc *SchemaCache) Invalidate(databaseID int64, tableOID uint32) {
	sc.mu.Lock()
	delete(sc.entries, cacheKey{databaseID: databaseID, tableOID: tableOID})
	sc.mu.Unlock()
}

// InvalidateDatabase drops all cached schemas for one database.
func (sc *SchemaCache) InvalidateDatabase(databaseID int64) {
	sc.mu.Lock()
	for key := range sc.entries {
		if key.databaseID == databaseID {
			delete(sc.entries, key)
		}
	}
	sc.mu.Unlock()
}
