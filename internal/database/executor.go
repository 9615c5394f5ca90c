package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rowline-app/rowline/internal/records"
)

// Executor runs compiled record queries against the configured
// databases. It implements records.RowExecutor. All client-controlled
// values arrive as bound parameters inside the predicate; identifiers
// are quoted from the inspected schema, never from request input.
type Executor struct {
	provider *Provider
}

// NewExecutor creates a row executor on top of the provider.
func NewExecutor(provider *Provider) *Executor {
	return &Executor{provider: provider}
}

// SelectRows fetches rows matching the predicate, ordered and paged.
// Columns are selected in attnum order, and each row is decoded into a
// Record keyed by attnum.
func (e *Executor) SelectRows(ctx context.Context, databaseID int64, schema *records.TableSchema, pred *records.Predicate, orderBy string, limit, offset *int) ([]records.Record, error) {
	conn, err := e.provider.Get(databaseID)
	if err != nil {
		return nil, records.StorageError(err, "cannot select from %s", schema.Name)
	}

	attnums := schema.Attnums()
	cols := make([]string, len(attnums))
	for i, attnum := range attnums {
		cols[i] = quoteIdentifier(schema.Columns[attnum].Name)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(qualifiedName(schema))

	var args []interface{}
	if pred != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(pred.Clause)
		args = pred.Args
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	if limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *limit)
	}
	if offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}

	rows, err := conn.Query(ctx, "select_records", schema.Name, sb.String(), args...)
	if err != nil {
		return nil, wrapQueryError(err, schema.Name)
	}
	defer rows.Close()

	results := []records.Record{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, records.StorageError(err, "failed to decode row from %s", schema.Name)
		}
		record := make(records.Record, len(attnums))
		for i, attnum := range attnums {
			record[attnum] = values[i]
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError(err, schema.Name)
	}

	return results, nil
}

// CountRows counts all rows matching the predicate, independent of any
// page window.
func (e *Executor) CountRows(ctx context.Context, databaseID int64, schema *records.TableSchema, pred *records.Predicate) (int64, error) {
	conn, err := e.provider.Get(databaseID)
	if err != nil {
		return 0, records.StorageError(err, "cannot count %s", schema.Name)
	}

	var sb strings.Builder
	sb.WriteString("SELECT count(*) FROM ")
	sb.WriteString(qualifiedName(schema))

	var args []interface{}
	if pred != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(pred.Clause)
		args = pred.Args
	}

	var count int64
	err = conn.QueryRow(ctx, "count_records", schema.Name, sb.String(), args...).Scan(&count)
	if err != nil {
		return 0, wrapQueryError(err, schema.Name)
	}
	return count, nil
}

// qualifiedName returns the schema-qualified, quoted table name.
func qualifiedName(schema *records.TableSchema) string {
	return quoteIdentifier(schema.Schema) + "." + quoteIdentifier(schema.Name)
}

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
