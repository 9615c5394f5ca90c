package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rowline-app/rowline/internal/records"
)

// ErrTableNotFound is returned when a table OID does not resolve to a
// relation visible to the connection.
var ErrTableNotFound = fmt.Errorf("table not found")

// Inspector discovers table structure from the PostgreSQL catalogs at
// request time. Nothing about table shape is configured ahead of time;
// the catalogs are the single source of truth.
type Inspector struct{}

// NewInspector creates a schema inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

const tableQuery = `
	SELECT n.nspname, c.relname
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE c.oid = $1 AND c.relkind IN ('r', 'p', 'v', 'm', 'f')`

const columnsQuery = `
	SELECT a.attnum, a.attname, format_type(a.atttypid, a.atttypmod),
	       t.typcategory, NOT a.attnotnull
	FROM pg_catalog.pg_attribute a
	JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
	WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
	ORDER BY a.attnum`

const primaryKeyQuery = `
	SELECT k.attnum::int
	FROM pg_catalog.pg_index i,
	     LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord)
	WHERE i.indrelid = $1 AND i.indisprimary
	ORDER BY k.ord`

// InspectTable resolves the table identified by oid into its current
// column set and primary key.
func (i *Inspector) InspectTable(ctx context.Context, conn *Connection, oid uint32) (*records.TableSchema, error) {
	schema := &records.TableSchema{
		OID:     oid,
		Columns: make(map[int]records.Column),
	}

	err := conn.QueryRow(ctx, "inspect_table", "pg_class", tableQuery, oid).
		Scan(&schema.Schema, &schema.Name)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: oid %d", ErrTableNotFound, oid)
		}
		return nil, records.StorageError(err, "failed to resolve table oid %d", oid)
	}

	rows, err := conn.Query(ctx, "inspect_columns", schema.Name, columnsQuery, oid)
	if err != nil {
		return nil, records.StorageError(err, "failed to list columns of %s", schema.Name)
	}
	defer rows.Close()
	for rows.Next() {
		var col records.Column
		var category string
		if err := rows.Scan(&col.Attnum, &col.Name, &col.DataType, &category, &col.IsNullable); err != nil {
			return nil, records.StorageError(err, "failed to scan column of %s", schema.Name)
		}
		if len(category) > 0 {
			col.TypeCategory = category[0]
		}
		schema.Columns[col.Attnum] = col
	}
	if err := rows.Err(); err != nil {
		return nil, records.StorageError(err, "failed to list columns of %s", schema.Name)
	}

	pkRows, err := conn.Query(ctx, "inspect_pkey", schema.Name, primaryKeyQuery, oid)
	if err != nil {
		return nil, records.StorageError(err, "failed to read primary key of %s", schema.Name)
	}
	defer pkRows.Close()
	for pkRows.Next() {
		var attnum int
		if err := pkRows.Scan(&attnum); err != nil {
			return nil, records.StorageError(err, "failed to scan primary key of %s", schema.Name)
		}
		schema.PrimaryKey = append(schema.PrimaryKey, attnum)
	}
	if err := pkRows.Err(); err != nil {
		return nil, records.StorageError(err, "failed to read primary key of %s", schema.Name)
	}

	log.Debug().
		Uint32("oid", oid).
		Str("schema", schema.Schema).
		Str("table", schema.Name).
		Int("columns", len(schema.Columns)).
		Ints("primary_key", schema.PrimaryKey).
		Msg("Inspected table")

	return schema, nil
}
