package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rowline-app/rowline/internal/records"
)

// PostgreSQL error codes the read path can hit.
const (
	pgUndefinedTable     = "42P01"
	pgUndefinedColumn    = "42703"
	pgInsufficientPriv   = "42501"
	pgInvalidTextRepr    = "22P02"
	pgQueryCanceled      = "57014"
	pgDatatypeMismatch   = "42804"
	pgInvalidDatetimeFmt = "22007"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPermissionDenied reports whether the error is a privilege failure.
func IsPermissionDenied(err error) bool {
	return pgErrorCode(err) == pgInsufficientPriv
}

// IsQueryCanceled reports whether the server canceled the query,
// typically because the request context expired.
func IsQueryCanceled(err error) bool {
	return pgErrorCode(err) == pgQueryCanceled
}

// wrapQueryError turns a pgx failure into a structured storage error
// with a message that names the failing table but never echoes client
// input.
func wrapQueryError(err error, table string) error {
	switch pgErrorCode(err) {
	case pgUndefinedTable:
		return records.StorageError(err, "table %s disappeared during query", table)
	case pgUndefinedColumn:
		return records.StorageError(err, "column of %s disappeared during query", table)
	case pgInsufficientPriv:
		return records.StorageError(err, "permission denied on %s", table)
	case pgInvalidTextRepr, pgDatatypeMismatch, pgInvalidDatetimeFmt:
		return records.StorageError(err, "filter value does not fit a column type of %s", table)
	case pgQueryCanceled:
		return records.StorageError(err, "query on %s was canceled", table)
	default:
		return records.StorageError(err, "query on %s failed", table)
	}
}
