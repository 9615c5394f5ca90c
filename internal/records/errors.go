package records

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures the record service can produce.
// Every error returned by this package carries exactly one kind, so
// transports can map errors to status codes without string matching.
type ErrorKind string

const (
	// KindMalformedExpression means the input shape violates the
	// expression model (missing keys, wrong types, unknown preproc).
	KindMalformedExpression ErrorKind = "malformed_expression"
	// KindUnknownColumn means an attnum does not resolve against the
	// table's current schema. Callers should re-fetch the schema.
	KindUnknownColumn ErrorKind = "unknown_column"
	// KindUnknownOperator means a filter names an operator that is not
	// in the catalog.
	KindUnknownOperator ErrorKind = "unknown_operator"
	// KindArityMismatch means an operator received the wrong number of
	// arguments.
	KindArityMismatch ErrorKind = "arity_mismatch"
	// KindStorageFailure means the storage collaborator failed
	// (connection loss, timeout, permission). The underlying error is
	// wrapped and available via errors.Unwrap.
	KindStorageFailure ErrorKind = "storage_failure"
)

// Error is the structured error type for the records core.
type Error struct {
	Kind    ErrorKind
	Message string
	// Path locates the offending node for malformed expressions,
	// e.g. "filter.args[1].value". Empty for other kinds.
	Path  string
	cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the kind of err, or "" if err is not a records error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

func malformedErr(path, format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformedExpression, Path: path, Message: fmt.Sprintf(format, args...)}
}

func unknownColumnErr(attnum int) *Error {
	return &Error{Kind: KindUnknownColumn, Message: fmt.Sprintf("column with attnum %d does not exist on the table", attnum)}
}

func unknownOperatorErr(name string) *Error {
	return &Error{Kind: KindUnknownOperator, Message: fmt.Sprintf("unsupported filter operator %q", name)}
}

func arityErr(name string, want, got int) *Error {
	return &Error{Kind: KindArityMismatch, Message: fmt.Sprintf("operator %q expects %d arguments, got %d", name, want, got)}
}

// StorageError wraps a storage collaborator failure with request
// context. The database layer uses this to surface pgx errors through
// the structured taxonomy.
func StorageError(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindStorageFailure, Message: fmt.Sprintf(format, args...), cause: err}
}
