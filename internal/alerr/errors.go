// Package alerr provides standardized error handling for jet-bridge.
// All errors have stable, machine-readable codes, structured context, and proper wrapping.
package alerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number}.
type Code string

// Error codes organized by category.
const (
	// Schema errors (E1xxx) - the requested schema does not match the catalog
	ErrSchemaMissingTables Code = "E1001" // Requested tables are absent from the catalog
	ErrSchemaInvalid       Code = "E1002" // Reflected model violates an invariant

	// Lookup errors (E2xxx) - problems with filter input
	ErrUnknownLookup      Code = "E2001" // Lookup name is not part of the vocabulary
	ErrInvalidLookupValue Code = "E2002" // Value cannot be coerced for the lookup
	ErrUnknownField       Code = "E2003" // Column is not part of the table

	// Registry errors (E3xxx) - connection lifecycle problems
	ErrReflectionInFlight Code = "E3001" // A reflection is already running for the key
	ErrConnectionNotFound Code = "E3002" // No active connection for the key
	ErrStaleHandle        Code = "E3003" // Pending handle was already promoted or failed

	// SQL errors (E4xxx) - problems with database operations
	ErrSQLExecution   Code = "E4001" // SQL statement failed to execute
	ErrSQLConnection  Code = "E4002" // Database connection failed
	ErrSQLTransaction Code = "E4003" // Transaction operation failed

	// Introspection errors (E6xxx) - problems with catalog introspection
	ErrIntrospection    Code = "E6001" // Table could not be introspected
	EUnsupportedDialect Code = "E6003" // Dialect not supported for operation

	// Configuration errors (E8xxx) - problems with configuration and metadata
	ErrConfigInvalid Code = "E8001" // Configuration file is malformed
	ErrMetadataParse Code = "E8002" // Embedded or overlay metadata is malformed

	// Internal errors (E9xxx) - unexpected internal errors
	EInternalError Code = "E9001" // Internal error
)

// Error is the standard error type for jet-bridge: a stable code, a short
// message, ordered context and an optional cause.
type Error struct {
	code    Code
	message string
	context map[string]any
	cause   error
}

// Error returns the formatted error string.
// Format:
//
//	[E1001] requested tables not found
//	  missing: [ghost]
//	  hint: did you mean 'hosts'?
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.code, e.message)

	keys := make([]string, 0, len(e.context))
	for k := range e.context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, e.context[k])
	}

	if e.cause != nil {
		fmt.Fprintf(&b, "\n  cause: %v", e.cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same code, so package-level sentinels
// built with New work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.code == other.code
}

func (e *Error) GetCode() Code              { return e.code }
func (e *Error) GetMessage() string         { return e.message }
func (e *Error) GetContext() map[string]any { return e.context }
func (e *Error) GetCause() error            { return e.cause }

// With sets a context entry and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

func (e *Error) WithTable(table string) *Error {
	return e.With("table", table)
}

func (e *Error) WithColumn(name string) *Error {
	return e.With("column", name)
}

// WithConnection records the registry key the error belongs to.
func (e *Error) WithConnection(key string) *Error {
	return e.With("connection", key)
}

func (e *Error) WithLookup(name string) *Error {
	return e.With("lookup", name)
}

func (e *Error) WithSQL(sql string) *Error {
	return e.With("sql", sql)
}

// WithHint adds a help line. Empty hints are dropped.
func (e *Error) WithHint(hint string) *Error {
	if hint == "" {
		return e
	}
	return e.With("hint", hint)
}

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{code: code, message: msg, context: map[string]any{}}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error caused by err. A nil err behaves like New.
func Wrap(code Code, err error, msg string) *Error {
	e := New(code, msg)
	e.cause = err
	return e
}

// GetErrorCode returns the code of the first *Error in the chain, or "".
func GetErrorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// WrapSQL creates an ErrSQLExecution error for op, with table context when
// table is set.
//
//	WrapSQL(err, "introspect columns", "auth_user")
func WrapSQL(err error, op string, table string) *Error {
	e := Wrap(ErrSQLExecution, err, "failed to "+op)
	if table != "" {
		e.WithTable(table)
	}
	return e
}
