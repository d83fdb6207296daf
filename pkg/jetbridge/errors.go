// Package jetbridge is the service root of the bridge. A Client reflects
// live databases into descriptor models, tracks their progress, and runs
// filtered record queries and sibling lookups against them.
package jetbridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrMissingDatabaseURL is returned when a connection has no database URL.
	ErrMissingDatabaseURL = errors.New("jetbridge: database URL required")

	// ErrConnectionFailed is returned when the database connection fails.
	ErrConnectionFailed = errors.New("jetbridge: connection failed")

	// ErrSchemaInvalid is returned when requested tables are absent.
	ErrSchemaInvalid = errors.New("jetbridge: schema invalid")

	// ErrUnsupportedDialect is returned when the database dialect is not supported.
	ErrUnsupportedDialect = errors.New("jetbridge: unsupported dialect")

	// ErrReflectionInFlight is returned when a reflection for the same key
	// is already running.
	ErrReflectionInFlight = alerr.New(alerr.ErrReflectionInFlight, "reflection already in progress")

	// ErrConnectionNotFound is returned when no reflected connection exists
	// for a key.
	ErrConnectionNotFound = alerr.New(alerr.ErrConnectionNotFound, "connection not found")
)

// SchemaError is returned when a reflection names tables the database does
// not have. Nothing is installed for the connection.
type SchemaError struct {
	// Missing lists the absent table names, sorted.
	Missing []string

	// Cause is the underlying coded error.
	Cause error
}

// Error returns a formatted error message.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("jetbridge: tables not found: %s", strings.Join(e.Missing, ", "))
}

// Unwrap returns the underlying cause error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaInvalid
}

// ConnectionError provides detailed information about a database connection error.
type ConnectionError struct {
	// URL is the database URL (with password redacted).
	URL string

	// Dialect is the database dialect (postgres, sqlite).
	Dialect string

	// Cause is the underlying error from the database driver.
	Cause error
}

// Error returns a formatted error message.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("jetbridge: failed to connect to %s database: %v", e.Dialect, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

// schemaError converts a missing-tables error from the reflector into a
// SchemaError. Other errors are returned unchanged.
func schemaError(err error) error {
	var coded *alerr.Error
	if !errors.As(err, &coded) || coded.GetCode() != alerr.ErrSchemaMissingTables {
		return err
	}
	missing, _ := coded.GetContext()["missing"].([]string)
	return &SchemaError{Missing: missing, Cause: err}
}
