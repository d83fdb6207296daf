// Package dialect isolates the SQL differences between supported backends:
// identifier quoting, placeholder style, case-insensitive matching, JSON
// text extraction and spatial predicates.
package dialect

import (
	sq "github.com/Masterminds/squirrel"
)

// Dialect defines the backend-specific pieces of query building.
// Implementations exist for PostgreSQL and SQLite.
type Dialect interface {
	// Name returns the dialect name (postgres, sqlite).
	Name() string

	// QuoteIdent quotes an identifier (table/column name) for the dialect.
	// PostgreSQL/SQLite: "name"
	QuoteIdent(name string) string

	// Placeholder returns the placeholder format for built queries.
	// PostgreSQL: $1, $2, ...
	// SQLite: ?, ?, ...
	Placeholder() sq.PlaceholderFormat

	// ILike returns a case-insensitive pattern match of col against pattern.
	// PostgreSQL: col ILIKE ?
	// SQLite: col LIKE ? (LIKE is case-insensitive for ASCII)
	ILike(col string, pattern any) sq.Sqlizer

	// JSONText returns an expression reading col as text. container is true
	// for native JSON column types.
	JSONText(col string, container bool) string

	// CoveredBy returns a predicate that holds when the geometry in col is
	// covered by the geometry literal value.
	CoveredBy(col string, value any) sq.Sqlizer
}

// Get returns the dialect implementation for the given name.
// Valid names: "postgres", "postgresql", "pgx", "sqlite", "sqlite3".
// Returns nil if the dialect is not supported.
func Get(name string) Dialect {
	switch name {
	case "postgres", "postgresql", "pgx":
		return Postgres()
	case "sqlite", "sqlite3":
		return SQLite()
	default:
		return nil
	}
}

// Names returns the list of supported dialect names.
func Names() []string {
	return []string{"postgres", "sqlite"}
}
