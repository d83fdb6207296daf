package introspect

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// SQLite result codes treated as structural.
const (
	sqliteError = 1  // SQLITE_ERROR: no such table, malformed schema
	sqliteAuth  = 23 // SQLITE_AUTH: authorizer denied access
)

// IsStructural reports whether err means a single relation cannot be
// introspected, as opposed to the connection or context failing. Structural
// failures are skipped by the reflector; anything else aborts it.
func IsStructural(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if alerr.Is(err, alerr.ErrIntrospection) {
		return true
	}

	// SQLSTATE class 42: syntax error or access rule violation
	// (undefined table 42P01, insufficient privilege 42501, ...).
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "42"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "42"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqliteError || code == sqliteAuth
	}
	return false
}

// queryStrings runs a single-column query and collects the results.
func queryStrings(ctx context.Context, db *sql.DB, op, table, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, alerr.WrapSQL(err, op, table)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, alerr.WrapSQL(err, op, table)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, op, table)
	}
	return out, nil
}

// noColumns is returned when a relation listed by the catalog has vanished
// or cannot be read.
func noColumns(table string) error {
	return alerr.New(alerr.ErrIntrospection, "table has no readable columns").WithTable(table)
}

// FKAccumulator merges composite FK rows into single RawForeignKey values.
// Catalogs return foreign key information row-by-row.
type FKAccumulator struct {
	fks   map[string]*RawForeignKey
	order []string
}

// NewFKAccumulator creates a new FKAccumulator.
func NewFKAccumulator() *FKAccumulator {
	return &FKAccumulator{fks: make(map[string]*RawForeignKey)}
}

// Add adds or extends a foreign key entry.
// Rows of one key must arrive in key position order.
func (a *FKAccumulator) Add(name, column, refTable, refColumn string) {
	if fk, exists := a.fks[name]; exists {
		fk.Columns = append(fk.Columns, column)
		fk.RefColumns = append(fk.RefColumns, refColumn)
		return
	}
	a.fks[name] = &RawForeignKey{
		Name:       name,
		Columns:    []string{column},
		RefTable:   refTable,
		RefColumns: []string{refColumn},
	}
	a.order = append(a.order, name)
}

// Values returns all accumulated foreign keys in insertion order.
func (a *FKAccumulator) Values() []*RawForeignKey {
	out := make([]*RawForeignKey, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.fks[name])
	}
	return out
}
