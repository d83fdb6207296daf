// Package introspect provides the database catalog capability for all
// supported dialects. It queries system catalogs to discover tables, views,
// columns, primary keys, foreign keys and comments, and returns them as raw
// records for the describe package to map.
package introspect

import (
	"context"
	"database/sql"

	"github.com/tayjaybabee/jet-bridge/internal/dialect"
)

// Catalog queries database catalogs to discover schema information.
type Catalog interface {
	// Dialect returns the dialect of the underlying connection.
	Dialect() dialect.Dialect

	// ListTables returns base table names in catalog order.
	ListTables(ctx context.Context) ([]string, error)

	// ListViews returns view names in catalog order.
	ListViews(ctx context.Context) ([]string, error)

	// IntrospectTable returns columns, keys and comments of one table or view.
	// Returns an ErrIntrospection error if the relation has no columns.
	IntrospectTable(ctx context.Context, name string) (*RawTable, error)

	// PrimaryKey returns the declared primary key columns of a table.
	PrimaryKey(ctx context.Context, table string) ([]string, error)
}

// New creates a Catalog for the given dialect.
// Returns nil if the dialect is not supported.
func New(db *sql.DB, d dialect.Dialect) Catalog {
	switch d.Name() {
	case "postgres":
		return &postgresCatalog{db: db, dialect: d}
	case "sqlite":
		return &sqliteCatalog{db: db, dialect: d}
	default:
		return nil
	}
}

// RawTable represents table metadata from the database catalog.
type RawTable struct {
	Name        string
	View        bool
	Comment     sql.NullString
	Columns     []*RawColumn
	ForeignKeys []*RawForeignKey
}

// Column returns the column with the given name.
func (t *RawTable) Column(name string) (*RawColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// PrimaryKey returns the names of columns flagged as primary key.
func (t *RawTable) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// ForeignKeyFor returns the referenced table and column for a column that
// participates in a foreign key.
func (t *RawTable) ForeignKeyFor(column string) (refTable, refColumn string, ok bool) {
	for _, fk := range t.ForeignKeys {
		for i, c := range fk.Columns {
			if c == column && i < len(fk.RefColumns) {
				return fk.RefTable, fk.RefColumns[i], true
			}
		}
	}
	return "", "", false
}

// RawColumn represents column metadata from the database catalog.
type RawColumn struct {
	Name          string
	DataType      string // Native type, lower case (varchar, int4, jsonb, ...)
	IsNullable    bool
	Default       sql.NullString // Raw default expression
	Comment       sql.NullString
	IsPrimaryKey  bool
	AutoIncrement bool
	Generated     bool
	MaxLength     sql.NullInt64 // For VARCHAR(n)
	Precision     sql.NullInt64 // For DECIMAL(p,s)
	Scale         sql.NullInt64
	EnumValues    []string

	userDefined bool
}

// RawForeignKey represents FK metadata from the database catalog.
type RawForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string // RefColumns[i] is referenced by Columns[i]
}

// internalTables lists tables that are never offered for reflection.
var internalTables = map[string]bool{
	"spatial_ref_sys":  true,
	"geometry_columns": true,
}

func isInternalTable(name string) bool {
	return internalTables[name]
}
