package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
)

type sqliteCatalog struct {
	db      *sql.DB
	dialect dialect.Dialect
}

func (s *sqliteCatalog) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *sqliteCatalog) ListTables(ctx context.Context) ([]string, error) {
	names, err := queryStrings(ctx, s.db, "list tables", "", `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	tables := names[:0]
	for _, name := range names {
		if !isInternalTable(name) {
			tables = append(tables, name)
		}
	}
	return tables, nil
}

func (s *sqliteCatalog) ListViews(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, "list views", "", `
		SELECT name FROM sqlite_master
		WHERE type = 'view'
		ORDER BY name
	`)
}

func (s *sqliteCatalog) IntrospectTable(ctx context.Context, name string) (*RawTable, error) {
	var kind string
	var createSQL sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT type, sql FROM sqlite_master
		WHERE name = ? AND type IN ('table', 'view')
	`, name).Scan(&kind, &createSQL)
	if err == sql.ErrNoRows {
		return nil, noColumns(name)
	}
	if err != nil {
		return nil, alerr.WrapSQL(err, "read table definition", name)
	}

	columns, err := s.introspectColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, noColumns(name)
	}

	for _, col := range columns {
		col.EnumValues = columnEnumValues(createSQL.String, col.Name)
	}

	fks, err := s.introspectForeignKeys(ctx, name)
	if err != nil {
		return nil, err
	}

	return &RawTable{
		Name:        name,
		View:        kind == "view",
		Columns:     columns,
		ForeignKeys: fks,
	}, nil
}

func (s *sqliteCatalog) introspectColumns(ctx context.Context, tableName string) ([]*RawColumn, error) {
	// table_xinfo returns: cid, name, type, notnull, dflt_value, pk, hidden
	query := fmt.Sprintf("PRAGMA table_xinfo(%s)", s.dialect.QuoteIdent(tableName))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect columns", tableName)
	}
	defer rows.Close()

	var columns []*RawColumn
	pkCount := 0
	for rows.Next() {
		var cid, notNull, pk, hidden int
		var name, declared string
		var defaultVal sql.NullString

		if err := rows.Scan(&cid, &name, &declared, &notNull, &defaultVal, &pk, &hidden); err != nil {
			return nil, alerr.WrapSQL(err, "scan column", tableName)
		}
		// hidden=1 marks virtual-table hidden columns; 2 and 3 are generated.
		if hidden == 1 {
			continue
		}

		raw := &RawColumn{
			Name:         name,
			IsNullable:   notNull == 0 && pk == 0,
			Default:      defaultVal,
			IsPrimaryKey: pk > 0,
			Generated:    hidden == 2 || hidden == 3,
		}
		raw.DataType, raw.MaxLength, raw.Precision, raw.Scale = parseDeclaredType(declared)
		if pk > 0 {
			pkCount++
		}
		columns = append(columns, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, "iterate columns", tableName)
	}

	// A lone INTEGER PRIMARY KEY aliases the rowid.
	if pkCount == 1 {
		for _, c := range columns {
			if c.IsPrimaryKey && c.DataType == "integer" {
				c.AutoIncrement = true
			}
		}
	}

	return columns, nil
}

func (s *sqliteCatalog) introspectForeignKeys(ctx context.Context, tableName string) ([]*RawForeignKey, error) {
	// Returns: id, seq, table, from, to, on_update, on_delete, match
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", s.dialect.QuoteIdent(tableName))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect foreign keys", tableName)
	}
	defer rows.Close()

	acc := NewFKAccumulator()
	var missingTo []string
	for rows.Next() {
		var id, seq int
		var refTable, from, onUpdate, onDelete, match string
		var to sql.NullString

		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, alerr.WrapSQL(err, "scan foreign key", tableName)
		}

		name := fmt.Sprintf("fk_%s_%d", tableName, id)
		if !to.Valid {
			// REFERENCES t without a column list targets t's primary key.
			missingTo = append(missingTo, name)
		}
		acc.Add(name, from, refTable, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, "iterate foreign keys", tableName)
	}
	rows.Close()

	fks := acc.Values()
	for _, fk := range fks {
		if !containsString(missingTo, fk.Name) {
			continue
		}
		pk, err := s.PrimaryKey(ctx, fk.RefTable)
		if err != nil {
			return nil, err
		}
		for i := range fk.RefColumns {
			if i < len(pk) {
				fk.RefColumns[i] = pk[i]
			}
		}
	}

	return fks, nil
}

func (s *sqliteCatalog) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", s.dialect.QuoteIdent(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, alerr.WrapSQL(err, "read primary key", table)
	}
	defer rows.Close()

	type keyPart struct {
		pos  int
		name string
	}
	var parts []keyPart
	for rows.Next() {
		var cid, notNull, pk int
		var name, declared string
		var defaultVal sql.NullString
		if err := rows.Scan(&cid, &name, &declared, &notNull, &defaultVal, &pk); err != nil {
			return nil, alerr.WrapSQL(err, "scan primary key", table)
		}
		if pk > 0 {
			parts = append(parts, keyPart{pos: pk, name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, "iterate primary key", table)
	}

	out := make([]string, len(parts))
	for _, p := range parts {
		if p.pos-1 < len(out) {
			out[p.pos-1] = p.name
		}
	}
	return out, nil
}

var declaredTypePattern = regexp.MustCompile(`^\s*([a-z][a-z0-9_ ]*?)\s*\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)\s*$`)

// parseDeclaredType splits a SQLite declared type like "VARCHAR(255)" or
// "DECIMAL(10,2)" into a lower-case base type and its arguments.
func parseDeclaredType(declared string) (base string, maxLen, precision, scale sql.NullInt64) {
	lower := strings.ToLower(strings.TrimSpace(declared))
	m := declaredTypePattern.FindStringSubmatch(lower)
	if m == nil {
		return lower, maxLen, precision, scale
	}

	base = m[1]
	first, _ := strconv.ParseInt(m[2], 10, 64)
	switch {
	case m[3] != "":
		second, _ := strconv.ParseInt(m[3], 10, 64)
		precision = sql.NullInt64{Int64: first, Valid: true}
		scale = sql.NullInt64{Int64: second, Valid: true}
	case strings.Contains(base, "char"):
		maxLen = sql.NullInt64{Int64: first, Valid: true}
	default:
		precision = sql.NullInt64{Int64: first, Valid: true}
	}
	return base, maxLen, precision, scale
}

// columnEnumValues finds a CHECK (column IN (...)) constraint for column in
// a CREATE TABLE statement.
func columnEnumValues(createSQL, column string) []string {
	if createSQL == "" {
		return nil
	}
	pattern := `(?is)CHECK\s*\(\s*["` + "`" + `\[]?` + regexp.QuoteMeta(column) + `["` + "`" + `\]]?\s+IN\s*\([^)]*\)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return parseEnumValues(re.FindString(createSQL))
}

// parseEnumValues extracts enum values from a CHECK constraint.
// SQLite represents enums as CHECK constraints like: CHECK(status IN ('draft', 'published'))
func parseEnumValues(checkSQL string) []string {
	upper := strings.ToUpper(checkSQL)
	inIdx := strings.Index(upper, " IN (")
	if inIdx == -1 {
		inIdx = strings.Index(upper, " IN(")
	}
	if inIdx == -1 {
		return nil
	}

	start := strings.Index(checkSQL[inIdx:], "(")
	if start == -1 {
		return nil
	}
	start += inIdx + 1

	end := strings.Index(checkSQL[start:], ")")
	if end == -1 {
		return nil
	}

	var values []string
	for _, p := range strings.Split(checkSQL[start:start+end], ",") {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			values = append(values, p)
		}
	}
	return values
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
