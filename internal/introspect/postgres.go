package introspect

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
)

type postgresCatalog struct {
	db      *sql.DB
	dialect dialect.Dialect
}

func (p *postgresCatalog) Dialect() dialect.Dialect {
	return p.dialect
}

func (p *postgresCatalog) ListTables(ctx context.Context) ([]string, error) {
	names, err := queryStrings(ctx, p.db, "list tables", "", `
		SELECT tablename FROM pg_tables
		WHERE schemaname = current_schema()
		ORDER BY tablename
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

func (p *postgresCatalog) ListViews(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, p.db, "list views", "", `
		SELECT table_name FROM information_schema.views
		WHERE table_schema = current_schema()
		ORDER BY table_name
	`)
}

func (p *postgresCatalog) IntrospectTable(ctx context.Context, name string) (*RawTable, error) {
	columns, err := p.introspectColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, noColumns(name)
	}

	for _, col := range columns {
		if !col.userDefined {
			continue
		}
		values, err := p.enumValues(ctx, name, col.DataType)
		if err != nil {
			return nil, err
		}
		col.EnumValues = values
	}

	fks, err := p.introspectForeignKeys(ctx, name)
	if err != nil {
		return nil, err
	}

	table := &RawTable{Name: name, Columns: columns, ForeignKeys: fks}

	var kind string
	err = p.db.QueryRowContext(ctx, `
		SELECT
			CASE WHEN cls.relkind IN ('v', 'm') THEN 'view' ELSE 'table' END,
			obj_description(cls.oid, 'pg_class')
		FROM pg_class cls
		JOIN pg_namespace ns ON ns.oid = cls.relnamespace
		WHERE ns.nspname = current_schema() AND cls.relname = $1
	`, name).Scan(&kind, &table.Comment)
	if err != nil {
		return nil, alerr.WrapSQL(err, "read table comment", name)
	}
	table.View = kind == "view"

	return table, nil
}

func (p *postgresCatalog) introspectColumns(ctx context.Context, tableName string) ([]*RawColumn, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.is_identity,
			c.is_generated,
			COALESCE(pk.is_pk, FALSE) AS is_primary_key,
			col_description(a.attrelid, a.attnum) AS comment
		FROM information_schema.columns c
		JOIN pg_namespace ns ON ns.nspname = c.table_schema
		JOIN pg_class cls ON cls.relname = c.table_name AND cls.relnamespace = ns.oid
		JOIN pg_attribute a ON a.attrelid = cls.oid AND a.attname = c.column_name
		LEFT JOIN (
			SELECT kcu.column_name, TRUE AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.table_name = $1
				AND tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = current_schema()
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = current_schema()
			AND c.table_name = $1
		ORDER BY c.ordinal_position
	`

	rows, err := p.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect columns", tableName)
	}
	defer rows.Close()

	var columns []*RawColumn
	for rows.Next() {
		var raw RawColumn
		var dataType, udtName, isNullable, isIdentity, isGenerated string

		err := rows.Scan(
			&raw.Name,
			&dataType,
			&udtName,
			&isNullable,
			&raw.Default,
			&raw.MaxLength,
			&raw.Precision,
			&raw.Scale,
			&isIdentity,
			&isGenerated,
			&raw.IsPrimaryKey,
			&raw.Comment,
		)
		if err != nil {
			return nil, alerr.WrapSQL(err, "scan column", tableName)
		}

		raw.DataType = strings.ToLower(udtName)
		raw.IsNullable = isNullable == "YES"
		raw.Generated = isGenerated == "ALWAYS"
		raw.AutoIncrement = isIdentity == "YES" ||
			(raw.Default.Valid && strings.HasPrefix(raw.Default.String, "nextval("))

		// Resolved against pg_enum once the rows are closed.
		raw.userDefined = dataType == "USER-DEFINED"

		columns = append(columns, &raw)
	}

	return columns, rows.Err()
}

func (p *postgresCatalog) enumValues(ctx context.Context, table, typeName string) ([]string, error) {
	return queryStrings(ctx, p.db, "read enum values", table, `
		SELECT e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		WHERE t.typname = $1
		ORDER BY e.enumsortorder
	`, typeName)
}

func (p *postgresCatalog) introspectForeignKeys(ctx context.Context, tableName string) ([]*RawForeignKey, error) {
	// conkey and confkey are parallel arrays; unnesting them together keeps
	// each column paired with the column it references.
	query := `
		SELECT
			con.conname,
			att.attname,
			ref.relname,
			ref_att.attname
		FROM pg_constraint con
		JOIN pg_class cls ON cls.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cls.relnamespace
		JOIN pg_class ref ON ref.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey)
			WITH ORDINALITY AS k(attnum, ref_attnum, position)
		JOIN pg_attribute att
			ON att.attrelid = con.conrelid AND att.attnum = k.attnum
		JOIN pg_attribute ref_att
			ON ref_att.attrelid = con.confrelid AND ref_att.attnum = k.ref_attnum
		WHERE con.contype = 'f'
			AND cls.relname = $1
			AND ns.nspname = current_schema()
		ORDER BY con.conname, k.position
	`

	rows, err := p.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect foreign keys", tableName)
	}
	defer rows.Close()

	acc := NewFKAccumulator()
	for rows.Next() {
		var name, column, refTable, refColumn string
		if err := rows.Scan(&name, &column, &refTable, &refColumn); err != nil {
			return nil, alerr.WrapSQL(err, "scan foreign key", tableName)
		}
		acc.Add(name, column, refTable, refColumn)
	}

	return acc.Values(), rows.Err()
}

func (p *postgresCatalog) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	return queryStrings(ctx, p.db, "read primary key", table, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_name = $1
			AND tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = current_schema()
		ORDER BY kcu.ordinal_position
	`, table)
}
