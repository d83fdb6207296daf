package dialect

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type postgres struct{}

// Postgres returns the PostgreSQL dialect.
func Postgres() Dialect {
	return &postgres{}
}

func (d *postgres) Name() string {
	return "postgres"
}

func (d *postgres) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (d *postgres) Placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

func (d *postgres) ILike(col string, pattern any) sq.Sqlizer {
	return sq.ILike{col: pattern}
}

func (d *postgres) JSONText(col string, container bool) string {
	if container {
		return fmt.Sprintf("CAST(%s AS TEXT)", col)
	}
	return col
}

func (d *postgres) CoveredBy(col string, value any) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("ST_CoveredBy(%s, ST_GeomFromEWKT(?))", col), value)
}
