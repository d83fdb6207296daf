package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type sqlite struct{}

// SQLite returns the SQLite dialect.
func SQLite() Dialect {
	return &sqlite{}
}

func (d *sqlite) Name() string {
	return "sqlite"
}

func (d *sqlite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *sqlite) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

func (d *sqlite) ILike(col string, pattern any) sq.Sqlizer {
	return sq.Like{col: pattern}
}

// JSONText returns col unchanged; SQLite stores JSON as text.
func (d *sqlite) JSONText(col string, _ bool) string {
	return col
}

// CoveredBy uses the SpatiaLite function names.
func (d *sqlite) CoveredBy(col string, value any) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("CoveredBy(%s, GeomFromEWKT(?))", col), value)
}
