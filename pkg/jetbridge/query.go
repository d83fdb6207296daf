package jetbridge

import (
	"context"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/spf13/cast"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/lookup"
	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/registry"
	"github.com/tayjaybabee/jet-bridge/internal/session"
	"github.com/tayjaybabee/jet-bridge/internal/siblings"
)

// Page sizes for Records.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page is one window of records.
type Page struct {
	Results []map[string]any `json:"results"`
	Limit   uint64           `json:"limit"`
	Offset  uint64           `json:"offset"`
}

// Records returns rows of a table filtered by params. Filter keys take the
// form column__lookup=value or exclude__column__lookup=value; ordering,
// limit and offset are read from the reserved keys of the same name.
func (c *Client) Records(ctx context.Context, key registry.Key, table string, params url.Values) (_ *Page, err error) {
	defer func() { c.metrics.ObserveQuery("records", err) }()

	conn, t, err := c.target(key, table)
	if err != nil {
		return nil, err
	}
	limit, offset, err := window(params)
	if err != nil {
		return nil, err
	}
	ordering, err := model.ParseOrdering(params.Get(lookup.ParamOrdering), t)
	if err != nil {
		return nil, err
	}

	base, err := baseQuery(conn, t, params)
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		columns[i] = conn.Dialect.QuoteIdent(f.DBColumn)
	}
	query := base.Columns(columns...).
		OrderBy(orderClause(conn, t, t.DeterministicOrdering(ordering))...).
		Limit(limit).
		Offset(offset).
		PlaceholderFormat(conn.Dialect.Placeholder())

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to build records query")
	}

	s := session.New(conn.DB, nil)
	defer s.Close()

	results, err := scanRecords(ctx, s, t, sqlStr, args)
	if err != nil {
		return nil, err
	}
	return &Page{Results: results, Limit: limit, Offset: offset}, nil
}

// Siblings returns the primary keys of the rows before and after the row
// whose primary key is pk, under the ordering and filters in params.
func (c *Client) Siblings(ctx context.Context, key registry.Key, table string, params url.Values, pk string) (_ siblings.Siblings, err error) {
	defer func() { c.metrics.ObserveQuery("siblings", err) }()

	conn, t, err := c.target(key, table)
	if err != nil {
		return siblings.Siblings{}, err
	}
	ordering, err := model.ParseOrdering(params.Get(lookup.ParamOrdering), t)
	if err != nil {
		return siblings.Siblings{}, err
	}
	pkCol := t.PrimaryKey()
	if pkCol == nil {
		return siblings.Siblings{}, alerr.New(alerr.ErrSchemaInvalid, "table has no primary key").WithTable(t.Model)
	}
	value, err := lookup.Coerce(pkCol.Field, pk)
	if err != nil {
		return siblings.Siblings{}, err
	}

	base, err := baseQuery(conn, t, params)
	if err != nil {
		return siblings.Siblings{}, err
	}

	s := session.New(conn.DB, nil)
	defer s.Close()

	return siblings.New(conn.Dialect).Find(ctx, s, t, base, ordering, value)
}

func (c *Client) target(key registry.Key, table string) (*registry.Connection, *model.Table, error) {
	conn, err := c.connection(key)
	if err != nil {
		return nil, nil, err
	}
	t, err := lookupTable(conn, table)
	if err != nil {
		return nil, nil, err
	}
	return conn, t, nil
}

// baseQuery selects from the table with the filters in params applied.
func baseQuery(conn *registry.Connection, t *model.Table, params url.Values) (sq.SelectBuilder, error) {
	filters, err := lookup.ParseParams(params, t)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	qb := sq.Select().From(conn.Dialect.QuoteIdent(t.DBTable))
	return lookup.ApplyFilters(qb, conn.Dialect, t, filters)
}

func orderClause(conn *registry.Connection, t *model.Table, ordering []model.Order) []string {
	out := make([]string, 0, len(ordering))
	for _, o := range ordering {
		col, ok := t.Column(o.Field)
		if !ok {
			continue
		}
		term := conn.Dialect.QuoteIdent(col.DBColumn)
		if o.Desc {
			term += " DESC"
		} else {
			term += " ASC"
		}
		out = append(out, term)
	}
	return out
}

// window reads limit and offset, or page and page_size, clamping the
// limit to MaxLimit. Pages are 1-based.
func window(params url.Values) (limit, offset uint64, err error) {
	limit, err = uintParam(params, lookup.ParamLimit, DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if params.Has(lookup.ParamPageSize) {
		if limit, err = uintParam(params, lookup.ParamPageSize, DefaultLimit); err != nil {
			return 0, 0, err
		}
	}
	if limit == 0 || limit > MaxLimit {
		limit = MaxLimit
	}

	if params.Has(lookup.ParamPage) {
		page, err := uintParam(params, lookup.ParamPage, 1)
		if err != nil {
			return 0, 0, err
		}
		if page > 1 {
			offset = (page - 1) * limit
		}
		return limit, offset, nil
	}
	offset, err = uintParam(params, lookup.ParamOffset, 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func uintParam(params url.Values, name string, def uint64) (uint64, error) {
	v := params.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := cast.ToUint64E(v)
	if err != nil {
		return 0, alerr.Wrap(alerr.ErrInvalidLookupValue, err, "invalid "+name).With(name, v)
	}
	return n, nil
}

// scanRecords runs query in s and returns rows keyed by field name.
func scanRecords(ctx context.Context, s *session.Session, t *model.Table, query string, args []any) ([]map[string]any, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	results := []map[string]any{}
	values := make([]any, len(t.Fields))
	dest := make([]any, len(t.Fields))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return nil, s.Fail(alerr.Wrap(alerr.ErrSQLExecution, err, "failed to scan record").WithTable(t.Model))
		}
		record := make(map[string]any, len(t.Fields))
		for i, f := range t.Fields {
			if b, ok := values[i].([]byte); ok {
				record[f.Name] = string(b)
			} else {
				record[f.Name] = values[i]
			}
		}
		results = append(results, record)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, s.Fail(alerr.Wrap(alerr.ErrSQLExecution, err, "failed to read records").WithTable(t.Model))
	}
	return results, nil
}
