package lookup

import (
	"net/url"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

const (
	separator     = "__"
	excludePrefix = "exclude" + separator
)

// Reserved query parameters.
const (
	ParamOrdering = "ordering"
	ParamPage     = "page"
	ParamPageSize = "page_size"
	ParamLimit    = "limit"
	ParamOffset   = "offset"
)

// reserved query parameters are never treated as filters.
var reserved = map[string]bool{
	ParamOrdering: true,
	ParamPage:     true,
	ParamPageSize: true,
	ParamLimit:    true,
	ParamOffset:   true,
}

// Filter is one parsed "column__lookup=value" parameter.
type Filter struct {
	Column  string
	Lookup  string
	Value   any
	Exclude bool
}

// ParseParams reads filters from query parameters. Keys take the forms
// "column", "column__lookup" and "exclude__column__lookup". Repeated keys
// yield a list value. Filters are returned sorted by key.
func ParseParams(params url.Values, t *model.Table) ([]Filter, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	filters := make([]Filter, 0, len(keys))
	for _, key := range keys {
		f := parseKey(key)
		if _, ok := t.Column(f.Column); !ok {
			return nil, alerr.New(alerr.ErrUnknownField, "unknown filter field").
				WithTable(t.Model).
				WithColumn(f.Column).
				WithHint(alerr.SuggestSimilar([]string{f.Column}, t.ColumnNames()))
		}

		values := params[key]
		switch len(values) {
		case 0:
			continue
		case 1:
			f.Value = values[0]
		default:
			f.Value = values
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func parseKey(key string) Filter {
	f := Filter{Lookup: Exact}
	if rest, ok := strings.CutPrefix(key, excludePrefix); ok {
		f.Exclude = true
		key = rest
	}
	if i := strings.LastIndex(key, separator); i > 0 && Valid(key[i+len(separator):]) {
		f.Lookup = key[i+len(separator):]
		key = key[:i]
	}
	f.Column = key
	return f
}

// ApplyFilters adds every filter to qb.
func ApplyFilters(qb sq.SelectBuilder, d dialect.Dialect, t *model.Table, filters []Filter) (sq.SelectBuilder, error) {
	for _, f := range filters {
		col, ok := t.Column(f.Column)
		if !ok {
			return qb, alerr.New(alerr.ErrUnknownField, "unknown filter field").
				WithTable(t.Model).
				WithColumn(f.Column)
		}
		var err error
		qb, err = Apply(qb, d, NewTarget(d, col), f.Lookup, f.Value, f.Exclude)
		if err != nil {
			return qb, err
		}
	}
	return qb, nil
}
