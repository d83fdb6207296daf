package model

import (
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// Order is one term of an ordering.
type Order struct {
	Field string
	Desc  bool
}

// String renders the term in "-field" form.
func (o Order) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}

// ParseOrdering parses "-created,name" against the table's columns.
// Empty terms are ignored.
func ParseOrdering(s string, t *Table) ([]Order, error) {
	var out []Order
	for _, term := range strings.Split(s, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		o := Order{Field: strings.TrimPrefix(term, "-"), Desc: strings.HasPrefix(term, "-")}
		if _, ok := t.Column(o.Field); !ok {
			return nil, alerr.New(alerr.ErrUnknownField, "unknown ordering field").
				WithTable(t.Model).
				WithColumn(o.Field).
				WithHint(alerr.SuggestSimilar([]string{o.Field}, t.ColumnNames()))
		}
		out = append(out, o)
	}
	return out, nil
}

// DeterministicOrdering returns ordering, or the primary key when ordering
// is empty, with the primary key appended as a tiebreaker when absent.
func (t *Table) DeterministicOrdering(ordering []Order) []Order {
	out := make([]Order, 0, len(ordering)+1)
	out = append(out, ordering...)
	for _, o := range ordering {
		if o.Field == t.PrimaryKeyField {
			return out
		}
	}
	return append(out, Order{Field: t.PrimaryKeyField})
}
