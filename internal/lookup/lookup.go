// Package lookup compiles the filter vocabulary into query predicates.
//
// A lookup takes a raw value through an optional pre-processor, a type
// coercion and a post-processor, then either calls a custom predicate
// builder or resolves an operator for the value. Empty values (nil, empty
// list, empty object) leave the query unchanged.
package lookup

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/spf13/cast"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// Lookup names.
const (
	Exact         = "exact"
	Gt            = "gt"
	Gte           = "gte"
	Lt            = "lt"
	Lte           = "lte"
	IContains     = "icontains"
	IStartsWith   = "istartswith"
	IEndsWith     = "iendswith"
	In            = "in"
	IsNull        = "isnull"
	JSONIContains = "json_icontains"
	CoveredBy     = "coveredby"
)

// Target is the column a lookup is applied to.
type Target struct {
	// Expr is the quoted column expression.
	Expr  string
	Field model.FieldType
}

// NewTarget binds a column descriptor for dialect d.
func NewTarget(d dialect.Dialect, col *model.Column) Target {
	return Target{Expr: d.QuoteIdent(col.DBColumn), Field: col.Field}
}

// operatorFunc resolves the predicate for a value. It may depend on the
// value itself.
type operatorFunc func(col string, value any) sq.Sqlizer

// customFunc builds a predicate directly from the column and value.
type customFunc func(d dialect.Dialect, t Target, value any) sq.Sqlizer

type entry struct {
	pre      func(any) any
	coerce   func(model.FieldType, any) (any, error)
	post     func(any) any
	custom   customFunc
	operator operatorFunc
}

var entries = map[string]entry{
	Exact: {coerce: coerceField, operator: func(col string, v any) sq.Sqlizer { return sq.Eq{col: v} }},
	Gt:    {coerce: coerceField, operator: func(col string, v any) sq.Sqlizer { return sq.Gt{col: v} }},
	Gte:   {coerce: coerceField, operator: func(col string, v any) sq.Sqlizer { return sq.GtOrEq{col: v} }},
	Lt:    {coerce: coerceField, operator: func(col string, v any) sq.Sqlizer { return sq.Lt{col: v} }},
	Lte:   {coerce: coerceField, operator: func(col string, v any) sq.Sqlizer { return sq.LtOrEq{col: v} }},

	IContains:   {coerce: coerceText, post: wrap("%", "%"), custom: ilike},
	IStartsWith: {coerce: coerceText, post: wrap("", "%"), custom: ilike},
	IEndsWith:   {coerce: coerceText, post: wrap("%", ""), custom: ilike},

	In: {
		pre:      splitList,
		coerce:   coerceTextList,
		operator: func(col string, v any) sq.Sqlizer { return sq.Eq{col: v} },
	},

	IsNull: {coerce: coerceBool, operator: isNull},

	JSONIContains: {
		coerce: coerceText,
		post:   wrap("%", "%"),
		custom: func(d dialect.Dialect, t Target, v any) sq.Sqlizer {
			return d.ILike(d.JSONText(t.Expr, t.Field == model.FieldJSON), v)
		},
	},

	CoveredBy: {
		coerce: coerceText,
		custom: func(d dialect.Dialect, t Target, v any) sq.Sqlizer { return d.CoveredBy(t.Expr, v) },
	},
}

// Names returns the lookup vocabulary, sorted.
func Names() []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Valid reports whether name is a known lookup.
func Valid(name string) bool {
	_, ok := entries[name]
	return ok
}

// Predicate compiles one lookup. It returns a nil predicate when value is
// empty.
func Predicate(d dialect.Dialect, t Target, name string, value any, exclude bool) (sq.Sqlizer, error) {
	e, ok := entries[name]
	if !ok {
		return nil, alerr.New(alerr.ErrUnknownLookup, "unknown lookup").
			WithLookup(name).
			WithHint(alerr.SuggestSimilar([]string{name}, Names()))
	}

	if isEmpty(value) {
		return nil, nil
	}

	if e.pre != nil {
		value = e.pre(value)
	}
	if e.coerce != nil {
		v, err := e.coerce(t.Field, value)
		if err != nil {
			return nil, alerr.Wrap(alerr.ErrInvalidLookupValue, err, "invalid lookup value").
				WithLookup(name).
				With("value", fmt.Sprint(value))
		}
		value = v
	}
	if e.post != nil {
		value = e.post(value)
	}

	var pred sq.Sqlizer
	if e.custom != nil {
		pred = e.custom(d, t, value)
	} else {
		pred = e.operator(t.Expr, value)
	}

	if exclude {
		pred = Not(pred)
	}
	return pred, nil
}

// Apply compiles a lookup and adds it to qb. qb is returned unchanged when
// value is empty.
func Apply(qb sq.SelectBuilder, d dialect.Dialect, t Target, name string, value any, exclude bool) (sq.SelectBuilder, error) {
	pred, err := Predicate(d, t, name, value, exclude)
	if err != nil || pred == nil {
		return qb, err
	}
	return qb.Where(pred), nil
}

// Not negates a predicate. Equality maps swap with their inequality form;
// anything else is wrapped in NOT (...).
func Not(pred sq.Sqlizer) sq.Sqlizer {
	switch p := pred.(type) {
	case sq.Eq:
		return sq.NotEq(p)
	case sq.NotEq:
		return sq.Eq(p)
	default:
		return not{pred}
	}
}

type not struct {
	pred sq.Sqlizer
}

func (n not) ToSql() (string, []any, error) {
	sql, args, err := n.pred.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

// isNull maps true to IS NULL and false to IS NOT NULL.
func isNull(col string, v any) sq.Sqlizer {
	if b, _ := v.(bool); b {
		return sq.Eq{col: nil}
	}
	return sq.NotEq{col: nil}
}

func ilike(d dialect.Dialect, t Target, v any) sq.Sqlizer {
	return d.ILike(t.Expr, v)
}

func wrap(prefix, suffix string) func(any) any {
	return func(v any) any {
		return prefix + cast.ToString(v) + suffix
	}
}

// splitList accepts a list or a comma separated string. A single scalar
// becomes a one element list and "" an empty one.
func splitList(v any) any {
	if s, ok := v.(string); ok {
		if s == "" {
			return []string{}
		}
		return strings.Split(s, ",")
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return v
	}
	return []any{v}
}

func coerceText(_ model.FieldType, v any) (any, error) {
	return cast.ToStringE(v)
}

func coerceBool(_ model.FieldType, v any) (any, error) {
	return cast.ToBoolE(v)
}

// coerceTextList converts any slice or array to a list of trimmed strings.
// An empty list stays empty and compiles to a predicate matching nothing.
func coerceTextList(_ model.FieldType, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if k := rv.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil, fmt.Errorf("unable to use %T as a list", v)
	}
	out := make([]string, rv.Len())
	for i := range out {
		s, err := cast.ToStringE(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = strings.TrimSpace(s)
	}
	return out, nil
}

// Coerce converts v to the Go type matching a column of the given
// semantic type. Unlisted types pass through unchanged.
func Coerce(field model.FieldType, v any) (any, error) {
	out, err := coerceField(field, v)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrInvalidLookupValue, err, "invalid value").
			With("field", string(field))
	}
	return out, nil
}

// coerceField converts a value to the Go type matching the column's
// semantic type.
func coerceField(field model.FieldType, v any) (any, error) {
	switch field {
	case model.FieldInteger:
		return cast.ToInt64E(v)
	case model.FieldFloat, model.FieldDecimal:
		return cast.ToFloat64E(v)
	case model.FieldBoolean:
		return cast.ToBoolE(v)
	case model.FieldDate, model.FieldDateTime:
		if _, err := cast.ToTimeE(v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return v, nil
	}
}

// isEmpty reports nil, empty lists and empty objects.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
