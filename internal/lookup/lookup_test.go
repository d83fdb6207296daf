package lookup

import (
	"reflect"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/testutil"
)

func toSQL(t *testing.T, pred sq.Sqlizer) (string, []any) {
	t.Helper()
	if pred == nil {
		t.Fatal("predicate is nil")
	}
	sql, args, err := pred.ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}
	return sql, args
}

func TestPredicate(t *testing.T) {
	pg := dialect.Postgres()
	lite := dialect.SQLite()

	id := Target{Expr: `"id"`, Field: model.FieldInteger}
	name := Target{Expr: `"name"`, Field: model.FieldText}
	data := Target{Expr: `"data"`, Field: model.FieldJSON}
	geom := Target{Expr: `"geom"`, Field: model.FieldGeometry}

	tests := []struct {
		name     string
		d        dialect.Dialect
		target   Target
		lookup   string
		value    any
		exclude  bool
		wantSQL  string
		wantArgs []any
	}{
		{"exact_coerced", pg, id, Exact, "5", false, `"id" = ?`, []any{int64(5)}},
		{"exact_excluded", pg, id, Exact, 5, true, `"id" <> ?`, []any{int64(5)}},
		{"gt", pg, id, Gt, "1", false, `"id" > ?`, []any{int64(1)}},
		{"gte", pg, id, Gte, 1, false, `"id" >= ?`, []any{int64(1)}},
		{"lt", pg, id, Lt, 1, false, `"id" < ?`, []any{int64(1)}},
		{"lte", pg, id, Lte, 1, false, `"id" <= ?`, []any{int64(1)}},
		{"icontains", pg, name, IContains, "ab", false, `"name" ILIKE ?`, []any{"%ab%"}},
		{"icontains_excluded", pg, name, IContains, "ab", true, `NOT ("name" ILIKE ?)`, []any{"%ab%"}},
		{"icontains_sqlite", lite, name, IContains, "ab", false, `"name" LIKE ?`, []any{"%ab%"}},
		{"istartswith", pg, name, IStartsWith, "ab", false, `"name" ILIKE ?`, []any{"ab%"}},
		{"iendswith", pg, name, IEndsWith, "ab", false, `"name" ILIKE ?`, []any{"%ab"}},
		{"in_string", pg, id, In, "1,2,3", false, `"id" IN (?,?,?)`, []any{"1", "2", "3"}},
		{"in_excluded", pg, id, In, []any{1, 2}, true, `"id" NOT IN (?,?)`, []any{"1", "2"}},
		{"in_scalar", pg, id, In, 7, false, `"id" IN (?)`, []any{"7"}},
		{"in_scalar_string", pg, id, In, "7", false, `"id" IN (?)`, []any{"7"}},
		{"in_string_slice", pg, id, In, []string{"1", " 2"}, false, `"id" IN (?,?)`, []any{"1", "2"}},
		{"in_int_slice", pg, id, In, []int{1, 2}, false, `"id" IN (?,?)`, []any{"1", "2"}},
		{"in_float_array", pg, id, In, [2]float64{1.5, 2}, false, `"id" IN (?,?)`, []any{"1.5", "2"}},
		{"in_empty_string", pg, id, In, "", false, `(1=0)`, nil},
		{"in_empty_string_excluded", pg, id, In, "", true, `(1=1)`, nil},
		{"isnull_true", pg, name, IsNull, true, false, `"name" IS NULL`, nil},
		{"isnull_true_excluded", pg, name, IsNull, true, true, `"name" IS NOT NULL`, nil},
		{"isnull_false", pg, name, IsNull, "false", false, `"name" IS NOT NULL`, nil},
		{"json_container", pg, data, JSONIContains, "x", false, `CAST("data" AS TEXT) ILIKE ?`, []any{"%x%"}},
		{"json_text", pg, name, JSONIContains, "x", false, `"name" ILIKE ?`, []any{"%x%"}},
		{"coveredby", pg, geom, CoveredBy, "SRID=4326;POINT(1 2)", false, `ST_CoveredBy("geom", ST_GeomFromEWKT(?))`, []any{"SRID=4326;POINT(1 2)"}},
		{"coveredby_excluded_sqlite", lite, geom, CoveredBy, "POINT(1 2)", true, `NOT (CoveredBy("geom", GeomFromEWKT(?)))`, []any{"POINT(1 2)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Predicate(tt.d, tt.target, tt.lookup, tt.value, tt.exclude)
			if err != nil {
				t.Fatalf("Predicate() error = %v", err)
			}
			sql, args := toSQL(t, pred)
			if sql != tt.wantSQL {
				t.Errorf("sql = %s, want %s", sql, tt.wantSQL)
			}
			if len(args) != 0 || len(tt.wantArgs) != 0 {
				if !reflect.DeepEqual(args, tt.wantArgs) {
					t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
				}
			}
		})
	}
}

func TestInListForms(t *testing.T) {
	d := dialect.Postgres()
	target := Target{Expr: `"id"`, Field: model.FieldInteger}

	want, err := Predicate(d, target, In, "1,2,3", false)
	if err != nil {
		t.Fatalf("Predicate(%q) error = %v", "1,2,3", err)
	}
	wantSQL, wantArgs := toSQL(t, want)

	forms := map[string]any{
		"any_list":     []any{1, 2, 3},
		"int_list":     []int{1, 2, 3},
		"string_list":  []string{"1", "2", "3"},
		"padded_comma": "1, 2, 3",
	}
	for name, value := range forms {
		t.Run(name, func(t *testing.T) {
			pred, err := Predicate(d, target, In, value, false)
			if err != nil {
				t.Fatalf("Predicate() error = %v", err)
			}
			sql, args := toSQL(t, pred)
			if sql != wantSQL || !reflect.DeepEqual(args, wantArgs) {
				t.Errorf("got %s %v, want %s %v", sql, args, wantSQL, wantArgs)
			}
		})
	}
}

func TestEmptyValueLeavesQueryUnchanged(t *testing.T) {
	d := dialect.Postgres()
	target := Target{Expr: `"c"`, Field: model.FieldText}
	base := sq.Select("*").From("t").Where(sq.Eq{"a": 1})
	wantSQL, wantArgs, _ := base.ToSql()

	empties := map[string]any{
		"nil":         nil,
		"empty_list":  []any{},
		"empty_slice": []string{},
		"empty_map":   map[string]any{},
	}

	for _, name := range Names() {
		for kind, value := range empties {
			for _, exclude := range []bool{false, true} {
				qb, err := Apply(base, d, target, name, value, exclude)
				if err != nil {
					t.Errorf("%s/%s: Apply() error = %v", name, kind, err)
					continue
				}
				sql, args, _ := qb.ToSql()
				if sql != wantSQL || !reflect.DeepEqual(args, wantArgs) {
					t.Errorf("%s/%s exclude=%v changed query: %s", name, kind, exclude, sql)
				}
			}
		}
	}
}

func TestPredicateErrors(t *testing.T) {
	d := dialect.Postgres()

	t.Run("unknown_lookup", func(t *testing.T) {
		_, err := Predicate(d, Target{Expr: "c"}, "icontain", "x", false)
		testutil.AssertError(t, err, alerr.ErrUnknownLookup)
		testutil.AssertErrorContains(t, err, "icontains")
	})

	t.Run("uncoercible", func(t *testing.T) {
		_, err := Predicate(d, Target{Expr: "c", Field: model.FieldInteger}, Gt, "abc", false)
		testutil.AssertError(t, err, alerr.ErrInvalidLookupValue)
	})

	t.Run("bad_bool", func(t *testing.T) {
		_, err := Predicate(d, Target{Expr: "c"}, IsNull, "maybe", false)
		testutil.AssertError(t, err, alerr.ErrInvalidLookupValue)
	})

	t.Run("bad_date", func(t *testing.T) {
		_, err := Predicate(d, Target{Expr: "c", Field: model.FieldDate}, Gte, "not a date", false)
		testutil.AssertError(t, err, alerr.ErrInvalidLookupValue)
	})
}

func TestNames(t *testing.T) {
	if got := len(Names()); got != 12 {
		t.Errorf("len(Names()) = %d, want 12", got)
	}
	for _, name := range Names() {
		if !Valid(name) {
			t.Errorf("Valid(%q) = false", name)
		}
	}
}
