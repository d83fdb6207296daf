package lookup

import (
	"context"
	"net/url"
	"reflect"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/testutil"
)

func peopleTable() *model.Table {
	return &model.Table{
		Model:           "people",
		DBTable:         "people",
		PrimaryKeyField: "id",
		Fields: []model.Column{
			{Name: "id", DBColumn: "id", Field: model.FieldInteger, PrimaryKey: true},
			{Name: "name", DBColumn: "name", Field: model.FieldText},
			{Name: "status", DBColumn: "status", Field: model.FieldText},
			{Name: "data", DBColumn: "data", Field: model.FieldJSON},
		},
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key  string
		want Filter
	}{
		{"name", Filter{Column: "name", Lookup: Exact}},
		{"name__icontains", Filter{Column: "name", Lookup: IContains}},
		{"exclude__status__in", Filter{Column: "status", Lookup: In, Exclude: true}},
		{"data__json_icontains", Filter{Column: "data", Lookup: JSONIContains}},
		{"odd__name", Filter{Column: "odd__name", Lookup: Exact}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := parseKey(tt.key); got != tt.want {
				t.Errorf("parseKey() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	table := peopleTable()

	params := url.Values{
		"name__icontains":     {"o"},
		"exclude__status__in": {"a", "b"},
		"ordering":            {"-id"},
		"id__gte":             {"2"},
	}
	filters, err := ParseParams(params, table)
	if err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}

	want := []Filter{
		{Column: "status", Lookup: In, Value: []string{"a", "b"}, Exclude: true},
		{Column: "id", Lookup: Gte, Value: "2"},
		{Column: "name", Lookup: IContains, Value: "o"},
	}
	if !reflect.DeepEqual(filters, want) {
		t.Errorf("filters = %+v, want %+v", filters, want)
	}

	_, err = ParseParams(url.Values{"nmae__gt": {"1"}}, table)
	testutil.AssertError(t, err, alerr.ErrUnknownField)
	testutil.AssertErrorContains(t, err, "did you mean 'name'")
}

func TestApplyFiltersSQLite(t *testing.T) {
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, status TEXT, data TEXT)`)
	testutil.ExecSQL(t, db, `INSERT INTO people (id, name, status, data) VALUES
		(1, 'Alice', 'a', '{"tag": "Blue"}'),
		(2, 'bob', 'b', NULL),
		(3, 'Carol', 'c', '{"tag": "red"}'),
		(4, 'Dora', NULL, NULL)`)

	d := dialect.SQLite()
	table := peopleTable()

	tests := []struct {
		name    string
		filters []Filter
		want    []int64
	}{
		{"icontains", []Filter{{Column: "name", Lookup: IContains, Value: "O"}}, []int64{2, 3, 4}},
		{"istartswith", []Filter{{Column: "name", Lookup: IStartsWith, Value: "a"}}, []int64{1}},
		{"in_excluded", []Filter{{Column: "status", Lookup: In, Value: "a,b", Exclude: true}}, []int64{3}},
		{"isnull", []Filter{{Column: "status", Lookup: IsNull, Value: "true"}}, []int64{4}},
		{"json", []Filter{{Column: "data", Lookup: JSONIContains, Value: "blue"}}, []int64{1}},
		{"combined", []Filter{
			{Column: "id", Lookup: Gt, Value: "1"},
			{Column: "name", Lookup: IEndsWith, Value: "L"},
		}, []int64{3}},
		{"empty_in", []Filter{{Column: "id", Lookup: In, Value: []string{}}}, []int64{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := sq.Select(d.QuoteIdent("id")).From(d.QuoteIdent("people")).OrderBy(d.QuoteIdent("id")).PlaceholderFormat(d.Placeholder())
			qb, err := ApplyFilters(qb, d, table, tt.filters)
			if err != nil {
				t.Fatalf("ApplyFilters() error = %v", err)
			}
			query, args, err := qb.ToSql()
			if err != nil {
				t.Fatalf("ToSql() error = %v", err)
			}

			rows, err := db.QueryContext(context.Background(), query, args...)
			if err != nil {
				t.Fatalf("query %s: %v", query, err)
			}
			defer rows.Close()

			var got []int64
			for rows.Next() {
				var id int64
				if err := rows.Scan(&id); err != nil {
					t.Fatal(err)
				}
				got = append(got, id)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}
