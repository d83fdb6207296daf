package describe

import (
	"reflect"
	"testing"

	"github.com/tayjaybabee/jet-bridge/internal/model"
)

func TestParseColumnMeta(t *testing.T) {
	hidden := true

	tests := []struct {
		name    string
		comment string
		want    ColumnMeta
	}{
		{
			name:    "all_keys",
			comment: `{"field": "email", "name": "E-mail", "params": {"widget": "email"}, "order_after": "name", "hidden": true}`,
			want: ColumnMeta{
				Field:      "email",
				Name:       "E-mail",
				Params:     map[string]any{"widget": "email"},
				OrderAfter: "name",
				Hidden:     &hidden,
			},
		},
		{
			name:    "params_not_object_dropped",
			comment: `{"name": "Total", "params": [1, 2]}`,
			want:    ColumnMeta{Name: "Total"},
		},
		{
			name:    "wrong_types_dropped",
			comment: `{"field": 3, "hidden": "yes", "order_after": {"x": 1}}`,
			want:    ColumnMeta{},
		},
		{
			name:    "unknown_keys_ignored",
			comment: `{"color": "red"}`,
			want:    ColumnMeta{},
		},
		{
			name:    "plain_text",
			comment: "customer e-mail address",
			want:    ColumnMeta{},
		},
		{
			name:    "json_array",
			comment: `["a"]`,
			want:    ColumnMeta{},
		},
		{
			name:    "empty",
			comment: "",
			want:    ColumnMeta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseColumnMeta(tt.comment); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseColumnMeta() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseTableMeta(t *testing.T) {
	meta := ParseTableMeta(`{"name": "Customer", "name_plural": "Customers", "order_after": 2}`)
	if meta.Name != "Customer" || meta.NamePlural != "Customers" || meta.OrderAfter != float64(2) {
		t.Errorf("ParseTableMeta() = %+v", meta)
	}

	var table model.Table
	meta.Apply(&table)
	if table.DataSourceName != "Customer" || table.DataSourceNamePlural != "Customers" {
		t.Errorf("Apply() = %+v", table)
	}

	if got := ParseTableMeta("not json"); !reflect.DeepEqual(got, TableMeta{}) {
		t.Errorf("ParseTableMeta(not json) = %+v", got)
	}
}
