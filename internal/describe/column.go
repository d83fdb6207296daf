// Package describe maps raw catalog records to descriptors: the type and
// default mapper for columns, the relationship mapper, and table assembly
// with external overlays.
package describe

import (
	"github.com/tayjaybabee/jet-bridge/internal/introspect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// Reference is the target of a foreign key column.
type Reference struct {
	Table string
	// Column is the referenced column.
	Column string
	// TablePrimaryKey is the referenced table's own primary key column.
	TablePrimaryKey string
}

// Column maps one catalog column to a descriptor. ref is nil unless the
// column carries a foreign key.
func Column(dialectName string, raw *introspect.RawColumn, ref *Reference) model.Column {
	col := model.Column{
		Name:          raw.Name,
		DBColumn:      raw.Name,
		DBField:       raw.DataType,
		Filterable:    true,
		Null:          raw.IsNullable,
		Editable:      !raw.Generated,
		PrimaryKey:    raw.IsPrimaryKey,
		AutoIncrement: raw.AutoIncrement,
	}

	if ref != nil {
		col.Field = model.FieldForeignKey
		col.Params = map[string]any{
			"related_model": map[string]any{"model": ref.Table},
		}
		if ref.Column != ref.TablePrimaryKey {
			col.Params["custom_primary_key"] = ref.Column
		}
	} else {
		col.Field, col.Params = MapType(dialectName, raw)
	}

	if raw.Default.Valid {
		col.ServerDefault = raw.Default.String
		col.Default = ParseDefault(raw.Default.String)
	}
	col.Required = !col.Optional()

	if raw.Comment.Valid {
		ParseColumnMeta(raw.Comment.String).Apply(&col)
	}

	return col
}
