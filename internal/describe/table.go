package describe

import (
	"log/slog"

	"github.com/tayjaybabee/jet-bridge/internal/introspect"
	"github.com/tayjaybabee/jet-bridge/internal/merge"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// TokenTable is always hidden.
const TokenTable = "__jet__token"

// Overlay supplies external per-table data: additional descriptions,
// the hidden-table set and relation overrides.
type Overlay interface {
	AdditionalDescription(table string) map[string]any
	Hidden(table string) bool
	RelationOverrides(table string) []model.Relation
}

// PrimaryKeyFunc resolves the primary key column of a referenced table.
type PrimaryKeyFunc func(table string) string

// Table maps a catalog table to a descriptor without relations. The first
// column flagged primary key becomes the table's primary key; further
// flagged columns of a composite key are left unflagged.
func Table(dialectName string, raw *introspect.RawTable, primaryKeyOf PrimaryKeyFunc) *model.Table {
	t := &model.Table{
		Model:   raw.Name,
		DBTable: raw.Name,
		View:    raw.View,
		Fields:  make([]model.Column, 0, len(raw.Columns)),
	}

	for _, rc := range raw.Columns {
		var ref *Reference
		if refTable, refColumn, ok := raw.ForeignKeyFor(rc.Name); ok {
			ref = &Reference{Table: refTable, Column: refColumn}
			if primaryKeyOf != nil {
				ref.TablePrimaryKey = primaryKeyOf(refTable)
			}
			t.ForeignKeys = append(t.ForeignKeys, model.ForeignKey{
				Column:    rc.Name,
				RefTable:  refTable,
				RefColumn: refColumn,
			})
		}

		col := Column(dialectName, rc, ref)
		if col.PrimaryKey {
			if t.PrimaryKeyField == "" {
				t.PrimaryKeyField = col.Name
			} else {
				col.PrimaryKey = false
			}
		}
		t.Fields = append(t.Fields, col)
	}

	if raw.Comment.Valid {
		ParseTableMeta(raw.Comment.String).Apply(t)
	}

	return t
}

// Assemble computes relations for every table, applies the hidden set and
// merges additional descriptions as the final step. tables is the complete
// set of the model so one-to-many relations can be found.
func Assemble(tables []*model.Table, overlay Overlay) []*model.Table {
	out := make([]*model.Table, 0, len(tables))
	for _, t := range tables {
		assembled := *t
		var overrides []model.Relation
		if overlay != nil {
			overrides = overlay.RelationOverrides(t.Model)
		}
		assembled.Relations = Relations(t, tables, overrides)
		assembled.Hidden = t.Model == TokenTable || (overlay != nil && overlay.Hidden(t.Model))

		if overlay != nil {
			if additional := overlay.AdditionalDescription(t.Model); len(additional) > 0 {
				assembled = *applyAdditional(&assembled, additional)
			}
		}
		out = append(out, &assembled)
	}
	return out
}

// applyAdditional deep-merges an additional description onto a table. A
// description that does not fit the descriptor shape, or that leaves the
// table without exactly one primary key, is ignored.
func applyAdditional(t *model.Table, additional map[string]any) *model.Table {
	doc, err := t.Document()
	if err != nil {
		slog.Warn("cannot encode table for additional description", "table", t.Model, "error", err)
		return t
	}
	merged, err := model.TableFromDocument(merge.Merge(doc, additional), t)
	if err != nil {
		slog.Debug("ignoring additional description", "table", t.Model, "error", err)
		return t
	}
	if err := merged.Validate(); err != nil {
		slog.Warn("ignoring additional description", "table", t.Model, "error", err)
		return t
	}
	return merged
}
