package describe

import (
	"strconv"

	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// Relations derives the relations of table from the foreign keys of all
// tables, then appends overrides. A foreign key owned by table gives a
// many-to-one relation; one that targets table gives a one-to-many relation
// on the other side. Overrides are appended as given and are not
// de-duplicated against derived relations.
func Relations(table *model.Table, all []*model.Table, overrides []model.Relation) []model.Relation {
	taken := make(map[string]bool, len(table.Fields))
	for _, name := range table.ColumnNames() {
		taken[name] = true
	}

	var out []model.Relation
	for _, fk := range table.ForeignKeys {
		out = append(out, model.Relation{
			Name:         uniqueName(fk.RefTable, fk.Column, taken),
			Direction:    model.ManyToOne,
			LocalField:   fk.Column,
			RelatedModel: fk.RefTable,
			RelatedField: fk.RefColumn,
			Source:       model.SourceAuto,
		})
	}

	for _, other := range all {
		for _, fk := range other.ForeignKeys {
			if fk.RefTable != table.Model {
				continue
			}
			out = append(out, model.Relation{
				Name:         uniqueName(other.Model+"_collection", fk.Column, taken),
				Direction:    model.OneToMany,
				LocalField:   fk.RefColumn,
				RelatedModel: other.Model,
				RelatedField: fk.Column,
				Source:       model.SourceAuto,
			})
		}
	}

	for _, o := range overrides {
		o.Source = model.SourceOverride
		out = append(out, o)
	}

	return out
}

// uniqueName returns base, or base_suffix when base is already used by a
// column or an earlier relation.
func uniqueName(base, suffix string, taken map[string]bool) string {
	name := base
	if taken[name] {
		name = base + "_" + suffix
	}
	for i := 2; taken[name]; i++ {
		name = base + "_" + suffix + "_" + strconv.Itoa(i)
	}
	taken[name] = true
	return name
}
