// Package overlay supplies the external per-table inputs of reflection:
// additional descriptions, the hidden-table set and relation overrides.
// They are read from a YAML file that may be watched for changes.
package overlay

import (
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/describe"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// Relation is a relation override as written in an overlay file.
type Relation struct {
	Name         string          `yaml:"name"`
	Direction    model.Direction `yaml:"direction"`
	LocalField   string          `yaml:"local_field"`
	RelatedModel string          `yaml:"related_model"`
	RelatedField string          `yaml:"related_field"`
}

// File is the overlay file layout:
//
//	hidden: [audit_log]
//	tables:
//	  orders:
//	    data_source_name: Order
//	relations:
//	  orders:
//	    - name: buyer
//	      direction: many_to_one
//	      local_field: customer_id
//	      related_model: customers
//	      related_field: id
type File struct {
	Hidden    []string                  `yaml:"hidden"`
	Tables    map[string]map[string]any `yaml:"tables"`
	Relations map[string][]Relation     `yaml:"relations"`
}

// Static is an immutable overlay.
type Static struct {
	hidden     map[string]bool
	additional map[string]map[string]any
	relations  map[string][]model.Relation
}

var _ describe.Overlay = (*Static)(nil)

// Empty returns an overlay with no data.
func Empty() *Static {
	return FromFile(File{})
}

// FromFile builds an overlay from a decoded file.
func FromFile(f File) *Static {
	s := &Static{
		hidden:     make(map[string]bool, len(f.Hidden)),
		additional: make(map[string]map[string]any, len(f.Tables)),
		relations:  make(map[string][]model.Relation, len(f.Relations)),
	}
	for _, name := range f.Hidden {
		s.hidden[name] = true
	}
	for table, doc := range f.Tables {
		s.additional[table] = doc
	}
	for table, rels := range f.Relations {
		for _, r := range rels {
			s.relations[table] = append(s.relations[table], model.Relation{
				Name:         r.Name,
				Direction:    r.Direction,
				LocalField:   r.LocalField,
				RelatedModel: r.RelatedModel,
				RelatedField: r.RelatedField,
				Source:       model.SourceOverride,
			})
		}
	}
	return s
}

// Parse decodes overlay YAML.
func Parse(data []byte) (*Static, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, alerr.Wrap(alerr.ErrMetadataParse, err, "invalid overlay file")
	}
	for table, rels := range f.Relations {
		for _, r := range rels {
			if r.Direction != model.ManyToOne && r.Direction != model.OneToMany {
				return nil, alerr.New(alerr.ErrMetadataParse, "invalid relation direction").
					WithTable(table).
					With("relation", r.Name).
					With("direction", string(r.Direction))
			}
		}
	}
	return FromFile(f), nil
}

// Load reads and decodes an overlay file.
func Load(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrMetadataParse, err, "cannot read overlay file").With("path", path)
	}
	s, err := Parse(data)
	if err != nil {
		if e, ok := err.(*alerr.Error); ok {
			e.With("path", path)
		}
		return nil, err
	}
	return s, nil
}

// AdditionalDescription returns the description merged onto table.
func (s *Static) AdditionalDescription(table string) map[string]any {
	return s.additional[table]
}

// Hidden reports whether table is hidden.
func (s *Static) Hidden(table string) bool {
	return s.hidden[table]
}

// RelationOverrides returns the relation overrides for table.
func (s *Static) RelationOverrides(table string) []model.Relation {
	return slices.Clone(s.relations[table])
}
