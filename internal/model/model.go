// Package model defines the normalized descriptors produced by reflection:
// tables, columns, relations and default specs, plus the Model that groups
// them for one connection.
//
// Descriptors are built once during reflection and never mutated after the
// Model is installed, so readers may share them freely.
package model

import (
	"slices"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// FieldType is the backend-independent semantic type of a column.
type FieldType string

const (
	FieldForeignKey FieldType = "foreign_key"
	FieldChar       FieldType = "char"
	FieldText       FieldType = "text"
	FieldBoolean    FieldType = "boolean"
	FieldInteger    FieldType = "integer"
	FieldFloat      FieldType = "float"
	FieldDecimal    FieldType = "decimal"
	FieldDateTime   FieldType = "datetime"
	FieldDate       FieldType = "date"
	FieldTime       FieldType = "time"
	FieldJSON       FieldType = "json"
	FieldUUID       FieldType = "uuid"
	FieldBinary     FieldType = "binary"
	FieldSelect     FieldType = "select"
	FieldGeometry   FieldType = "geometry"
	FieldUnknown    FieldType = "unknown"
)

// DefaultKind identifies a recognized server-side default expression.
type DefaultKind string

const (
	DefaultDateTimeNow DefaultKind = "datetime_now"
	DefaultUUID        DefaultKind = "uuid"
	DefaultValue       DefaultKind = "value"
	DefaultSequence    DefaultKind = "sequence"
)

// DefaultSpec describes a parsed column default. Value holds the literal for
// DefaultValue and the sequence name for DefaultSequence.
type DefaultSpec struct {
	Kind  DefaultKind `json:"type"`
	Value any         `json:"value,omitempty"`
}

// Direction is the cardinality of a relation seen from its owning table.
type Direction string

const (
	ManyToOne Direction = "many_to_one"
	OneToMany Direction = "one_to_many"
)

// RelationSource tells whether a relation was derived from a foreign key or
// supplied externally.
type RelationSource string

const (
	SourceAuto     RelationSource = "auto"
	SourceOverride RelationSource = "override"
)

// Column describes one column of a table.
type Column struct {
	Name       string    `json:"name"`
	DBColumn   string    `json:"db_column"`
	Field      FieldType `json:"field"`
	DBField    string    `json:"db_field"`
	Filterable bool      `json:"filterable"`
	Required   bool      `json:"required"`
	Null       bool      `json:"null"`
	Editable   bool      `json:"editable"`
	PrimaryKey bool      `json:"primary_key"`

	AutoIncrement bool         `json:"auto_increment,omitempty"`
	ClientDefault bool         `json:"client_default,omitempty"`
	ServerDefault string       `json:"server_default,omitempty"`
	Default       *DefaultSpec `json:"default,omitempty"`

	Params map[string]any `json:"params,omitempty"`

	// Overrides read from the column comment.
	DataSourceField      string         `json:"data_source_field,omitempty"`
	DataSourceName       string         `json:"data_source_name,omitempty"`
	DataSourceParams     map[string]any `json:"data_source_params,omitempty"`
	DataSourceOrderAfter any            `json:"data_source_order_after,omitempty"`
	DataSourceHidden     *bool          `json:"data_source_hidden,omitempty"`
}

// Optional reports whether a value may be omitted on insert.
func (c *Column) Optional() bool {
	return c.AutoIncrement || c.ClientDefault || c.ServerDefault != "" || c.Null
}

// Relation describes a navigable link between two tables.
type Relation struct {
	Name         string         `json:"name"`
	Direction    Direction      `json:"direction"`
	LocalField   string         `json:"local_field"`
	RelatedModel string         `json:"related_model"`
	RelatedField string         `json:"related_field"`
	Source       RelationSource `json:"source"`
}

// ForeignKey is a single-column reference kept from the catalog so relations
// can be recomputed when the model is extended.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Table describes one reflected table or view.
type Table struct {
	Model               string     `json:"model"`
	DBTable             string     `json:"db_table"`
	View                bool       `json:"view,omitempty"`
	Fields              []Column   `json:"fields"`
	Relations           []Relation `json:"relations"`
	Hidden              bool       `json:"hidden"`
	PrimaryKeyField     string     `json:"primary_key_field"`
	PrimaryKeySynthetic bool       `json:"primary_key_synthetic"`

	// Overrides read from the table comment.
	DataSourceName       string `json:"data_source_name,omitempty"`
	DataSourceNamePlural string `json:"data_source_name_plural,omitempty"`
	DataSourceOrderAfter any    `json:"data_source_order_after,omitempty"`
	DataSourceHidden     *bool  `json:"data_source_hidden,omitempty"`

	ForeignKeys []ForeignKey `json:"-"`
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// PrimaryKey returns the primary key column, or nil if none is set.
func (t *Table) PrimaryKey() *Column {
	col, ok := t.Column(t.PrimaryKeyField)
	if !ok {
		return nil
	}
	return col
}

// ColumnNames returns the column names in catalog order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Fields))
	for i := range t.Fields {
		names[i] = t.Fields[i].Name
	}
	return names
}

// RelationOverrides returns the externally supplied relations.
func (t *Table) RelationOverrides() []Relation {
	var out []Relation
	for _, r := range t.Relations {
		if r.Source == SourceOverride {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks that exactly one column is the primary key and that it is
// the one named by PrimaryKeyField.
func (t *Table) Validate() error {
	var pks []string
	for i := range t.Fields {
		if t.Fields[i].PrimaryKey {
			pks = append(pks, t.Fields[i].Name)
		}
	}
	if len(pks) != 1 {
		return alerr.Newf(alerr.ErrSchemaInvalid, "table must have exactly one primary key, found %d", len(pks)).
			WithTable(t.Model).
			With("primary_keys", pks)
	}
	if pks[0] != t.PrimaryKeyField {
		return alerr.New(alerr.ErrSchemaInvalid, "primary key field does not match flagged column").
			WithTable(t.Model).
			With("primary_key_field", t.PrimaryKeyField).
			With("flagged", pks[0])
	}
	return nil
}

// Model is the installed set of table descriptors for one connection.
// It is safe for concurrent reads once built.
type Model struct {
	tables map[string]*Table
	order  []string
}

// New builds a Model from tables, keeping their order. A later table with
// the same name replaces the earlier one in place.
func New(tables ...*Table) *Model {
	m := &Model{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, exists := m.tables[t.Model]; !exists {
			m.order = append(m.order, t.Model)
		}
		m.tables[t.Model] = t
	}
	return m
}

// Get returns the table with the given name.
func (m *Model) Get(name string) (*Table, bool) {
	if m == nil {
		return nil, false
	}
	t, ok := m.tables[name]
	return t, ok
}

// Has reports whether the model contains the table.
func (m *Model) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Tables returns all tables in reflection order.
func (m *Model) Tables() []*Table {
	if m == nil {
		return nil
	}
	out := make([]*Table, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.tables[name])
	}
	return out
}

// Names returns the table names in reflection order.
func (m *Model) Names() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.order)
}

// Len returns the number of tables.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Counts returns the number of tables, columns and relations.
func (m *Model) Counts() (tables, columns, relations int) {
	for _, t := range m.Tables() {
		tables++
		columns += len(t.Fields)
		relations += len(t.Relations)
	}
	return tables, columns, relations
}
