package model

import (
	"encoding/json"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// Document returns the table as a generic key-value document, the form
// overlays are merged onto.
func (t *Table) Document() (map[string]any, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to encode table descriptor").
			WithTable(t.Model)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to decode table document").
			WithTable(t.Model)
	}
	return doc, nil
}

// TableFromDocument rebuilds a table from a document produced by Document
// and possibly merged with external data. Keys that are not descriptor
// fields are dropped. The catalog foreign keys of base are carried over.
func TableFromDocument(doc map[string]any, base *Table) (*Table, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrMetadataParse, err, "failed to encode table document")
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, alerr.Wrap(alerr.ErrMetadataParse, err, "table document does not match descriptor shape")
	}
	if base != nil {
		t.ForeignKeys = base.ForeignKeys
	}
	return &t, nil
}
