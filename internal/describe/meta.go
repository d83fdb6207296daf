package describe

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// ColumnMeta holds the recognized keys of a column comment payload.
type ColumnMeta struct {
	Field      string
	Name       string
	Params     map[string]any
	OrderAfter any
	Hidden     *bool
}

// TableMeta holds the recognized keys of a table comment payload.
type TableMeta struct {
	Name       string
	NamePlural string
	OrderAfter any
	Hidden     *bool
}

// parseObject decodes a comment as a JSON object. Comments that are plain
// text or other JSON values report ErrMetadataParse.
func parseObject(comment string) (map[string]any, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(comment), &doc); err != nil {
		return nil, alerr.Wrap(alerr.ErrMetadataParse, err, "comment is not a JSON object")
	}
	return doc, nil
}

// ParseColumnMeta reads a column comment. Keys with the wrong type are
// dropped one by one; a payload that is not an object yields an empty meta.
func ParseColumnMeta(comment string) ColumnMeta {
	var meta ColumnMeta
	doc, err := parseObject(comment)
	if err != nil {
		slog.Debug("ignoring column comment", "error", err)
		return meta
	}

	meta.Field, _ = doc["field"].(string)
	meta.Name, _ = doc["name"].(string)
	meta.Params, _ = doc["params"].(map[string]any)
	meta.OrderAfter = orderHint(doc["order_after"])
	meta.Hidden = boolPtr(doc["hidden"])
	return meta
}

// ParseTableMeta reads a table comment the same way as ParseColumnMeta.
func ParseTableMeta(comment string) TableMeta {
	var meta TableMeta
	doc, err := parseObject(comment)
	if err != nil {
		slog.Debug("ignoring table comment", "error", err)
		return meta
	}

	meta.Name, _ = doc["name"].(string)
	meta.NamePlural, _ = doc["name_plural"].(string)
	meta.OrderAfter = orderHint(doc["order_after"])
	meta.Hidden = boolPtr(doc["hidden"])
	return meta
}

// Apply copies the recognized keys onto a column descriptor.
func (m ColumnMeta) Apply(c *model.Column) {
	c.DataSourceField = m.Field
	c.DataSourceName = m.Name
	c.DataSourceParams = m.Params
	c.DataSourceOrderAfter = m.OrderAfter
	c.DataSourceHidden = m.Hidden
}

// Apply copies the recognized keys onto a table descriptor.
func (m TableMeta) Apply(t *model.Table) {
	t.DataSourceName = m.Name
	t.DataSourceNamePlural = m.NamePlural
	t.DataSourceOrderAfter = m.OrderAfter
	t.DataSourceHidden = m.Hidden
}

// orderHint accepts a column/table name or a position.
func orderHint(v any) any {
	switch v.(type) {
	case string, float64:
		return v
	}
	return nil
}

func boolPtr(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}
