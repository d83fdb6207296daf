package describe

import (
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/introspect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// nativeTypes maps lower-case native type names of both dialects to
// semantic field types.
var nativeTypes = map[string]model.FieldType{
	"uuid": model.FieldUUID,

	"varchar":           model.FieldChar,
	"character varying": model.FieldChar,
	"char":              model.FieldChar,
	"character":         model.FieldChar,
	"bpchar":            model.FieldChar,
	"nvarchar":          model.FieldChar,
	"nchar":             model.FieldChar,

	"text":   model.FieldText,
	"citext": model.FieldText,
	"clob":   model.FieldText,
	"name":   model.FieldText,

	"int2":      model.FieldInteger,
	"int4":      model.FieldInteger,
	"int8":      model.FieldInteger,
	"smallint":  model.FieldInteger,
	"int":       model.FieldInteger,
	"integer":   model.FieldInteger,
	"bigint":    model.FieldInteger,
	"tinyint":   model.FieldInteger,
	"mediumint": model.FieldInteger,
	"serial":    model.FieldInteger,
	"bigserial": model.FieldInteger,

	"float4":           model.FieldFloat,
	"float8":           model.FieldFloat,
	"real":             model.FieldFloat,
	"float":            model.FieldFloat,
	"double":           model.FieldFloat,
	"double precision": model.FieldFloat,

	"numeric": model.FieldDecimal,
	"decimal": model.FieldDecimal,
	"money":   model.FieldDecimal,

	"bool":    model.FieldBoolean,
	"boolean": model.FieldBoolean,

	"date":                        model.FieldDate,
	"time":                        model.FieldTime,
	"timetz":                      model.FieldTime,
	"time without time zone":      model.FieldTime,
	"time with time zone":         model.FieldTime,
	"timestamp":                   model.FieldDateTime,
	"timestamptz":                 model.FieldDateTime,
	"datetime":                    model.FieldDateTime,
	"timestamp without time zone": model.FieldDateTime,
	"timestamp with time zone":    model.FieldDateTime,

	"json":  model.FieldJSON,
	"jsonb": model.FieldJSON,

	"bytea": model.FieldBinary,
	"blob":  model.FieldBinary,

	"geometry":  model.FieldGeometry,
	"geography": model.FieldGeometry,
}

// MapType derives the semantic type and type params of a non-foreign-key
// column. Unrecognized types map to FieldUnknown.
func MapType(dialectName string, raw *introspect.RawColumn) (model.FieldType, map[string]any) {
	if len(raw.EnumValues) > 0 {
		options := make([]any, len(raw.EnumValues))
		for i, v := range raw.EnumValues {
			options[i] = map[string]any{"name": v, "value": v}
		}
		return model.FieldSelect, map[string]any{"options": options}
	}

	field, ok := nativeTypes[raw.DataType]
	if !ok && dialectName == "sqlite" {
		field, ok = sqliteAffinity(raw.DataType)
	}
	if !ok {
		return model.FieldUnknown, nil
	}

	switch field {
	case model.FieldChar:
		if raw.MaxLength.Valid && raw.MaxLength.Int64 > 0 {
			return field, map[string]any{"length": int(raw.MaxLength.Int64)}
		}
		return model.FieldText, nil
	case model.FieldDecimal:
		if raw.Precision.Valid {
			params := map[string]any{"precision": int(raw.Precision.Int64)}
			if raw.Scale.Valid {
				params["scale"] = int(raw.Scale.Int64)
			}
			return field, params
		}
	case model.FieldDate:
		return field, map[string]any{"date": true, "time": false}
	case model.FieldTime:
		return field, map[string]any{"date": false, "time": true}
	case model.FieldDateTime:
		return field, map[string]any{"date": true, "time": true}
	}
	return field, nil
}

// sqliteAffinity applies SQLite's column affinity rules to declared types
// that are not in the native table.
func sqliteAffinity(declared string) (model.FieldType, bool) {
	switch {
	case declared == "":
		return "", false
	case strings.Contains(declared, "int"):
		return model.FieldInteger, true
	case strings.Contains(declared, "char"), strings.Contains(declared, "clob"), strings.Contains(declared, "text"):
		return model.FieldText, true
	case strings.Contains(declared, "blob"):
		return model.FieldBinary, true
	case strings.Contains(declared, "real"), strings.Contains(declared, "floa"), strings.Contains(declared, "doub"):
		return model.FieldFloat, true
	}
	return "", false
}
