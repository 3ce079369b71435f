package models

// DynamicFieldType is the closed set of value types a dynamic field
// definition may declare. Projection dispatches on this enum, never on
// the raw type name stored by the catalog editor.
type DynamicFieldType int

const (
	FieldTypeText DynamicFieldType = iota
	FieldTypeNumber
	FieldTypeBoolean
	FieldTypeSelect
)

func (t DynamicFieldType) String() string {
	switch t {
	case FieldTypeText:
		return "text"
	case FieldTypeNumber:
		return "number"
	case FieldTypeBoolean:
		return "boolean"
	case FieldTypeSelect:
		return "select"
	default:
		return "unknown"
	}
}

// ParseDynamicFieldType maps the catalog's stored type name onto the enum.
// Unknown names fall back to text so a new catalog type never breaks
// existing projections.
func ParseDynamicFieldType(name string) DynamicFieldType {
	switch name {
	case "number", "numeric", "decimal", "integer":
		return FieldTypeNumber
	case "boolean", "bool":
		return FieldTypeBoolean
	case "select", "option":
		return FieldTypeSelect
	default:
		return FieldTypeText
	}
}

// DynamicFieldDefinition is a custom attribute defined per property or
// unit type by the catalog editor.
type DynamicFieldDefinition struct {
	ID            string `bson:"_id" json:"id"`
	Name          string `bson:"name" json:"name"`
	TypeName      string `bson:"type_name" json:"type_name"`
	IsSearchable  bool   `bson:"is_searchable" json:"is_searchable"`
	AppliesToUnit bool   `bson:"applies_to_unit" json:"applies_to_unit"`
}

// Type returns the declared value type as a closed enum.
func (d DynamicFieldDefinition) Type() DynamicFieldType {
	return ParseDynamicFieldType(d.TypeName)
}

// DynamicFieldValue is one stored value of a dynamic field on a unit.
// Values are stored as text regardless of declared type; typed
// interpretation happens at projection time.
type DynamicFieldValue struct {
	FieldID string `bson:"field_id" json:"field_id"`
	Value   string `bson:"value" json:"value"`
}
