// Package schema holds the explicit, reflection-free description of an
// entity type: its fields, primary key, and declared integrity constraints.
//
// Definitions are compiled once (from CUE files, see internal/compiler) and
// held read-only for the schema's lifetime. Nothing in the engine inspects
// schemas dynamically - constraint metadata is plain data passed by
// reference.
package schema

import (
	"fmt"

	"github.com/roach88/strata/internal/namespace"
)

// FieldType is the semantic type of a field, used by the projector to
// synthesize default values for schemaless gaps.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeList    FieldType = "list"
	TypeMap     FieldType = "map"
)

// Zero returns the type's zero value: "", 0, false, [], {}.
func (t FieldType) Zero() any {
	switch t {
	case TypeString:
		return ""
	case TypeInteger:
		return int64(0)
	case TypeBoolean:
		return false
	case TypeList:
		return []any{}
	case TypeMap:
		return map[string]any{}
	default:
		return nil
	}
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeBoolean, TypeList, TypeMap:
		return true
	}
	return false
}

// Field is one declared field of a schema.
type Field struct {
	Name string
	Type FieldType
}

// ForeignKey declares that a field's value must reference an existing
// document in the target namespace.
type ForeignKey struct {
	Field  string // local field holding the referenced id
	Target string // referenced namespace
}

// Schema describes one entity type.
//
// Unique holds one entry per unique constraint; each entry lists the fields
// composing the constraint (multi-field entries declare composite
// uniqueness).
type Schema struct {
	// Name is the declared type name, e.g. "User".
	Name string

	// Namespace is the collection prefix. Derived from Name unless the
	// definition sets it explicitly.
	Namespace string

	// PrimaryKey is the field treated as the document's local id.
	PrimaryKey string

	Fields      []Field
	Unique      [][]string
	ForeignKeys []ForeignKey
}

// ConfigurationError reports a schema-authoring bug: an ambiguous or
// inconsistent declaration. It is fatal - never retried, never treated as a
// validation failure.
type ConfigurationError struct {
	Schema  string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("schema %q: %s", e.Schema, e.Message)
}

// New builds a schema with defaults applied: the namespace is derived from
// the type name when unset, and the primary key defaults to "id".
func New(name string) *Schema {
	return &Schema{
		Name:       name,
		Namespace:  namespace.Derive(name),
		PrimaryKey: "id",
	}
}

// FieldMeta returns the field-name → semantic-type map consumed by the
// projector.
func (s *Schema) FieldMeta() map[string]FieldType {
	meta := make(map[string]FieldType, len(s.Fields))
	for _, f := range s.Fields {
		meta[f.Name] = f.Type
	}
	return meta
}

// FieldNames returns the declared field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// HasField reports whether the schema declares the named field.
func (s *Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Check verifies internal consistency: field types are known, constraint
// declarations reference declared fields, and unique entries are non-empty.
func (s *Schema) Check() error {
	if s.Name == "" {
		return &ConfigurationError{Schema: s.Name, Message: "schema name is required"}
	}
	if s.Namespace == "" {
		return &ConfigurationError{Schema: s.Name, Message: "namespace is required"}
	}
	for _, f := range s.Fields {
		if !f.Type.Valid() {
			return &ConfigurationError{
				Schema:  s.Name,
				Message: fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type),
			}
		}
	}
	for _, fields := range s.Unique {
		if len(fields) == 0 {
			return &ConfigurationError{Schema: s.Name, Message: "unique constraint with no fields"}
		}
		for _, f := range fields {
			if !s.HasField(f) {
				return &ConfigurationError{
					Schema:  s.Name,
					Message: fmt.Sprintf("unique constraint references undeclared field %q", f),
				}
			}
		}
	}
	for _, fk := range s.ForeignKeys {
		if fk.Field == "" || fk.Target == "" {
			return &ConfigurationError{Schema: s.Name, Message: "foreign key requires field and target"}
		}
		if !s.HasField(fk.Field) {
			return &ConfigurationError{
				Schema:  s.Name,
				Message: fmt.Sprintf("foreign key references undeclared field %q", fk.Field),
			}
		}
	}
	return nil
}
