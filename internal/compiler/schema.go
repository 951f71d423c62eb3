// Package compiler parses CUE schema definitions into the engine's plain
// schema structures. Definitions are compiled once at load time; nothing
// downstream touches CUE values.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/strata/internal/schema"
)

// CompileAll parses every entry under the top-level "schema" struct, e.g.:
//
//	schema: User: {
//		fields: {id: string, email: string, age: int}
//		unique: [["email"]]
//		foreignKey: [{field: "org", target: "org"}]
//	}
//
// Uses CUE SDK's Go API directly (not CLI subprocess).
func CompileAll(v cue.Value) ([]*schema.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("schema"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "schema",
			Message: "top-level schema struct is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var schemas []*schema.Schema
	for iter.Next() {
		sc, err := CompileSchema(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, sc)
	}
	if len(schemas) == 0 {
		return nil, &CompileError{
			Field:   "schema",
			Message: "at least one schema definition is required",
			Pos:     root.Pos(),
		}
	}
	return schemas, nil
}

// CompileSchema parses one named schema definition.
func CompileSchema(name string, v cue.Value) (*schema.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	sc := schema.New(name)

	// Namespace and primary key default from the name; the definition may
	// override both.
	if nsVal := v.LookupPath(cue.ParsePath("namespace")); nsVal.Exists() {
		ns, err := nsVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		sc.Namespace = ns
	}
	if pkVal := v.LookupPath(cue.ParsePath("primaryKey")); pkVal.Exists() {
		pk, err := pkVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		sc.PrimaryKey = pk
	}

	fields, err := parseFields(name, v)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("schema.%s.fields", name),
			Message: "at least one field is required",
			Pos:     v.Pos(),
		}
	}
	sc.Fields = fields

	sc.Unique, err = parseUnique(v)
	if err != nil {
		return nil, err
	}
	sc.ForeignKeys, err = parseForeignKeys(v)
	if err != nil {
		return nil, err
	}

	if err := sc.Check(); err != nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("schema.%s", name),
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return sc, nil
}

// parseFields extracts the field declarations in declaration order.
func parseFields(name string, v cue.Value) ([]schema.Field, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []schema.Field
	for iter.Next() {
		ft, err := extractFieldType(iter.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, schema.Field{Name: iter.Label(), Type: ft})
	}
	return fields, nil
}

// parseUnique extracts unique constraints: a list of field-name lists.
func parseUnique(v cue.Value) ([][]string, error) {
	uniqueVal := v.LookupPath(cue.ParsePath("unique"))
	if !uniqueVal.Exists() {
		return nil, nil
	}

	outer, err := uniqueVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var unique [][]string
	for outer.Next() {
		inner, err := outer.Value().List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var entry []string
		for inner.Next() {
			field, err := inner.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			entry = append(entry, field)
		}
		unique = append(unique, entry)
	}
	return unique, nil
}

// parseForeignKeys extracts foreign-key declarations.
func parseForeignKeys(v cue.Value) ([]schema.ForeignKey, error) {
	fkVal := v.LookupPath(cue.ParsePath("foreignKey"))
	if !fkVal.Exists() {
		return nil, nil
	}

	iter, err := fkVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fks []schema.ForeignKey
	for iter.Next() {
		item := iter.Value()
		fieldVal := item.LookupPath(cue.ParsePath("field"))
		targetVal := item.LookupPath(cue.ParsePath("target"))
		if !fieldVal.Exists() || !targetVal.Exists() {
			return nil, &CompileError{
				Field:   "foreignKey",
				Message: "entries require field and target",
				Pos:     item.Pos(),
			}
		}
		field, err := fieldVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		target, err := targetVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fks = append(fks, schema.ForeignKey{Field: field, Target: target})
	}
	return fks, nil
}

// extractFieldType maps a CUE type expression to a semantic field type.
func extractFieldType(v cue.Value) (schema.FieldType, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return schema.TypeString, nil
	case cue.IntKind:
		return schema.TypeInteger, nil
	case cue.BoolKind:
		return schema.TypeBoolean, nil
	case cue.ListKind:
		return schema.TypeList, nil
	case cue.StructKind:
		return schema.TypeMap, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float field types are not supported - use int",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
