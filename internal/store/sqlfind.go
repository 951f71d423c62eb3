package store

import (
	"fmt"
	"sort"
	"strings"
)

// selectorOperators maps selector operators to their SQL comparison form.
var selectorOperators = map[string]string{
	"$eq":  "=",
	"$ne":  "!=",
	"$gt":  ">",
	"$lt":  "<",
	"$gte": ">=",
	"$lte": "<=",
}

// compileSelector translates a nested filter map into a SQL WHERE fragment
// over json_extract. Values are always parameterized, never interpolated.
// Keys are processed in sorted order so the generated SQL is deterministic.
func compileSelector(selector map[string]any) (string, []any, error) {
	if len(selector) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(selector))
	for k := range selector {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	var params []any

	for _, key := range keys {
		val := selector[key]
		switch key {
		case "$or", "$and":
			clause, clauseParams, err := compileJunction(key, val)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			params = append(params, clauseParams...)
		default:
			clause, clauseParams, err := compileFieldCondition(key, val)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			params = append(params, clauseParams...)
		}
	}

	return strings.Join(parts, " AND "), params, nil
}

// compileJunction compiles a "$or"/"$and" list of child selectors.
func compileJunction(op string, val any) (string, []any, error) {
	children, ok := val.([]any)
	if !ok {
		return "", nil, fmt.Errorf("%s expects a list, got %T", op, val)
	}

	joiner := " OR "
	if op == "$and" {
		joiner = " AND "
	}

	var parts []string
	var params []any
	for i, child := range children {
		childMap, ok := child.(map[string]any)
		if !ok {
			return "", nil, fmt.Errorf("%s[%d]: expected selector map, got %T", op, i, child)
		}
		clause, clauseParams, err := compileSelector(childMap)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+clause+")")
		params = append(params, clauseParams...)
	}

	return "(" + strings.Join(parts, joiner) + ")", params, nil
}

// compileFieldCondition compiles one field's condition: either a bare value
// (equality shorthand) or an operator map.
func compileFieldCondition(field string, val any) (string, []any, error) {
	extract := fmt.Sprintf("json_extract(body, '$.%s')", field)

	opMap, isMap := val.(map[string]any)
	if !isMap {
		return extract + " = ?", []any{bindValue(val)}, nil
	}

	ops := make([]string, 0, len(opMap))
	for op := range opMap {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var parts []string
	var params []any
	for _, op := range ops {
		opVal := opMap[op]
		if op == "$in" {
			list, ok := opVal.([]any)
			if !ok {
				return "", nil, fmt.Errorf("field %q: $in expects a list, got %T", field, opVal)
			}
			if len(list) == 0 {
				// Membership in the empty set matches nothing.
				parts = append(parts, "1 = 0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
			parts = append(parts, fmt.Sprintf("%s IN (%s)", extract, placeholders))
			for _, item := range list {
				params = append(params, bindValue(item))
			}
			continue
		}
		sqlOp, known := selectorOperators[op]
		if !known {
			return "", nil, fmt.Errorf("field %q: unsupported selector operator %q", field, op)
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", extract, sqlOp))
		params = append(params, bindValue(opVal))
	}

	return strings.Join(parts, " AND "), params, nil
}

// bindValue converts a selector value into a driver-bindable parameter.
// JSON booleans extract as 0/1 in SQLite, so bools bind as integers.
func bindValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
