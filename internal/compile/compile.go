// Package compile turns predicate trees into document-store query
// directives.
//
// Compilation is deterministic and side-effect free: identical
// (predicate tree, params) inputs always produce an identical CompiledQuery,
// and the canonical serialization of that query is byte-identical across
// calls. All foreseeable caller mistakes (unsupported operators, out-of-range
// placeholders) surface as query.ValidationError before translation begins.
package compile

import (
	"fmt"
	"strconv"

	"github.com/roach88/strata/internal/namespace"
	"github.com/roach88/strata/internal/query"
)

// RangeEndSentinel is appended to a namespace to form the exclusive upper
// bound of a full-namespace scan. "/{}" lexically sorts after every
// single-character-extended key under "<ns>/" and before the next
// namespace's prefix, so [ns, ns+"/{}") covers exactly the namespace's
// documents.
const RangeEndSentinel = "/{}"

// Request is one query to compile. The zero Limit/Skip mean "unset".
type Request struct {
	Predicate query.Predicate
	Params    []any
	Fields    []string
	Order     []query.Order
	Limit     int
	Skip      int
}

// Compiler compiles requests for one namespace.
//
// A Compiler is stateless between calls; it only carries the namespace and
// primary-key binding from the schema. Safe for concurrent use.
type Compiler struct {
	Namespace  string
	PrimaryKey string
}

// New creates a Compiler for the given namespace and primary-key field.
func New(ns, primaryKey string) *Compiler {
	return &Compiler{Namespace: ns, PrimaryKey: primaryKey}
}

// Compile translates a request into a query directive. Decision order:
//
//  1. Single Eq on the primary key with a scalar value  => PointGet
//  2. Single Eq/In on the primary key with a list value => BatchGet
//  3. Empty predicate tree                              => RangeScan
//  4. Anything else                                     => Selector
//
// Placeholders resolve against req.Params before classification, so a
// primary-key equality through a placeholder still compiles to a point
// lookup.
func (c *Compiler) Compile(req Request) (CompiledQuery, error) {
	if err := query.Validate(req.Predicate, len(req.Params)); err != nil {
		return nil, err
	}

	pred := normalize(req.Predicate)

	if pred == nil {
		return c.compileRangeScan(req), nil
	}

	if q, ok, err := c.compileKeyLookup(pred, req.Params); err != nil {
		return nil, err
	} else if ok {
		return q, nil
	}

	return c.compileSelector(pred, req)
}

// normalize unwraps trivial conjunctions: And{} behaves like an empty tree
// and And{p} behaves like p. Disjunctions are never unwrapped - Or grouping
// is semantic.
func normalize(p query.Predicate) query.Predicate {
	switch pred := p.(type) {
	case nil:
		return nil
	case query.And:
		if len(pred.Predicates) == 0 {
			return nil
		}
		if len(pred.Predicates) == 1 {
			return normalize(pred.Predicates[0])
		}
	case *query.And:
		return normalize(*pred)
	case *query.Eq:
		return *pred
	case *query.Cmp:
		return *pred
	case *query.In:
		return *pred
	case *query.Or:
		return *pred
	}
	return p
}

// compileKeyLookup recognizes primary-key point and batch lookups.
// Returns ok=false when the predicate is not a key lookup.
func (c *Compiler) compileKeyLookup(p query.Predicate, params []any) (CompiledQuery, bool, error) {
	switch pred := p.(type) {
	case query.Eq:
		if pred.Field != c.PrimaryKey {
			return nil, false, nil
		}
		val, err := resolve(pred.Value, params)
		if err != nil {
			return nil, false, err
		}
		if list, isList := val.([]any); isList {
			return c.batchGet(list)
		}
		return PointGet{ID: namespace.Qualify(c.Namespace, idString(val))}, true, nil
	case query.In:
		if pred.Field != c.PrimaryKey {
			return nil, false, nil
		}
		vals, err := resolveAll(pred.Values, params)
		if err != nil {
			return nil, false, err
		}
		return c.batchGet(vals)
	}
	return nil, false, nil
}

func (c *Compiler) batchGet(vals []any) (CompiledQuery, bool, error) {
	ids := make([]string, len(vals))
	for i, v := range vals {
		ids[i] = namespace.Qualify(c.Namespace, idString(v))
	}
	return BatchGet{IDs: ids}, true, nil
}

// compileRangeScan builds the full-namespace scan for an empty tree.
// A descending leading sort key inverts the bounds: the store's range scan
// is ordered by key, so a reverse traversal needs the upper bound first.
func (c *Compiler) compileRangeScan(req Request) CompiledQuery {
	start := c.Namespace
	end := c.Namespace + RangeEndSentinel

	descending := len(req.Order) > 0 && req.Order[0].Descending
	if descending {
		start, end = end, start
	}

	return RangeScan{
		StartKey:   start,
		EndKey:     end,
		Limit:      req.Limit,
		Descending: descending,
	}
}

func (c *Compiler) compileSelector(p query.Predicate, req Request) (CompiledQuery, error) {
	sel, err := translate(p, req.Params)
	if err != nil {
		return nil, err
	}

	// Every collection scan constrains the namespace.
	full := map[string]any{"type": c.Namespace}
	if !mergeInto(full, sel) {
		// Predicate constrains "type" itself; keep both constraints.
		full = map[string]any{"type": c.Namespace, "$and": []any{sel}}
	}

	return Selector{
		Selector: full,
		Options: Options{
			Limit:  req.Limit,
			Skip:   req.Skip,
			Sort:   req.Order,
			Fields: req.Fields,
		},
	}, nil
}

// cmpOperators maps comparison operators to the store's selector operators.
// Equality uses the store's bare-value shorthand instead of an explicit
// operator wrapper.
var cmpOperators = map[query.Op]string{
	query.OpGt:  "$gt",
	query.OpLt:  "$lt",
	query.OpGte: "$gte",
	query.OpLte: "$lte",
	query.OpNe:  "$ne",
}

// translate recursively converts a predicate tree into a nested filter map.
func translate(p query.Predicate, params []any) (map[string]any, error) {
	switch pred := p.(type) {
	case query.Eq:
		val, err := resolve(pred.Value, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{pred.Field: val}, nil
	case *query.Eq:
		return translate(*pred, params)
	case query.Cmp:
		op, ok := cmpOperators[pred.Op]
		if !ok {
			return nil, &query.ValidationError{
				Code:    query.ErrCodeUnsupportedOperator,
				Message: fmt.Sprintf("operator %q is not supported", string(pred.Op)),
				Field:   pred.Field,
			}
		}
		val, err := resolve(pred.Value, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{pred.Field: map[string]any{op: val}}, nil
	case *query.Cmp:
		return translate(*pred, params)
	case query.In:
		vals, err := resolveAll(pred.Values, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{pred.Field: map[string]any{"$in": vals}}, nil
	case *query.In:
		return translate(*pred, params)
	case query.And:
		return translateAnd(pred, params)
	case *query.And:
		return translateAnd(*pred, params)
	case query.Or:
		return translateOr(pred, params)
	case *query.Or:
		return translateOr(*pred, params)
	default:
		return nil, &query.ValidationError{
			Code:    query.ErrCodeMalformedPredicate,
			Message: fmt.Sprintf("unknown predicate type %T", p),
		}
	}
}

// translateAnd merges child maps at the same selector level. Two operator
// maps for the same field merge key-by-key (age > 5 AND age < 10 becomes
// one {"$gt":5,"$lt":10} entry); irreconcilable collisions fall back to an
// explicit "$and" list.
func translateAnd(and query.And, params []any) (map[string]any, error) {
	merged := map[string]any{}
	var overflow []any

	for _, child := range and.Predicates {
		childMap, err := translate(child, params)
		if err != nil {
			return nil, err
		}
		if !mergeInto(merged, childMap) {
			overflow = append(overflow, childMap)
		}
	}

	if len(overflow) > 0 {
		conj := append([]any{cloneMap(merged)}, overflow...)
		return map[string]any{"$and": conj}, nil
	}
	return merged, nil
}

// translateOr wraps children in an explicit "$or" list. Children are never
// merged flatly into the surrounding level - that would change grouping
// semantics.
func translateOr(or query.Or, params []any) (map[string]any, error) {
	children := make([]any, 0, len(or.Predicates))
	for _, child := range or.Predicates {
		childMap, err := translate(child, params)
		if err != nil {
			return nil, err
		}
		children = append(children, childMap)
	}
	return map[string]any{"$or": children}, nil
}

// mergeInto merges src into dst at the same level. Returns false, leaving
// dst untouched, when a key collides and the two values cannot be
// reconciled (both must be operator maps with disjoint operators to merge).
func mergeInto(dst, src map[string]any) bool {
	// Check first so a failed merge never partially applies.
	for k, v := range src {
		existing, present := dst[k]
		if !present {
			continue
		}
		existingMap, eOK := existing.(map[string]any)
		newMap, nOK := v.(map[string]any)
		if !eOK || !nOK {
			return false
		}
		for op := range newMap {
			if _, dup := existingMap[op]; dup {
				return false
			}
		}
	}

	for k, v := range src {
		existing, present := dst[k]
		if !present {
			dst[k] = v
			continue
		}
		existingMap := existing.(map[string]any)
		for op, opVal := range v.(map[string]any) {
			existingMap[op] = opVal
		}
	}
	return true
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// resolve substitutes a positional parameter for a Param placeholder.
// Bounds were checked during validation; the recheck here guards direct
// translate callers.
func resolve(v any, params []any) (any, error) {
	param, ok := v.(query.Param)
	if !ok {
		return v, nil
	}
	if param.Index < 0 || param.Index >= len(params) {
		return nil, &query.ValidationError{
			Code:    query.ErrCodeParamOutOfRange,
			Message: fmt.Sprintf("placeholder index %d out of range (have %d params)", param.Index, len(params)),
		}
	}
	return params[param.Index], nil
}

func resolveAll(vals []any, params []any) ([]any, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		resolved, err := resolve(v, params)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// idString renders a primary-key value as the local-id component of a
// document id.
func idString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		// JSON decoding yields float64 for whole numbers.
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
