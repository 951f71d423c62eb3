package compile

import "github.com/roach88/strata/internal/query"

// CompiledQuery is the directive a compiled predicate tree produces.
//
// This is a sealed interface - only types in this package implement it.
// The executor dispatches on the concrete type:
//   - PointGet:  single-document lookup by qualified id
//   - BatchGet:  multi-document lookup by qualified ids, input order kept
//   - Selector:  filter-map query against the store's find endpoint
//   - RangeScan: key-ordered scan over one namespace's id range
type CompiledQuery interface {
	compiledQuery() // Marker method - seals interface to this package
}

// PointGet fetches one document by its namespace-qualified id.
type PointGet struct {
	ID string
}

func (PointGet) compiledQuery() {}

// BatchGet fetches several documents by qualified id. IDs preserve the
// order of the source predicate's value list.
type BatchGet struct {
	IDs []string
}

func (BatchGet) compiledQuery() {}

// Options carries limit/skip/sort/projection for a Selector query.
type Options struct {
	Limit  int
	Skip   int
	Sort   []query.Order
	Fields []string
}

// Selector is a nested filter map understood by the store's query engine.
// The top level always constrains "type" to the namespace, so a selector
// never scans outside its collection.
type Selector struct {
	Selector map[string]any
	Options  Options
}

func (Selector) compiledQuery() {}

// RangeScan scans documents whose ids fall in [StartKey, EndKey).
//
// For a descending traversal the compiler has already swapped the bounds:
// StartKey holds the exclusive upper bound and EndKey the inclusive lower
// bound, and Descending is set. The store walks keys in reverse.
type RangeScan struct {
	StartKey   string
	EndKey     string
	Limit      int
	Descending bool
}

func (RangeScan) compiledQuery() {}

// Describe returns a plain-map description of a compiled query, suitable
// for canonical JSON serialization. Golden tests and the CLI use this; the
// map is also what makes the determinism property checkable byte-for-byte.
func Describe(q CompiledQuery) map[string]any {
	switch cq := q.(type) {
	case PointGet:
		return map[string]any{"kind": "point_get", "id": cq.ID}
	case *PointGet:
		return Describe(*cq)
	case BatchGet:
		ids := make([]any, len(cq.IDs))
		for i, id := range cq.IDs {
			ids[i] = id
		}
		return map[string]any{"kind": "batch_get", "ids": ids}
	case *BatchGet:
		return Describe(*cq)
	case Selector:
		out := map[string]any{"kind": "selector", "selector": cq.Selector}
		if opts := describeOptions(cq.Options); len(opts) > 0 {
			out["options"] = opts
		}
		return out
	case *Selector:
		return Describe(*cq)
	case RangeScan:
		return map[string]any{
			"kind":       "range_scan",
			"start_key":  cq.StartKey,
			"end_key":    cq.EndKey,
			"limit":      int64(cq.Limit),
			"descending": cq.Descending,
		}
	case *RangeScan:
		return Describe(*cq)
	default:
		return nil
	}
}

func describeOptions(o Options) map[string]any {
	out := map[string]any{}
	if o.Limit > 0 {
		out["limit"] = int64(o.Limit)
	}
	if o.Skip > 0 {
		out["skip"] = int64(o.Skip)
	}
	if len(o.Sort) > 0 {
		sort := make([]any, len(o.Sort))
		for i, s := range o.Sort {
			sort[i] = map[string]any{"field": s.Field, "descending": s.Descending}
		}
		out["sort"] = sort
	}
	if len(o.Fields) > 0 {
		fields := make([]any, len(o.Fields))
		for i, f := range o.Fields {
			fields[i] = f
		}
		out["fields"] = fields
	}
	return out
}
