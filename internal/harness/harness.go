package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/strata/internal/compile"
	"github.com/roach88/strata/internal/compiler"
	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/engine"
	"github.com/roach88/strata/internal/query"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
	"github.com/roach88/strata/internal/testutil"
)

// TraceEvent records one executed step's outcome.
type TraceEvent struct {
	Op         string
	Schema     string
	Status     string
	Returned   map[string]any   // writes
	Violations []string         // constraint violations
	Count      int              // queries
	Rows       [][]any          // queries
	Outcomes   []map[string]any // bulk inserts
}

// Result is a completed scenario run.
type Result struct {
	ScenarioName string
	Trace        []TraceEvent
}

// Run executes a scenario against a fresh in-memory session: compiles its
// schemas, seeds documents, runs every step (checking each expect clause),
// and evaluates the final-state assertions.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	schemas, err := loadSchemas(scenario.Schemas)
	if err != nil {
		return nil, err
	}

	mem := testutil.NewMemStore()
	sess, err := engine.NewSession(mem, schemas...)
	if err != nil {
		return nil, err
	}

	for i, doc := range scenario.Seed {
		d := document.Document(doc)
		if _, err := mem.Put(ctx, d.ID(), d, ""); err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
	}

	result := &Result{ScenarioName: scenario.Name}
	for i, step := range scenario.Steps {
		event, err := runStep(ctx, sess, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s %s): %w", i, step.Op, step.Schema, err)
		}
		result.Trace = append(result.Trace, event)
	}

	for i, a := range scenario.Assertions {
		if err := checkAssertion(ctx, sess, mem, a); err != nil {
			return nil, fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return result, nil
}

// loadSchemas compiles every CUE file into schema definitions.
func loadSchemas(paths []string) ([]*schema.Schema, error) {
	cueCtx := cuecontext.New()
	var schemas []*schema.Schema
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		v := cueCtx.CompileBytes(data, cue.Filename(path))
		compiled, err := compiler.CompileAll(v)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, compiled...)
	}
	return schemas, nil
}

func runStep(ctx context.Context, sess *engine.Session, step Step) (TraceEvent, error) {
	event := TraceEvent{Op: step.Op, Schema: step.Schema}

	var err error
	switch step.Op {
	case "insert":
		event.Returned, err = sess.Insert(ctx, step.Schema, step.Fields, step.Returning)
	case "update":
		event.Returned, err = sess.Update(ctx, step.Schema, step.ID, step.Fields, step.Returning)
	case "bulk_insert":
		var outcomes []store.BulkOutcome
		outcomes, err = sess.BulkInsert(ctx, step.Schema, step.Items)
		event.Outcomes = describeOutcomes(outcomes)
	case "query":
		var req compile.Request
		req, err = queryRequest(step)
		if err == nil {
			event.Count, event.Rows, err = sess.Query(ctx, step.Schema, req)
		}
	default:
		return event, fmt.Errorf("unknown op %q", step.Op)
	}

	event.Status = classify(err)
	if event.Status == "" {
		return event, err
	}
	event.Violations = violationsOf(err)

	expected := step.Expect
	if expected == "" {
		expected = StatusOK
	}
	if event.Status != expected {
		if err != nil {
			return event, fmt.Errorf("expected status %q, got %q: %w", expected, event.Status, err)
		}
		return event, fmt.Errorf("expected status %q, got %q", expected, event.Status)
	}
	return event, nil
}

// queryRequest translates a query step into a compile request.
func queryRequest(step Step) (compile.Request, error) {
	pred, err := wherePredicate(step.Where)
	if err != nil {
		return compile.Request{}, err
	}
	order := make([]query.Order, len(step.Order))
	for i, o := range step.Order {
		order[i] = query.Order{Field: o.Field, Descending: o.Descending}
	}
	return compile.Request{
		Predicate: pred,
		Fields:    step.Select,
		Order:     order,
		Limit:     step.Limit,
		Skip:      step.Skip,
	}, nil
}

// wherePredicate builds a predicate tree from a where map. Keys are
// processed in sorted order so compiled queries are deterministic across
// runs. Bare values mean equality; operator maps compare.
func wherePredicate(where map[string]any) (query.Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var preds []query.Predicate
	for _, field := range keys {
		val := where[field]
		opMap, isMap := val.(map[string]any)
		if !isMap {
			preds = append(preds, query.Eq{Field: field, Value: val})
			continue
		}

		ops := make([]string, 0, len(opMap))
		for op := range opMap {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		for _, op := range ops {
			opVal := opMap[op]
			switch op {
			case "$in":
				list, ok := opVal.([]any)
				if !ok {
					return nil, fmt.Errorf("where.%s: $in expects a list, got %T", field, opVal)
				}
				preds = append(preds, query.In{Field: field, Values: list})
			case "$gt":
				preds = append(preds, query.Cmp{Op: query.OpGt, Field: field, Value: opVal})
			case "$lt":
				preds = append(preds, query.Cmp{Op: query.OpLt, Field: field, Value: opVal})
			case "$gte":
				preds = append(preds, query.Cmp{Op: query.OpGte, Field: field, Value: opVal})
			case "$lte":
				preds = append(preds, query.Cmp{Op: query.OpLte, Field: field, Value: opVal})
			case "$ne":
				preds = append(preds, query.Cmp{Op: query.OpNe, Field: field, Value: opVal})
			default:
				return nil, fmt.Errorf("where.%s: unknown operator %q", field, op)
			}
		}
	}

	if len(preds) == 1 {
		return preds[0], nil
	}
	return query.And{Predicates: preds}, nil
}

// classify maps an error to a step status. Unexpected errors classify as ""
// and abort the run.
func classify(err error) string {
	if err == nil {
		return StatusOK
	}
	if engine.IsConstraintViolation(err) {
		return StatusConstraintViolation
	}
	if store.IsNotFound(err) {
		return StatusNotFound
	}
	if store.IsConflict(err) {
		return StatusConflict
	}
	var ve *query.ValidationError
	if errors.As(err, &ve) {
		return StatusValidationError
	}
	var ce *schema.ConfigurationError
	if errors.As(err, &ce) {
		return StatusConfigurationError
	}
	return ""
}

func violationsOf(err error) []string {
	var cv *engine.ConstraintViolationError
	if !errors.As(err, &cv) {
		return nil
	}
	out := make([]string, len(cv.Violations))
	for i, v := range cv.Violations {
		out[i] = v.String()
	}
	return out
}

func describeOutcomes(outcomes []store.BulkOutcome) []map[string]any {
	out := make([]map[string]any, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			out[i] = map[string]any{"status": classify(o.Err)}
			continue
		}
		out[i] = map[string]any{"id": o.ID, "rev": o.Rev}
	}
	return out
}
