package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/namespace"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
)

// MarkerType is the document type of uniqueness markers.
const MarkerType = "constraint"

// ResultStatus is the verdict of one constraint check.
type ResultStatus string

const (
	// StatusOK means the constraint is satisfied with nothing left to do.
	StatusOK ResultStatus = "ok"

	// StatusPending means acceptance is tentative: no conflicting marker
	// exists yet, and the reservation write must succeed to confirm.
	StatusPending ResultStatus = "ok_pending"

	// StatusInvalid means the constraint is violated and the write must
	// abort.
	StatusInvalid ResultStatus = "invalid"

	// StatusErrored means the probe itself failed. Never conflated with
	// absence; treating a failed probe as "no conflict" would silently
	// corrupt the uniqueness guarantee.
	StatusErrored ResultStatus = "errored"
)

// Result is the outcome of checking one constraint.
type Result struct {
	Status    ResultStatus
	MarkerID  string     // set when Status is StatusPending
	Violation *Violation // set when Status is StatusInvalid
	Err       error      // set when Status is StatusErrored
}

// ConstraintEngine validates a schema's uniqueness and foreign-key
// constraints against the store before a write. Probes are read-only; the
// only write it performs is marker reservation in Reserve.
type ConstraintEngine struct {
	store  store.Store
	schema *schema.Schema
}

func NewConstraintEngine(s store.Store, sc *schema.Schema) *ConstraintEngine {
	return &ConstraintEngine{store: s, schema: sc}
}

// Validate checks every declared constraint against fields. For updates,
// prev holds the stored document's current fields; a unique constraint whose
// composing values are unchanged passes without probing, so a no-op update
// is not rejected against its own marker.
//
// The returned slice has one Result per applicable constraint. A partially
// present unique field set is a ConfigurationError: a partial key cannot
// produce an unambiguous marker id, and that is a schema bug, not a
// validation failure.
func (e *ConstraintEngine) Validate(ctx context.Context, fields, prev map[string]any) ([]Result, error) {
	results := []Result{}

	for _, unique := range e.schema.Unique {
		res, err := e.checkUnique(ctx, unique, fields, prev)
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, *res)
		}
	}

	for _, fk := range e.schema.ForeignKeys {
		res := e.checkForeignKey(ctx, fk, fields)
		if res != nil {
			results = append(results, *res)
		}
	}

	return results, nil
}

func (e *ConstraintEngine) checkUnique(ctx context.Context, uniqueFields []string, fields, prev map[string]any) (*Result, error) {
	values, present := collectValues(uniqueFields, fields)
	if present == 0 {
		// The write does not touch this constraint.
		return nil, nil
	}
	if present < len(uniqueFields) {
		return nil, &schema.ConfigurationError{
			Schema: e.schema.Name,
			Message: fmt.Sprintf("unique constraint (%s) has only %d of %d fields present",
				strings.Join(uniqueFields, ","), present, len(uniqueFields)),
		}
	}

	marker := MarkerID(e.schema.Namespace, values)

	if prev != nil {
		prevValues, prevPresent := collectValues(uniqueFields, prev)
		if prevPresent == len(uniqueFields) && MarkerID(e.schema.Namespace, prevValues) == marker {
			return &Result{Status: StatusOK}, nil
		}
	}

	_, err := e.store.Get(ctx, marker)
	switch {
	case store.IsNotFound(err):
		return &Result{Status: StatusPending, MarkerID: marker}, nil
	case err != nil:
		return &Result{Status: StatusErrored, Err: err}, nil
	default:
		return &Result{
			Status: StatusInvalid,
			Violation: &Violation{
				Kind:   KindUnique,
				Source: e.schema.Namespace,
				Fields: uniqueFields,
				Detail: marker,
			},
		}, nil
	}
}

func (e *ConstraintEngine) checkForeignKey(ctx context.Context, fk schema.ForeignKey, fields map[string]any) *Result {
	val, ok := fields[fk.Field]
	if !ok || val == nil {
		return nil
	}
	refID := namespace.Qualify(fk.Target, valueString(val))

	_, err := e.store.Get(ctx, refID)
	switch {
	case store.IsNotFound(err):
		return &Result{
			Status: StatusInvalid,
			Violation: &Violation{
				Kind:   KindForeignKey,
				Source: e.schema.Namespace,
				Fields: []string{fk.Field},
				Detail: refID,
			},
		}
	case err != nil:
		return &Result{Status: StatusErrored, Err: err}
	default:
		return &Result{Status: StatusOK}
	}
}

// Verdict folds a result set into the write decision. Any invalid result
// aborts with the full violation list; any errored probe surfaces its error;
// otherwise nil, and pending markers are ready to reserve.
func Verdict(results []Result) error {
	var violations []Violation
	for _, r := range results {
		if r.Status == StatusInvalid && r.Violation != nil {
			violations = append(violations, *r.Violation)
		}
	}
	if len(violations) > 0 {
		return &ConstraintViolationError{Violations: violations}
	}
	for _, r := range results {
		if r.Status == StatusErrored {
			return r.Err
		}
	}
	return nil
}

// Reserve persists a marker document for every pending result. A conflict
// here means a concurrent writer won the reservation race after our probe;
// that surfaces as a uniqueness violation, and the store's per-document
// revision check guarantees at most one writer completes each reservation.
//
// Reservation and the subsequent document write are not atomic: a crash in
// between leaves an orphaned marker, cleaned up out of band.
func (e *ConstraintEngine) Reserve(ctx context.Context, results []Result) ([]string, error) {
	reserved := []string{}
	for _, r := range results {
		if r.Status != StatusPending {
			continue
		}
		body := document.Document{
			document.FieldType: MarkerType,
			"source":           e.schema.Namespace,
		}
		_, err := e.store.Put(ctx, r.MarkerID, body, "")
		if store.IsConflict(err) {
			return reserved, &ConstraintViolationError{Violations: []Violation{{
				Kind:   KindUnique,
				Source: e.schema.Namespace,
				Detail: r.MarkerID,
			}}}
		}
		if err != nil {
			return reserved, err
		}
		reserved = append(reserved, r.MarkerID)
	}
	return reserved, nil
}

// MarkerID derives the deterministic marker id for a unique value set:
// "<source>-<values joined by "-">".
func MarkerID(source string, values []any) string {
	parts := make([]string, len(values)+1)
	parts[0] = source
	for i, v := range values {
		parts[i+1] = valueString(v)
	}
	return strings.Join(parts, "-")
}

func collectValues(fieldNames []string, fields map[string]any) ([]any, int) {
	values := make([]any, 0, len(fieldNames))
	present := 0
	for _, name := range fieldNames {
		if v, ok := fields[name]; ok && v != nil {
			values = append(values, v)
			present++
		}
	}
	return values, present
}

func valueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
