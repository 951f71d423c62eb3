package engine

import (
	"context"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/namespace"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
)

// DocumentWriter performs insert, update, and bulk-insert writes. Constraint
// validation is the caller's job; the writer assumes the verdict was clean.
type DocumentWriter struct {
	store  store.Store
	schema *schema.Schema
}

func NewDocumentWriter(s store.Store, sc *schema.Schema) *DocumentWriter {
	return &DocumentWriter{store: s, schema: sc}
}

// Insert writes a new document. The id is the namespace-qualified primary
// key value, and the body always carries type = namespace. The returned map
// holds exactly the requested returning fields, absent ones as nil.
func (w *DocumentWriter) Insert(ctx context.Context, fields map[string]any, returning []string) (map[string]any, error) {
	id, err := w.documentID(fields)
	if err != nil {
		return nil, err
	}
	body := document.Document(fields).Clone()
	body[document.FieldType] = w.schema.Namespace

	res, err := w.store.Put(ctx, id, body, "")
	if err != nil {
		return nil, err
	}
	return returnFields(res, body, returning), nil
}

// Update merges fields over the current stored document and writes the full
// merged body at the current revision. The store requires a full-document
// body per revision, so a partial update is merge-then-full-write, never a
// patch; keys outside the caller's field set survive.
func (w *DocumentWriter) Update(ctx context.Context, current document.Document, fields map[string]any, returning []string) (map[string]any, error) {
	rev := current.Rev()
	merged := document.Merge(current, fields)
	merged[document.FieldType] = w.schema.Namespace

	res, err := w.store.Put(ctx, current.ID(), merged, rev)
	if err != nil {
		return nil, err
	}
	return returnFields(res, merged, returning), nil
}

// BulkInsert submits all documents in one batch. Outcomes preserve input
// order and each item succeeds or fails independently; a failing item never
// rolls back or blocks its siblings. An item without its primary key records
// its error as that item's outcome and stays out of the store batch.
func (w *DocumentWriter) BulkInsert(ctx context.Context, items []map[string]any) ([]store.BulkOutcome, error) {
	outcomes := make([]store.BulkOutcome, len(items))
	docs := make([]document.Document, 0, len(items))
	positions := make([]int, 0, len(items))
	for i, fields := range items {
		id, err := w.documentID(fields)
		if err != nil {
			outcomes[i] = store.BulkOutcome{Err: err}
			continue
		}
		doc := document.Document(fields).Clone()
		doc[document.FieldID] = id
		doc[document.FieldType] = w.schema.Namespace
		docs = append(docs, doc)
		positions = append(positions, i)
	}

	written, err := w.store.BulkPut(ctx, docs)
	if err != nil {
		return nil, err
	}
	for j, outcome := range written {
		outcomes[positions[j]] = outcome
	}
	return outcomes, nil
}

func (w *DocumentWriter) documentID(fields map[string]any) (string, error) {
	local, ok := fields[w.schema.PrimaryKey]
	if !ok || local == nil {
		return "", &schema.ConfigurationError{
			Schema:  w.schema.Name,
			Message: "insert requires the primary key field " + w.schema.PrimaryKey,
		}
	}
	return namespace.Qualify(w.schema.Namespace, valueString(local)), nil
}

// returnFields maps the store-assigned identity and the written body into
// the caller's requested returning fields.
func returnFields(res store.PutResult, body document.Document, returning []string) map[string]any {
	out := make(map[string]any, len(returning))
	for _, f := range returning {
		switch f {
		case document.FieldID:
			out[f] = res.ID
		case document.FieldRev:
			out[f] = res.Rev
		default:
			if v, ok := body[f]; ok {
				out[f] = v
			} else {
				out[f] = nil
			}
		}
	}
	return out
}
