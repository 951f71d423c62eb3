// Package project shapes raw store responses into fixed-arity result rows.
//
// The backing store is schemaless: two documents of the same logical type
// may carry different key sets. Callers that want relational semantics need
// every row to have identical arity and field order regardless of document
// sparsity, so projection overlays present values onto a typed template row
// when field metadata is available.
package project

import (
	"fmt"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
)

// Rows maps a raw store response into (count, rows).
//
// Response shape classification:
//   - nil, empty doc list, empty range result  => (0, [])
//   - multi-document response                  => one row per document
//   - single document                          => (1, [row])
//   - backend error payload                    => StoreError, never silently
//     treated as empty
//
// Each row has exactly len(fields) entries, in field order. With meta, a
// template row of type zero values ("", 0, false, [], {}) is built first and
// present document values overlaid. Without meta, absent fields take the
// caller's static default (or nil).
func Rows(raw any, fields []string, meta map[string]schema.FieldType, defaults map[string]any) (int, [][]any, error) {
	switch resp := raw.(type) {
	case nil:
		return 0, [][]any{}, nil
	case store.FindResult:
		return docRows(resp.Docs, fields, meta, defaults)
	case *store.FindResult:
		return docRows(resp.Docs, fields, meta, defaults)
	case store.RangeResult:
		return rangeRows(resp, fields, meta, defaults)
	case *store.RangeResult:
		return rangeRows(*resp, fields, meta, defaults)
	case []document.Document:
		return docRows(resp, fields, meta, defaults)
	case document.Document:
		if isErrorPayload(resp) {
			return 0, nil, &store.StoreError{
				Op:     "project",
				Reason: fmt.Sprintf("backend error payload: %v", resp["error"]),
			}
		}
		return 1, [][]any{docRow(resp, fields, meta, defaults)}, nil
	default:
		return 0, nil, &store.StoreError{
			Op:     "project",
			Reason: fmt.Sprintf("unrecognized response shape %T", raw),
		}
	}
}

func docRows(docs []document.Document, fields []string, meta map[string]schema.FieldType, defaults map[string]any) (int, [][]any, error) {
	if len(docs) == 0 {
		return 0, [][]any{}, nil
	}
	rows := make([][]any, len(docs))
	for i, doc := range docs {
		if isErrorPayload(doc) {
			return 0, nil, &store.StoreError{
				Op:     "project",
				Reason: fmt.Sprintf("backend error payload: %v", doc["error"]),
			}
		}
		rows[i] = docRow(doc, fields, meta, defaults)
	}
	return len(docs), rows, nil
}

func rangeRows(res store.RangeResult, fields []string, meta map[string]schema.FieldType, defaults map[string]any) (int, [][]any, error) {
	if len(res.Rows) == 0 {
		return 0, [][]any{}, nil
	}
	docs := make([]document.Document, len(res.Rows))
	for i, row := range res.Rows {
		if row.Doc != nil {
			docs[i] = row.Doc
			continue
		}
		// Scans without included documents still expose the id.
		docs[i] = document.Document{document.FieldID: row.ID}
	}
	return docRows(docs, fields, meta, defaults)
}

// docRow builds one fixed-arity row from a document.
func docRow(doc document.Document, fields []string, meta map[string]schema.FieldType, defaults map[string]any) []any {
	row := make([]any, len(fields))
	for i, field := range fields {
		if meta != nil {
			if ft, known := meta[field]; known {
				row[i] = ft.Zero()
			}
		} else if defaults != nil {
			row[i] = defaults[field]
		}
		if val, present := doc[field]; present {
			row[i] = val
		}
	}
	return row
}

// isErrorPayload recognizes a backend error document. Stores report
// failures as {"error": ..., "reason": ...} bodies; these must surface as
// typed errors, not vanish as empty results.
func isErrorPayload(doc document.Document) bool {
	if _, hasErr := doc["error"]; !hasErr {
		return false
	}
	_, hasID := doc[document.FieldID]
	return !hasID
}
