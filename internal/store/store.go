package store

import (
	"context"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/query"
)

// PutResult is the store-assigned identity of a successful write.
type PutResult struct {
	ID  string
	Rev string
}

// BulkOutcome is one item's result from a BulkPut. Outcomes preserve input
// order; a failing item never affects its siblings.
type BulkOutcome struct {
	ID  string
	Rev string
	Err error
}

// FindOptions carries limit/skip/sort/projection for selector queries.
type FindOptions struct {
	Limit  int
	Skip   int
	Sort   []query.Order
	Fields []string
}

// FindResult is the response shape of a selector query.
type FindResult struct {
	Docs     []document.Document
	Bookmark string
}

// RangeRow is one row of a range scan. Doc is nil unless the scan requested
// included documents.
type RangeRow struct {
	ID  string
	Key string
	Doc document.Document
}

// RangeResult is the response shape of a range scan.
type RangeResult struct {
	Rows []RangeRow
}

// Store is the narrow backing-store interface the engine consumes.
//
// Every operation is a blocking, context-bounded call. The store never
// retries on the engine's behalf - retry policy belongs to the caller - and
// an in-flight request is not cancellable; the context is honored only
// before dispatch.
type Store interface {
	// Get fetches one document by id. Absence is a NotFoundError, which is
	// a normal, expected outcome for constraint probes.
	Get(ctx context.Context, id string) (document.Document, error)

	// Put writes a full document body. An empty rev creates the document
	// (conflicting with any existing one); a non-empty rev must match the
	// stored revision or the write fails with a ConflictError.
	Put(ctx context.Context, id string, body document.Document, rev string) (PutResult, error)

	// BulkPut writes a batch of new documents. Each item succeeds or fails
	// independently; the outcome slice preserves input order.
	BulkPut(ctx context.Context, docs []document.Document) ([]BulkOutcome, error)

	// Find runs a selector query.
	Find(ctx context.Context, selector map[string]any, opts FindOptions) (FindResult, error)

	// RangeScan walks ids in [startKey, endKey). For descending scans the
	// caller supplies inverted bounds (startKey is the exclusive upper
	// bound) and the store walks in reverse key order.
	RangeScan(ctx context.Context, startKey, endKey string, limit int, descending, includeDocs bool) (RangeResult, error)
}
