package engine

import (
	"context"
	"fmt"

	"github.com/roach88/strata/internal/compile"
	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/namespace"
	"github.com/roach88/strata/internal/project"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
)

// Session is a caller-held handle binding a set of schemas to one store.
// Every engine call goes through an explicit session; there is no ambient
// registry of connections.
//
// A Session is safe for concurrent use when its store is: the session itself
// holds only read-only schema definitions.
type Session struct {
	store   store.Store
	schemas map[string]*schema.Schema
}

// NewSession builds a session over the given schemas. Each schema is checked
// for internal consistency; a bad declaration fails construction rather than
// surfacing mid-write.
func NewSession(s store.Store, schemas ...*schema.Schema) (*Session, error) {
	byName := make(map[string]*schema.Schema, len(schemas))
	for _, sc := range schemas {
		if err := sc.Check(); err != nil {
			return nil, err
		}
		if _, dup := byName[sc.Name]; dup {
			return nil, &schema.ConfigurationError{
				Schema:  sc.Name,
				Message: "duplicate schema name",
			}
		}
		byName[sc.Name] = sc
	}
	return &Session{store: s, schemas: byName}, nil
}

// Schema resolves a schema by declared name.
func (s *Session) Schema(name string) (*schema.Schema, error) {
	sc, ok := s.schemas[name]
	if !ok {
		return nil, &schema.ConfigurationError{
			Schema:  name,
			Message: "unknown schema",
		}
	}
	return sc, nil
}

// Compile translates a request against the named schema without executing
// it. Exposed for inspection tooling.
func (s *Session) Compile(schemaName string, req compile.Request) (compile.CompiledQuery, error) {
	sc, err := s.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	return compile.New(sc.Namespace, sc.PrimaryKey).Compile(req)
}

// Query compiles and executes a request, returning projected fixed-arity
// rows. When the request names no fields, all declared schema fields are
// projected in declaration order.
func (s *Session) Query(ctx context.Context, schemaName string, req compile.Request) (int, [][]any, error) {
	sc, err := s.Schema(schemaName)
	if err != nil {
		return 0, nil, err
	}
	q, err := compile.New(sc.Namespace, sc.PrimaryKey).Compile(req)
	if err != nil {
		return 0, nil, err
	}
	raw, err := s.execute(ctx, sc.Namespace, q)
	if err != nil {
		return 0, nil, err
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = sc.FieldNames()
	}
	return project.Rows(raw, fields, sc.FieldMeta(), nil)
}

// execute dispatches a compiled query to the matching store operation.
// Point and batch lookups treat absence as an empty result, not an error.
func (s *Session) execute(ctx context.Context, ns string, q compile.CompiledQuery) (any, error) {
	switch cq := q.(type) {
	case compile.PointGet:
		doc, err := s.store.Get(ctx, cq.ID)
		if store.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return doc, nil
	case compile.BatchGet:
		docs := []document.Document{}
		for _, id := range cq.IDs {
			doc, err := s.store.Get(ctx, id)
			if store.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	case compile.Selector:
		return s.store.Find(ctx, cq.Selector, store.FindOptions{
			Limit:  cq.Options.Limit,
			Skip:   cq.Options.Skip,
			Sort:   cq.Options.Sort,
			Fields: cq.Options.Fields,
		})
	case compile.RangeScan:
		return s.rangeScan(ctx, ns, cq)
	default:
		return nil, &store.StoreError{
			Op:     "execute",
			Reason: fmt.Sprintf("unknown compiled query type %T", q),
		}
	}
}

// rangeScan executes a namespace scan, dropping uniqueness markers from the
// results. Marker ids ("<ns>-...") sort inside the namespace's key range, so
// a store-side limit can fill up with markers while matching documents
// remain further along; the scan pages forward from the last seen key until
// the limit is satisfied post-filter or the range is exhausted.
func (s *Session) rangeScan(ctx context.Context, ns string, cq compile.RangeScan) (store.RangeResult, error) {
	kept := []store.RangeRow{}
	start := cq.StartKey
	for {
		res, err := s.store.RangeScan(ctx, start, cq.EndKey, cq.Limit, cq.Descending, true)
		if err != nil {
			return store.RangeResult{}, err
		}
		for _, row := range res.Rows {
			if row.Doc != nil && row.Doc.Type() != ns {
				continue
			}
			kept = append(kept, row)
			if cq.Limit > 0 && len(kept) == cq.Limit {
				return store.RangeResult{Rows: kept}, nil
			}
		}
		if cq.Limit <= 0 || len(res.Rows) < cq.Limit {
			return store.RangeResult{Rows: kept}, nil
		}
		last := res.Rows[len(res.Rows)-1].Key
		if cq.Descending {
			// Descending bounds are inverted: the start key is the
			// exclusive upper bound, so the last key resumes below it.
			start = last
		} else {
			start = last + "\x00"
		}
	}
}

// Insert validates constraints, reserves uniqueness markers, then writes the
// document. Any violation aborts before anything is persisted; the
// reserve-then-write sequence itself is not atomic (see Reserve).
func (s *Session) Insert(ctx context.Context, schemaName string, fields map[string]any, returning []string) (map[string]any, error) {
	sc, err := s.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	constraints := NewConstraintEngine(s.store, sc)

	results, err := constraints.Validate(ctx, fields, nil)
	if err != nil {
		return nil, err
	}
	if err := Verdict(results); err != nil {
		return nil, err
	}
	if _, err := constraints.Reserve(ctx, results); err != nil {
		return nil, err
	}
	return NewDocumentWriter(s.store, sc).Insert(ctx, fields, returning)
}

// Update fetches the current document, validates constraints against the
// new fields (with the stored fields as prior state), then writes the merged
// body at the current revision.
func (s *Session) Update(ctx context.Context, schemaName, localID string, fields map[string]any, returning []string) (map[string]any, error) {
	sc, err := s.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Get(ctx, namespace.Qualify(sc.Namespace, localID))
	if err != nil {
		return nil, err
	}
	constraints := NewConstraintEngine(s.store, sc)

	results, err := constraints.Validate(ctx, fields, current)
	if err != nil {
		return nil, err
	}
	if err := Verdict(results); err != nil {
		return nil, err
	}
	if _, err := constraints.Reserve(ctx, results); err != nil {
		return nil, err
	}
	return NewDocumentWriter(s.store, sc).Update(ctx, current, fields, returning)
}

// BulkInsert validates each item's constraints independently, reserves
// markers for the clean ones, and submits those in a single batch. Items
// failing validation or missing their primary key occupy their input
// position in the outcome list; they never block siblings. A partial unique
// field set is still fatal for the whole call - that is a schema bug, not an
// item outcome.
func (s *Session) BulkInsert(ctx context.Context, schemaName string, items []map[string]any) ([]store.BulkOutcome, error) {
	sc, err := s.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	constraints := NewConstraintEngine(s.store, sc)
	writer := NewDocumentWriter(s.store, sc)

	outcomes := make([]store.BulkOutcome, len(items))
	writable := make([]map[string]any, 0, len(items))
	positions := make([]int, 0, len(items))

	for i, fields := range items {
		// An item that cannot produce a document id must not reserve
		// markers; its marker would be orphaned with no write to back it.
		if _, err := writer.documentID(fields); err != nil {
			outcomes[i] = store.BulkOutcome{Err: err}
			continue
		}
		results, err := constraints.Validate(ctx, fields, nil)
		if err != nil {
			return nil, err
		}
		if verdictErr := Verdict(results); verdictErr != nil {
			outcomes[i] = store.BulkOutcome{Err: verdictErr}
			continue
		}
		if _, err := constraints.Reserve(ctx, results); err != nil {
			if IsConstraintViolation(err) {
				outcomes[i] = store.BulkOutcome{Err: err}
				continue
			}
			return nil, err
		}
		writable = append(writable, fields)
		positions = append(positions, i)
	}

	written, err := writer.BulkInsert(ctx, writable)
	if err != nil {
		return nil, err
	}
	for j, outcome := range written {
		outcomes[positions[j]] = outcome
	}
	return outcomes, nil
}
