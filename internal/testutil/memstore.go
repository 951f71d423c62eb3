// Package testutil provides test doubles shared across packages.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/query"
	"github.com/roach88/strata/internal/store"
)

// SequenceRevs returns a revision-suffix source yielding rev-1, rev-2, ...
// so revision tokens are stable across test runs.
func SequenceRevs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rev-%d", n)
	}
}

type memDoc struct {
	generation int
	rev        string
	body       document.Document
}

// MemStore is an in-memory store.Store with the same revision and conflict
// semantics as the SQLite store. Selector evaluation happens in Go, which
// keeps engine tests free of a database file.
//
// The zero value is not usable; construct with NewMemStore.
type MemStore struct {
	mu        sync.Mutex
	docs      map[string]memDoc
	revSuffix func() string
	failNext  map[string]error
}

var _ store.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		docs:      make(map[string]memDoc),
		revSuffix: SequenceRevs(),
		failNext:  make(map[string]error),
	}
}

// FailNext arranges for the next call of the named operation ("get", "put",
// "bulk_put", "find", "range_scan") to return err. Used to exercise error
// paths that a healthy store never produces.
func (m *MemStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

func (m *MemStore) takeFailure(op string) error {
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

// Len reports the number of stored documents.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *MemStore) Get(ctx context.Context, id string) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("get"); err != nil {
		return nil, err
	}
	d, ok := m.docs[id]
	if !ok {
		return nil, &store.NotFoundError{ID: id}
	}
	return withIdentity(d, id), nil
}

func (m *MemStore) Put(ctx context.Context, id string, body document.Document, rev string) (store.PutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("put"); err != nil {
		return store.PutResult{}, err
	}
	return m.putLocked(id, body, rev)
}

func (m *MemStore) putLocked(id string, body document.Document, rev string) (store.PutResult, error) {
	existing, exists := m.docs[id]

	if rev == "" {
		if exists {
			return store.PutResult{}, &store.ConflictError{ID: id}
		}
		newRev := fmt.Sprintf("1-%s", m.revSuffix())
		m.docs[id] = memDoc{generation: 1, rev: newRev, body: stripIdentity(body)}
		return store.PutResult{ID: id, Rev: newRev}, nil
	}

	if !exists {
		return store.PutResult{}, &store.NotFoundError{ID: id}
	}
	if existing.rev != rev {
		return store.PutResult{}, &store.ConflictError{ID: id, Rev: rev}
	}
	gen := existing.generation + 1
	newRev := fmt.Sprintf("%d-%s", gen, m.revSuffix())
	m.docs[id] = memDoc{generation: gen, rev: newRev, body: stripIdentity(body)}
	return store.PutResult{ID: id, Rev: newRev}, nil
}

func (m *MemStore) BulkPut(ctx context.Context, docs []document.Document) ([]store.BulkOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("bulk_put"); err != nil {
		return nil, err
	}

	outcomes := make([]store.BulkOutcome, len(docs))
	for i, doc := range docs {
		id := doc.ID()
		if id == "" {
			outcomes[i] = store.BulkOutcome{Err: &store.StoreError{Op: "bulk_put", Reason: "document without _id"}}
			continue
		}
		res, err := m.putLocked(id, doc, doc.Rev())
		if err != nil {
			outcomes[i] = store.BulkOutcome{ID: id, Err: err}
			continue
		}
		outcomes[i] = store.BulkOutcome{ID: res.ID, Rev: res.Rev}
	}
	return outcomes, nil
}

func (m *MemStore) Find(ctx context.Context, selector map[string]any, opts store.FindOptions) (store.FindResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("find"); err != nil {
		return store.FindResult{}, err
	}

	matched := []document.Document{}
	for _, id := range m.sortedIDs() {
		doc := withIdentity(m.docs[id], id)
		ok, err := matchSelector(doc, selector)
		if err != nil {
			return store.FindResult{}, &store.StoreError{Op: "find", Reason: err.Error()}
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	sortDocs(matched, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			matched = []document.Document{}
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	if len(opts.Fields) > 0 {
		for i, doc := range matched {
			matched[i] = projectFields(doc, opts.Fields)
		}
	}
	return store.FindResult{Docs: matched}, nil
}

func (m *MemStore) RangeScan(ctx context.Context, startKey, endKey string, limit int, descending, includeDocs bool) (store.RangeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("range_scan"); err != nil {
		return store.RangeResult{}, err
	}

	lower, upper := startKey, endKey
	if descending && lower > upper {
		lower, upper = upper, lower
	}

	ids := []string{}
	for _, id := range m.sortedIDs() {
		if id >= lower && id < upper {
			ids = append(ids, id)
		}
	}
	if descending {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	rows := make([]store.RangeRow, len(ids))
	for i, id := range ids {
		rows[i] = store.RangeRow{ID: id, Key: id}
		if includeDocs {
			rows[i].Doc = withIdentity(m.docs[id], id)
		}
	}
	return store.RangeResult{Rows: rows}, nil
}

func (m *MemStore) sortedIDs() []string {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func withIdentity(d memDoc, id string) document.Document {
	doc := d.body.Clone()
	doc[document.FieldID] = id
	doc[document.FieldRev] = d.rev
	return doc
}

func stripIdentity(body document.Document) document.Document {
	doc := body.Clone()
	delete(doc, document.FieldID)
	delete(doc, document.FieldRev)
	return doc
}

func projectFields(doc document.Document, fields []string) document.Document {
	out := document.Document{
		document.FieldID:  doc[document.FieldID],
		document.FieldRev: doc[document.FieldRev],
	}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// matchSelector evaluates the selector dialect the query compiler emits:
// bare-value equality, {$eq,$ne,$gt,$lt,$gte,$lte,$in} operator maps, and
// $or/$and junctions.
func matchSelector(doc document.Document, selector map[string]any) (bool, error) {
	for key, val := range selector {
		switch key {
		case "$or":
			ok, err := matchJunction(doc, key, val, false)
			if err != nil || !ok {
				return false, err
			}
		case "$and":
			ok, err := matchJunction(doc, key, val, true)
			if err != nil || !ok {
				return false, err
			}
		default:
			ok, err := matchField(doc, key, val)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func matchJunction(doc document.Document, op string, val any, all bool) (bool, error) {
	children, ok := val.([]any)
	if !ok {
		return false, fmt.Errorf("%s expects a list, got %T", op, val)
	}
	for _, child := range children {
		childMap, ok := child.(map[string]any)
		if !ok {
			return false, fmt.Errorf("%s: expected selector map, got %T", op, child)
		}
		matched, err := matchSelector(doc, childMap)
		if err != nil {
			return false, err
		}
		if all && !matched {
			return false, nil
		}
		if !all && matched {
			return true, nil
		}
	}
	return all, nil
}

func matchField(doc document.Document, field string, val any) (bool, error) {
	actual, present := doc[field]

	opMap, isMap := val.(map[string]any)
	if !isMap {
		return present && equalValues(actual, val), nil
	}

	for op, opVal := range opMap {
		switch op {
		case "$eq":
			if !present || !equalValues(actual, opVal) {
				return false, nil
			}
		case "$ne":
			if present && equalValues(actual, opVal) {
				return false, nil
			}
		case "$in":
			list, ok := opVal.([]any)
			if !ok {
				return false, fmt.Errorf("field %q: $in expects a list, got %T", field, opVal)
			}
			found := false
			for _, item := range list {
				if present && equalValues(actual, item) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case "$gt", "$lt", "$gte", "$lte":
			if !present {
				return false, nil
			}
			cmp, ok := compareValues(actual, opVal)
			if !ok {
				return false, nil
			}
			switch op {
			case "$gt":
				if cmp <= 0 {
					return false, nil
				}
			case "$lt":
				if cmp >= 0 {
					return false, nil
				}
			case "$gte":
				if cmp < 0 {
					return false, nil
				}
			case "$lte":
				if cmp > 0 {
					return false, nil
				}
			}
		default:
			return false, fmt.Errorf("field %q: unsupported selector operator %q", field, op)
		}
	}
	return true, nil
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return a == b
}

// compareValues orders two values when they are comparable: both numeric or
// both strings. Mixed-kind pairs report not-comparable.
func compareValues(a, b any) (int, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// sortDocs orders docs by the sort fields, falling back to id so output is
// deterministic across runs.
func sortDocs(docs []document.Document, orders []query.Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			cmp, ok := compareValues(docs[i][o.Field], docs[j][o.Field])
			if !ok || cmp == 0 {
				continue
			}
			if o.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return docs[i].ID() < docs[j].ID()
	})
}
