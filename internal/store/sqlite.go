package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/query"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a document store backed by a single SQLite database.
//
// Documents live in one flat table keyed by their qualified id, with the
// body stored as JSON. Selector queries compile to json_extract comparisons;
// range scans ride the primary-key index. Each Put is atomic and
// revision-checked, which is exactly the single-document atomicity the
// engine's constraint emulation assumes.
type SQLite struct {
	db *sql.DB

	// revSuffix produces the opaque part of a revision token.
	// Replaceable for deterministic tests.
	revSuffix func() string
}

var _ Store = (*SQLite)(nil)

// Option configures a SQLite store.
type Option func(*SQLite)

// WithRevSuffix overrides revision-suffix generation. Tests use a fixed
// sequence for reproducible revisions.
func WithRevSuffix(fn func() string) Option {
	return func(s *SQLite) { s.revSuffix = fn }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the document schema automatically; the
// function is idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
func Open(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY errors under write contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLite{
		db:        db,
		revSuffix: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Get fetches one document by id. Returns NotFoundError on absence.
func (s *SQLite) Get(ctx context.Context, id string) (document.Document, error) {
	var rev, body string
	err := s.db.QueryRowContext(ctx,
		`SELECT rev, body FROM documents WHERE id = ?`, id,
	).Scan(&rev, &body)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Reason: "query failed", Err: err}
	}
	return decodeBody(id, rev, body)
}

// Put writes a full document body at the given revision.
//
// rev == "" creates the document; an existing row is a ConflictError.
// rev != "" replaces the document iff the stored revision matches; a
// mismatch is a ConflictError and a missing row is a NotFoundError.
func (s *SQLite) Put(ctx context.Context, id string, body document.Document, rev string) (PutResult, error) {
	encoded, err := encodeBody(body)
	if err != nil {
		return PutResult{}, &StoreError{Op: "put", Reason: "encode body", Err: err}
	}

	gen := generation(rev) + 1
	newRev := fmt.Sprintf("%d-%s", gen, s.revSuffix())

	if rev == "" {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO documents (id, generation, rev, body)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, gen, newRev, encoded)
		if err != nil {
			return PutResult{}, &StoreError{Op: "put", Reason: "insert failed", Err: err}
		}
		// ON CONFLICT DO NOTHING swallows the constraint error; a zero
		// row count means the document already existed.
		if !s.lastWriteApplied(ctx, id, newRev) {
			return PutResult{}, &ConflictError{ID: id}
		}
		return PutResult{ID: id, Rev: newRev}, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET generation = ?, rev = ?, body = ?
		WHERE id = ? AND rev = ?
	`, gen, newRev, encoded, id, rev)
	if err != nil {
		return PutResult{}, &StoreError{Op: "put", Reason: "update failed", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return PutResult{}, &StoreError{Op: "put", Reason: "rows affected", Err: err}
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM documents WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return PutResult{}, &NotFoundError{ID: id}
		}
		if err != nil {
			return PutResult{}, &StoreError{Op: "put", Reason: "conflict check", Err: err}
		}
		return PutResult{}, &ConflictError{ID: id, Rev: rev}
	}
	return PutResult{ID: id, Rev: newRev}, nil
}

// lastWriteApplied reports whether the row now carries the revision this
// writer just attempted to assign.
func (s *SQLite) lastWriteApplied(ctx context.Context, id, rev string) bool {
	var got string
	if err := s.db.QueryRowContext(ctx,
		`SELECT rev FROM documents WHERE id = ?`, id).Scan(&got); err != nil {
		return false
	}
	return got == rev
}

// BulkPut writes each document independently. A failing item records its
// error and never rolls back or blocks siblings; outcomes preserve input
// order.
func (s *SQLite) BulkPut(ctx context.Context, docs []document.Document) ([]BulkOutcome, error) {
	outcomes := make([]BulkOutcome, len(docs))
	for i, doc := range docs {
		id := doc.ID()
		if id == "" {
			outcomes[i] = BulkOutcome{Err: &StoreError{Op: "bulk_put", Reason: "document missing _id"}}
			continue
		}
		res, err := s.Put(ctx, id, doc, doc.Rev())
		if err != nil {
			outcomes[i] = BulkOutcome{ID: id, Err: err}
			continue
		}
		outcomes[i] = BulkOutcome{ID: res.ID, Rev: res.Rev}
	}
	return outcomes, nil
}

// Find runs a selector query by compiling the filter map to json_extract
// comparisons. Results are ordered by the requested sort keys with a final
// id tiebreaker for determinism.
func (s *SQLite) Find(ctx context.Context, selector map[string]any, opts FindOptions) (FindResult, error) {
	where, params, err := compileSelector(selector)
	if err != nil {
		return FindResult{}, &StoreError{Op: "find", Reason: "compile selector", Err: err}
	}

	q := `SELECT id, rev, body FROM documents`
	if where != "" {
		q += " WHERE " + where
	}
	q += orderByClause(opts.Sort)
	if opts.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(opts.Limit)
		if opts.Skip > 0 {
			q += " OFFSET " + strconv.Itoa(opts.Skip)
		}
	} else if opts.Skip > 0 {
		q += " LIMIT -1 OFFSET " + strconv.Itoa(opts.Skip)
	}

	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return FindResult{}, &StoreError{Op: "find", Reason: "query failed", Err: err}
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var id, rev, body string
		if err := rows.Scan(&id, &rev, &body); err != nil {
			return FindResult{}, &StoreError{Op: "find", Reason: "scan row", Err: err}
		}
		doc, err := decodeBody(id, rev, body)
		if err != nil {
			return FindResult{}, err
		}
		docs = append(docs, projectFields(doc, opts.Fields))
	}
	if err := rows.Err(); err != nil {
		return FindResult{}, &StoreError{Op: "find", Reason: "iterate rows", Err: err}
	}

	if docs == nil {
		docs = []document.Document{}
	}
	return FindResult{Docs: docs}, nil
}

// RangeScan walks ids in the half-open interval. Descending scans arrive
// with inverted bounds (startKey above endKey); normalize before querying
// and flip the traversal order.
func (s *SQLite) RangeScan(ctx context.Context, startKey, endKey string, limit int, descending, includeDocs bool) (RangeResult, error) {
	lower, upper := startKey, endKey
	order := "ASC"
	if descending {
		lower, upper = endKey, startKey
		order = "DESC"
	}

	q := `SELECT id, rev, body FROM documents WHERE id >= ? AND id < ? ORDER BY id COLLATE BINARY ` + order
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, q, lower, upper)
	if err != nil {
		return RangeResult{}, &StoreError{Op: "range_scan", Reason: "query failed", Err: err}
	}
	defer rows.Close()

	var out []RangeRow
	for rows.Next() {
		var id, rev, body string
		if err := rows.Scan(&id, &rev, &body); err != nil {
			return RangeResult{}, &StoreError{Op: "range_scan", Reason: "scan row", Err: err}
		}
		row := RangeRow{ID: id, Key: id}
		if includeDocs {
			doc, err := decodeBody(id, rev, body)
			if err != nil {
				return RangeResult{}, err
			}
			row.Doc = doc
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return RangeResult{}, &StoreError{Op: "range_scan", Reason: "iterate rows", Err: err}
	}

	if out == nil {
		out = []RangeRow{}
	}
	return RangeResult{Rows: out}, nil
}

// orderByClause builds the ORDER BY for a find query. Every query gets the
// id tiebreaker so result order is deterministic across runs.
func orderByClause(sort []query.Order) string {
	var parts []string
	for _, s := range sort {
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("json_extract(body, '$.%s') %s", s.Field, dir))
	}
	parts = append(parts, "id COLLATE BINARY ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

// generation parses the numeric prefix of a revision token; "" is
// generation zero.
func generation(rev string) int {
	if rev == "" {
		return 0
	}
	dash := strings.IndexByte(rev, '-')
	if dash <= 0 {
		return 0
	}
	n, err := strconv.Atoi(rev[:dash])
	if err != nil {
		return 0
	}
	return n
}

// encodeBody serializes a document body without its _id/_rev bookkeeping
// fields; those live in dedicated columns.
func encodeBody(doc document.Document) (string, error) {
	body := doc.Clone()
	delete(body, document.FieldID)
	delete(body, document.FieldRev)
	out, err := json.Marshal(map[string]any(body))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeBody parses a stored body and reattaches _id/_rev.
func decodeBody(id, rev, body string) (document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &StoreError{Op: "decode", Reason: fmt.Sprintf("corrupt body for %s", id), Err: err}
	}
	doc[document.FieldID] = id
	doc[document.FieldRev] = rev
	return doc, nil
}

// projectFields trims a document to the requested fields. Bookkeeping
// fields are always kept; an empty field list keeps everything.
func projectFields(doc document.Document, fields []string) document.Document {
	if len(fields) == 0 {
		return doc
	}
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
