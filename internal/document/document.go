package document

// Well-known document fields. The store assigns FieldID and FieldRev;
// the engine assigns FieldType on every write.
const (
	// FieldID is the namespace-qualified document id.
	FieldID = "_id"

	// FieldRev is the store's opaque revision token.
	FieldRev = "_rev"

	// FieldType holds the owning namespace. Every collection scan
	// constrains on this field.
	FieldType = "type"
)

// Document is a schemaless key/value document as stored in the backing store.
// Values are the JSON-decoded Go types: nil, bool, string, int64, float64,
// []any and map[string]any.
type Document map[string]any

// ID returns the document's "_id" field, or "" if absent.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Rev returns the document's "_rev" field, or "" if absent.
func (d Document) Rev() string {
	s, _ := d[FieldRev].(string)
	return s
}

// Type returns the document's "type" field, or "" if absent.
func (d Document) Type() string {
	s, _ := d[FieldType].(string)
	return s
}

// Clone returns a shallow copy of the document.
// Nested values are shared; callers that mutate nested maps must copy them.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a new document with fields overlaid over base.
// Keys present in fields win; keys only in base are preserved. This is the
// merge-then-full-write shape updates require: the store accepts only
// complete bodies per revision, so a partial update is expressed by merging
// the caller's fields over the currently stored document.
func Merge(base Document, fields map[string]any) Document {
	out := base.Clone()
	for k, v := range fields {
		out[k] = v
	}
	return out
}
