// Package document defines the schemaless document model shared by the
// query compiler, projector, constraint engine and store.
//
// A document is an arbitrary key/value map carrying three well-known fields:
// "_id" (the namespace-qualified document id), "_rev" (the store's revision
// token) and "type" (the owning namespace). Everything else is caller data.
//
// The package also provides canonical JSON serialization. Canonical output is
// what makes compiled queries comparable byte-for-byte: two structurally equal
// selectors always serialize to the same bytes regardless of Go map iteration
// order.
package document
