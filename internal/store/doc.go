// Package store defines the backing-store interface the engine consumes,
// its error taxonomy, and a SQLite-backed document store implementation.
//
// The engine only ever talks to the narrow Store interface: single-document
// get/put, batched put, selector find, and key-ordered range scan. The store
// offers single-document atomicity and revision-checked writes; it offers no
// multi-document transactions and no native integrity constraints - those
// are emulated above this layer.
//
// Document ids cross this boundary in their unencoded "<namespace>/<local>"
// form. Percent-encoding (namespace.EncodeID) is a transport concern for
// stores that carry ids in URL paths; the SQLite store needs none.
package store
