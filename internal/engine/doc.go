// Package engine orchestrates reads and writes against the document store
// with relational semantics layered on top.
//
// A query flows compile -> store read -> projection. A write flows
// constraint validation -> marker reservation -> document write. The engine
// holds no shared mutable state between calls; concurrency exists only
// across independent sessions, each with its own store handle.
package engine
