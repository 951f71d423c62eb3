// Package query defines the predicate tree consumed by the query compiler.
//
// A predicate is a sealed tagged union: only types in this package implement
// the Predicate interface. The marker method pattern prevents external
// implementations and enables exhaustive type switches in the compiler.
//
// Trees are immutable once built: construction happens per request, the
// compiler walks the tree without mutating it, and the tree is discarded
// after compilation.
package query
