package query

// Predicate represents a filter condition over documents of one namespace.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Eq:  field equals a literal value
//   - Cmp: field compared to a literal with an ordering operator
//   - In:  field equals one of a list of values
//   - And: all child predicates must hold
//   - Or:  at least one child predicate must hold
//
// Values inside predicates may be literals or Param placeholders; the
// compiler substitutes positional parameters before emitting a query.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator for Cmp predicates.
type Op string

const (
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
	OpNe  Op = "!="
)

// Eq represents field = value.
//
// Equality is the privileged predicate: a single Eq on the primary key
// compiles to a point lookup instead of a selector query.
type Eq struct {
	Field string
	Value any // literal or Param
}

func (Eq) predicateNode() {}

// Cmp represents field <op> value for an ordering operator.
type Cmp struct {
	Op    Op
	Field string
	Value any // literal or Param
}

func (Cmp) predicateNode() {}

// In represents field ∈ values.
//
// An In (or Eq with a list value) on the primary key compiles to a batch
// lookup of the qualified ids.
type In struct {
	Field  string
	Values []any // literals or Params
}

func (In) predicateNode() {}

// And represents a conjunction. An empty And is vacuously true and compiles
// like an empty predicate tree (a full namespace scan).
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. Children are never merged flatly into the
// surrounding selector level - the compiler always emits an explicit
// disjunction list to preserve grouping semantics.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Param is a positional parameter placeholder usable wherever a predicate
// value goes. The compiler resolves Index against the caller-supplied
// parameter list; an out-of-range index is a validation error, not a crash.
type Param struct {
	Index int
}

// Order is one sort instruction. The leading Order decides traversal
// direction for range scans.
type Order struct {
	Field      string
	Descending bool
}
