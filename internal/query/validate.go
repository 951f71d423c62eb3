package query

import "fmt"

// Validation error codes.
const (
	ErrCodeUnsupportedOperator = "UNSUPPORTED_OPERATOR"
	ErrCodeParamOutOfRange     = "PARAM_OUT_OF_RANGE"
	ErrCodeMalformedPredicate  = "MALFORMED_PREDICATE"
)

// ValidationError describes a malformed or unsupported predicate tree.
//
// Validation failures are foreseeable caller mistakes (bad query shape), so
// they are returned as structured errors rather than panics, and they are
// raised before translation begins rather than deep inside it.
type ValidationError struct {
	Code    string
	Message string
	Field   string // offending field, when known
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validate checks a predicate tree against a parameter list of length nparams.
//
// It verifies that every node is a known predicate type, every Cmp operator
// is in the supported set, and every Param index resolves within bounds.
// Validate is a pure function over the tree.
func Validate(p Predicate, nparams int) *ValidationError {
	if p == nil {
		return nil // empty tree - compiles to a namespace range scan
	}
	return validateNode(p, nparams)
}

func validateNode(p Predicate, nparams int) *ValidationError {
	switch pred := p.(type) {
	case Eq:
		return validateValue(pred.Value, pred.Field, nparams)
	case *Eq:
		return validateValue(pred.Value, pred.Field, nparams)
	case Cmp:
		return validateCmp(pred, nparams)
	case *Cmp:
		return validateCmp(*pred, nparams)
	case In:
		return validateIn(pred, nparams)
	case *In:
		return validateIn(*pred, nparams)
	case And:
		return validateChildren(pred.Predicates, nparams)
	case *And:
		return validateChildren(pred.Predicates, nparams)
	case Or:
		return validateChildren(pred.Predicates, nparams)
	case *Or:
		return validateChildren(pred.Predicates, nparams)
	default:
		return &ValidationError{
			Code:    ErrCodeMalformedPredicate,
			Message: fmt.Sprintf("unknown predicate type %T", p),
		}
	}
}

func validateCmp(c Cmp, nparams int) *ValidationError {
	switch c.Op {
	case OpGt, OpLt, OpGte, OpLte, OpNe:
	default:
		return &ValidationError{
			Code:    ErrCodeUnsupportedOperator,
			Message: fmt.Sprintf("operator %q is not supported", string(c.Op)),
			Field:   c.Field,
		}
	}
	return validateValue(c.Value, c.Field, nparams)
}

func validateIn(in In, nparams int) *ValidationError {
	for _, v := range in.Values {
		if err := validateValue(v, in.Field, nparams); err != nil {
			return err
		}
	}
	return nil
}

func validateChildren(children []Predicate, nparams int) *ValidationError {
	for _, child := range children {
		if child == nil {
			return &ValidationError{
				Code:    ErrCodeMalformedPredicate,
				Message: "nil child predicate",
			}
		}
		if err := validateNode(child, nparams); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(v any, field string, nparams int) *ValidationError {
	param, ok := v.(Param)
	if !ok {
		return nil
	}
	if param.Index < 0 || param.Index >= nparams {
		return &ValidationError{
			Code:    ErrCodeParamOutOfRange,
			Message: fmt.Sprintf("placeholder index %d out of range (have %d params)", param.Index, nparams),
			Field:   field,
		}
	}
	return nil
}
