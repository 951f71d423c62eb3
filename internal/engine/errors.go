package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ViolationKind categorizes a constraint violation.
type ViolationKind string

const (
	KindUnique     ViolationKind = "unique"
	KindForeignKey ViolationKind = "foreign_key"
)

// Violation describes one violated constraint. Detail carries the computed
// marker id (unique) or the missing referenced id (foreign key).
type Violation struct {
	Kind   ViolationKind
	Source string
	Fields []string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s on %s(%s): %s", v.Kind, v.Source, strings.Join(v.Fields, ","), v.Detail)
}

// ConstraintViolationError aborts a write. It carries the complete list of
// violated constraints so the caller sees every failure in one response, not
// just the first.
type ConstraintViolationError struct {
	Violations []Violation
}

func (e *ConstraintViolationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "constraint violation: " + strings.Join(parts, "; ")
}

// IsConstraintViolation reports whether err is a constraint violation.
// Uses errors.As to handle wrapped errors.
func IsConstraintViolation(err error) bool {
	var cv *ConstraintViolationError
	return errors.As(err, &cv)
}
