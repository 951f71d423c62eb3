package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EmptyTree(t *testing.T) {
	assert.Nil(t, Validate(nil, 0))
}

func TestValidate_SimpleEq(t *testing.T) {
	assert.Nil(t, Validate(Eq{Field: "email", Value: "a@b.com"}, 0))
}

func TestValidate_PointerNodes(t *testing.T) {
	p := &And{Predicates: []Predicate{
		&Eq{Field: "status", Value: "active"},
		&Cmp{Op: OpGt, Field: "age", Value: int64(18)},
	}}
	assert.Nil(t, Validate(p, 0))
}

func TestValidate_UnsupportedOperator(t *testing.T) {
	err := Validate(Cmp{Op: Op("~="), Field: "name", Value: "x"}, 0)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeUnsupportedOperator, err.Code)
	assert.Equal(t, "name", err.Field)
}

func TestValidate_ParamInBounds(t *testing.T) {
	p := Eq{Field: "email", Value: Param{Index: 1}}
	assert.Nil(t, Validate(p, 2))
}

func TestValidate_ParamOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		p       Predicate
		nparams int
	}{
		{"eq", Eq{Field: "email", Value: Param{Index: 2}}, 2},
		{"cmp", Cmp{Op: OpGte, Field: "age", Value: Param{Index: 0}}, 0},
		{"in", In{Field: "id", Values: []any{Param{Index: 5}}}, 1},
		{"negative", Eq{Field: "email", Value: Param{Index: -1}}, 3},
		{"nested", And{Predicates: []Predicate{
			Or{Predicates: []Predicate{Eq{Field: "x", Value: Param{Index: 9}}}},
		}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p, tt.nparams)
			require.NotNil(t, err)
			assert.Equal(t, ErrCodeParamOutOfRange, err.Code)
		})
	}
}

func TestValidate_NilChild(t *testing.T) {
	err := Validate(And{Predicates: []Predicate{nil}}, 0)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeMalformedPredicate, err.Code)
}
