package document

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"zeta":  int64(1),
		"alpha": int64(2),
		"mid":   int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(out))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	doc := Document{
		"type":   "user",
		"email":  "a@b.com",
		"age":    int64(30),
		"active": true,
		"roles":  []any{"admin", "editor"},
		"meta":   map[string]any{"b": int64(2), "a": int64(1)},
	}

	first, err := MarshalCanonical(doc)
	require.NoError(t, err)

	// Repeated marshaling of the same structure is byte-identical.
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(doc.Clone())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical("a < b && c > d")
	require.NoError(t, err)
	assert.Equal(t, `"a < b && c > d"`, string(out))
}

func TestMarshalCanonical_NullAndFloats(t *testing.T) {
	// Documents are schemaless JSON: null and floats are legal values.
	out, err := MarshalCanonical(map[string]any{
		"missing": nil,
		"score":   3.5,
		"count":   float64(7), // JSON decoding yields float64 for whole numbers
	})
	require.NoError(t, err)
	assert.Equal(t, `{"count":7,"missing":null,"score":3.5}`, string(out))
}

func TestMarshalCanonical_NonFiniteFloatRejected(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"bad": math.Inf(1)})
	assert.Error(t, err)
}

func TestMarshalCanonical_ControlCharacterEscapes(t *testing.T) {
	out, err := MarshalCanonical("line1\nline2\ttab\x01")
	require.NoError(t, err)
	assert.Equal(t, `"line1\nline2\ttab\u0001"`, string(out))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	decomposed := "é"
	precomposed := "é"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestMerge_PreservesBaseKeys(t *testing.T) {
	base := Document{"_id": "user/1", "_rev": "1-abc", "type": "user", "name": "ada", "city": "london"}
	merged := Merge(base, map[string]any{"city": "paris", "age": int64(36)})

	assert.Equal(t, "paris", merged["city"])
	assert.Equal(t, int64(36), merged["age"])
	assert.Equal(t, "ada", merged["name"])
	assert.Equal(t, "user/1", merged.ID())
	assert.Equal(t, "1-abc", merged.Rev())

	// Base is untouched.
	assert.Equal(t, "london", base["city"])
}
