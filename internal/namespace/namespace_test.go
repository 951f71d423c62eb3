package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		typeName string
		want     string
	}{
		{"User", "user"},
		{"Users", "user"},
		{"BlogPost", "blog_post"},
		{"BlogPosts", "blog_post"},
		{"Categories", "category"},
		{"Address", "address"},
		{"Boxes", "box"},
		{"Branches", "branch"},
		{"HTTPSession", "http_session"},
		{"org", "org"},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.typeName))
		})
	}
}

func TestQualify_Idempotent(t *testing.T) {
	assert.Equal(t, "user/42", Qualify("user", "42"))
	assert.Equal(t, "user/42", Qualify("user", "user/42"))
	assert.Equal(t, "user/42", Qualify("user", Qualify("user", "42")))
}

func TestQualify_DifferentNamespacePrefix(t *testing.T) {
	// A local id that happens to look like another namespace's qualified id
	// still gets this namespace's prefix.
	assert.Equal(t, "user/org/7", Qualify("user", "org/7"))
}

func TestUnqualify_RoundTrip(t *testing.T) {
	ids := []string{"42", "a@b.com", "user/42", "weird/nested/id"}
	for _, id := range ids {
		got := Unqualify("user", Qualify("user", id))
		assert.Equal(t, Unqualify("user", id), got, "round-trip for %q", id)
	}
}

func TestUnqualify_NoPrefix(t *testing.T) {
	assert.Equal(t, "42", Unqualify("user", "42"))
	assert.Equal(t, "org/7", Unqualify("user", "org/7"))
}

func TestEncodeID_RoundTrip(t *testing.T) {
	ids := []string{
		"user/42",
		"user/a@b.com",
		"constraint/user-a@b.com",
		"user/with space",
		"user/percent%sign",
	}
	for _, id := range ids {
		assert.Equal(t, id, DecodeID(EncodeID(id)), "round-trip for %q", id)
	}
}

func TestEncodeID_EscapesSlash(t *testing.T) {
	// Path escaping must cover the namespace separator so a qualified id
	// occupies a single path segment at the transport boundary.
	assert.Equal(t, "user%2F42", EncodeID("user/42"))
}
