// Package namespace derives collection-prefix strings from schema type names
// and composes/decomposes namespace-qualified document ids.
//
// Every document id that reaches the store has the form "<namespace>/<local>".
// Qualification is idempotent: qualifying an already-qualified id is a no-op,
// so callers never need to track whether an id has been qualified.
package namespace

import (
	"net/url"
	"strings"
	"unicode"
)

// Separator joins a namespace and a local id into a document id.
const Separator = "/"

// Derive returns the canonical namespace for a schema type name:
// singularized, lowercase, underscored.
//
//	Derive("User")        == "user"
//	Derive("BlogPosts")   == "blog_post"
//	Derive("Categories")  == "category"
func Derive(typeName string) string {
	return singularize(underscore(typeName))
}

// Qualify prepends the namespace to a local id. Idempotent: if localID
// already starts with "<ns>/", it is returned unchanged.
func Qualify(ns, localID string) string {
	if strings.HasPrefix(localID, ns+Separator) {
		return localID
	}
	return ns + Separator + localID
}

// Unqualify strips a single leading "<ns>/" prefix if present.
// Ids without the prefix are returned unchanged.
func Unqualify(ns, id string) string {
	return strings.TrimPrefix(id, ns+Separator)
}

// EncodeID percent-encodes a document id for transports that carry ids in
// URL paths. This is a pure boundary step: the engine always operates on the
// unencoded "<namespace>/<local>" form, and only a transport that needs
// escaping applies it immediately before dispatch.
func EncodeID(id string) string {
	return url.PathEscape(id)
}

// DecodeID reverses EncodeID. Invalid escapes return the input unchanged;
// ids produced by EncodeID always decode cleanly.
func DecodeID(encoded string) string {
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return encoded
	}
	return decoded
}

// underscore converts a CamelCase type name to lowercase snake_case.
func underscore(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Boundary before an upper rune that follows a lower rune, or
			// that precedes a lower rune inside an acronym run ("HTTPServer").
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// singularize reduces a regular English plural to its singular form.
// Irregular plurals are out of scope: schema authors with irregular type
// names declare an explicit namespace instead.
func singularize(name string) string {
	switch {
	case strings.HasSuffix(name, "ies") && len(name) > 3:
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "ses") || strings.HasSuffix(name, "xes") ||
		strings.HasSuffix(name, "zes") || strings.HasSuffix(name, "ches") ||
		strings.HasSuffix(name, "shes"):
		return name[:len(name)-2]
	case strings.HasSuffix(name, "ss"):
		return name
	case strings.HasSuffix(name, "s") && len(name) > 1:
		return name[:len(name)-1]
	default:
		return name
	}
}
