package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/schema"
)

func compileString(t *testing.T, src string) ([]*schema.Schema, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileAll(v)
}

func TestCompileAll_FullDefinition(t *testing.T) {
	schemas, err := compileString(t, `
schema: User: {
	fields: {
		id:     string
		email:  string
		age:    int
		active: bool
		tags: [...string]
		org: string
	}
	unique: [["email"]]
	foreignKey: [{field: "org", target: "org"}]
}
`)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	sc := schemas[0]
	assert.Equal(t, "User", sc.Name)
	assert.Equal(t, "user", sc.Namespace)
	assert.Equal(t, "id", sc.PrimaryKey)
	assert.Equal(t, []string{"id", "email", "age", "active", "tags", "org"}, sc.FieldNames())
	assert.Equal(t, schema.TypeInteger, sc.FieldMeta()["age"])
	assert.Equal(t, schema.TypeList, sc.FieldMeta()["tags"])
	assert.Equal(t, [][]string{{"email"}}, sc.Unique)
	assert.Equal(t, []schema.ForeignKey{{Field: "org", Target: "org"}}, sc.ForeignKeys)
}

func TestCompileAll_ExplicitNamespaceAndPrimaryKey(t *testing.T) {
	schemas, err := compileString(t, `
schema: LegacyAccount: {
	namespace:  "account"
	primaryKey: "account_no"
	fields: {account_no: string, balance: int}
}
`)
	require.NoError(t, err)
	sc := schemas[0]
	assert.Equal(t, "account", sc.Namespace)
	assert.Equal(t, "account_no", sc.PrimaryKey)
}

func TestCompileAll_DerivedNamespaceSingularizes(t *testing.T) {
	schemas, err := compileString(t, `
schema: Categories: {
	fields: {id: string}
}
`)
	require.NoError(t, err)
	assert.Equal(t, "category", schemas[0].Namespace)
}

func TestCompileAll_CompositeUnique(t *testing.T) {
	schemas, err := compileString(t, `
schema: Membership: {
	fields: {id: string, user_id: string, org_id: string}
	unique: [["user_id", "org_id"]]
}
`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"user_id", "org_id"}}, schemas[0].Unique)
}

func TestCompileAll_MultipleSchemas(t *testing.T) {
	schemas, err := compileString(t, `
schema: {
	User: {fields: {id: string}}
	Org:  {fields: {id: string, name: string}}
}
`)
	require.NoError(t, err)
	assert.Len(t, schemas, 2)
}

func TestCompileAll_Errors(t *testing.T) {
	cases := map[string]string{
		"missing schema struct": `other: 1`,
		"no fields":             `schema: User: {unique: [["email"]]}`,
		"float field type":      `schema: User: {fields: {id: string, score: float}}`,
		"constraint on undeclared field": `
schema: User: {
	fields: {id: string}
	unique: [["email"]]
}`,
		"foreign key missing target": `
schema: User: {
	fields: {id: string, org: string}
	foreignKey: [{field: "org"}]
}`,
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := compileString(t, src)
			require.Error(t, err)
			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestCompileError_IncludesPosition(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`schema: User: {fields: {score: float}}`)
	require.NoError(t, v.Err())

	_, err := CompileAll(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}
