package compile

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/query"
)

// Golden files pin the canonical serialization of compiled queries.
// To regenerate:
//
//	go test ./internal/compile -update
func assertGoldenQuery(t *testing.T, name string, req Request) {
	t.Helper()

	q, err := userCompiler().Compile(req)
	require.NoError(t, err)

	out, err := document.MarshalCanonical(Describe(q))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, out)
}

func TestGolden_PointGet(t *testing.T) {
	assertGoldenQuery(t, "point_get", Request{
		Predicate: query.Eq{Field: "id", Value: "42"},
	})
}

func TestGolden_BatchGet(t *testing.T) {
	assertGoldenQuery(t, "batch_get", Request{
		Predicate: query.In{Field: "id", Values: []any{1, 2, 3}},
	})
}

func TestGolden_RangeScanDescending(t *testing.T) {
	assertGoldenQuery(t, "range_scan_desc", Request{
		Order: []query.Order{{Field: "id", Descending: true}},
		Limit: 10,
	})
}

func TestGolden_SelectorComplex(t *testing.T) {
	assertGoldenQuery(t, "selector_complex", Request{
		Predicate: query.And{Predicates: []query.Predicate{
			query.Eq{Field: "status", Value: "active"},
			query.Or{Predicates: []query.Predicate{
				query.Cmp{Op: query.OpGt, Field: "age", Value: 30},
				query.Eq{Field: "role", Value: "admin"},
			}},
		}},
		Fields: []string{"id", "email"},
		Order:  []query.Order{{Field: "age", Descending: true}},
		Limit:  20,
		Skip:   5,
	})
}
