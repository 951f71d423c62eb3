package harness

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/strata/internal/compile"
	"github.com/roach88/strata/internal/engine"
	"github.com/roach88/strata/internal/namespace"
	"github.com/roach88/strata/internal/store"
	"github.com/roach88/strata/internal/testutil"
)

// checkAssertion validates one final-state assertion against the session.
func checkAssertion(ctx context.Context, sess *engine.Session, mem *testutil.MemStore, a Assertion) error {
	switch a.Type {
	case AssertCount:
		return checkCount(ctx, sess, a)
	case AssertDocument:
		return checkDocument(ctx, sess, mem, a)
	case AssertAbsent:
		return checkAbsent(ctx, sess, mem, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func checkCount(ctx context.Context, sess *engine.Session, a Assertion) error {
	pred, err := wherePredicate(a.Where)
	if err != nil {
		return err
	}
	count, _, err := sess.Query(ctx, a.Schema, compile.Request{Predicate: pred})
	if err != nil {
		return err
	}
	if count != a.Expect {
		return fmt.Errorf("count: expected %d documents, got %d", a.Expect, count)
	}
	return nil
}

func checkDocument(ctx context.Context, sess *engine.Session, mem *testutil.MemStore, a Assertion) error {
	doc, err := fetch(ctx, sess, mem, a)
	if err != nil {
		return err
	}
	for field, expected := range a.Values {
		actual, present := doc[field]
		if !present {
			return fmt.Errorf("document %s: field %q is absent", a.ID, field)
		}
		if !looselyEqual(actual, expected) {
			return fmt.Errorf("document %s: field %q = %v, expected %v", a.ID, field, actual, expected)
		}
	}
	return nil
}

func checkAbsent(ctx context.Context, sess *engine.Session, mem *testutil.MemStore, a Assertion) error {
	_, err := fetch(ctx, sess, mem, a)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("absent: document %s exists", a.ID)
}

func fetch(ctx context.Context, sess *engine.Session, mem *testutil.MemStore, a Assertion) (map[string]any, error) {
	sc, err := sess.Schema(a.Schema)
	if err != nil {
		return nil, err
	}
	return mem.Get(ctx, namespace.Qualify(sc.Namespace, a.ID))
}

// looselyEqual compares a stored value with a YAML-decoded expectation.
// YAML yields int where the engine may hold int64, so numeric values
// compare by magnitude.
func looselyEqual(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	af, aok := asNumber(actual)
	ef, eok := asNumber(expected)
	return aok && eok && af == ef
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
