package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/strata/internal/document"
)

// toCanonicalMap converts a Result to a plain map for canonical JSON
// serialization. Empty fields are omitted so traces stay compact.
func (r *Result) toCanonicalMap() map[string]any {
	trace := make([]any, len(r.Trace))
	for i, event := range r.Trace {
		eventMap := map[string]any{
			"op":     event.Op,
			"schema": event.Schema,
			"status": event.Status,
		}
		if len(event.Returned) > 0 {
			eventMap["returned"] = event.Returned
		}
		if len(event.Violations) > 0 {
			eventMap["violations"] = toAnyList(event.Violations)
		}
		if event.Op == "query" {
			eventMap["count"] = event.Count
			rows := make([]any, len(event.Rows))
			for j, row := range event.Rows {
				rows[j] = row
			}
			eventMap["rows"] = rows
		}
		if event.Outcomes != nil {
			outcomes := make([]any, len(event.Outcomes))
			for j, o := range event.Outcomes {
				outcomes[j] = o
			}
			eventMap["outcomes"] = outcomes
		}
		trace[i] = eventMap
	}
	return map[string]any{
		"scenario": r.ScenarioName,
		"trace":    trace,
	}
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	traceJSON, err := document.MarshalCanonical(result.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
