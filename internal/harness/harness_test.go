package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return scenario
}

func TestRunWithGolden_UniqueEmail(t *testing.T) {
	scenario := loadTestScenario(t, "unique_email.yaml")
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestRunWithGolden_ForeignKey(t *testing.T) {
	scenario := loadTestScenario(t, "foreign_key.yaml")
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestRun_TraceRecordsEveryStep(t *testing.T) {
	scenario := loadTestScenario(t, "foreign_key.yaml")

	result, err := Run(scenario)
	require.NoError(t, err)

	require.Len(t, result.Trace, len(scenario.Steps))
	assert.Equal(t, StatusOK, result.Trace[0].Status)
	assert.Equal(t, StatusConstraintViolation, result.Trace[2].Status)
	require.Len(t, result.Trace[2].Violations, 1)
	assert.Contains(t, result.Trace[2].Violations[0], "org/ghost")
	assert.Equal(t, 1, result.Trace[4].Count)
}

func TestRun_UnexpectedOutcomeFailsTheRun(t *testing.T) {
	scenario := loadTestScenario(t, "unique_email.yaml")
	// Claim the duplicate insert should succeed.
	scenario.Steps[1].Expect = ""

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[1]")
}

func TestRun_FailedAssertionFailsTheRun(t *testing.T) {
	scenario := loadTestScenario(t, "unique_email.yaml")
	scenario.Assertions = []Assertion{
		{Type: AssertCount, Schema: "User", Expect: 99},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions[0]")
}

func TestRun_SeedBypassesConstraints(t *testing.T) {
	scenario := loadTestScenario(t, "unique_email.yaml")
	scenario.Seed = []map[string]any{
		{"_id": "user/9", "type": "user", "id": "9", "email": "seeded@acme.io"},
	}
	scenario.Assertions = []Assertion{
		{Type: AssertCount, Schema: "User", Expect: 2},
		{Type: AssertDocument, Schema: "User", ID: "9", Values: map[string]any{"email": "seeded@acme.io"}},
	}

	_, err := Run(scenario)
	require.NoError(t, err)
}

func TestWherePredicate_OperatorMaps(t *testing.T) {
	pred, err := wherePredicate(map[string]any{
		"age":  map[string]any{"$gt": 40},
		"role": map[string]any{"$in": []any{"admin", "editor"}},
		"name": "ada",
	})
	require.NoError(t, err)
	require.NotNil(t, pred)

	_, err = wherePredicate(map[string]any{
		"age": map[string]any{"$near": 40},
	})
	assert.Error(t, err)
}
