package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTest_PassingScenario(t *testing.T) {
	out, err := execute(t, "test", filepath.Join("testdata", "scenarios", "passing.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ passing")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTest_FailingScenario(t *testing.T) {
	out, err := execute(t, "test",
		filepath.Join("testdata", "scenarios", "passing.yaml"),
		filepath.Join("testdata", "scenarios", "failing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "1 passed, 1 failed")
}

func TestTest_JSONOutcomes(t *testing.T) {
	out, err := execute(t, "--format", "json", "test",
		filepath.Join("testdata", "scenarios", "passing.yaml"))
	require.NoError(t, err)

	var resp struct {
		Data []ScenarioOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Passed)
	assert.Equal(t, 2, resp.Data[0].Steps)
}

func TestTest_MissingScenarioFile(t *testing.T) {
	_, err := execute(t, "test", filepath.Join("testdata", "scenarios", "ghost.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
