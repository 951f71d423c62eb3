package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Text(t *testing.T) {
	out, err := execute(t, "compile", filepath.Join("testdata", "schemas"))
	require.NoError(t, err)
	assert.Contains(t, out, "User (namespace user, primary key id)")
	assert.Contains(t, out, "unique(email)")
}

func TestCompile_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", filepath.Join("testdata", "schemas"))
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   []SchemaSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "user", resp.Data[0].Namespace)
	assert.Equal(t, [][]string{{"email"}}, resp.Data[0].Unique)
}

func TestCompile_MissingPath(t *testing.T) {
	_, err := execute(t, "compile", filepath.Join("testdata", "ghost"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
