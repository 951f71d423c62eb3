package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/engine"
	"github.com/roach88/strata/internal/store"
)

func TestValidate_Text(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join("testdata", "schemas"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 schema(s) valid")
}

func TestValidate_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", filepath.Join("testdata", "schemas"))
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_BadDefinitionFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"),
		[]byte(`schema: User: {fields: {id: string}, unique: [["ghost"]]}`), 0o644))

	_, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidate_MissingPathIsCommandError(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join("testdata", "ghost"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_ReportsMarkers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "user-orphan@acme.io",
		document.Document{"type": engine.MarkerType, "source": "user"}, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, err := execute(t, "validate", filepath.Join("testdata", "schemas"), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 uniqueness marker(s)")
	assert.Contains(t, out, "user-orphan@acme.io")
}
