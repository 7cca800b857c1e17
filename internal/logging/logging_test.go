package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesJSONToStateDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir, Options{}))
	t.Cleanup(func() { _ = Close() })

	id := NewAnalysisID()
	ForAnalysis(id).Info("analysis started", "repo", "acme/widgets")
	Debug("hidden at info level")
	require.NoError(t, Close())

	data, err := os.ReadFile(filepath.Join(dir, ConfigDir, LogFileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "analysis started", record["msg"])
	assert.Equal(t, "acme/widgets", record["repo"])
	assert.Equal(t, id, record["analysis_id"])
}

func TestInit_VerboseEnablesDebug(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir, Options{Verbose: true}))

	Debug("cache miss", "run_id", 7)
	require.NoError(t, Close())

	data, err := os.ReadFile(filepath.Join(dir, ConfigDir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cache miss"`)
}

func TestInit_EmptyDirDiscards(t *testing.T) {
	require.NoError(t, Init("", Options{}))
	t.Cleanup(func() { _ = Close() })

	// Must not panic or create files.
	Info("discarded")
	assert.NotNil(t, Logger())
}

func TestNewAnalysisID_IsUUID(t *testing.T) {
	_, err := uuid.Parse(NewAnalysisID())
	assert.NoError(t, err)
	assert.NotEqual(t, NewAnalysisID(), NewAnalysisID())
}
