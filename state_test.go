package drift_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.driftcloud.dev/drift"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	state, err := drift.LoadState(path)

	require.NoError(t, err)

	assert.Empty(t, state.AccessToken)
	assert.Empty(t, state.SelectedProject)

	state.AccessToken = "tok-123"
	state.SelectedProject = "p1"

	require.NoError(t, state.Save())

	loaded, err := drift.LoadState(path)

	require.NoError(t, err)

	assert.Equal(t, "tok-123", loaded.AccessToken)
	assert.Equal(t, "p1", loaded.SelectedProject)
}

func TestStateSaveCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")

	state, err := drift.LoadState(path)

	require.NoError(t, err)

	state.AccessToken = "tok"

	require.NoError(t, state.Save())

	assert.FileExists(t, path)
}

func TestStateFileIsPrivate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	path := filepath.Join(t.TempDir(), "state.json")

	state, err := drift.LoadState(path)

	require.NoError(t, err)

	state.AccessToken = "tok"

	require.NoError(t, state.Save())

	info, err := os.Stat(path)

	require.NoError(t, err)

	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadStateCorrupt(t *testing.T) {
	path := writeFile(t, "state.json", "{not json")

	_, err := drift.LoadState(path)

	assert.Error(t, err)
}
