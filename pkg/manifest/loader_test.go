package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAllowsEscapingLocalPathWhenFileExists(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shared.md"), []byte("shared"), 0o644))

	manifestPath := filepath.Join(projectDir, "agpm.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
[agents]
shared = "../shared.md"
`), 0o644))

	m, err := Load(manifestPath)
	require.NoError(t, err)
	require.Contains(t, m.Resources[ResourceAgents], "shared")
}

func TestLoadRejectsEscapingLocalPathWhenFileMissing(t *testing.T) {
	projectDir := t.TempDir()
	manifestPath := filepath.Join(projectDir, "agpm.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
[agents]
missing = "../does-not-exist.md"
`), 0o644))

	_, err := Load(manifestPath)
	require.Error(t, err)
}
