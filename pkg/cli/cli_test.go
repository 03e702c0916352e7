package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches the test's working directory to dir and schedules restoring it.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "agents"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents", "helper.md"), []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agpm.toml"), []byte(`
[agents]
helper = { path = "agents/helper.md", flatten = true }
`), 0o644))
	t.Setenv("AGPM_CACHE_DIR", filepath.Join(dir, ".cache"))
	chdir(t, dir)
	return dir
}

func TestInstallCommandWritesLocalDependency(t *testing.T) {
	dir := setupProject(t)

	cmd := NewInstallCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, ".agpm", "agents", "helper.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Contains(t, out.String(), "installed 1 resources")
}

func TestInstallCommandFailsOnInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agpm.toml"), []byte("bogus-top-level = true\n"), 0o644))
	t.Setenv("AGPM_CACHE_DIR", filepath.Join(dir, ".cache"))
	chdir(t, dir)

	cmd := NewInstallCommand()
	cmd.SetArgs(nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
}

func TestValidateCommandReportsResolvedGraph(t *testing.T) {
	setupProject(t)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"--resolve", "--paths"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "agpm.toml is valid")
	assert.Contains(t, out.String(), ".agpm/agents/helper.md")
}

func TestValidateCommandCheckLockWarnsWithoutLockfile(t *testing.T) {
	setupProject(t)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"--check-lock"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "no agpm.lock present")
}

func TestUpdateCommandCheckReportsNoChangesAfterInstall(t *testing.T) {
	setupProject(t)

	install := NewInstallCommand()
	install.SetArgs(nil)
	require.NoError(t, install.ExecuteContext(context.Background()))

	update := NewUpdateCommand()
	update.SetArgs([]string{"--check"})
	var out bytes.Buffer
	update.SetOut(&out)
	err := update.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "no updates available")
}
