package source

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agpm-dev/agpm/pkg/gitutil"
)

type passthroughResolver struct{}

func (passthroughResolver) ResolveURL(_, configuredURL string) (string, error) {
	return configuredURL, nil
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func initFixtureRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	run := func(args ...string) {
		_, err := gitutil.Run(ctx, dir, args...)
		require.NoError(t, err)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "agents"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents", "example.md"), []byte("# v1\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial")
	run("tag", "v1.0.0")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents", "example.md"), []byte("# v1.1\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "second")
	run("tag", "v1.1.0")
	return dir
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), passthroughResolver{}, 2)
}

func TestResolveExactVersion(t *testing.T) {
	repo := initFixtureRepo(t)
	m := newTestManager(t)
	defer m.Close(context.Background())

	resolved, err := m.Resolve(context.Background(), "example", repo, "version", "v1.0.0")
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", resolved.ResolvedRef)
}

func TestResolveCaretRangePicksHighest(t *testing.T) {
	repo := initFixtureRepo(t)
	m := newTestManager(t)
	defer m.Close(context.Background())

	resolved, err := m.Resolve(context.Background(), "example", repo, "version", "^1.0.0")
	require.NoError(t, err)
	require.Equal(t, "v1.1.0", resolved.ResolvedRef)
}

func TestResolveWildcardUsesDefaultBranch(t *testing.T) {
	repo := initFixtureRepo(t)
	m := newTestManager(t)
	defer m.Close(context.Background())

	resolved, err := m.Resolve(context.Background(), "example", repo, "", "")
	require.NoError(t, err)
	require.Equal(t, "main", resolved.ResolvedRef)
}

func TestResolveNoMatchingVersion(t *testing.T) {
	repo := initFixtureRepo(t)
	m := newTestManager(t)
	defer m.Close(context.Background())

	_, err := m.Resolve(context.Background(), "example", repo, "version", "^9.0.0")
	require.Error(t, err)
}

func TestReadFileServesContentFromWorktree(t *testing.T) {
	repo := initFixtureRepo(t)
	m := newTestManager(t)
	defer m.Close(context.Background())

	resolved, err := m.Resolve(context.Background(), "example", repo, "version", "v1.0.0")
	require.NoError(t, err)

	data, err := m.ReadFile(context.Background(), "example", repo, resolved.CommitSHA, "agents/example.md")
	require.NoError(t, err)
	require.Equal(t, "# v1\n", string(data))
}

func TestReadFileRejectsEscapingPath(t *testing.T) {
	repo := initFixtureRepo(t)
	m := newTestManager(t)
	defer m.Close(context.Background())

	resolved, err := m.Resolve(context.Background(), "example", repo, "version", "v1.0.0")
	require.NoError(t, err)

	_, err = m.ReadFile(context.Background(), "example", repo, resolved.CommitSHA, "../../../etc/passwd")
	require.Error(t, err)
}

func TestCheckoutReusesWorktreeAcrossCalls(t *testing.T) {
	repo := initFixtureRepo(t)
	m := newTestManager(t)
	defer m.Close(context.Background())

	resolved, err := m.Resolve(context.Background(), "example", repo, "version", "v1.0.0")
	require.NoError(t, err)

	path1, release1, err := m.Checkout(context.Background(), "example", repo, resolved.CommitSHA)
	require.NoError(t, err)
	path2, release2, err := m.Checkout(context.Background(), "example", repo, resolved.CommitSHA)
	require.NoError(t, err)
	require.Equal(t, path1, path2)
	release1()
	release2()
}
