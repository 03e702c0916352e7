package gitutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAuthError(t *testing.T) {
	cases := map[string]bool{
		"fatal: Authentication failed for 'https://...'": true,
		"remote: Permission denied":                       true,
		"fatal: could not read Username for 'https://'":   true,
		"fatal: repository not found":                      false,
	}
	for msg, want := range cases {
		require.Equal(t, want, IsAuthError(msg), msg)
	}
}

func TestIsHexString(t *testing.T) {
	require.True(t, IsHexString("abc123"))
	require.True(t, IsHexString("ABCDEF0123456789"))
	require.False(t, IsHexString(""))
	require.False(t, IsHexString("xyz"))
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient("fatal: unable to access: Could not resolve host: example.com"))
	require.True(t, IsTransient("error: RPC failed; curl 56 Connection reset by peer"))
	require.False(t, IsTransient("fatal: Authentication failed"))
	require.False(t, IsTransient("fatal: couldn't find remote ref refs/heads/does-not-exist"))
}

// requireGit skips the test if the git binary is unavailable in this
// environment, matching how the teacher's integration tests guard on
// external tool availability.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func initFixtureRepo(t *testing.T) (workDir, bareDir string) {
	t.Helper()
	requireGit(t)
	ctx := context.Background()

	workDir = t.TempDir()
	run := func(args ...string) {
		_, err := Run(ctx, workDir, args...)
		require.NoError(t, err)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "f.txt"), []byte("v1"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial")
	run("tag", "v1.0.0")

	bareDir = filepath.Join(t.TempDir(), "bare.git")
	require.NoError(t, CloneBare(ctx, workDir, bareDir))
	return workDir, bareDir
}

func TestCloneFetchResolve(t *testing.T) {
	ctx := context.Background()
	_, bareDir := initFixtureRepo(t)

	tags, err := ListTags(ctx, bareDir)
	require.NoError(t, err)
	require.Contains(t, tags, "v1.0.0")

	sha, err := RevParse(ctx, bareDir, "v1.0.0")
	require.NoError(t, err)
	require.Len(t, sha, 40)
	require.True(t, IsHexString(sha))

	branch, err := DefaultBranch(ctx, bareDir)
	require.NoError(t, err)
	require.Equal(t, "main", branch)
}

func TestAddAndRemoveWorktree(t *testing.T) {
	ctx := context.Background()
	_, bareDir := initFixtureRepo(t)

	sha, err := RevParse(ctx, bareDir, "v1.0.0")
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, AddWorktree(ctx, bareDir, dest, sha))
	data, err := os.ReadFile(filepath.Join(dest, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(data))

	require.NoError(t, RemoveWorktree(ctx, bareDir, dest))
}
