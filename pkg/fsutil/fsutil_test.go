package fsutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRelative(t *testing.T) {
	require.Equal(t, "", NormalizeRelative("."))
	require.Equal(t, "a/b", NormalizeRelative("./a/b"))
	require.Equal(t, "a/b", NormalizeRelative(`a\b`))
	require.Equal(t, "../a", NormalizeRelative("../a"))
}

func TestEscapesRoot(t *testing.T) {
	require.True(t, EscapesRoot(".."))
	require.True(t, EscapesRoot("../a"))
	require.False(t, EscapesRoot("a/../b"))
	require.False(t, EscapesRoot("a/b"))
}

func TestStripLeadingParents(t *testing.T) {
	require.Equal(t, "vendor/agent.md", StripLeadingParents("../../vendor/agent.md"))
	require.Equal(t, "agent.md", StripLeadingParents("agent.md"))
	require.Equal(t, "", StripLeadingParents(".."))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("hello"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	// Overwriting must leave no temp files behind.
	require.NoError(t, WriteFileAtomic(path, []byte("world"), 0o644))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileLockSerializesAccess(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "locks", "source.lock")

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := FileLock(lockPath, func() error {
				mu.Lock()
				counter++
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 8, counter)
}

func TestCanonicalUnder(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(sub), 0o755))
	require.NoError(t, os.WriteFile(sub, []byte("x"), 0o644))

	ok, err := CanonicalUnder(root, sub)
	require.NoError(t, err)
	require.True(t, ok)

	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "c.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("x"), 0o644))
	ok, err = CanonicalUnder(root, outsideFile)
	require.NoError(t, err)
	require.False(t, ok)
}
