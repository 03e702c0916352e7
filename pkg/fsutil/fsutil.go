// Package fsutil provides filesystem glue: cross-platform path normalization,
// atomic temp-file-then-rename writes, and directory-scoped locking built on
// github.com/gofrs/flock. These are the leaf-level primitives every other
// AGPM package (source manager, installer) is built on top of, per spec §2's
// "Dependency order, leaves first."
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ToSlash normalizes a path to forward slashes, the form used throughout the
// manifest, lockfile, and installed-at records for cross-platform stability.
func ToSlash(p string) string {
	return filepath.ToSlash(p)
}

// FromSlash converts a forward-slash path (as read from the manifest or
// lockfile) to the host's native separator for filesystem operations.
func FromSlash(p string) string {
	return filepath.FromSlash(p)
}

// NormalizeRelative cleans a forward-slash path, collapsing "./" and
// redundant separators but preserving leading "../" segments so callers can
// detect directory traversal themselves.
func NormalizeRelative(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = filepath.ToSlash(filepath.Clean(p))
	if p == "." {
		return ""
	}
	return p
}

// EscapesRoot reports whether a cleaned relative path climbs above its root
// via "../" (used to reject manifest paths that escape the manifest
// directory, and content-filter paths that escape the project root).
func EscapesRoot(cleaned string) bool {
	return cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

// StripLeadingParents removes every leading "../" (or "..\\") segment from a
// path, returning the remainder. Used when installing out-of-tree local
// dependencies per spec §4.7.1 step 3.
func StripLeadingParents(p string) string {
	p = NormalizeRelative(p)
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	if p == ".." {
		return ""
	}
	return p
}

// WriteFileAtomic writes data to path by first writing to a sibling temp
// file in the same directory, then renaming it into place. This guarantees
// readers never observe a partially-written file, and that a failed write
// never destroys the previous contents, per spec §4.7.4.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".agpm-tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	success = true
	return nil
}

// FileLock acquires an exclusive filesystem lock at lockPath for the
// duration of fn, creating parent directories as needed. Used to guard
// mutations to a source's bare-clone directory and worktree pool, matching
// the "OS-level file lock" requirement of spec §4.3 and §4.8.
func FileLock(lockPath string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquiring lock %s: %w", lockPath, err)
	}
	defer func() { _ = fl.Unlock() }()
	return fn()
}

// Exists reports whether a path exists on disk (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CanonicalUnder reports whether a candidate path, once resolved against
// symlinks via filepath.EvalSymlinks, remains within root (also resolved).
// Both candidate and root must already exist on disk.
func CanonicalUnder(root, candidate string) (bool, error) {
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false, err
	}
	candReal, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(rootReal, candReal)
	if err != nil {
		return false, err
	}
	return rel == "." || !strings.HasPrefix(filepath.ToSlash(rel), "../"), nil
}
