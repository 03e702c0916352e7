package resolver

import (
	"path"
	"strings"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/fsutil"
	"github.com/agpm-dev/agpm/pkg/manifest"
)

// childLocation is where a transitive dependency's path resolves to: which
// source (if any) it lives in, the normalized path within that scope, and
// whether it climbed outside the manifest directory (local deps only).
type childLocation struct {
	source  string
	url     string
	path    string
	escaped bool
}

// resolveChildPath implements spec §4.4.1's path-resolution rules for a
// transitive dependency discovered under parent.
//
//   - A child naming its own source (different from parent's) is resolved
//     root-relative within that source, the same as a direct manifest
//     dependency: there is no parent-directory context to inherit once the
//     reference crosses repositories.
//   - Otherwise the child inherits parent's source (or lack of one) and its
//     path is resolved relative to the directory containing parent's file.
func resolveChildPath(m *manifest.Manifest, child manifest.Dependency, parent *Node) (childLocation, error) {
	if child.Source != "" && child.Source != parent.Source {
		url, ok := m.Sources[child.Source]
		if !ok {
			return childLocation{}, agpmerr.New(agpmerr.KindValidation, "dependency of %s references undefined source %q", parent.CanonicalName(), child.Source)
		}
		normalized := normalizeBareOrRelative(child.Path)
		if fsutil.EscapesRoot(normalized) {
			return childLocation{}, agpmerr.New(agpmerr.KindPathEscapesRoot, "dependency path %q escapes the source tree of %q", child.Path, child.Source)
		}
		return childLocation{source: child.Source, url: url, path: normalized}, nil
	}

	parentDir := path.Dir(parent.Path)
	joined := path.Join(parentDir, normalizeBareOrRelative(child.Path))
	normalized := fsutil.NormalizeRelative(joined)

	if parent.IsLocal() {
		return childLocation{path: normalized, escaped: fsutil.EscapesRoot(normalized)}, nil
	}

	if fsutil.EscapesRoot(normalized) {
		return childLocation{}, agpmerr.New(agpmerr.KindPathEscapesRoot, "dependency path %q of %s escapes the source repository", child.Path, parent.CanonicalName())
	}
	return childLocation{source: parent.Source, url: parent.URL, path: normalized}, nil
}

// normalizeBareOrRelative auto-promotes a bare filename (no leading "./" or
// "../") to a path.Join-friendly relative form; path.Join already treats
// bare names and "./x" identically, so this only needs to normalize slashes.
func normalizeBareOrRelative(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
