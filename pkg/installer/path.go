// Package installer applies a resolved resolver.Graph to disk: it computes
// each node's installed path, renders templated content leaves-first,
// merges JSON-targeted resources (MCP servers, hooks), synthesizes the
// managed block of .gitignore, and writes the lockfile, all per spec §4.7.
package installer

import (
	"path"
	"strings"

	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolver"
)

// toolSubdirConvention is the set of tools whose resource directories nest
// an extra "agpm" subdirectory between the resource-type directory and the
// installed file (spec §4.7.1 step 2). The agpm tool itself installs
// straight into resourceConfig(T,R).path with no such subdirectory.
var toolSubdirConvention = map[string]bool{
	"claude-code": true,
	"opencode":    true,
}

// toolPath returns a tool's configured root directory ("" if unknown).
func toolPath(m *manifest.Manifest, tool string) string {
	tc, _ := m.EffectiveToolConfig(tool)
	return tc.Path
}

// InstalledPath computes a node's installed-at path, relative to the
// project root, per spec §4.7.1. The result always uses forward slashes;
// callers convert to the host separator when actually writing.
func InstalledPath(m *manifest.Manifest, n *resolver.Node) string {
	tool := toolPath(m, n.Tool)

	if n.Target != "" {
		return joinSlash(tool, n.Target)
	}

	tc, _ := m.EffectiveToolConfig(n.Tool)
	rc := tc.Resources[n.ResourceType]

	base := joinSlash(tool, rc.Path)
	if toolSubdirConvention[n.Tool] {
		base = joinSlash(base, "agpm")
	}

	rel := n.Path
	if n.Flatten {
		prefix := string(n.ResourceType) + "/"
		if strings.HasPrefix(rel, prefix) {
			rel = strings.TrimPrefix(rel, prefix)
		}
	}
	if n.EscapesManifestDir {
		rel = stripLeadingParents(rel)
	}

	if n.Filename != "" {
		rel = joinSlash(path.Dir(rel), n.Filename)
		rel = strings.TrimPrefix(rel, "./")
	}

	return joinSlash(base, rel)
}

func stripLeadingParents(p string) string {
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	return strings.TrimPrefix(p, "..")
}

func joinSlash(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, strings.Trim(p, "/"))
		}
	}
	return path.Clean(strings.Join(kept, "/"))
}
