package installer

import (
	"strings"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/manifest"
)

// Divergence describes one way a manifest's direct dependency disagrees
// with its corresponding lockfile entry (spec §4.7.5).
type Divergence struct {
	Alias string
	Field string
	Old   string
	New   string
}

// CheckStaleness compares every direct manifest dependency against lock,
// returning one Divergence per mismatch. A dependency pinned to a branch
// is never considered stale (spec §4.7.5: "Branch-based entries are NEVER
// stale"), since a branch name resolving to a new commit is the expected,
// unremarkable case of tracking a moving ref.
func CheckStaleness(m *manifest.Manifest, lock *manifest.Lockfile) []Divergence {
	byAlias := map[string]manifest.LockEntry{}
	for _, e := range lock.AllEntries() {
		if e.ManifestAlias != "" {
			byAlias[e.ManifestAlias] = e
		}
	}

	var out []Divergence
	for _, ref := range m.AllDependencies() {
		dep := ref.Dependency
		if dep.Branch != "" {
			continue
		}
		entry, ok := byAlias[ref.Alias]
		if !ok {
			out = append(out, Divergence{Alias: ref.Alias, Field: "presence", Old: "", New: "missing from lockfile"})
			continue
		}

		url := m.Sources[dep.Source]
		if entry.URL != url {
			out = append(out, Divergence{Alias: ref.Alias, Field: "source url", Old: entry.URL, New: url})
		}
		if entry.Path != dep.Path {
			out = append(out, Divergence{Alias: ref.Alias, Field: "path", Old: entry.Path, New: dep.Path})
		}
		kind, value := dep.VersionKind()
		switch kind {
		case "version":
			if entry.Version != value {
				out = append(out, Divergence{Alias: ref.Alias, Field: "version", Old: entry.Version, New: value})
			}
		case "rev":
			if entry.Rev != value {
				out = append(out, Divergence{Alias: ref.Alias, Field: "rev", Old: entry.Rev, New: value})
			}
		}
	}
	return out
}

// StalenessError builds the LockfileStale diagnostic listing every
// divergence, suggesting the two documented escape hatches (spec §4.7.5).
func StalenessError(divergences []Divergence) error {
	lines := DivergenceLines(divergences)
	err := agpmerr.New(agpmerr.KindLockfileStale, "lockfile is stale:\n  %s", strings.Join(lines, "\n  ")).
		WithSuggestion("pass --force to proceed anyway, or --regenerate to rebuild the lockfile")
	if len(divergences) > 0 {
		err = err.WithContext(divergences[0].Alias, "", "", "")
	}
	return err
}

// DivergenceLines formats every divergence as a human-readable line via
// manifest.DivergenceDescription, for attaching to a LockfileStale report.
func DivergenceLines(divergences []Divergence) []string {
	lines := make([]string, 0, len(divergences))
	for _, d := range divergences {
		lines = append(lines, manifest.DivergenceDescription(d.Alias, d.Field, d.Old, d.New))
	}
	return lines
}
