package resolver

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/version"
)

// groupKey is spec §4.4.3's conflict-detection grouping: "(source, path)".
// Tool and variant inputs deliberately do not participate — two
// differently-tooled or differently-templated installs of the same file at
// the same path must still agree on which commit that file resolves to.
type groupKey struct {
	source string
	path   string
}

type groupConstraints struct {
	url         string
	constraints []version.NamedConstraint
}

func (r *resolveRun) recordConstraint(sourceName, path string, dep manifest.Dependency, requester string) {
	if sourceName == "" {
		return
	}
	kind, value := dep.VersionKind()
	if kind == "" {
		value = "*"
	}
	c, err := version.Parse(value)
	if err != nil {
		return // only an empty value fails to parse; it adds no constraint
	}
	gk := groupKey{source: sourceName, path: path}
	gc, ok := r.groups[gk]
	if !ok {
		gc = &groupConstraints{url: r.m.Sources[sourceName]}
		r.groups[gk] = gc
	}
	gc.constraints = append(gc.constraints, version.NamedConstraint{Constraint: c, Requester: requester})
}

// checkConflicts re-validates every (source, path) group that accumulated
// more than one constraint: a group with no version satisfying all of its
// constraints is a VersionConflict. The node created for the group's
// first-seen constraint has already picked a commit; this check does not
// test that commit against the later constraints or change it.
func (r *resolveRun) checkConflicts() error {
	keys := make([]groupKey, 0, len(r.groups))
	for gk, gc := range r.groups {
		if len(gc.constraints) > 1 {
			keys = append(keys, gk)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].path < keys[j].path
	})

	for _, gk := range keys {
		gc := r.groups[gk]
		tags, err := r.sm.Tags(r.ctx, gk.source, gc.url)
		if err != nil {
			return err
		}
		set := version.NewConstraintSet()
		for _, nc := range gc.constraints {
			set.Add(nc.Constraint)
		}
		versions := matchableVersions(gc.constraints, tags)
		if set.FindBestMatch(versions) == nil {
			return versionConflictError(gk, gc.constraints)
		}
	}
	return nil
}

// matchableVersions parses every tag that at least one of the group's
// constraints recognizes (honoring each constraint's own monorepo prefix),
// deduplicated by version string.
func matchableVersions(constraints []version.NamedConstraint, tags []string) []*semver.Version {
	seen := map[string]*semver.Version{}
	for _, tag := range tags {
		for _, nc := range constraints {
			if v, ok := nc.Constraint.MatchesTag(tag); ok {
				seen[v.String()] = v
			}
		}
	}
	out := make([]*semver.Version, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	return out
}

func versionConflictError(gk groupKey, constraints []version.NamedConstraint) error {
	parts := make([]string, 0, len(constraints))
	for _, nc := range constraints {
		parts = append(parts, nc.Requester+" requires "+nc.Constraint.Raw)
	}
	return agpmerr.New(agpmerr.KindVersionConflict, "no version of %s@%s satisfies every requester: %s", gk.source, gk.path, strings.Join(parts, "; "))
}

// checkVariantCollisions enforces spec §4.4.1's "Two manifest entries for
// the same path/version/tool but different variant inputs produce separate
// nodes and separate installed files (filename disambiguation via explicit
// filename, or fail if ambiguous)."
func checkVariantCollisions(all []*Node) error {
	type siblingKey struct {
		source string
		path   string
		tool   string
	}
	groups := map[siblingKey][]*Node{}
	for _, n := range all {
		sk := siblingKey{source: n.Source, path: n.Path, tool: n.Tool}
		groups[sk] = append(groups[sk], n)
	}
	for _, nodes := range groups {
		if len(nodes) < 2 {
			continue
		}
		seenFilenames := map[string]bool{}
		for _, n := range nodes {
			if n.Filename == "" {
				return agpmerr.New(agpmerr.KindInstallCollision,
					"%s resolves to %d differently-templated variants; each needs an explicit filename to disambiguate", n.CanonicalName(), len(nodes))
			}
			if seenFilenames[n.Filename] {
				return agpmerr.New(agpmerr.KindInstallCollision,
					"%s: multiple variants declare the same filename %q", n.CanonicalName(), n.Filename)
			}
			seenFilenames[n.Filename] = true
		}
	}
	return nil
}

// checkCrossSourceRedundancy emits a non-fatal diagnostic when the same
// path string is fetched from two different sources, per spec §4.4.3.
func (r *resolveRun) checkCrossSourceRedundancy(all []*Node) {
	bySource := map[string]map[string]bool{} // path -> set of sources
	pathOrder := []string{}
	for _, n := range all {
		if n.IsLocal() {
			continue
		}
		if bySource[n.Path] == nil {
			bySource[n.Path] = map[string]bool{}
			pathOrder = append(pathOrder, n.Path)
		}
		bySource[n.Path][n.Source] = true
	}
	sort.Strings(pathOrder)
	for _, p := range pathOrder {
		sources := bySource[p]
		if len(sources) < 2 {
			continue
		}
		names := make([]string, 0, len(sources))
		for s := range sources {
			names = append(names, s)
		}
		sort.Strings(names)
		r.warnings = append(r.warnings, Warning{
			Message: "path " + p + " is fetched from multiple sources: " + strings.Join(names, ", "),
		})
	}
}
