package installer

import (
	"context"
	"os"
	"sort"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/checksum"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolver"
	"github.com/agpm-dev/agpm/pkg/source"
	"github.com/agpm-dev/agpm/pkg/template"
)

// Options controls one Install invocation, matching the `install` command's
// flags (spec §6.1).
type Options struct {
	Force      bool // bypass the staleness check entirely
	Regenerate bool // delete the lockfile before resolving
	Frozen     bool // hard-fail on staleness instead of warning
	CI         bool // env-derived; tightens staleness handling like Frozen
}

// Result summarizes one Install run for the CLI layer to report.
type Result struct {
	Warnings       []resolver.Warning
	StaleWarning   []Divergence // non-fatal divergences surfaced when not frozen/CI
	InstalledPaths []string     // project-relative, forward-slash
	Lockfile       *manifest.Lockfile
}

// Install resolves m's dependency graph and materializes it under root:
// computed installed paths for plain files, JSON-merged targets for
// MCP servers and hooks, a refreshed .gitignore managed block, and a
// freshly written lockfile (spec §4.7).
func Install(ctx context.Context, root string, m *manifest.Manifest, sm *source.Manager, opts Options) (*Result, error) {
	lockPath := nativePath(root, "agpm.lock")

	if opts.Regenerate {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, agpmerr.Wrap(agpmerr.KindIO, err, "removing lockfile for --regenerate")
		}
	}

	var result Result
	if !opts.Force {
		if existing, err := readFileIfExists(lockPath); err != nil {
			return nil, err
		} else if existing != "" {
			lock, err := manifest.ParseLockfile(existing)
			if err != nil {
				return nil, err
			}
			divergences := CheckStaleness(m, lock)
			if len(divergences) > 0 {
				if opts.Frozen || opts.CI {
					return nil, StalenessError(divergences)
				}
				result.StaleWarning = divergences
			}
		}
	}

	g, warnings, err := resolver.Resolve(ctx, m, sm, root)
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings

	order := g.InstallOrder()
	rendered := make(map[*resolver.Node]string, len(order))

	for _, n := range order {
		content, err := renderNode(m, n, rendered, root)
		if err != nil {
			return nil, err
		}
		rendered[n] = content
	}

	type mergeKey struct {
		tool string
		rt   manifest.ResourceType
	}
	mergeGroups := map[mergeKey][]managedEntry{}
	var installedPaths []string

	for _, n := range order {
		if !n.Install {
			continue
		}
		tc, _ := m.EffectiveToolConfig(n.Tool)
		rc := tc.Resources[n.ResourceType]
		if rc.MergeTarget != "" {
			key := mergeKey{tool: n.Tool, rt: n.ResourceType}
			mergeGroups[key] = append(mergeGroups[key], managedEntry{Name: depAlias(n), Value: entryValue(n)})
			continue
		}
		rel := InstalledPath(m, n)
		if err := writeAtomic(nativePath(root, rel), []byte(rendered[n])); err != nil {
			return nil, err
		}
		installedPaths = append(installedPaths, rel)
	}

	if err := flushMergeTargets(root, m, mergeGroups); err != nil {
		return nil, err
	}

	gitignorePath := nativePath(root, ".gitignore")
	existingGitignore, err := readFileIfExists(gitignorePath)
	if err != nil {
		return nil, err
	}
	newGitignore := SynthesizeGitignore(existingGitignore, installedPaths)
	if err := writeAtomic(gitignorePath, []byte(newGitignore)); err != nil {
		return nil, err
	}

	lock := buildLockfile(m, g, rendered)
	text, err := manifest.SaveLockfile(lock)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(lockPath, []byte(text)); err != nil {
		return nil, err
	}

	result.InstalledPaths = installedPaths
	result.Lockfile = lock
	return &result, nil
}

// flushMergeTargets processes every enabled tool/resource-type combination
// with a configured merge target, even ones with no current nodes, so a
// dependency removed from the manifest since the last install still has
// its managed entry dropped from the target file (spec §4.7.2).
func flushMergeTargets(root string, m *manifest.Manifest, groups map[struct {
	tool string
	rt   manifest.ResourceType
}][]managedEntry) error {
	toolNames := map[string]bool{"claude-code": true, "opencode": true, "agpm": true}
	for name := range m.Tools {
		toolNames[name] = true
	}

	names := make([]string, 0, len(toolNames))
	for name := range toolNames {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, tool := range names {
		tc, ok := m.EffectiveToolConfig(tool)
		if !ok || !tc.Enabled {
			continue
		}
		for _, rt := range manifest.ResourceTypes {
			rc := tc.Resources[rt]
			if rc.MergeTarget == "" {
				continue
			}
			key := struct {
				tool string
				rt   manifest.ResourceType
			}{tool, rt}
			desired := groups[key]
			sort.Slice(desired, func(i, j int) bool { return desired[i].Name < desired[j].Name })

			targetPath := mergeTargetPath(m, tool, rt)
			doc, err := mergeJSONTarget(nativePath(root, targetPath), manifest.MergeTargetKey(tool, rt), desired)
			if err != nil {
				return err
			}
			if err := writeJSONAtomic(nativePath(root, targetPath), doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderNode returns n's installed content: its raw body unchanged when
// templating isn't active, or the full multi-pass render with its already-
// rendered children supplied as `agpm.deps.<type>.<alias>.content` when it
// is (spec §4.5, §4.7.6's "deterministic template rendering").
func renderNode(m *manifest.Manifest, n *resolver.Node, rendered map[*resolver.Node]string, root string) (string, error) {
	if !n.Templating {
		return n.Body, nil
	}

	deps := map[string]map[string]template.DepContext{}
	for _, c := range n.Children {
		byType := deps[string(c.ResourceType)]
		if byType == nil {
			byType = map[string]template.DepContext{}
			deps[string(c.ResourceType)] = byType
		}
		byType[depAlias(c)] = template.DepContext{Content: rendered[c]}
	}

	ctx := &template.Context{
		Resource: template.ResourceContext{
			Name:        n.CanonicalName(),
			InstallPath: InstalledPath(m, n),
			Version:     versionLabel(n),
			Source:      n.Source,
			Tool:        n.Tool,
		},
		Project: m.Project,
		Deps:    deps,
	}
	return template.Render(n.Body, ctx, root)
}

func depAlias(n *resolver.Node) string {
	name := n.CanonicalName()
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

// versionLabel formats a node's pinned ref for the template context and
// lockfile dependency strings: its declared version/branch/rev, falling
// back to the resolved ref or commit, or "local" for a local dependency.
func versionLabel(n *resolver.Node) string {
	switch {
	case n.Version != "":
		return n.Version
	case n.Branch != "":
		return n.Branch
	case n.Rev != "":
		return n.Rev
	case n.ResolvedRef != "":
		return n.ResolvedRef
	case n.CommitSHA != "":
		return n.CommitSHA
	default:
		return "local"
	}
}

// buildLockfile converts a resolved graph into a Lockfile: one entry per
// node (sorted by AllEntries at save time), sources deduplicated by name.
func buildLockfile(m *manifest.Manifest, g *resolver.Graph, rendered map[*resolver.Node]string) *manifest.Lockfile {
	lock := manifest.NewLockfile()

	sourcesSeen := map[string]bool{}
	for _, n := range g.All {
		if n.Source != "" && !sourcesSeen[n.Source] {
			sourcesSeen[n.Source] = true
			lock.Sources = append(lock.Sources, manifest.LockSource{
				Name: n.Source, URL: n.URL, Commit: n.CommitSHA,
			})
		}

		entry := manifest.LockEntry{
			Name:           n.CanonicalName(),
			Source:         n.Source,
			URL:            n.URL,
			Path:           n.Path,
			Version:        n.Version,
			Branch:         n.Branch,
			Rev:            n.Rev,
			ResolvedCommit: n.CommitSHA,
			Flatten:        n.Flatten,
			Checksum:       checksum.SumString(rendered[n]),
			InstalledAt:    installedAtFor(m, n),
			VariantInputs:  n.TemplateVars,
		}
		if len(n.ManifestAliases) > 0 {
			entry.ManifestAlias = n.ManifestAliases[0]
		}
		if n.Tool != "" && n.Tool != defaultTool {
			entry.Tool = n.Tool
		}
		if n.Templating {
			ctx := &template.Context{
				Resource: template.ResourceContext{Name: entry.Name, InstallPath: entry.InstalledAt, Version: versionLabel(n), Source: n.Source, Tool: n.Tool},
				Project:  m.Project,
			}
			entry.ContextChecksum = template.ContextChecksum(ctx)
		}
		for _, c := range n.Children {
			entry.Dependencies = append(entry.Dependencies, c.CanonicalName()+"@"+versionLabel(c))
		}

		lock.Entries[n.ResourceType] = append(lock.Entries[n.ResourceType], entry)
	}

	return lock
}

const defaultTool = "agpm"

func installedAtFor(m *manifest.Manifest, n *resolver.Node) string {
	tc, _ := m.EffectiveToolConfig(n.Tool)
	rc := tc.Resources[n.ResourceType]
	if rc.MergeTarget != "" {
		return mergeTargetPath(m, n.Tool, n.ResourceType)
	}
	return InstalledPath(m, n)
}
