// Package resolver builds the ordered, deduplicated, conflict-free install
// plan from a parsed manifest: it seeds a graph from every direct
// dependency of every enabled tool, walks each resource's frontmatter for
// transitive `dependencies` tables (fetching content through the source
// manager as it goes), detects cycles and version conflicts, and produces a
// topological order the installer can walk leaves-first.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/checksum"
	"github.com/agpm-dev/agpm/pkg/frontmatter"
	"github.com/agpm-dev/agpm/pkg/fsutil"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/source"
)

// Warning is a non-fatal diagnostic surfaced alongside a successful Graph,
// e.g. a cross-source redundancy (spec §4.4.3).
type Warning struct {
	Message string
}

// Graph is the resolved, deduplicated install plan.
type Graph struct {
	Roots []*Node // direct manifest dependencies, in manifest order
	All   []*Node // every distinct node, in first-discovered order
}

// nodeKey identifies a deduplicatable node: spec §4.4.3's "Identical
// (source, path, tool, variant-inputs) ... is a redundancy; dedupe to one
// node."
type nodeKey struct {
	source  string
	path    string
	tool    string
	variant string
}

type resolveRun struct {
	ctx     context.Context
	m       *manifest.Manifest
	sm      *source.Manager
	rootDir string // directory containing agpm.toml, for reading local files

	nodes []*Node
	byKey map[nodeKey]*Node
	roots []*Node

	groups   map[groupKey]*groupConstraints
	warnings []Warning
}

// Resolve builds the full dependency graph for m. rootDir is the directory
// containing agpm.toml, used to read local dependency files.
func Resolve(ctx context.Context, m *manifest.Manifest, sm *source.Manager, rootDir string) (*Graph, []Warning, error) {
	r := &resolveRun{
		ctx:     ctx,
		m:       m,
		sm:      sm,
		rootDir: rootDir,
		byKey:   map[nodeKey]*Node{},
		groups:  map[groupKey]*groupConstraints{},
	}

	for _, ref := range m.AllDependencies() {
		tool, _, err := resolveTool(m, ref.Dependency.Tool, "", ref.ResourceType)
		if err == errToolDisabled {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("dependency %q: %w", ref.Alias, err)
		}
		n, err := r.resolveOne(ref.ResourceType, ref.Dependency, tool, ref.Alias, nil)
		if err != nil {
			return nil, nil, err
		}
		if !containsStr(n.ManifestAliases, ref.Alias) {
			n.ManifestAliases = append(n.ManifestAliases, ref.Alias)
		}
		if err := r.resolveManifestChildren(ref.Dependency, tool, ref.Alias, n); err != nil {
			return nil, nil, err
		}
		r.roots = append(r.roots, n)
	}

	g := &Graph{Roots: r.roots, All: r.nodes}

	if err := detectCycles(g.Roots); err != nil {
		return nil, nil, err
	}
	if err := r.checkConflicts(); err != nil {
		return nil, nil, err
	}
	if err := checkVariantCollisions(g.All); err != nil {
		return nil, nil, err
	}
	r.checkCrossSourceRedundancy(g.All)

	return g, r.warnings, nil
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// resolveManifestChildren resolves the dependencies explicitly nested
// inline under a manifest entry (`dependencies = {...}` in the TOML itself,
// parsed into dep.Dependencies), as distinct from the ones a resource file
// declares in its own frontmatter. The manifest's inline declarations are
// the package author's explicit pins/overrides and are resolved first, so
// that an identical path reached again via frontmatter discovery dedupes
// against them rather than creating a second node.
func (r *resolveRun) resolveManifestChildren(parentDep manifest.Dependency, parentTool, requester string, parent *Node) error {
	for _, child := range parentDep.Dependencies {
		childTool, _, err := resolveTool(r.m, child.Dependency.Tool, parentTool, child.ResourceType)
		if err == errToolDisabled {
			continue
		}
		if err != nil {
			return fmt.Errorf("dependency %q: %w", requester, err)
		}
		cn, err := r.resolveOne(child.ResourceType, child.Dependency, childTool, requester, parent)
		if err != nil {
			return err
		}
		parent.Children = append(parent.Children, cn)
	}
	return nil
}

// resolveOne resolves a single Dependency (a manifest root when parent is
// nil, otherwise a transitive dependency of parent) into a Node, recursing
// into its own frontmatter-declared children.
func (r *resolveRun) resolveOne(rt manifest.ResourceType, dep manifest.Dependency, tool, requesterName string, parent *Node) (*Node, error) {
	var loc childLocation
	if parent == nil {
		loc = childLocation{source: dep.Source, path: fsutil.NormalizeRelative(dep.Path)}
		if dep.Source != "" {
			url, ok := r.m.Sources[dep.Source]
			if !ok {
				return nil, agpmerr.New(agpmerr.KindValidation, "dependency references undefined source %q", dep.Source)
			}
			loc.url = url
		} else {
			loc.escaped = fsutil.EscapesRoot(loc.path)
		}
	} else {
		var err error
		loc, err = resolveChildPath(r.m, dep, parent)
		if err != nil {
			return nil, err
		}
		if loc.escaped && loc.source == "" {
			full := filepath.Join(r.rootDir, fsutil.FromSlash(loc.path))
			if !fsutil.Exists(full) {
				return nil, agpmerr.New(agpmerr.KindPathEscapesRoot,
					"dependency path %q of %s escapes the manifest directory and no such file exists", dep.Path, parent.CanonicalName())
			}
		}
	}

	var parentVars map[string]any
	if parent != nil {
		parentVars = parent.TemplateVars
	}
	variantVars := mergeTemplateVars(parentVars, dep.TemplateVars)
	variantKey := checksum.SumCanonical(variantVars)

	key := nodeKey{source: loc.source, path: loc.path, tool: tool, variant: variantKey}
	if existing, ok := r.byKey[key]; ok {
		existing.Dependents = append(existing.Dependents, requesterName)
		return existing, nil
	}

	parentCanonical := ""
	if parent != nil {
		parentCanonical = parent.CanonicalName()
	}

	_, tc, _ := resolveTool(r.m, tool, "", rt) // already validated enabled+supported by the caller
	n := &Node{
		ResourceType:       rt,
		Source:             loc.source,
		URL:                loc.url,
		Path:               loc.path,
		Tool:               tool,
		Version:            dep.Version,
		Branch:             dep.Branch,
		Rev:                dep.Rev,
		Flatten:            effectiveFlatten(dep, tc, rt),
		EscapesManifestDir: loc.escaped,
		Target:             dep.Target,
		Filename:           dep.Filename,
		TemplateVars:       variantVars,
		Install:            dep.Install,
		Command:            dep.Command,
		Args:               dep.Args,
		Patch:              dep.Patch,
		VariantKey:         variantKey,
		Dependents:         []string{requesterName},
		ParentCanonical:    parentCanonical,
	}

	r.byKey[key] = n
	r.nodes = append(r.nodes, n)

	r.recordConstraint(loc.source, loc.path, dep, requesterName)

	if err := r.fetchAndResolveRef(n, dep); err != nil {
		return nil, err
	}
	if err := r.loadAndDiscover(n, tool); err != nil {
		return nil, err
	}
	return n, nil
}

// fetchAndResolveRef resolves n's version constraint into a commit, for
// remote dependencies only.
func (r *resolveRun) fetchAndResolveRef(n *Node, dep manifest.Dependency) error {
	if n.IsLocal() {
		return nil
	}
	kind, value := dep.VersionKind()
	resolved, err := r.sm.Resolve(r.ctx, n.Source, n.URL, kind, value)
	if err != nil {
		return err
	}
	n.CommitSHA = resolved.CommitSHA
	n.ResolvedRef = resolved.ResolvedRef
	return nil
}

// readContent returns n's bytes: from local disk (manifest-relative,
// including an out-of-tree escaped path) or, for a remote dependency,
// through the source manager's content cache.
func (r *resolveRun) readContent(n *Node) ([]byte, error) {
	if n.IsLocal() {
		full := filepath.Join(r.rootDir, fsutil.FromSlash(n.Path))
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, agpmerr.Wrap(agpmerr.KindIO, err, "reading local dependency %s", n.Path)
		}
		return data, nil
	}
	return r.sm.ReadFile(r.ctx, n.Source, n.URL, n.CommitSHA, n.Path)
}

// loadAndDiscover fetches n's content, strips frontmatter, and parses any
// `dependencies` table it declares, recursing into each child.
func (r *resolveRun) loadAndDiscover(n *Node, tool string) error {
	data, err := r.readContent(n)
	if err != nil {
		return err
	}
	n.RawContent = data

	doc, err := frontmatter.Parse(string(data))
	if err != nil {
		return agpmerr.Wrap(agpmerr.KindSyntax, err, "parsing frontmatter of %s", n.CanonicalName())
	}
	n.Body = doc.Body
	n.Frontmatter = doc.Data
	if agpmTable, ok := doc.Data["agpm"].(map[string]any); ok {
		if t, ok := agpmTable["templating"].(bool); ok {
			n.Templating = t
		}
	}

	depsVal, ok := doc.Data["dependencies"]
	if !ok {
		return nil
	}
	children, err := manifest.ParseDependencyTable(depsVal)
	if err != nil {
		return agpmerr.Wrap(agpmerr.KindSyntax, err, "parsing dependencies table of %s", n.CanonicalName())
	}
	for _, child := range children {
		childTool, _, err := resolveTool(r.m, child.Dependency.Tool, tool, child.ResourceType)
		if err == errToolDisabled {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", n.CanonicalName(), err)
		}
		cn, err := r.resolveOne(child.ResourceType, child.Dependency, childTool, n.CanonicalName(), n)
		if err != nil {
			return err
		}
		n.Children = append(n.Children, cn)
	}
	return nil
}
