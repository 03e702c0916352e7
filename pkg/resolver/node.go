package resolver

import (
	"path"
	"strings"

	"github.com/agpm-dev/agpm/pkg/manifest"
)

// Node is one resolved, deduplicated resource in the install plan.
type Node struct {
	ResourceType manifest.ResourceType
	Source       string // empty for local dependencies
	URL          string // configured source URL, empty for local dependencies
	Path         string // forward-slash; source-repo-relative, or manifest-relative for local deps

	Tool string

	Version string // semver constraint or ref name, as declared; empty if Branch/Rev set
	Branch  string
	Rev     string

	ResolvedRef string // tag/branch/ref the commit was resolved from; empty for local
	CommitSHA   string // empty for local dependencies

	Flatten      bool
	Target       string
	Filename     string
	TemplateVars map[string]any
	Install      bool
	Command      string
	Args         []string
	Patch        map[string]any

	// VariantKey is checksum.SumCanonical(TemplateVars): two nodes that
	// otherwise share (source, path, tool) but differ here are distinct
	// installed artifacts.
	VariantKey string

	// EscapesManifestDir is set for a local dependency (root or
	// transitive) whose normalized path climbs above the manifest
	// directory; the installer strips the leading ".." components when
	// computing the installed-at path but keeps the remainder.
	EscapesManifestDir bool

	// ManifestAliases lists the direct-manifest alias(es) that resolved to
	// this node, in the case this node was itself a manifest root entry.
	ManifestAliases []string
	// Dependents lists every requester (alias or canonical parent name)
	// that depends on this node, for diagnostics.
	Dependents []string

	Templating bool // agpm.templating from its own frontmatter
	RawContent []byte
	Body       string         // file content with any frontmatter block stripped
	Frontmatter map[string]any // decoded frontmatter data, nil if none

	Children []*Node

	// ParentCanonical is the canonical name of the node that first
	// discovered this one as a transitive dependency, "" for a direct
	// manifest root.
	ParentCanonical string
}

// CanonicalName is "<resource-type>/<path-stem>", spec §3.2.
func (n *Node) CanonicalName() string {
	return string(n.ResourceType) + "/" + stem(n.Path)
}

func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsLocal reports whether this node has no Git source.
func (n *Node) IsLocal() bool { return n.Source == "" }

// mergeTemplateVars shallow-merges child over parent, per spec §4.4.1's
// "merged template-vars mapping": values a child declares take precedence
// over whatever its parent passed down; unset keys fall through unchanged.
func mergeTemplateVars(parent, child map[string]any) map[string]any {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	out := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}
