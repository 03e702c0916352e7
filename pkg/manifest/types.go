// Package manifest parses and validates agpm.toml and agpm.lock, the two
// TOML documents at the heart of AGPM's data model (spec §3.1, §3.5).
// Documents are decoded with github.com/BurntSushi/toml into generic
// map[string]any trees and then validated into the typed structures in this
// file, mirroring how the teacher repo walks generically-decoded frontmatter
// maps (pkg/parser) rather than binding directly to rigid structs.
package manifest

import "sort"

// ResourceType enumerates the six kinds of installable asset.
type ResourceType string

const (
	ResourceAgents     ResourceType = "agents"
	ResourceSnippets   ResourceType = "snippets"
	ResourceCommands   ResourceType = "commands"
	ResourceScripts    ResourceType = "scripts"
	ResourceHooks      ResourceType = "hooks"
	ResourceMCPServers ResourceType = "mcp-servers"
)

// ResourceTypes lists every resource type in the stable, type-major order
// used throughout AGPM for deterministic iteration (spec §4.4.5).
var ResourceTypes = []ResourceType{
	ResourceAgents,
	ResourceSnippets,
	ResourceCommands,
	ResourceScripts,
	ResourceHooks,
	ResourceMCPServers,
}

// Dir returns the conventional directory name for a resource type,
// used for "flatten" rule matching (spec §4.7.1) and canonical name
// construction (spec §3.2).
func (r ResourceType) Dir() string { return string(r) }

// ToolConfig describes one tool's installation layout (spec §3.1).
type ToolConfig struct {
	Path       string
	EnabledSet bool // true if the manifest explicitly set `enabled`
	Enabled    bool // effective value; defaults to true when EnabledSet is false
	Resources  map[ResourceType]ResourceConfig
}

// ResourceConfig describes how one resource type installs under a tool.
type ResourceConfig struct {
	Path        string
	Flatten     bool
	MergeTarget string
}

// Dependency is the fully-expanded (detailed) form of a manifest entry,
// whether it was written as a bare string path or a full inline table
// (spec §3.1). Simple-form entries are normalized into this struct during
// parsing with every optional field left at its zero value.
type Dependency struct {
	Alias        string
	ResourceType ResourceType

	Source       string // empty for local files
	Path         string
	Version      string
	Branch       string
	Rev          string
	Tool         string
	Target       string
	Filename     string
	FlattenSet   bool
	Flatten      bool
	TemplateVars map[string]any
	InstallSet   bool
	Install      bool
	Command      string
	Args         []string
	Patch        map[string]any

	Dependencies []TransitiveDependency
}

// TransitiveDependency is an explicit "dependencies" entry nested inside a
// manifest Dependency, grouped by the child's resource type.
type TransitiveDependency struct {
	ResourceType ResourceType
	Dependency   Dependency
}

// VersionKind reports which of version/branch/rev (if any) was set.
func (d *Dependency) VersionKind() (kind string, value string) {
	switch {
	case d.Branch != "":
		return "branch", d.Branch
	case d.Rev != "":
		return "rev", d.Rev
	case d.Version != "":
		return "version", d.Version
	default:
		return "", ""
	}
}

// IsLocal reports whether the dependency has no source (a local file).
func (d *Dependency) IsLocal() bool { return d.Source == "" }

// Manifest is the fully-parsed, validated agpm.toml document.
type Manifest struct {
	Sources map[string]string
	Tools   map[string]ToolConfig
	Project map[string]any

	// Resources holds every per-resource-type table, keyed by alias.
	Resources map[ResourceType]map[string]Dependency

	// Patch holds the top-level patch.<resource_type>.<alias> table.
	Patch map[ResourceType]map[string]map[string]any
}

// DependencyRef pairs an alias and resource type with its Dependency, the
// unit returned by AllDependencies.
type DependencyRef struct {
	Alias        string
	ResourceType ResourceType
	Dependency   Dependency
}

// AllDependencies returns every direct manifest dependency in stable,
// type-major alias-minor order, per spec §4.1.
func (m *Manifest) AllDependencies() []DependencyRef {
	var out []DependencyRef
	for _, rt := range ResourceTypes {
		aliases := make([]string, 0, len(m.Resources[rt]))
		for alias := range m.Resources[rt] {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			out = append(out, DependencyRef{Alias: alias, ResourceType: rt, Dependency: m.Resources[rt][alias]})
		}
	}
	return out
}

// EffectiveToolConfig merges a user-declared tool config with the built-in
// defaults for well-known tools (claude-code, opencode, agpm), per spec
// §3.1. Custom tool names have no defaults and are returned as declared.
func (m *Manifest) EffectiveToolConfig(name string) (ToolConfig, bool) {
	def, isKnown := DefaultToolConfig(name)
	user, declared := m.Tools[name]
	if !declared {
		if isKnown {
			return def, true
		}
		return ToolConfig{}, false
	}
	if !isKnown {
		return user, true
	}
	merged := def
	if user.Path != "" {
		merged.Path = user.Path
	}
	if user.EnabledSet {
		merged.Enabled = user.Enabled
		merged.EnabledSet = true
	}
	if merged.Resources == nil {
		merged.Resources = map[ResourceType]ResourceConfig{}
	}
	out := map[ResourceType]ResourceConfig{}
	for rt, rc := range def.Resources {
		out[rt] = rc
	}
	for rt, rc := range user.Resources {
		out[rt] = rc
	}
	merged.Resources = out
	return merged, true
}
