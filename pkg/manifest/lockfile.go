package manifest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
)

const LockfileVersion = 1

// LockSource is one entry of the lockfile's [[sources]] array (spec §3.5).
type LockSource struct {
	Name      string
	URL       string
	Commit    string
	FetchedAt string // RFC 3339; excluded from determinism comparisons
}

// LockEntry is one resolved-resource record in the lockfile, duplicated
// across the six `[[<resource_type>]]` arrays (spec §3.5).
type LockEntry struct {
	Name          string // canonical name
	ManifestAlias string // present only for direct manifest entries
	Source        string
	URL           string
	Path          string
	Version       string
	Branch        string
	Rev           string
	ResolvedCommit string
	Tool          string // omitted when equal to the resource type's default tool
	Flatten       bool
	Checksum      string
	ContextChecksum string // present only when templating was applied
	InstalledAt   string
	VariantInputs map[string]any
	Dependencies  []string // "<canonical-name>@<version>"
}

// Lockfile is the fully-parsed agpm.lock document.
type Lockfile struct {
	Version int
	Sources []LockSource
	Entries map[ResourceType][]LockEntry
}

// NewLockfile returns an empty lockfile at the current version.
func NewLockfile() *Lockfile {
	l := &Lockfile{Version: LockfileVersion, Entries: map[ResourceType][]LockEntry{}}
	for _, rt := range ResourceTypes {
		l.Entries[rt] = nil
	}
	return l
}

// AllEntries returns every lockfile entry across every resource type, sorted
// type-major then alphabetically by canonical name (spec §3.5, §6.3).
func (l *Lockfile) AllEntries() []LockEntry {
	var out []LockEntry
	for _, rt := range ResourceTypes {
		entries := append([]LockEntry(nil), l.Entries[rt]...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		out = append(out, entries...)
	}
	return out
}

// ParseLockfile decodes agpm.lock TOML text into a Lockfile.
func ParseLockfile(text string) (*Lockfile, error) {
	var raw struct {
		Version int                       `toml:"version"`
		Sources []lockSourceDoc           `toml:"sources"`
		Agents  []lockEntryDoc            `toml:"agents"`
		Snippets []lockEntryDoc           `toml:"snippets"`
		Commands []lockEntryDoc           `toml:"commands"`
		Scripts []lockEntryDoc            `toml:"scripts"`
		Hooks   []lockEntryDoc            `toml:"hooks"`
		MCPServers []lockEntryDoc         `toml:"mcp-servers"`
	}
	if _, err := toml.Decode(text, &raw); err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindLockfileCorrupt, err, "invalid lockfile TOML")
	}
	if raw.Version != LockfileVersion {
		return nil, agpmerr.New(agpmerr.KindLockfileCorrupt, "unsupported lockfile version %d", raw.Version)
	}
	l := NewLockfile()
	for _, s := range raw.Sources {
		l.Sources = append(l.Sources, LockSource{Name: s.Name, URL: s.URL, Commit: s.Commit, FetchedAt: s.FetchedAt})
	}
	byType := map[ResourceType][]lockEntryDoc{
		ResourceAgents: raw.Agents, ResourceSnippets: raw.Snippets, ResourceCommands: raw.Commands,
		ResourceScripts: raw.Scripts, ResourceHooks: raw.Hooks, ResourceMCPServers: raw.MCPServers,
	}
	for _, rt := range ResourceTypes {
		for _, d := range byType[rt] {
			l.Entries[rt] = append(l.Entries[rt], d.toEntry())
		}
	}
	return l, nil
}

// SaveLockfile emits canonical, deterministic lockfile TOML text: sources
// and each resource-type array sorted by name, keys within each table in
// alphabetical order (the TOML encoder sorts map keys; field declaration
// order is not kept), and
// `fetched_at` the only field excluded from nothing (it is always emitted,
// but determinism comparisons are expected to strip it, per spec §6.3).
func SaveLockfile(l *Lockfile) (string, error) {
	doc := map[string]any{"version": l.Version}

	sources := append([]LockSource(nil), l.Sources...)
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	var sourceDocs []map[string]any
	for _, s := range sources {
		sourceDocs = append(sourceDocs, map[string]any{
			"name": s.Name, "url": s.URL, "commit": s.Commit, "fetched_at": s.FetchedAt,
		})
	}
	if len(sourceDocs) > 0 {
		doc["sources"] = sourceDocs
	}

	for _, rt := range ResourceTypes {
		entries := append([]LockEntry(nil), l.Entries[rt]...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		if len(entries) == 0 {
			continue
		}
		var docs []map[string]any
		for _, e := range entries {
			docs = append(docs, entryToDoc(e))
		}
		doc[string(rt)] = docs
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return "", agpmerr.Wrap(agpmerr.KindIO, err, "encoding lockfile")
	}
	return buf.String(), nil
}

func entryToDoc(e LockEntry) map[string]any {
	m := map[string]any{"name": e.Name}
	if e.ManifestAlias != "" {
		m["manifest_alias"] = e.ManifestAlias
	}
	if e.Source != "" {
		m["source"] = e.Source
	}
	m["url"] = e.URL
	m["path"] = e.Path
	if e.Version != "" {
		m["version"] = e.Version
	}
	if e.Branch != "" {
		m["branch"] = e.Branch
	}
	if e.Rev != "" {
		m["rev"] = e.Rev
	}
	m["resolved_commit"] = e.ResolvedCommit
	if e.Tool != "" {
		m["tool"] = e.Tool
	}
	m["flatten"] = e.Flatten
	m["checksum"] = e.Checksum
	if e.ContextChecksum != "" {
		m["context_checksum"] = e.ContextChecksum
	}
	m["installed_at"] = e.InstalledAt
	if len(e.VariantInputs) > 0 {
		m["variant_inputs"] = e.VariantInputs
	}
	if len(e.Dependencies) > 0 {
		m["dependencies"] = e.Dependencies
	}
	return m
}

type lockSourceDoc struct {
	Name      string `toml:"name"`
	URL       string `toml:"url"`
	Commit    string `toml:"commit"`
	FetchedAt string `toml:"fetched_at"`
}

type lockEntryDoc struct {
	Name            string         `toml:"name"`
	ManifestAlias   string         `toml:"manifest_alias"`
	Source          string         `toml:"source"`
	URL             string         `toml:"url"`
	Path            string         `toml:"path"`
	Version         string         `toml:"version"`
	Branch          string         `toml:"branch"`
	Rev             string         `toml:"rev"`
	ResolvedCommit  string         `toml:"resolved_commit"`
	Tool            string         `toml:"tool"`
	Flatten         bool           `toml:"flatten"`
	Checksum        string         `toml:"checksum"`
	ContextChecksum string         `toml:"context_checksum"`
	InstalledAt     string         `toml:"installed_at"`
	VariantInputs   map[string]any `toml:"variant_inputs"`
	Dependencies    []string       `toml:"dependencies"`
}

func (d lockEntryDoc) toEntry() LockEntry {
	return LockEntry{
		Name: d.Name, ManifestAlias: d.ManifestAlias, Source: d.Source, URL: d.URL, Path: d.Path,
		Version: d.Version, Branch: d.Branch, Rev: d.Rev, ResolvedCommit: d.ResolvedCommit,
		Tool: d.Tool, Flatten: d.Flatten, Checksum: d.Checksum, ContextChecksum: d.ContextChecksum,
		InstalledAt: d.InstalledAt, VariantInputs: d.VariantInputs, Dependencies: d.Dependencies,
	}
}

// DivergenceDescription formats a human-readable divergence line for the
// LockfileStale error path (spec §4.7.5, §6.6 test case 6).
func DivergenceDescription(alias, field, oldVal, newVal string) string {
	return fmt.Sprintf("%s: %s changed from '%s' to '%s'", alias, field, oldVal, newVal)
}
