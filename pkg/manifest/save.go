package manifest

import (
	"bytes"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
)

// Save serializes m back to agpm.toml text. Tables and keys come out in the
// TOML encoder's sorted key order, so round-tripped manifests diff cleanly.
func Save(m *Manifest) (string, error) {
	doc := map[string]any{}

	if len(m.Sources) > 0 {
		sources := map[string]any{}
		for name, url := range m.Sources {
			sources[name] = url
		}
		doc["sources"] = sources
	}
	if len(m.Project) > 0 {
		doc["project"] = m.Project
	}
	if len(m.Tools) > 0 {
		tools := map[string]any{}
		names := make([]string, 0, len(m.Tools))
		for name := range m.Tools {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			tools[name] = toolConfigToMap(m.Tools[name])
		}
		doc["tools"] = tools
	}
	for _, rt := range ResourceTypes {
		byAlias := m.Resources[rt]
		if len(byAlias) == 0 {
			continue
		}
		table := map[string]any{}
		aliases := make([]string, 0, len(byAlias))
		for alias := range byAlias {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			table[alias] = dependencyToMap(byAlias[alias])
		}
		doc[string(rt)] = table
	}
	patch := map[string]any{}
	for _, rt := range ResourceTypes {
		byAlias := m.Patch[rt]
		if len(byAlias) == 0 {
			continue
		}
		table := map[string]any{}
		for alias, p := range byAlias {
			table[alias] = p
		}
		patch[string(rt)] = table
	}
	if len(patch) > 0 {
		doc["patch"] = patch
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return "", agpmerr.Wrap(agpmerr.KindIO, err, "encoding manifest")
	}
	return buf.String(), nil
}

func toolConfigToMap(tc ToolConfig) map[string]any {
	out := map[string]any{}
	if tc.Path != "" {
		out["path"] = tc.Path
	}
	if tc.EnabledSet {
		out["enabled"] = tc.Enabled
	}
	if len(tc.Resources) > 0 {
		resources := map[string]any{}
		for rt, rc := range tc.Resources {
			rcMap := map[string]any{}
			if rc.Path != "" {
				rcMap["path"] = rc.Path
			}
			if rc.Flatten {
				rcMap["flatten"] = rc.Flatten
			}
			if rc.MergeTarget != "" {
				rcMap["merge-target"] = rc.MergeTarget
			}
			if len(rcMap) > 0 {
				resources[string(rt)] = rcMap
			}
		}
		if len(resources) > 0 {
			out["resources"] = resources
		}
	}
	return out
}

func dependencyToMap(d Dependency) any {
	// A dependency with only a path and no other fields round-trips to the
	// simple string form.
	if d.Source == "" && d.Version == "" && d.Branch == "" && d.Rev == "" && d.Tool == "" &&
		d.Target == "" && d.Filename == "" && !d.FlattenSet && !d.InstallSet && d.Command == "" &&
		len(d.Args) == 0 && len(d.TemplateVars) == 0 && len(d.Patch) == 0 && len(d.Dependencies) == 0 {
		return d.Path
	}
	out := map[string]any{"path": d.Path}
	if d.Source != "" {
		out["source"] = d.Source
	}
	if d.Version != "" {
		out["version"] = d.Version
	}
	if d.Branch != "" {
		out["branch"] = d.Branch
	}
	if d.Rev != "" {
		out["rev"] = d.Rev
	}
	if d.Tool != "" {
		out["tool"] = d.Tool
	}
	if d.Target != "" {
		out["target"] = d.Target
	}
	if d.Filename != "" {
		out["filename"] = d.Filename
	}
	if d.FlattenSet {
		out["flatten"] = d.Flatten
	}
	if d.InstallSet {
		out["install"] = d.Install
	}
	if d.Command != "" {
		out["command"] = d.Command
	}
	if len(d.Args) > 0 {
		out["args"] = d.Args
	}
	if len(d.TemplateVars) > 0 {
		out["template_vars"] = d.TemplateVars
	}
	if len(d.Patch) > 0 {
		out["patch"] = d.Patch
	}
	if len(d.Dependencies) > 0 {
		deps := map[string]any{}
		for _, rt := range ResourceTypes {
			table := map[string]any{}
			for _, child := range d.Dependencies {
				if child.ResourceType == rt {
					table[child.Dependency.Alias] = dependencyToMap(child.Dependency)
				}
			}
			if len(table) > 0 {
				deps[string(rt)] = table
			}
		}
		out["dependencies"] = deps
	}
	return out
}
