package manifest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
)

var knownTopLevelKeys = map[string]bool{
	"sources": true, "tools": true, "project": true, "patch": true,
}

func init() {
	for _, rt := range ResourceTypes {
		knownTopLevelKeys[string(rt)] = true
	}
}

var sourceNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// knownDependencyKeys lists every recognized key of a detailed-form
// dependency table, used to reject unknown keys at parse time.
var knownDependencyKeys = map[string]bool{
	"source": true, "path": true, "version": true, "branch": true, "rev": true,
	"tool": true, "target": true, "filename": true, "flatten": true,
	"template_vars": true, "install": true, "dependencies": true,
	"command": true, "args": true, "patch": true,
}

// Parse parses the TOML text of an agpm.toml manifest, per spec §4.1.
func Parse(text string) (*Manifest, error) {
	var raw map[string]any
	if _, err := toml.Decode(text, &raw); err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindSyntax, err, "invalid manifest TOML")
	}

	for key := range raw {
		if !knownTopLevelKeys[key] {
			return nil, agpmerr.New(agpmerr.KindValidation, "unknown top-level key %q", key)
		}
	}

	m := &Manifest{
		Sources:   map[string]string{},
		Tools:     map[string]ToolConfig{},
		Resources: map[ResourceType]map[string]Dependency{},
		Patch:     map[ResourceType]map[string]map[string]any{},
	}
	for _, rt := range ResourceTypes {
		m.Resources[rt] = map[string]Dependency{}
		m.Patch[rt] = map[string]map[string]any{}
	}

	if v, ok := raw["sources"]; ok {
		sm, ok := asTable(v)
		if !ok {
			return nil, agpmerr.New(agpmerr.KindValidation, "sources must be a table")
		}
		for name, val := range sm {
			if !sourceNameRe.MatchString(name) {
				return nil, agpmerr.New(agpmerr.KindValidation, "invalid source name %q", name).WithContext("", name, "", "")
			}
			s, ok := val.(string)
			if !ok {
				return nil, agpmerr.New(agpmerr.KindValidation, "source %q must be a string URL", name).WithContext("", name, "", "")
			}
			m.Sources[name] = s
		}
	}

	if v, ok := raw["project"]; ok {
		pm, ok := asTable(v)
		if !ok {
			return nil, agpmerr.New(agpmerr.KindValidation, "project must be a table")
		}
		m.Project = pm
	}

	if v, ok := raw["tools"]; ok {
		tm, ok := asTable(v)
		if !ok {
			return nil, agpmerr.New(agpmerr.KindValidation, "tools must be a table")
		}
		for name, val := range tm {
			tc, err := parseToolConfig(val)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", name, err)
			}
			m.Tools[name] = tc
		}
	}

	for _, rt := range ResourceTypes {
		v, ok := raw[string(rt)]
		if !ok {
			continue
		}
		rm, ok := asTable(v)
		if !ok {
			return nil, agpmerr.New(agpmerr.KindValidation, "%s must be a table", rt)
		}
		seen := map[string]string{}
		for alias, val := range rm {
			lower := strings.ToLower(alias)
			if other, dup := seen[lower]; dup {
				return nil, agpmerr.New(agpmerr.KindValidation,
					"aliases %q and %q in [%s] differ only by case", other, alias, rt).WithContext(alias, "", "", "")
			}
			seen[lower] = alias

			dep, err := parseDependency(alias, rt, val)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", rt, alias, err)
			}
			m.Resources[rt][alias] = dep
		}
	}

	if v, ok := raw["patch"]; ok {
		pm, ok := asTable(v)
		if !ok {
			return nil, agpmerr.New(agpmerr.KindValidation, "patch must be a table")
		}
		for rtKey, rtVal := range pm {
			rt := ResourceType(rtKey)
			if !isResourceType(rt) {
				return nil, agpmerr.New(agpmerr.KindValidation, "unknown resource type %q in [patch]", rtKey)
			}
			am, ok := asTable(rtVal)
			if !ok {
				return nil, agpmerr.New(agpmerr.KindValidation, "patch.%s must be a table", rtKey)
			}
			for alias, pv := range am {
				patchTable, ok := asTable(pv)
				if !ok {
					return nil, agpmerr.New(agpmerr.KindValidation, "patch.%s.%s must be a table", rtKey, alias)
				}
				m.Patch[rt][alias] = patchTable
			}
		}
	}

	if err := validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

func isResourceType(rt ResourceType) bool {
	for _, known := range ResourceTypes {
		if known == rt {
			return true
		}
	}
	return false
}

func parseToolConfig(val any) (ToolConfig, error) {
	tm, ok := asTable(val)
	if !ok {
		return ToolConfig{}, agpmerr.New(agpmerr.KindValidation, "tool config must be a table")
	}
	tc := ToolConfig{Resources: map[ResourceType]ResourceConfig{}}
	if p, ok := tm["path"]; ok {
		s, ok := p.(string)
		if !ok {
			return tc, agpmerr.New(agpmerr.KindValidation, "tool path must be a string")
		}
		tc.Path = s
	}
	if e, ok := tm["enabled"]; ok {
		b, ok := e.(bool)
		if !ok {
			return tc, agpmerr.New(agpmerr.KindValidation, "tool enabled must be a boolean")
		}
		tc.Enabled = b
		tc.EnabledSet = true
	} else {
		tc.Enabled = true
	}
	if r, ok := tm["resources"]; ok {
		rm, ok := asTable(r)
		if !ok {
			return tc, agpmerr.New(agpmerr.KindValidation, "tool resources must be a table")
		}
		for rtKey, rcVal := range rm {
			rt := ResourceType(rtKey)
			if !isResourceType(rt) {
				return tc, agpmerr.New(agpmerr.KindValidation, "unknown resource type %q in tool resources", rtKey)
			}
			rcTable, ok := asTable(rcVal)
			if !ok {
				return tc, agpmerr.New(agpmerr.KindValidation, "resource config for %q must be a table", rtKey)
			}
			rc := ResourceConfig{}
			if p, ok := rcTable["path"].(string); ok {
				rc.Path = p
			}
			if f, ok := rcTable["flatten"].(bool); ok {
				rc.Flatten = f
			}
			if mt, ok := rcTable["merge-target"].(string); ok {
				rc.MergeTarget = mt
			}
			tc.Resources[rt] = rc
		}
	}
	return tc, nil
}

func parseDependency(alias string, rt ResourceType, val any) (Dependency, error) {
	dep := Dependency{Alias: alias, ResourceType: rt, Install: true}

	if s, ok := val.(string); ok {
		dep.Path = s
		return dep, nil
	}

	tm, ok := asTable(val)
	if !ok {
		return dep, agpmerr.New(agpmerr.KindValidation, "dependency must be a string path or a table")
	}
	for k := range tm {
		if !knownDependencyKeys[k] {
			return dep, agpmerr.New(agpmerr.KindValidation, "unknown dependency key %q", k)
		}
	}

	if v, ok := tm["source"].(string); ok {
		dep.Source = v
	}
	if v, ok := tm["path"].(string); ok {
		dep.Path = v
	} else {
		return dep, agpmerr.New(agpmerr.KindValidation, "dependency path is required")
	}
	if v, ok := tm["version"].(string); ok {
		dep.Version = v
	}
	if v, ok := tm["branch"].(string); ok {
		dep.Branch = v
	}
	if v, ok := tm["rev"].(string); ok {
		dep.Rev = v
	}
	if v, ok := tm["tool"].(string); ok {
		dep.Tool = v
	}
	if v, ok := tm["target"].(string); ok {
		dep.Target = v
	}
	if v, ok := tm["filename"].(string); ok {
		dep.Filename = v
	}
	if v, ok := tm["flatten"].(bool); ok {
		dep.FlattenSet = true
		dep.Flatten = v
	}
	if v, ok := tm["install"].(bool); ok {
		dep.InstallSet = true
		dep.Install = v
	}
	if v, ok := tm["command"].(string); ok {
		dep.Command = v
	}
	if v, ok := tm["args"]; ok {
		arr, ok := v.([]any)
		if !ok {
			return dep, agpmerr.New(agpmerr.KindValidation, "args must be an array of strings")
		}
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return dep, agpmerr.New(agpmerr.KindValidation, "args must be an array of strings")
			}
			dep.Args = append(dep.Args, s)
		}
	}
	if v, ok := tm["template_vars"]; ok {
		vars, ok := asTable(v)
		if !ok {
			return dep, agpmerr.New(agpmerr.KindValidation, "template_vars must be a table")
		}
		dep.TemplateVars = vars
	}
	if v, ok := tm["patch"]; ok {
		patch, ok := asTable(v)
		if !ok {
			return dep, agpmerr.New(agpmerr.KindValidation, "patch must be a table")
		}
		dep.Patch = patch
	}

	count := 0
	if dep.Version != "" {
		count++
	}
	if dep.Branch != "" {
		count++
	}
	if dep.Rev != "" {
		count++
	}
	if count > 1 {
		return dep, agpmerr.New(agpmerr.KindValidation, "version, branch, and rev are mutually exclusive")
	}

	if v, ok := tm["dependencies"]; ok {
		deps, err := parseTransitiveDeps(v)
		if err != nil {
			return dep, err
		}
		dep.Dependencies = deps
	}

	return dep, nil
}

// ParseDependencyTable parses a "dependencies" table value (grouped by
// resource type, same shape as a manifest's per-resource-type tables) into
// TransitiveDependency entries. Exported so the resolver can parse the
// `dependencies` table a resource file carries in its own frontmatter with
// the same rules used for the manifest's inline `dependencies`.
func ParseDependencyTable(val any) ([]TransitiveDependency, error) {
	return parseTransitiveDeps(val)
}

// parseTransitiveDeps parses an inline "dependencies" table, same shape as
// the manifest's per-resource-type tables, recursively.
func parseTransitiveDeps(val any) ([]TransitiveDependency, error) {
	tm, ok := asTable(val)
	if !ok {
		return nil, agpmerr.New(agpmerr.KindValidation, "dependencies must be a table")
	}
	var out []TransitiveDependency
	for _, rt := range ResourceTypes {
		v, ok := tm[string(rt)]
		if !ok {
			continue
		}
		rm, ok := asTable(v)
		if !ok {
			return nil, agpmerr.New(agpmerr.KindValidation, "dependencies.%s must be a table", rt)
		}
		aliases := make([]string, 0, len(rm))
		for alias := range rm {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			childDep, err := parseDependency(alias, rt, rm[alias])
			if err != nil {
				return nil, fmt.Errorf("dependencies.%s.%s: %w", rt, alias, err)
			}
			out = append(out, TransitiveDependency{ResourceType: rt, Dependency: childDep})
		}
	}
	for k := range tm {
		if !isResourceType(ResourceType(k)) {
			return nil, agpmerr.New(agpmerr.KindValidation, "unknown resource type %q in dependencies table", k)
		}
	}
	return out, nil
}

func asTable(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
