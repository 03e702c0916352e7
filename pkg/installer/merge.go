package installer

import (
	"encoding/json"
	"os"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolver"
)

// managedEntry is an AGPM-owned entry under a merge target's conventional
// key, tagging itself so a later run can tell it apart from a user-authored
// entry that happens to share the same name (spec §4.7.2).
type managedEntry struct {
	Name  string
	Value map[string]any
}

// mergeTargetPath returns the merge target file's project-relative path for
// a resource config, or "" if the resource type isn't JSON-merged under
// this tool. The merge-target string is resolved relative to the tool's
// own root directory, not its resource subdirectory: claude-code's hooks
// target "settings.local.json" lands at ".claude/settings.local.json",
// and its mcp-servers target "../.mcp.json" lands at ".mcp.json", one
// level above ".claude".
func mergeTargetPath(m *manifest.Manifest, tool string, rt manifest.ResourceType) string {
	tc, _ := m.EffectiveToolConfig(tool)
	rc := tc.Resources[rt]
	if rc.MergeTarget == "" {
		return ""
	}
	return joinSlash(tc.Path, rc.MergeTarget)
}

// entryValue builds the JSON value merged under a node's entry name: its
// own frontmatter (structural `agpm`/`dependencies` keys excluded), with
// any `patch` overrides applied on top, plus `command`/`args` when set
// (spec §3.1's "command/args for hook-like resources").
func entryValue(n *resolver.Node) map[string]any {
	out := map[string]any{}
	for k, v := range n.Frontmatter {
		if k == "agpm" || k == "dependencies" {
			continue
		}
		out[k] = v
	}
	for k, v := range n.Patch {
		out[k] = v
	}
	if n.Command != "" {
		out["command"] = n.Command
	}
	if len(n.Args) > 0 {
		out["args"] = n.Args
	}
	return out
}

// mergeJSONTarget reads targetPath (treating a missing file as empty),
// replaces every AGPM-managed entry under bucketKey with the entries in
// desired, leaves every other key (and every non-`_agpm`-tagged entry
// within bucketKey) untouched, and returns the full document ready to be
// written back. Desired entries are stamped with `_agpm.managed: true`.
func mergeJSONTarget(targetPath, bucketKey string, desired []managedEntry) (map[string]any, error) {
	doc := map[string]any{}
	if data, err := os.ReadFile(targetPath); err == nil {
		if len(data) > 0 {
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, agpmerr.Wrap(agpmerr.KindIO, err, "parsing merge target %s", targetPath)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, agpmerr.Wrap(agpmerr.KindIO, err, "reading merge target %s", targetPath)
	}

	bucket, _ := doc[bucketKey].(map[string]any)
	out := map[string]any{}
	for name, v := range bucket {
		if !isManagedEntry(v) {
			out[name] = v
		}
	}
	for _, e := range desired {
		v := map[string]any{}
		for k, val := range e.Value {
			v[k] = val
		}
		v["_agpm"] = map[string]any{"managed": true}
		out[e.Name] = v
	}
	doc[bucketKey] = out
	return doc, nil
}

func isManagedEntry(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	tag, ok := m["_agpm"].(map[string]any)
	if !ok {
		return false
	}
	managed, _ := tag["managed"].(bool)
	return managed
}

// writeJSONAtomic serializes doc and writes it via the shared atomic-write
// primitive (spec §4.7.4). json.MarshalIndent walks map[string]any keys in
// sorted order natively, which is what gives merge targets their byte
// stability across runs (spec §4.7.6).
func writeJSONAtomic(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return agpmerr.Wrap(agpmerr.KindIO, err, "encoding merge target %s", path)
	}
	return writeAtomic(path, append(data, '\n'))
}
