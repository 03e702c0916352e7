package resolver

import (
	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/manifest"
)

// defaultTool is the effective tool for a dependency that declares none.
// "agpm" is the neutral, always-enabled installation target defined by
// manifest.DefaultToolConfig; named tools (claude-code, opencode) only
// receive a resource when a dependency (or its ancestor) names them.
const defaultTool = "agpm"

// resolveTool determines the effective tool for a dependency: an explicit
// declaration, the inherited tool of its parent (transitive deps per spec
// §4.4.1 "tool inheritance"), or defaultTool for a manifest root. It also
// validates that the tool is enabled and supports rt.
func resolveTool(m *manifest.Manifest, declared string, inherited string, rt manifest.ResourceType) (string, manifest.ToolConfig, error) {
	tool := declared
	if tool == "" {
		tool = inherited
	}
	if tool == "" {
		tool = defaultTool
	}
	tc, ok := m.EffectiveToolConfig(tool)
	if !ok {
		return "", tc, agpmerr.New(agpmerr.KindValidation, "dependency declares unknown tool %q", tool)
	}
	if !tc.Enabled {
		return tool, tc, errToolDisabled
	}
	if _, ok := tc.Resources[rt]; !ok {
		return "", tc, agpmerr.New(agpmerr.KindUnsupportedResource, "tool %q does not support resource type %q", tool, rt)
	}
	return tool, tc, nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errToolDisabled = sentinelError("tool disabled")

// effectiveFlatten resolves a dependency's flatten setting: its own explicit
// override, or the tool's per-resource-type default.
func effectiveFlatten(dep manifest.Dependency, tc manifest.ToolConfig, rt manifest.ResourceType) bool {
	if dep.FlattenSet {
		return dep.Flatten
	}
	return tc.Resources[rt].Flatten
}
