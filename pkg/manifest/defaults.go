package manifest

// DefaultToolConfig returns the built-in ToolConfig for a well-known tool
// name (spec §3.1). ok is false for custom tool names, which require
// explicit manifest configuration.
func DefaultToolConfig(name string) (cfg ToolConfig, ok bool) {
	switch name {
	case "claude-code":
		return ToolConfig{
			Path:    ".claude",
			Enabled: true,
			Resources: map[ResourceType]ResourceConfig{
				ResourceAgents:     {Path: "agents", Flatten: false},
				ResourceSnippets:   {Path: "snippets", Flatten: false},
				ResourceCommands:   {Path: "commands", Flatten: false},
				ResourceScripts:    {Path: "scripts", Flatten: false},
				ResourceHooks:      {Path: "hooks", Flatten: false, MergeTarget: "settings.local.json"},
				ResourceMCPServers: {Path: "", Flatten: false, MergeTarget: "../.mcp.json"},
			},
		}, true
	case "opencode":
		return ToolConfig{
			Path:    ".opencode",
			Enabled: true,
			Resources: map[ResourceType]ResourceConfig{
				ResourceAgents:     {Path: "agents", Flatten: false},
				ResourceSnippets:   {Path: "snippets", Flatten: false},
				ResourceCommands:   {Path: "commands", Flatten: false},
				ResourceScripts:    {Path: "scripts", Flatten: false},
				ResourceHooks:      {Path: "hooks", Flatten: false},
				ResourceMCPServers: {Path: "", Flatten: false, MergeTarget: "opencode.json"},
			},
		}, true
	case "agpm":
		return ToolConfig{
			Path:    ".agpm",
			Enabled: true,
			Resources: map[ResourceType]ResourceConfig{
				ResourceAgents:     {Path: "agents", Flatten: false},
				ResourceSnippets:   {Path: "snippets", Flatten: false},
				ResourceCommands:   {Path: "commands", Flatten: false},
				ResourceScripts:    {Path: "scripts", Flatten: false},
				ResourceHooks:      {Path: "hooks", Flatten: false},
				ResourceMCPServers: {Path: "mcp-servers", Flatten: false},
			},
		}, true
	default:
		return ToolConfig{}, false
	}
}

// MergeTargetKey returns the JSON key under which a tool's merge-target
// file stores AGPM-managed entries for a given resource type, per spec
// §4.7.2 / §6.5.
func MergeTargetKey(tool string, rt ResourceType) string {
	switch {
	case rt == ResourceMCPServers && tool == "claude-code":
		return "mcpServers"
	case rt == ResourceMCPServers && tool == "opencode":
		return "mcp"
	case rt == ResourceHooks && tool == "claude-code":
		return "hooks"
	default:
		return string(rt)
	}
}
