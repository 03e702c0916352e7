package installer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agpm-dev/agpm/pkg/globalconfig"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/source"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newTestManager(t *testing.T) *source.Manager {
	t.Helper()
	return source.NewManager(t.TempDir(), &globalconfig.FileResolver{}, 1)
}

func TestInstallWritesPlainFileUnderDefaultAgpmTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents/helper.md", "hello\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceAgents: {
				"helper": {Alias: "helper", ResourceType: manifest.ResourceAgents, Path: "agents/helper.md", Install: true, FlattenSet: true, Flatten: true},
			},
		},
	}

	res, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)
	require.Len(t, res.InstalledPaths, 1)
	assert.Equal(t, ".agpm/agents/helper.md", res.InstalledPaths[0])

	data, err := os.ReadFile(filepath.Join(dir, ".agpm", "agents", "helper.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestInstallUsesAgpmSubdirectoryForClaudeCode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents/helper.md", "hello\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceAgents: {
				"helper": {Alias: "helper", ResourceType: manifest.ResourceAgents, Path: "agents/helper.md", Tool: "claude-code", Install: true, FlattenSet: true, Flatten: true},
			},
		},
	}

	res, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, ".claude/agents/agpm/helper.md", res.InstalledPaths[0])
}

func TestInstallSkipsMaterializingWhenInstallFalse(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents/helper.md", "hello\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceAgents: {
				"helper": {Alias: "helper", ResourceType: manifest.ResourceAgents, Path: "agents/helper.md", Install: false},
			},
		},
	}

	res, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.InstalledPaths)
	require.Len(t, res.Lockfile.Entries[manifest.ResourceAgents], 1)
}

func TestInstallMergesMCPServerIntoClaudeCodeTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp-servers/search.md", "---\ncommand: search-server\nargs:\n  - --port\n  - \"8080\"\n---\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceMCPServers: {
				"search": {Alias: "search", ResourceType: manifest.ResourceMCPServers, Path: "mcp-servers/search.md", Tool: "claude-code", Install: true},
			},
		},
	}

	_, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".mcp.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	servers := doc["mcpServers"].(map[string]any)
	entry := servers["search"].(map[string]any)
	assert.Equal(t, "search-server", entry["command"])
	tag := entry["_agpm"].(map[string]any)
	assert.Equal(t, true, tag["managed"])
}

func TestInstallPreservesUserOwnedMergeEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".mcp.json", `{"mcpServers": {"manual": {"command": "manual-server"}}}`+"\n")
	writeFile(t, dir, "mcp-servers/search.md", "---\ncommand: search-server\n---\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceMCPServers: {
				"search": {Alias: "search", ResourceType: manifest.ResourceMCPServers, Path: "mcp-servers/search.md", Tool: "claude-code", Install: true},
			},
		},
	}

	_, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".mcp.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	servers := doc["mcpServers"].(map[string]any)
	assert.Contains(t, servers, "manual")
	assert.Contains(t, servers, "search")
}

func TestInstallSynthesizesGitignoreManagedBlock(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents/helper.md", "hello\n")
	writeFile(t, dir, ".gitignore", "node_modules/\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceAgents: {
				"helper": {Alias: "helper", ResourceType: manifest.ResourceAgents, Path: "agents/helper.md", Install: true},
			},
		},
	}

	_, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "node_modules/\n")
	assert.Contains(t, text, gitignoreMarkerStart)
	assert.Contains(t, text, "/.agpm/agents/agents/helper.md")
	assert.Contains(t, text, gitignoreMarkerEnd)
}

func TestInstallProducesDeterministicLockfileAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents/helper.md", "hello\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceAgents: {
				"helper": {Alias: "helper", ResourceType: manifest.ResourceAgents, Path: "agents/helper.md", Install: true},
			},
		},
	}

	_, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "agpm.lock"))
	require.NoError(t, err)

	_, err = Install(context.Background(), dir, m, newTestManager(t), Options{Force: true})
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "agpm.lock"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestInstallFailsClosedOnStaleLockfileUnderFrozen(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents/helper.md", "hello\n")
	writeFile(t, dir, "agpm.lock", "version = 1\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceAgents: {
				"helper": {Alias: "helper", ResourceType: manifest.ResourceAgents, Path: "agents/helper.md", Install: true},
			},
		},
	}

	_, err := Install(context.Background(), dir, m, newTestManager(t), Options{Frozen: true})
	require.Error(t, err)
}

func TestInstallWarnsAndProceedsOnStaleLockfileWithoutFrozen(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents/helper.md", "hello\n")
	writeFile(t, dir, "agpm.lock", "version = 1\n")

	m := &manifest.Manifest{
		Resources: map[manifest.ResourceType]map[string]manifest.Dependency{
			manifest.ResourceAgents: {
				"helper": {Alias: "helper", ResourceType: manifest.ResourceAgents, Path: "agents/helper.md", Install: true},
			},
		},
	}

	res, err := Install(context.Background(), dir, m, newTestManager(t), Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.StaleWarning)
	assert.Len(t, res.InstalledPaths, 1)
}
