package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToEnvNestsUnderAgpm(t *testing.T) {
	ctx := &Context{
		Resource: ResourceContext{Name: "helper", InstallPath: "agents/helper.md", Tool: "claude-code", Version: "1.2.0"},
		Project:  map[string]any{"owner": "octo"},
		Deps: map[string]map[string]DepContext{
			"snippets": {"commit": {Content: "hi"}},
		},
	}
	env := ctx.ToEnv()
	agpm, ok := env["agpm"].(map[string]any)
	require.True(t, ok)

	resource := agpm["resource"].(map[string]any)
	assert.Equal(t, "helper", resource["name"])
	assert.Equal(t, "1.2.0", resource["version"])

	deps := agpm["deps"].(map[string]any)
	snippets := deps["snippets"].(map[string]any)
	commit := snippets["commit"].(map[string]any)
	assert.Equal(t, "hi", commit["content"])
}

func TestToEnvOmitsUnsetOptionalResourceFields(t *testing.T) {
	ctx := &Context{Resource: ResourceContext{Name: "x", InstallPath: "y", Tool: "z"}}
	env := ctx.ToEnv()
	resource := env["agpm"].(map[string]any)["resource"].(map[string]any)
	_, hasVersion := resource["version"]
	_, hasSource := resource["source"]
	assert.False(t, hasVersion)
	assert.False(t, hasSource)
}

func TestContextChecksumIsStableAndOrderIndependent(t *testing.T) {
	c1 := &Context{
		Resource: ResourceContext{Name: "a", InstallPath: "p", Tool: "t"},
		Project:  map[string]any{"b": 1, "a": 2},
		Deps:     map[string]map[string]DepContext{},
	}
	c2 := &Context{
		Resource: ResourceContext{Name: "a", InstallPath: "p", Tool: "t"},
		Project:  map[string]any{"a": 2, "b": 1},
		Deps:     map[string]map[string]DepContext{},
	}
	assert.Equal(t, ContextChecksum(c1), ContextChecksum(c2))
}

func TestContextChecksumDiffersOnContentChange(t *testing.T) {
	base := &Context{Resource: ResourceContext{Name: "a", InstallPath: "p", Tool: "t"}}
	changed := &Context{Resource: ResourceContext{Name: "a", InstallPath: "p2", Tool: "t"}}
	assert.NotEqual(t, ContextChecksum(base), ContextChecksum(changed))
}
