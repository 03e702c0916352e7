package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicContext() *Context {
	return &Context{
		Resource: ResourceContext{Name: "helper", InstallPath: "agents/helper.md", Tool: "claude-code"},
		Project:  map[string]any{"owner": "octo", "strict": true},
		Deps: map[string]map[string]DepContext{
			"snippets": {
				"commit": {Content: "commit message guidance"},
			},
		},
	}
}

func TestRenderPlainTextPassesThrough(t *testing.T) {
	out, err := Render("no templating here", basicContext(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "no templating here", out)
}

func TestRenderOutputsResourceAndProjectFields(t *testing.T) {
	src := "# {{ agpm.resource.name }} for {{ agpm.project.owner }}"
	out, err := Render(src, basicContext(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "# helper for octo", out)
}

func TestRenderIfElse(t *testing.T) {
	src := "{% if agpm.project.strict %}strict{% else %}lax{% endif %}"
	out, err := Render(src, basicContext(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "strict", out)
}

func TestRenderForOverSequenceLiteralGuardsLength(t *testing.T) {
	ctx := basicContext()
	ctx.Project["tags"] = []any{"a", "b", "c"}
	src := "{% for t in agpm.project.tags %}[{{ t }}]{% endfor %} count={{ agpm.project.tags | length }}"
	out, err := Render(src, ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "[a][b][c] count=3", out)
}

func TestRenderDependencyContentIsNeverReinterpreted(t *testing.T) {
	ctx := basicContext()
	ctx.Deps["snippets"]["commit"] = DepContext{Content: "use {{ this as literal }} text"}
	src := "Body: {{ agpm.deps.snippets.commit.content }}"
	out, err := Render(src, ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Body: use {{ this as literal }} text", out)
}

func TestRenderLiteralFenceIsNotEvaluated(t *testing.T) {
	src := "before\n```literal\n{{ agpm.resource.name }}\n```\nafter"
	out, err := Render(src, basicContext(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "before\n{{ agpm.resource.name }}\nafter", out)
}

func TestRenderCircularContentFilterFailsWithRecursionDepth(t *testing.T) {
	root := t.TempDir()
	// a.md and b.md each inline one another through the content filter,
	// so every pass re-expands fresh unresolved syntax and the renderer
	// never converges within the pass budget.
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte(`{{ "b.md" | content }}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte(`{{ "a.md" | content }}`), 0o644))
	_, err := Render(`{{ "a.md" | content }}`, basicContext(), root)
	require.Error(t, err)
}

func TestRenderContentFilterInlinesProjectFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("---\ntitle: x\n---\nbody text"), 0o644))
	out, err := Render(`{{ "notes.md" | content }}`, basicContext(), root)
	require.NoError(t, err)
	assert.Equal(t, "body text", out)
}

func TestRenderContentFilterRejectsForbiddenExtension(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "payload.exe"), []byte("x"), 0o644))
	_, err := Render(`{{ "payload.exe" | content }}`, basicContext(), root)
	require.Error(t, err)
}

func TestRenderContentFilterRejectsEscapingPath(t *testing.T) {
	root := t.TempDir()
	_, err := Render(`{{ "../secret.md" | content }}`, basicContext(), root)
	require.Error(t, err)
}

func TestRenderComment(t *testing.T) {
	out, err := Render("a{# this is dropped #}b", basicContext(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestRenderNotAndComparison(t *testing.T) {
	src := "{% if not agpm.project.missing and agpm.resource.tool == \"claude-code\" %}yes{% endif %}"
	out, err := Render(src, basicContext(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}
