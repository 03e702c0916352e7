// Package template implements AGPM's two-pass template renderer: an
// `{{ expr }}` / `{% stmt %}` / `{# comment #}` expression language with
// `if`/`for` control flow and `|` filters, plus literal-guard protection and
// a project-file `content` filter. No example repo in the corpus pulls in a
// Jinja-family engine for Go, so this is hand-written in the teacher's own
// style of hand-rolled parsers (pkg/workflow's expression and frontmatter
// parsing, pkg/campaign's text/template wrapper), rather than reaching for
// `text/template` itself, whose dot-prefixed field access (`{{.Foo}}`)
// cannot express the bare `agpm.deps.x.y.content` paths this format
// requires.
package template

import "github.com/agpm-dev/agpm/pkg/checksum"

// ResourceContext is the `agpm.resource` environment entry.
type ResourceContext struct {
	Name        string `json:"name"`
	InstallPath string `json:"install_path"`
	Version     string `json:"version,omitempty"`
	Source      string `json:"source,omitempty"`
	Tool        string `json:"tool"`
}

// DepContext is one `agpm.deps.<type>.<alias>` entry.
type DepContext struct {
	Content string `json:"content"`
}

// Context is the full rendering context passed to a template.
type Context struct {
	Resource ResourceContext                  `json:"resource"`
	Project  map[string]any                   `json:"project"`
	Deps     map[string]map[string]DepContext `json:"deps"`
}

// ToEnv converts Context into the nested map[string]any environment the
// expression evaluator walks, rooted at "agpm".
func (c *Context) ToEnv() map[string]any {
	deps := map[string]any{}
	for resourceType, byAlias := range c.Deps {
		aliasMap := map[string]any{}
		for alias, dc := range byAlias {
			aliasMap[alias] = map[string]any{"content": dc.Content}
		}
		deps[resourceType] = aliasMap
	}
	resource := map[string]any{
		"name":         c.Resource.Name,
		"install_path": c.Resource.InstallPath,
		"tool":         c.Resource.Tool,
	}
	if c.Resource.Version != "" {
		resource["version"] = c.Resource.Version
	}
	if c.Resource.Source != "" {
		resource["source"] = c.Resource.Source
	}
	project := c.Project
	if project == nil {
		project = map[string]any{}
	}
	return map[string]any{
		"agpm": map[string]any{
			"resource": resource,
			"project":  project,
			"deps":     deps,
		},
	}
}

// ContextChecksum computes the context_checksum recorded in lockfile
// entries: a SHA-256 digest over the canonical serialization of the full
// rendering context.
func ContextChecksum(c *Context) string {
	agpm := c.ToEnv()["agpm"].(map[string]any)
	return checksum.SumCanonical(map[string]any{
		"resource": agpm["resource"],
		"project":  agpm["project"],
		"deps":     agpm["deps"],
	})
}
