// Package frontmatter extracts and parses the `---`-delimited metadata
// block at the top of a resource file. The block may be YAML or TOML;
// parsing tries YAML first via github.com/goccy/go-yaml, the teacher's own
// frontmatter-parsing dependency (pkg/parser/yaml_error.go), falling back to
// github.com/BurntSushi/toml (already used for the manifest/lockfile
// documents) when the block doesn't parse as YAML.
package frontmatter

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "github.com/goccy/go-yaml"
)

// Document is a parsed frontmatter block plus the remaining body.
type Document struct {
	Data map[string]any
	Body string
}

// delimiter is the line that opens and closes a frontmatter block.
const delimiter = "---"

// Split separates src into its raw frontmatter text (without delimiters)
// and body. found is false when src carries no frontmatter block, in which
// case the entire input is returned as Body.
func Split(src string) (raw string, body string, found bool) {
	trimmed := strings.TrimLeft(src, "﻿")
	lines := strings.SplitAfter(trimmed, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != delimiter {
		return "", src, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delimiter {
			raw = strings.Join(lines[1:i], "")
			body = strings.Join(lines[i+1:], "")
			return raw, body, true
		}
	}
	return "", src, false
}

// Parse splits src and decodes its frontmatter block, if any. A file with
// no frontmatter block parses successfully to an empty Document.Data.
func Parse(src string) (*Document, error) {
	raw, body, found := Split(src)
	if !found {
		return &Document{Data: map[string]any{}, Body: src}, nil
	}
	data, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return &Document{Data: data, Body: body}, nil
}

func decode(raw string) (map[string]any, error) {
	var y map[string]any
	yErr := yaml.Unmarshal([]byte(raw), &y)
	if yErr == nil {
		return normalizeYAML(y), nil
	}
	var t map[string]any
	if _, err := toml.Decode(raw, &t); err == nil {
		return t, nil
	}
	// Report the YAML error: it's tried first and is generally the more
	// informative of the two for a YAML-shaped block with a typo.
	return nil, yErr
}

// normalizeYAML recursively converts goccy/go-yaml's map[string]interface{}
// (with nested map[string]interface{} already, unlike yaml.v2's
// map[interface{}]interface{}) into the same map[string]any shape used
// throughout the manifest/lockfile/template packages, and leaves sequence
// order untouched.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	}
	return v
}

// SortedKeys returns a map's keys in ascending order, the deterministic
// iteration order required wherever the resolver enumerates frontmatter or
// template-variable tables.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
