package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/fsutil"
)

// contentAllowedExt mirrors the original renderer's extension allowlist for
// the `content` filter: only text formats safe to inline verbatim or
// reformat.
var contentAllowedExt = map[string]bool{
	".md":   true,
	".txt":  true,
	".json": true,
	".toml": true,
	".yaml": true,
	".yml":  true,
}

// maxContentFilterBytes bounds how much of a project file `content` will
// inline, so a template can't be used to exfiltrate an arbitrarily large
// file into rendered output.
const maxContentFilterBytes = 1 << 20 // 1MiB

// filterFunc implements one `| name(args...)` filter over an already
// evaluated value.
type filterFunc func(root string, v any, args []any) (any, error)

var filterRegistry = map[string]filterFunc{
	"length": func(_ string, v any, _ []any) (any, error) { return lengthOf(v) },
	"join":   func(_ string, v any, args []any) (any, error) { return joinValues(v, args) },
}

// applyFilter dispatches a named filter, passing along the project root
// `content` reads relative to.
func applyFilter(name string, v any, args []any, root string) (any, error) {
	if name == "content" {
		return contentFilter(root, v, args)
	}
	fn, ok := filterRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", name)
	}
	return fn(root, v, args)
}

func lengthOf(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return float64(len([]rune(t))), nil
	case []any:
		return float64(len(t)), nil
	case map[string]any:
		return float64(len(t)), nil
	case nil:
		return float64(0), nil
	}
	return nil, fmt.Errorf("length: unsupported type %T", v)
}

func joinValues(v any, args []any) (any, error) {
	sep := ", "
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			sep = s
		}
	}
	seq, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("join: expected a sequence, got %T", v)
	}
	parts := make([]string, len(seq))
	for i, item := range seq {
		parts[i] = fmt.Sprint(item)
	}
	return strings.Join(parts, sep), nil
}

// contentFilter implements `{{ "docs/readme.md" | content }}`: it reads a
// project-relative file and inlines it, optionally reformatted.
func contentFilter(root string, v any, _ []any) (any, error) {
	relRaw, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("content: expected a string path, got %T", v)
	}
	if root == "" {
		return nil, fmt.Errorf("content: no project root available")
	}
	ext := strings.ToLower(filepath.Ext(relRaw))
	if !contentAllowedExt[ext] {
		return nil, agpmerr.New(agpmerr.KindForbiddenExtension, "content filter: extension %q is not allowed", ext)
	}
	rel := fsutil.NormalizeRelative(relRaw)
	if filepath.IsAbs(relRaw) || fsutil.EscapesRoot(rel) {
		return nil, agpmerr.New(agpmerr.KindPathEscapesRoot, "content filter: path %q escapes the project root", relRaw)
	}
	full := filepath.Join(root, fsutil.FromSlash(rel))
	under, err := fsutil.CanonicalUnder(root, full)
	if err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindIO, err, "content filter: resolving %q", relRaw)
	}
	if !under {
		return nil, agpmerr.New(agpmerr.KindPathEscapesRoot, "content filter: path %q escapes the project root", relRaw)
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindIO, err, "content filter: reading %q", relRaw)
	}
	if info.Size() > maxContentFilterBytes {
		return nil, agpmerr.New(agpmerr.KindFileTooLarge, "content filter: %q exceeds the maximum inline size", relRaw)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	switch ext {
	case ".md":
		return stripFrontmatter(string(data)), nil
	case ".json":
		return prettyJSON(data)
	}
	return string(data), nil
}

func stripFrontmatter(s string) string {
	if !strings.HasPrefix(s, "---\n") {
		return s
	}
	rest := s[4:]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return s
	}
	return strings.TrimPrefix(rest[end+5:], "\n")
}

// prettyJSON re-indents JSON content for inline embedding. encoding/json
// already sorts map keys on marshal, so output is deterministic without
// any extra normalization pass.
func prettyJSON(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("content: invalid JSON: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
