package template

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
)

// maxPasses bounds the multi-pass evaluation loop. A template whose output
// still contains unresolved `{{ }}` syntax after this many passes (e.g. files
// that inline each other through the `content` filter) fails with
// RecursionDepthExceeded. Dependency content is guarded and never adds
// passes.
const maxPasses = 10

const (
	rawStart = "__AGPM_RAW_START__"
	rawEnd   = "__AGPM_RAW_END__"
)

var literalFenceRe = regexp.MustCompile("(?s)```literal\n(.*?)\n```")

// Render runs the full multi-pass rendering pipeline over src against ctx,
// with root as the project directory the `content` filter resolves paths
// against. Callers are responsible for the activation check (only invoke
// Render when the resource's frontmatter sets `agpm.templating: true`);
// non-activated resources should pass their source through unchanged.
func Render(src string, ctx *Context, root string) (string, error) {
	env := ctx.ToEnv()

	protected, fences := protectLiteralFences(src)

	text := protected
	for pass := 1; ; pass++ {
		// Mask already-resolved RAW-guarded regions before checking for
		// remaining template syntax: their content is frozen and must not
		// count toward "another pass is needed", even though it may
		// coincidentally still contain `{{`/`{%` characters.
		masked, rawSegs := maskBetween(text, rawStart, rawEnd)
		if !hasTemplateSyntax(masked) {
			text = unmask(masked, rawSegs)
			break
		}
		if pass > maxPasses {
			return "", agpmerr.New(agpmerr.KindRecursionDepth, "template exceeded %d rendering passes", maxPasses)
		}

		tags := lex(masked)
		nodes, err := parse(tags)
		if err != nil {
			return "", agpmerr.Wrap(agpmerr.KindTemplateSyntax, err, "parsing template")
		}
		out, err := renderNodes(nodes, env, root)
		if err != nil {
			return "", err
		}

		text = unmask(out, rawSegs)
	}

	text = stripRawSentinels(text)
	text = restoreFences(text, fences)
	return text, nil
}

func hasTemplateSyntax(text string) bool {
	return strings.Contains(text, "{{") || strings.Contains(text, "{%") || strings.Contains(text, "{#")
}

func renderNodes(nodes []node, env map[string]any, root string) (string, error) {
	var sb strings.Builder
	for _, n := range nodes {
		s, err := renderNode(n, env, root)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func renderNode(n node, env map[string]any, root string) (string, error) {
	switch t := n.(type) {
	case textNode:
		return t.text, nil
	case outputNode:
		v, err := t.expr.eval(env, root)
		if err != nil {
			return "", agpmerr.Wrap(agpmerr.KindTemplateSyntax, err, "evaluating expression")
		}
		s := stringify(v)
		if isDepContentPath(t.expr) {
			s = rawStart + s + rawEnd
		}
		return s, nil
	case ifNode:
		for _, b := range t.branches {
			if b.cond == nil {
				return renderNodes(b.body, env, root)
			}
			v, err := b.cond.eval(env, root)
			if err != nil {
				return "", agpmerr.Wrap(agpmerr.KindTemplateSyntax, err, "evaluating if condition")
			}
			if truthy(v) {
				return renderNodes(b.body, env, root)
			}
		}
		return "", nil
	case forNode:
		return renderFor(t, env, root)
	}
	return "", fmt.Errorf("unknown node type %T", n)
}

func renderFor(f forNode, env map[string]any, root string) (string, error) {
	seq, err := f.seq.eval(env, root)
	if err != nil {
		return "", agpmerr.Wrap(agpmerr.KindTemplateSyntax, err, "evaluating for sequence")
	}
	var sb strings.Builder
	iter := func(key, val any) error {
		childEnv := cloneEnv(env)
		if f.varName2 != "" {
			childEnv[f.varName] = key
			childEnv[f.varName2] = val
		} else {
			childEnv[f.varName] = val
		}
		s, err := renderNodes(f.body, childEnv, root)
		if err != nil {
			return err
		}
		sb.WriteString(s)
		return nil
	}
	switch t := seq.(type) {
	case []any:
		for i, v := range t {
			if err := iter(float64(i), v); err != nil {
				return "", err
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := iter(k, t[k]); err != nil {
				return "", err
			}
		}
	case nil:
		// Undefined sequence renders as zero iterations.
	default:
		return "", agpmerr.New(agpmerr.KindTemplateSyntax, "for: %v is not a sequence or mapping", seq)
	}
	return sb.String(), nil
}

func cloneEnv(env map[string]any) map[string]any {
	out := make(map[string]any, len(env)+2)
	for k, v := range env {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// isDepContentPath reports whether e is a bare `agpm.deps.<type>.<alias>.content`
// path lookup with no filters, the case the literal-guard sentinel wraps so
// a dependency's raw content is never re-interpreted on a later pass.
func isDepContentPath(e *expr) bool {
	if len(e.pipes) != 0 || e.head.op != "" {
		return false
	}
	a := e.head.atom
	if a.kind != atomPath || len(a.path) != 5 {
		return false
	}
	return a.path[0] == "agpm" && a.path[1] == "deps" && a.path[4] == "content"
}

// protectLiteralFences replaces ```literal fenced blocks with opaque
// placeholder tokens, returning the inner content (without the fences) to
// restore verbatim once all rendering passes complete.
func protectLiteralFences(src string) (string, []string) {
	var segs []string
	out := literalFenceRe.ReplaceAllStringFunc(src, func(m string) string {
		inner := literalFenceRe.FindStringSubmatch(m)[1]
		segs = append(segs, inner)
		return placeholderToken(len(segs) - 1)
	})
	return out, segs
}

func restoreFences(text string, segs []string) string {
	for i, s := range segs {
		text = strings.ReplaceAll(text, placeholderToken(i), s)
	}
	return text
}

func placeholderToken(i int) string {
	return "\x00AGPM_LITERAL_" + strconv.Itoa(i) + "\x00"
}

// maskBetween extracts every occurrence of open...end (inclusive) from
// text, replacing it with a stable placeholder so a subsequent lex/parse
// pass cannot misread `{{`/`{%` characters inside it as template syntax.
// The caller restores the exact original substring with unmask once that
// pass's render completes.
func maskBetween(text, open, end string) (string, []string) {
	var segs []string
	var sb strings.Builder
	for {
		start := strings.Index(text, open)
		if start < 0 {
			sb.WriteString(text)
			break
		}
		rel := strings.Index(text[start+len(open):], end)
		if rel < 0 {
			sb.WriteString(text)
			break
		}
		stop := start + len(open) + rel + len(end)
		sb.WriteString(text[:start])
		segs = append(segs, text[start:stop])
		sb.WriteString(rawPlaceholderToken(len(segs) - 1))
		text = text[stop:]
	}
	return sb.String(), segs
}

func unmask(text string, segs []string) string {
	for i, s := range segs {
		text = strings.ReplaceAll(text, rawPlaceholderToken(i), s)
	}
	return text
}

func rawPlaceholderToken(i int) string {
	return "\x00AGPM_RAWSEG_" + strconv.Itoa(i) + "\x00"
}

func stripRawSentinels(text string) string {
	text = strings.ReplaceAll(text, rawStart, "")
	text = strings.ReplaceAll(text, rawEnd, "")
	return text
}
