package installer

import (
	"sort"
	"strings"
)

const (
	gitignoreMarkerStart = "# AGPM managed entries - do not edit below this line"
	gitignoreMarkerEnd   = "# End of AGPM managed entries"
)

// SynthesizeGitignore rebuilds .gitignore's AGPM-managed block from
// existing and installedPaths (project-root-relative, forward-slash),
// preserving user content verbatim (spec §4.7.3). installedPaths need not
// be pre-sorted; the managed block always lists them alphabetically so the
// file is byte-stable across runs with the same install set.
func SynthesizeGitignore(existing string, installedPaths []string) string {
	before, _, after, ok := splitManagedBlock(existing)
	if !ok {
		before, after = existing, ""
	}

	paths := append([]string(nil), installedPaths...)
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString(trimTrailingBlankLines(before))
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(gitignoreMarkerStart)
	b.WriteString("\n")
	for _, p := range paths {
		b.WriteString("/")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString(gitignoreMarkerEnd)
	b.WriteString("\n")
	if rest := strings.TrimLeft(after, "\n"); rest != "" {
		b.WriteString(rest)
		if !strings.HasSuffix(rest, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// splitManagedBlock locates a well-formed managed block (start marker
// before end marker, both present) and splits existing into the text
// before it, the block's own content, and the text after it. ok is false
// when the markers are missing, reversed, or duplicated, signaling the
// caller to reconstruct the file from scratch with user content first.
func splitManagedBlock(existing string) (before, block, after string, ok bool) {
	startIdx := strings.Index(existing, gitignoreMarkerStart)
	if startIdx < 0 {
		return "", "", "", false
	}
	endIdx := strings.Index(existing, gitignoreMarkerEnd)
	if endIdx < 0 || endIdx < startIdx {
		return "", "", "", false
	}
	if strings.Count(existing, gitignoreMarkerStart) > 1 || strings.Count(existing, gitignoreMarkerEnd) > 1 {
		return "", "", "", false
	}
	before = existing[:startIdx]
	block = existing[startIdx+len(gitignoreMarkerStart) : endIdx]
	after = existing[endIdx+len(gitignoreMarkerEnd):]
	return before, block, after, true
}

func trimTrailingBlankLines(s string) string {
	return strings.TrimRight(s, "\n")
}
