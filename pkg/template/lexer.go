package template

import "strings"

type tagKind int

const (
	tagText tagKind = iota
	tagOutput
	tagStatement
	tagComment
)

type tag struct {
	kind tagKind
	raw  string // the text, or the expression/statement body with whitespace trimmed
}

// lex splits src into a flat sequence of text/output/statement/comment tags
// by scanning for the three delimiter pairs in one left-to-right pass. It
// does not understand block nesting; that is the parser's job.
func lex(src string) []tag {
	var tags []tag
	i := 0
	for i < len(src) {
		next, kind := nextDelim(src, i)
		if next < 0 {
			tags = append(tags, tag{kind: tagText, raw: src[i:]})
			break
		}
		if next > i {
			tags = append(tags, tag{kind: tagText, raw: src[i:next]})
		}
		open, close := delimPair(kind)
		end := strings.Index(src[next+len(open):], close)
		if end < 0 {
			// Unterminated tag: treat the rest as text rather than panic.
			tags = append(tags, tag{kind: tagText, raw: src[next:]})
			break
		}
		body := src[next+len(open) : next+len(open)+end]
		tags = append(tags, tag{kind: kind, raw: strings.TrimSpace(body)})
		i = next + len(open) + end + len(close)
	}
	return tags
}

func nextDelim(src string, from int) (int, tagKind) {
	best := -1
	bestKind := tagText
	for _, d := range []struct {
		open string
		kind tagKind
	}{
		{"{{", tagOutput},
		{"{%", tagStatement},
		{"{#", tagComment},
	} {
		if idx := strings.Index(src[from:], d.open); idx >= 0 {
			pos := from + idx
			if best == -1 || pos < best {
				best = pos
				bestKind = d.kind
			}
		}
	}
	return best, bestKind
}

func delimPair(kind tagKind) (open, close string) {
	switch kind {
	case tagOutput:
		return "{{", "}}"
	case tagStatement:
		return "{%", "%}"
	case tagComment:
		return "{#", "#}"
	}
	return "", ""
}
