// Package checksum computes SHA-256 digests and a canonical, deterministic
// byte serialization of arbitrary nested manifest/template-variable data,
// per spec §4.6. The canonical form underlies both the lockfile's content
// checksums and the template renderer's context checksum.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sum returns "sha256:<64-hex>" for the given bytes.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// SumString is a convenience wrapper over Sum for string content.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Canonicalize converts an arbitrary nested value (maps, slices, and
// scalars as produced by TOML/YAML/JSON decoding) into a stable byte
// sequence suitable for hashing:
//
//   - map keys are sorted ASCII-ascending, recursively
//   - sequence order is preserved
//   - booleans serialize as true/false
//   - integers serialize without a trailing decimal point
//   - floats use Go's shortest round-trip form (strconv.FormatFloat with
//     precision -1), the canonical form pinned for this implementation per
//     SPEC_FULL.md §C (§9 Open Question (b))
//   - strings are double-quoted with control bytes escaped; valid UTF-8
//     printable characters pass through unescaped
func Canonicalize(v any) []byte {
	var b strings.Builder
	writeCanonical(&b, v)
	return []byte(b.String())
}

func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeCanonicalString(b, val)
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		writeCanonicalFloat(b, val)
	case float32:
		writeCanonicalFloat(b, float64(val))
	case map[string]any:
		writeCanonicalMap(b, val)
	case []any:
		writeCanonicalSlice(b, val)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		writeCanonicalSlice(b, arr)
	default:
		// Fallback for types not produced by our own decoders (e.g. a
		// caller-supplied struct): stable textual form via fmt.
		writeCanonicalString(b, fmt.Sprintf("%v", val))
	}
}

func writeCanonicalFloat(b *strings.Builder, f float64) {
	if f == float64(int64(f)) {
		// Integral floats print without a decimal point (2.0 -> "2"),
		// the same text an integer of that value produces.
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		return
	}
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

func writeCanonicalString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

func writeCanonicalMap(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonicalString(b, k)
		b.WriteByte(':')
		writeCanonical(b, m[k])
	}
	b.WriteByte('}')
}

func writeCanonicalSlice(b *strings.Builder, s []any) {
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonical(b, v)
	}
	b.WriteByte(']')
}

// SumCanonical canonicalizes v and returns its SHA-256 checksum, used to
// compute the lockfile's context_checksum over a rendering context.
func SumCanonical(v any) string {
	return Sum(Canonicalize(v))
}
