// Package version implements AGPM's dependency version constraint language:
// exact semver versions, semver requirement ranges (caret/tilde/comparison),
// and Git references (branches, tags, abbreviated or full commit SHAs, or the
// "*" wildcard), per spec §3.3 and §4.2. Semver parsing and range matching
// are delegated to github.com/Masterminds/semver/v3, the idiomatic Go semver
// library used across this corpus.
package version

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind identifies which of the three constraint variants a Constraint holds.
type Kind int

const (
	// KindExact matches exactly one semantic version.
	KindExact Kind = iota
	// KindRequirement matches a semver range (^, ~, >=, <, comma-joined).
	KindRequirement
	// KindGitRef matches a literal Git ref name, or "*" for wildcard/HEAD.
	KindGitRef
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindRequirement:
		return "requirement"
	case KindGitRef:
		return "git-ref"
	default:
		return "unknown"
	}
}

// Constraint is a parsed version constraint as found in a manifest
// dependency's version field.
type Constraint struct {
	Kind    Kind
	Raw     string
	Prefix  string             // monorepo tag prefix, e.g. "agents-" in "agents-v1.2.0"
	Version *semver.Version    // set when Kind == KindExact
	Req     *semver.Constraints // set when Kind == KindRequirement
	Ref     string             // set when Kind == KindGitRef (may be "*")
}

// prefixPattern recognizes a leading identifier-and-hyphen monorepo prefix,
// e.g. "agents-" in "agents-v1.2.0", ahead of a version or operator.
var prefixPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*-)(?:v?\d|[\^~<>=])`)

var prereleaseInVersion = regexp.MustCompile(`\d+\.\d+\.\d+-[0-9A-Za-z.]+`)

// Parse parses a single constraint string into a Constraint, classifying it
// as Exact, Requirement, or GitRef following the precedence and prefix rules
// of spec §3.3 and §4.2.
func Parse(s string) (*Constraint, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, errEmptyConstraint
	}
	if raw == "*" {
		return &Constraint{Kind: KindGitRef, Raw: raw, Ref: "*"}, nil
	}

	prefix := ""
	rest := raw
	if m := prefixPattern.FindStringSubmatch(raw); m != nil {
		prefix = m[1]
		rest = raw[len(prefix):]
	}

	if looksLikeRequirement(rest) {
		if c, err := semver.NewConstraint(rest); err == nil {
			return &Constraint{Kind: KindRequirement, Raw: raw, Prefix: prefix, Req: c}, nil
		}
	}

	if v, err := semver.NewVersion(rest); err == nil {
		return &Constraint{Kind: KindExact, Raw: raw, Prefix: prefix, Version: v}, nil
	}

	// Not a recognizable semver form at all: treat the full original string
	// (prefix included) as a literal Git ref.
	return &Constraint{Kind: KindGitRef, Raw: raw, Ref: raw}, nil
}

func looksLikeRequirement(s string) bool {
	return strings.ContainsAny(s, "^~<>=,") || strings.Contains(s, " ")
}

// Matches reports whether a resolved semantic version satisfies the
// constraint. GitRef constraints only match via the wildcard form; use
// MatchesRef for literal ref comparison.
func (c *Constraint) Matches(v *semver.Version) bool {
	switch c.Kind {
	case KindExact:
		return c.Version.Equal(v)
	case KindRequirement:
		return c.Req.Check(v)
	case KindGitRef:
		return c.Ref == "*"
	default:
		return false
	}
}

// MatchesRef reports whether a literal Git ref name (branch, tag, or SHA)
// satisfies a GitRef constraint. Non-GitRef constraints never match a ref
// directly; resolving them against a ref requires parsing that ref as a tag
// first (see MatchesTag).
func (c *Constraint) MatchesRef(ref string) bool {
	if c.Kind != KindGitRef {
		return false
	}
	if c.Ref == "*" {
		return true
	}
	return c.Ref == ref
}

// MatchesTag attempts to parse tag as a semver version honoring this
// constraint's prefix, then checks it against Matches. Returns ok=false if
// the tag does not bear the constraint's prefix or does not parse as
// semver (e.g. it is a plain unversioned tag).
func (c *Constraint) MatchesTag(tag string) (v *semver.Version, ok bool) {
	v, bore := c.versionFromTag(tag)
	if !bore {
		return nil, false
	}
	return v, c.Matches(v)
}

// versionFromTag strips this constraint's prefix from tag (requiring an
// exact prefix match when one is set) and parses the remainder as semver.
func (c *Constraint) versionFromTag(tag string) (*semver.Version, bool) {
	rest := tag
	if c.Prefix != "" {
		if !strings.HasPrefix(tag, c.Prefix) {
			return nil, false
		}
		rest = strings.TrimPrefix(tag, c.Prefix)
	} else if prefixPattern.MatchString(tag) {
		// A prefix-less constraint only matches prefix-less tags, so other
		// monorepo components' tags are never silently picked up.
		return nil, false
	}
	v, err := semver.NewVersion(rest)
	if err != nil {
		return nil, false
	}
	return v, true
}

// AllowsPrerelease reports whether this constraint's matching semantics
// permit prerelease versions: Git refs always do (they bypass semver
// entirely), an exact constraint does when the pinned version itself is a
// prerelease, and a requirement does when its range literally names a
// prerelease version.
func (c *Constraint) AllowsPrerelease() bool {
	switch c.Kind {
	case KindGitRef:
		return true
	case KindExact:
		return c.Version.Prerelease() != ""
	case KindRequirement:
		return prereleaseInVersion.MatchString(c.Raw)
	default:
		return false
	}
}

// ToVersionReq returns the underlying semver.Constraints for a Requirement
// constraint, or nil otherwise.
func (c *Constraint) ToVersionReq() *semver.Constraints {
	if c.Kind == KindRequirement {
		return c.Req
	}
	return nil
}

type constraintError string

func (e constraintError) Error() string { return string(e) }

const errEmptyConstraint = constraintError("empty version constraint")
