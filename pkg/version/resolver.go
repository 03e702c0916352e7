package version

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// NamedConstraint pairs a parsed constraint with the manifest alias or
// dependent resource that requested it, for diagnostic reporting.
type NamedConstraint struct {
	Constraint *Constraint
	Requester  string
}

// UnresolvedGroup describes a dependency name for which no single version
// satisfies every requesting constraint, used to build a VersionConflict
// diagnostic per spec §4.4.3.
type UnresolvedGroup struct {
	Name        string
	Constraints []NamedConstraint
}

// ConstraintResolver groups constraints by dependency name and solves each
// group independently against a caller-supplied set of available versions,
// per spec §4.2.
type ConstraintResolver struct {
	groups map[string][]NamedConstraint
	order  []string
}

// NewConstraintResolver creates an empty resolver.
func NewConstraintResolver() *ConstraintResolver {
	return &ConstraintResolver{groups: make(map[string][]NamedConstraint)}
}

// AddConstraint parses constraintStr and adds it to the named group,
// attributing it to requester for diagnostics.
func (r *ConstraintResolver) AddConstraint(name, requester, constraintStr string) error {
	c, err := Parse(constraintStr)
	if err != nil {
		return err
	}
	if _, ok := r.groups[name]; !ok {
		r.order = append(r.order, name)
	}
	r.groups[name] = append(r.groups[name], NamedConstraint{Constraint: c, Requester: requester})
	return nil
}

// Resolve solves every group against available, a map from dependency name
// to its known versions. It returns the resolved version per group and, for
// any group with no single satisfying version, an UnresolvedGroup entry
// (sorted by name for determinism) so callers can emit a complete
// VersionConflict diagnostic naming every requester and constraint.
func (r *ConstraintResolver) Resolve(available map[string][]*semver.Version) (map[string]*semver.Version, []UnresolvedGroup) {
	resolved := make(map[string]*semver.Version, len(r.groups))
	var unresolved []UnresolvedGroup

	names := append([]string(nil), r.order...)
	sort.Strings(names)

	for _, name := range names {
		group := r.groups[name]
		set := NewConstraintSet()
		for _, nc := range group {
			set.Add(nc.Constraint)
		}
		best := set.FindBestMatch(available[name])
		if best == nil {
			unresolved = append(unresolved, UnresolvedGroup{Name: name, Constraints: group})
			continue
		}
		resolved[name] = best
	}
	return resolved, unresolved
}

// Groups returns the dependency names currently tracked, in insertion order.
func (r *ConstraintResolver) Groups() []string {
	return append([]string(nil), r.order...)
}
