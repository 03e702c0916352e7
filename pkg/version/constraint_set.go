package version

import "github.com/Masterminds/semver/v3"

// ConstraintSet aggregates multiple constraints that apply to the same
// dependency (e.g. two manifest entries or a direct + transitive dependency
// both referencing the same source+path), per spec §4.2.
type ConstraintSet struct {
	constraints []*Constraint
}

// NewConstraintSet creates an empty ConstraintSet.
func NewConstraintSet() *ConstraintSet {
	return &ConstraintSet{}
}

// Add appends a constraint to the set.
func (s *ConstraintSet) Add(c *Constraint) {
	s.constraints = append(s.constraints, c)
}

// Constraints returns the constraints currently in the set, in insertion
// order.
func (s *ConstraintSet) Constraints() []*Constraint {
	return s.constraints
}

// AllowsPrerelease reports whether any member constraint allows
// prereleases; per spec §4.2 rule (3), the whole set does if any one does.
func (s *ConstraintSet) AllowsPrerelease() bool {
	for _, c := range s.constraints {
		if c.AllowsPrerelease() {
			return true
		}
	}
	return false
}

// FindBestMatch selects the version, among those supplied, that satisfies
// every constraint in the set, following the precedence of spec §4.2:
//
//  1. exact constraints must all agree and pin the result
//  2. otherwise, the highest version satisfying every requirement constraint
//  3. prereleases are only considered when AllowsPrerelease()
//
// Returns nil if no version in the candidate set satisfies every
// constraint.
func (s *ConstraintSet) FindBestMatch(versions []*semver.Version) *semver.Version {
	if len(s.constraints) == 0 {
		return highestOf(versions, false)
	}

	var exacts []*semver.Version
	for _, c := range s.constraints {
		if c.Kind == KindExact {
			exacts = append(exacts, c.Version)
		}
	}
	if len(exacts) > 0 {
		for _, e := range exacts[1:] {
			if !e.Equal(exacts[0]) {
				return nil // conflicting exact pins within the set
			}
		}
		pinned := exacts[0]
		for _, v := range versions {
			if v.Equal(pinned) && s.satisfiesAll(v) {
				return v
			}
		}
		return nil
	}

	allowPre := s.AllowsPrerelease()
	var candidates []*semver.Version
	for _, v := range versions {
		if s.satisfiesAll(v) {
			candidates = append(candidates, v)
		}
	}
	return highestOf(candidates, allowPre)
}

func (s *ConstraintSet) satisfiesAll(v *semver.Version) bool {
	for _, c := range s.constraints {
		if c.Kind == KindGitRef {
			continue // Git refs don't constrain a semver candidate list
		}
		if !c.Matches(v) {
			return false
		}
	}
	return true
}

// highestOf returns the highest stable version in versions. A prerelease is
// returned only when no stable version is present and allowPre is set.
func highestOf(versions []*semver.Version, allowPre bool) *semver.Version {
	var best *semver.Version
	var bestStable *semver.Version
	for _, v := range versions {
		if v == nil {
			continue
		}
		if v.Prerelease() == "" {
			if bestStable == nil || v.GreaterThan(bestStable) {
				bestStable = v
			}
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if bestStable != nil {
		return bestStable
	}
	if allowPre {
		return best
	}
	return nil
}
