package version

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"
)

func versions(t *testing.T, ss ...string) []*semver.Version {
	t.Helper()
	out := make([]*semver.Version, len(ss))
	for i, s := range ss {
		out[i] = mustVersion(t, s)
	}
	return out
}

func TestConstraintSetFindBestMatchRequirement(t *testing.T) {
	set := NewConstraintSet()
	c, _ := Parse("^1.0.0")
	set.Add(c)

	best := set.FindBestMatch(versions(t, "0.9.0", "1.0.0", "1.5.0", "2.0.0"))
	require.NotNil(t, best)
	require.Equal(t, "1.5.0", best.String())
}

func TestConstraintSetExactPrecedence(t *testing.T) {
	set := NewConstraintSet()
	exact, _ := Parse("1.0.0")
	req, _ := Parse(">=1.0.0")
	set.Add(exact)
	set.Add(req)

	best := set.FindBestMatch(versions(t, "1.0.0", "1.5.0", "2.0.0"))
	require.Equal(t, "1.0.0", best.String())
}

func TestConstraintSetConflictingExactsYieldNil(t *testing.T) {
	set := NewConstraintSet()
	a, _ := Parse("1.0.0")
	b, _ := Parse("2.0.0")
	set.Add(a)
	set.Add(b)

	require.Nil(t, set.FindBestMatch(versions(t, "1.0.0", "2.0.0")))
}

func TestConstraintSetPrereleaseExcludedByDefault(t *testing.T) {
	set := NewConstraintSet()
	c, _ := Parse(">=1.0.0")
	set.Add(c)

	best := set.FindBestMatch(versions(t, "1.0.0", "2.0.0-beta.1"))
	require.Equal(t, "1.0.0", best.String())
}

func TestConstraintSetNoMatch(t *testing.T) {
	set := NewConstraintSet()
	c, _ := Parse("^3.0.0")
	set.Add(c)

	require.Nil(t, set.FindBestMatch(versions(t, "1.0.0", "2.0.0")))
}
