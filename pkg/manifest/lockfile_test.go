package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockfileRoundTrip(t *testing.T) {
	l := NewLockfile()
	l.Sources = append(l.Sources, LockSource{Name: "community", URL: "https://example.com/repo.git", Commit: "abc123", FetchedAt: "2026-01-01T00:00:00Z"})
	l.Entries[ResourceAgents] = append(l.Entries[ResourceAgents], LockEntry{
		Name: "agents/reviewer", ManifestAlias: "reviewer", Source: "community",
		URL: "https://example.com/repo.git", Path: "agents/reviewer.md", Version: "v1.0.0",
		ResolvedCommit: "abc123abc123abc123abc123abc123abc123abcd", Checksum: "deadbeef",
		InstalledAt: ".claude/agents/agpm/reviewer.md",
	})

	text, err := SaveLockfile(l)
	require.NoError(t, err)

	l2, err := ParseLockfile(text)
	require.NoError(t, err)
	require.Len(t, l2.Sources, 1)
	assert.Equal(t, "community", l2.Sources[0].Name)

	entries := l2.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "agents/reviewer", entries[0].Name)
	assert.Equal(t, "reviewer", entries[0].ManifestAlias)
}

func TestLockfileAllEntriesSortedAlphabeticallyWithinType(t *testing.T) {
	l := NewLockfile()
	l.Entries[ResourceAgents] = []LockEntry{
		{Name: "agents/zebra"},
		{Name: "agents/alpha"},
	}
	entries := l.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "agents/alpha", entries[0].Name)
	assert.Equal(t, "agents/zebra", entries[1].Name)
}

func TestParseLockfileRejectsWrongVersion(t *testing.T) {
	_, err := ParseLockfile("version = 99\n")
	require.Error(t, err)
}

func TestDivergenceDescription(t *testing.T) {
	msg := DivergenceDescription("reviewer", "version", "v1.0.0", "v2.0.0")
	assert.Contains(t, msg, "reviewer")
	assert.Contains(t, msg, "v1.0.0")
	assert.Contains(t, msg, "v2.0.0")
}
