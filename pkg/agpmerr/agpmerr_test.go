package agpmerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(KindVersionConflict, "no common version for %s", "agents/example").
		WithContext("example", "origin", "agents/example.md", "^1.0.0").
		WithSuggestion("relax one of the conflicting constraints")

	msg := err.Error()
	require.Contains(t, msg, "VersionConflict")
	require.Contains(t, msg, "alias=example")
	require.Contains(t, msg, "source=origin")
	require.Contains(t, msg, "version=^1.0.0")
	require.Contains(t, msg, "suggestion: relax one of the conflicting constraints")
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindIO, cause, "failed to write %s", "file.md")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "boom")
}

func TestIsMatchesByKind(t *testing.T) {
	a := New(KindLockfileStale, "manifest and lockfile diverge")
	b := New(KindLockfileStale, "different message, same kind")
	c := New(KindLockfileCorrupt, "unrelated")

	require.True(t, errors.Is(a, b))
	require.False(t, errors.Is(a, c))
}

func TestErrorsAsExtractsFields(t *testing.T) {
	wrapped := fmt.Errorf("install failed: %w", New(KindInstallCollision, "path collision").WithContext("", "", "agents/x.md", ""))
	var target *Error
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, KindInstallCollision, target.Kind)
	require.Equal(t, "agents/x.md", target.Path)
}
