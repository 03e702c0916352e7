// Package agpmerr defines the typed error vocabulary shared across AGPM's
// resolver, renderer, source manager, and installer, per the error model
// described in spec §4.9. Every error carries structured context (affected
// manifest alias, source, path, version) and, where applicable, a suggested
// remediation, so the CLI layer can render concise, actionable diagnostics
// without parsing error strings.
package agpmerr

import "fmt"

// Kind enumerates the typed error categories from spec §4.9.
type Kind string

const (
	KindSyntax               Kind = "SyntaxError"
	KindValidation           Kind = "ValidationError"
	KindSourceUnavailable    Kind = "SourceUnavailable"
	KindRefNotFound          Kind = "RefNotFound"
	KindAuthenticationFailed Kind = "AuthenticationFailure"
	KindNoMatchingVersion    Kind = "NoMatchingVersion"
	KindVersionConflict      Kind = "VersionConflict"
	KindCircularDependency   Kind = "CircularDependency"
	KindUnsupportedResource  Kind = "UnsupportedResourceType"
	KindPathEscapesRoot      Kind = "PathEscapesRoot"
	KindForbiddenExtension   Kind = "ForbiddenExtension"
	KindFileTooLarge         Kind = "FileTooLarge"
	KindTemplateSyntax       Kind = "TemplateSyntaxError"
	KindRecursionDepth       Kind = "RecursionDepthExceeded"
	KindLockfileStale        Kind = "LockfileStale"
	KindLockfileCorrupt      Kind = "LockfileCorrupt"
	KindInstallCollision     Kind = "InstallCollision"
	KindIO                   Kind = "Io"
)

// Error is the concrete error type for every Kind above. It implements the
// standard error interface and supports errors.As/errors.Is via Unwrap.
type Error struct {
	Kind       Kind
	Message    string
	Alias      string // manifest alias, if applicable
	Source     string // source name, if applicable
	Path       string // resource path, if applicable
	Version    string // version/constraint string, if applicable
	Suggestion string // actionable remediation, if any
	Cause      error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	var ctx []string
	if e.Alias != "" {
		ctx = append(ctx, "alias="+e.Alias)
	}
	if e.Source != "" {
		ctx = append(ctx, "source="+e.Source)
	}
	if e.Path != "" {
		ctx = append(ctx, "path="+e.Path)
	}
	if e.Version != "" {
		ctx = append(ctx, "version="+e.Version)
	}
	for _, c := range ctx {
		msg += " [" + c + "]"
	}
	if e.Suggestion != "" {
		msg += " (suggestion: " + e.Suggestion + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithContext returns a copy of e with the given context fields set,
// allowing fluent construction: agpmerr.New(...).WithContext(alias, source, path, version).
func (e *Error) WithContext(alias, source, path, version string) *Error {
	c := *e
	if alias != "" {
		c.Alias = alias
	}
	if source != "" {
		c.Source = source
	}
	if path != "" {
		c.Path = path
	}
	if version != "" {
		c.Version = version
	}
	return &c
}

// WithSuggestion returns a copy of e with a remediation suggestion attached.
func (e *Error) WithSuggestion(s string) *Error {
	c := *e
	c.Suggestion = s
	return &c
}

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, agpmerr.New(agpmerr.KindLockfileStale, "")) style checks
// when callers only care about the category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
