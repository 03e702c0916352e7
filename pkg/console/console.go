// Package console formats the agpm CLI's stderr output: colored status
// lines when attached to a terminal, plain text otherwise.
package console

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/agpm-dev/agpm/pkg/styles"
)

func isTTY() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// FormatSuccessMessage formats a completed-operation message.
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats a routine progress message.
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a non-fatal diagnostic, e.g. a staleness
// divergence surfaced without --frozen.
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats a fatal error for stderr.
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + message
}

// FormatPathMessage formats an installed or resolved file path.
func FormatPathMessage(path string) string {
	return applyStyle(styles.Path, path)
}

// FormatErrorWithSuggestion appends a single actionable suggestion below a
// formatted error message, mirroring agpmerr.Error's Suggestion field.
func FormatErrorWithSuggestion(message, suggestion string) string {
	var out strings.Builder
	out.WriteString(FormatErrorMessage(message))
	if suggestion != "" {
		out.WriteString("\n\n  ")
		out.WriteString(suggestion)
	}
	return out.String()
}
