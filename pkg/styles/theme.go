// Package styles centralizes the color and style definitions used by
// pkg/console, adapting automatically to the terminal's light/dark
// background via lipgloss.AdaptiveColor.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	ColorError = lipgloss.AdaptiveColor{Light: "#D73737", Dark: "#FF5555"}

	ColorWarning = lipgloss.AdaptiveColor{Light: "#E67E22", Dark: "#FFB86C"}

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#27AE60", Dark: "#50FA7B"}

	ColorInfo = lipgloss.AdaptiveColor{Light: "#2980B9", Dark: "#8BE9FD"}

	ColorPurple = lipgloss.AdaptiveColor{Light: "#8E44AD", Dark: "#BD93F9"}

	ColorComment = lipgloss.AdaptiveColor{Light: "#6C7A89", Dark: "#6272A4"}
)

var NormalBorder = lipgloss.NormalBorder()

// Error is used for fatal diagnostics surfaced to stderr.
var Error = lipgloss.NewStyle().Bold(true).Foreground(ColorError)

// Warning is used for non-fatal diagnostics, e.g. a stale lockfile.
var Warning = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)

// Success marks a completed operation.
var Success = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)

// Info is used for routine progress messages.
var Info = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)

// Path highlights an installed or resolved file path.
var Path = lipgloss.NewStyle().Foreground(ColorPurple)

// Muted is used for secondary detail, e.g. a resolved commit SHA.
var Muted = lipgloss.NewStyle().Foreground(ColorComment)
