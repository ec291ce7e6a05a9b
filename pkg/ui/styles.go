package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/conecheck/conecheck/pkg/defaults"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4")
	Secondary = lipgloss.Color("#00D4AA")
	Muted     = lipgloss.Color("#6B7280")
	Bright    = lipgloss.Color("#FAFAFA")

	// Status bucket colors
	Good      = lipgloss.Color("#00D26A")
	Warn      = lipgloss.Color("#FFD93D")
	Exception = lipgloss.Color("#FF8C42")
	Broken    = lipgloss.Color("#FF3838")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Bright).
			Background(Primary).
			Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Bright).
			Bold(true)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(Bright).
			Bold(true)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	DiagnosticStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)
)

// StatusColor returns the color of a status bucket.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case defaults.StatusGood:
		return Good
	case defaults.StatusWarn:
		return Warn
	case defaults.StatusException:
		return Exception
	case defaults.StatusError:
		return Broken
	default:
		return Muted
	}
}

// StatusStyle returns the bold style used to render a status bucket.
func StatusStyle(status string) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(StatusColor(status))
}

// StatusIcon returns a glyph for the status, falling back to ASCII on
// terminals that cannot render it.
func StatusIcon(status string) string {
	switch status {
	case defaults.StatusGood:
		return Icon("✔", "[+]")
	case defaults.StatusWarn:
		return Icon("⚠", "[~]")
	case defaults.StatusException:
		return Icon("✘", "[x]")
	case defaults.StatusError:
		return Icon("⨯", "[!]")
	default:
		return "[?]"
	}
}
