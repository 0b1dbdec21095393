// Package output provides styled terminal rendering and the boundary
// formatting for diagnostic values. All number-to-string conversion
// (ratios, currency, percentages) happens here; the engine itself only
// ever deals in raw numerics.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorCritical is used for critical factors and failing scores.
	ColorCritical = lipgloss.Color("#ef5350")

	// ColorWarning is used for warning factors and middling scores.
	ColorWarning = lipgloss.Color("#fff59d")

	// ColorInfo is used for informational factors.
	ColorInfo = lipgloss.Color("#81d4fa")

	// ColorOK is used for healthy scores and positive deltas.
	ColorOK = lipgloss.Color("#66bb6a")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers.
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// StyleCritical is used for critical severities.
	StyleCritical = lipgloss.NewStyle().
			Foreground(ColorCritical).
			Bold(true)

	// StyleWarning is used for warning severities.
	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// StyleInfo is used for info severities.
	StyleInfo = lipgloss.NewStyle().
			Foreground(ColorInfo)

	// StyleOK is used for healthy values.
	StyleOK = lipgloss.NewStyle().
			Foreground(ColorOK)

	// StyleMuted is used for de-emphasized text.
	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// StyleBold is used for emphasized text.
	StyleBold = lipgloss.NewStyle().
			Bold(true)
)

// noColor tracks whether color output is disabled.
var noColor bool

// AutoDetect disables color when stdout is not a terminal, unless color
// was already forced off. Called once from the root command.
func AutoDetect() {
	if noColor {
		return
	}
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		SetNoColor(true)
	}
}

// SetNoColor disables or enables color output globally.
// When disabled, all package-level styles are reassigned to unstyled renderers.
func SetNoColor(disabled bool) {
	noColor = disabled
	if disabled {
		plain := lipgloss.NewStyle()
		StyleHeader = plain
		StyleCritical = plain
		StyleWarning = plain
		StyleInfo = plain
		StyleOK = plain
		StyleMuted = plain
		StyleBold = plain
	}
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}
