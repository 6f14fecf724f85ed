// Package tui renders scan progress for the scout CLI using Charmbracelet's
// Bubble Tea, Lip Gloss and Bubbles.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette for the TUI.
var (
	primaryColor = lipgloss.Color("#7D56F4")
	accentColor  = lipgloss.Color("#00D9FF")

	successColor = lipgloss.Color("#28A745")
	warningColor = lipgloss.Color("#FFC107")
	dangerColor  = lipgloss.Color("#DC3545")

	mutedColor  = lipgloss.Color("#666666")
	subtleColor = lipgloss.Color("#444444")
	borderColor = lipgloss.Color("#333333")
)

// Box styles for containers.
var (
	// outerBoxStyle is the main container style.
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	// dividerStyle creates horizontal dividers.
	dividerStyle = lipgloss.NewStyle().
			Foreground(borderColor)
)

// Text styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedTextStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	successTextStyle = lipgloss.NewStyle().
				Foreground(successColor)

	warningTextStyle = lipgloss.NewStyle().
				Foreground(warningColor)

	pathStyle = lipgloss.NewStyle().
			Foreground(accentColor)
)

// Progress bar styles.
var (
	progressFillStyle = lipgloss.NewStyle().
				Foreground(successColor)

	progressEmptyStyle = lipgloss.NewStyle().
				Foreground(subtleColor)
)

// Stats box styles.
var (
	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(borderColor).
			Padding(0, 2)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	statsValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))
)

// renderDivider creates a horizontal divider line.
func renderDivider(width int) string {
	return dividerStyle.Render(repeatChar('─', width))
}

// repeatChar repeats a character n times.
func repeatChar(char rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = char
	}
	return string(result)
}

// truncatePath truncates a path to fit within maxLen, preserving the end.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-(maxLen-3):]
}

// center centers a string within the given width.
func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	leftPad := (width - len(s)) / 2
	rightPad := width - len(s) - leftPad
	return repeatChar(' ', leftPad) + s + repeatChar(' ', rightPad)
}
