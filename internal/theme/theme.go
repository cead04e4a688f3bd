// Package theme provides the Lip Gloss color palette and reusable styles
// for the Orchestrator panel. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Log category colors.
var (
	ColorInfo      = lipgloss.Color("#9ca3af")
	ColorSystem    = lipgloss.Color("#7c3aed")
	ColorMQTT      = lipgloss.Color("#2563eb")
	ColorPresenter = lipgloss.Color("#06b6d4")
	ColorSuccess   = lipgloss.Color("#16a34a")
	ColorError     = lipgloss.Color("#dc2626")
)

// Mode colors.
var (
	ColorStory    = lipgloss.Color("#3b82f6")
	ColorMinigame = lipgloss.Color("#f59e0b")
	ColorFlash    = lipgloss.Color("#a855f7")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// CategoryColor returns the color for a log category name.
func CategoryColor(category string) lipgloss.Color {
	switch category {
	case "info":
		return ColorInfo
	case "system":
		return ColorSystem
	case "mqtt":
		return ColorMQTT
	case "presenter":
		return ColorPresenter
	case "success":
		return ColorSuccess
	case "error":
		return ColorError
	default:
		return ColorDefault
	}
}

// Indicator renders a filled or hollow dot with a label, green when on.
func Indicator(on bool, onLabel, offLabel string) string {
	if on {
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render("● " + onLabel)
	}
	return lipgloss.NewStyle().Foreground(ColorDanger).Render("○ " + offLabel)
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDisabled = lipgloss.NewStyle().
			Foreground(ColorBorder).
			Strikethrough(true)
)

// PanelStyle is the shared frame of overlay panels.
func PanelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(ColorBorder)
}
