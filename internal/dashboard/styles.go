package dashboard

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorSecondary = lipgloss.Color("#10B981")
	ColorDanger    = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorBorder    = lipgloss.Color("#374151")
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 2)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	HealthyStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	UnhealthyStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWarning)

	PositiveValue = lipgloss.NewStyle().Foreground(ColorSecondary)
	NegativeValue = lipgloss.NewStyle().Foreground(ColorDanger)
	MutedValue    = lipgloss.NewStyle().Foreground(ColorMuted)
)

// tierStyle maps a capital tier color onto a foreground style.
func tierStyle(color string) lipgloss.Style {
	switch color {
	case "green":
		return PositiveValue
	case "yellow":
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case "red":
		return NegativeValue
	}
	return MutedValue
}

// levelStyle colors a log line by level.
func levelStyle(level string) lipgloss.Style {
	switch level {
	case "error":
		return NegativeValue
	case "warn":
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case "debug":
		return MutedValue
	}
	return lipgloss.NewStyle()
}
