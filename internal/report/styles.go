package report

import "github.com/charmbracelet/lipgloss"

// Brand palette shared by the summary and the CLI.
var (
	Primary     = lipgloss.Color("#8BC34A") // Lime Green
	Muted       = lipgloss.Color("#6b7685")
	Destructive = lipgloss.Color("#e53935") // Red
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Info        = lipgloss.Color("#2196F3") // Blue
)

// Styles groups the lipgloss styles used by Summary.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Box     lipgloss.Style
}

// DefaultStyles returns the standard styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true),

		Label: lipgloss.NewStyle().
			Foreground(Info).
			Width(9),

		Muted: lipgloss.NewStyle().
			Foreground(Muted),

		Success: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning),

		Box: lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(Primary),
	}
}
