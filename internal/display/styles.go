package display

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the console output.
type Styles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style

	Selected lipgloss.Style
	Option   lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("71")), // muted green
		Failure: lipgloss.NewStyle().
			Foreground(lipgloss.Color("167")), // muted red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),

		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1),
		Option: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Padding(0, 1),
	}
}

// PlainStyles renders no colors nor borders, used for redirected output.
func PlainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{
		Title:    s,
		Success:  s,
		Failure:  s,
		Muted:    s,
		Box:      s,
		Selected: s,
		Option:   s,
	}
}
