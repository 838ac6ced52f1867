package console

import "github.com/charmbracelet/lipgloss"

type styles struct {
	prompt     lipgloss.Style
	heading    lipgloss.Style
	faint      lipgloss.Style
	warning    lipgloss.Style
	warningTag lipgloss.Style
	critical   lipgloss.Style
	pass       lipgloss.Style
	fail       lipgloss.Style
	unknown    lipgloss.Style
	header     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		prompt:  r.NewStyle().Bold(true),
		heading: r.NewStyle().Bold(true).Underline(true),
		faint:   r.NewStyle().Faint(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		warningTag: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("214")),
		critical: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("124")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1),
		pass:    r.NewStyle().Foreground(lipgloss.Color("42")),
		fail:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		unknown: r.NewStyle().Foreground(lipgloss.Color("214")),
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
	}
}
