package ui

import "github.com/charmbracelet/lipgloss"

// Theme is a named set of colors for the live view.
type Theme struct {
	Name    string
	Text    string
	Muted   string
	Accent  string
	Success string
	Danger  string
	Surface string
}

var themes = map[string]Theme{
	"Dracula": {
		Name:    "Dracula",
		Text:    "#f8f8f2",
		Muted:   "#6272a4",
		Accent:  "#bd93f9",
		Success: "#50fa7b",
		Danger:  "#ff5555",
		Surface: "#44475a",
	},
	"Plain": {
		Name:    "Plain",
		Text:    "7",
		Muted:   "8",
		Accent:  "6",
		Success: "2",
		Danger:  "1",
		Surface: "0",
	},
}

// themeByName returns the named theme, defaulting to Dracula.
func themeByName(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["Dracula"]
}

// Styles derives the lipgloss styles the view renders with.
type Styles struct {
	Header  lipgloss.Style
	Logo    lipgloss.Style
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Danger  lipgloss.Style
	Help    lipgloss.Style
}

func (t Theme) Styles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Background(lipgloss.Color(t.Surface)).Foreground(lipgloss.Color(t.Text)),
		Logo:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)).Bold(true),
		Text:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)),
		Danger:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)).Italic(true),
	}
}
