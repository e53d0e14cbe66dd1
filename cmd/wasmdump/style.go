package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// styles renders CLI output. The zero value renders plain text.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	name    lipgloss.Style
	typ     lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	dim     lipgloss.Style
	enabled bool
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newStyles(w io.Writer, color bool) styles {
	if !color || !isTerminal(w) {
		return styles{}
	}
	return styles{
		enabled: true,
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87CEEB")),
		name:    lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		typ:     lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s styles) Title(text string) string   { return s.render(s.title, text) }
func (s styles) Section(text string) string { return s.render(s.section, text) }
func (s styles) Name(text string) string    { return s.render(s.name, text) }
func (s styles) Type(text string) string    { return s.render(s.typ, text) }
func (s styles) OK(text string) string      { return s.render(s.ok, text) }
func (s styles) Err(text string) string     { return s.render(s.err, text) }
func (s styles) Dim(text string) string     { return s.render(s.dim, text) }
