package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const listRows = 8

func newBrowseCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse FILE",
		Short: "Interactively browse function disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(cmd.OutOrStdout()) {
				return fmt.Errorf("browse needs a terminal; use disasm instead")
			}
			l, err := loadFile(args[0], opts)
			if err != nil {
				return err
			}
			d, err := newDisassembler(l.module, opts.styles)
			if err != nil {
				return err
			}
			p := tea.NewProgram(newBrowseModel(d, opts.styles, l.path),
				tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()))
			_, err = p.Run()
			return err
		},
	}
}

type browseModel struct {
	d        *disassembler
	st       styles
	filename string
	funcs    []uint32
	visible  []uint32
	filter   textinput.Model
	view     viewport.Model
	selected int
}

func newBrowseModel(d *disassembler, st styles, filename string) *browseModel {
	ti := textinput.New()
	ti.Placeholder = "filter by name or index"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()

	m := &browseModel{
		d:        d,
		st:       st,
		filename: filename,
		funcs:    d.funcs(),
		filter:   ti,
		view:     viewport.New(80, 10),
	}
	m.applyFilter()
	return m
}

// label is the plain text a function is matched and listed by.
func (m *browseModel) label(funcIdx uint32) string {
	if name := m.d.names[funcIdx]; name != "" {
		return fmt.Sprintf("func[%d] %s", funcIdx, name)
	}
	return fmt.Sprintf("func[%d]", funcIdx)
}

func (m *browseModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for _, idx := range m.funcs {
		if q == "" || strings.Contains(strings.ToLower(m.label(idx)), q) {
			m.visible = append(m.visible, idx)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.refresh()
}

// refresh loads the selected function into the viewport.
func (m *browseModel) refresh() {
	if len(m.visible) == 0 {
		m.view.SetContent(m.st.Dim("no matching functions"))
		return
	}
	m.view.SetContent(strings.Join(m.d.lines(m.visible[m.selected]), "\n"))
	m.view.GotoTop()
}

func (m *browseModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// title, filter, blank, list, blank, help
		chrome := listRows + 5
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-chrome, 3)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.filter.Value() == "" {
				return m, tea.Quit
			}
			m.filter.SetValue("")
			m.applyFilter()
			return m, nil

		case "up", "ctrl+p":
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}
			return m, nil

		case "down", "ctrl+n":
			if m.selected < len(m.visible)-1 {
				m.selected++
				m.refresh()
			}
			return m, nil

		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
	}

	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.applyFilter()
	}
	return m, cmd
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(m.st.Title("wasmdump"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	// Keep the selection inside the visible window of the list.
	start := 0
	if m.selected >= listRows {
		start = m.selected - listRows + 1
	}
	end := min(start+listRows, len(m.visible))
	for i := start; i < end; i++ {
		text := m.label(m.visible[i])
		if i == m.selected {
			b.WriteString(m.st.Name("> " + text))
		} else {
			b.WriteString("  " + text)
		}
		b.WriteString("\n")
	}
	for i := end - start; i < listRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	b.WriteString(m.st.Dim(fmt.Sprintf("%d/%d functions • ↑/↓ select • pgup/pgdown scroll • esc clear/quit",
		len(m.visible), len(m.funcs))))
	return b.String()
}
