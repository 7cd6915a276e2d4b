// Package picker is the interactive branch chooser behind `cxfinder check -i`.
package picker

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/Iron-Ham/cxfinder/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// Model is the Bubbletea model for the branch picker.
type Model struct {
	branches []gitrepo.Branch
	visible  []int // indexes into branches matching the filter
	cursor   int
	offset   int
	height   int
	width    int
	filter   textinput.Model
	styles   *styles.Set
	now      func() time.Time
	base     string

	chosen   string
	quitting bool
}

// New creates a picker over branches. base is shown in the header.
func New(branches []gitrepo.Branch, base string) Model {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "/ "
	ti.CharLimit = 200
	ti.Width = 40
	ti.Focus()

	m := Model{
		branches: branches,
		filter:   ti,
		styles:   styles.New(nil),
		now:      time.Now,
		base:     base,
		height:   10,
	}
	m.applyFilter()
	return m
}

// Chosen returns the selected branch, or "" if the picker was canceled.
func (m Model) Chosen() string {
	return m.chosen
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		// Header, filter line and help bar take five rows.
		m.height = max(msg.Height-5, 1)
		m.ensureVisible()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			if len(m.visible) > 0 {
				m.chosen = m.branches[m.visible[m.cursor]].Name
			}
			m.quitting = true
			return m, tea.Quit

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			m.ensureVisible()
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}
			m.ensureVisible()
			return m, nil

		case "home":
			m.cursor = 0
			m.ensureVisible()
			return m, nil

		case "end":
			m.cursor = max(len(m.visible)-1, 0)
			m.ensureVisible()
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.applyFilter()
	}
	return m, cmd
}

// applyFilter recomputes the visible rows from the filter text, a
// case-insensitive substring match.
func (m *Model) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = make([]int, 0, len(m.branches))
	for i, b := range m.branches {
		if q == "" || strings.Contains(strings.ToLower(b.Name), q) {
			m.visible = append(m.visible, i)
		}
	}
	m.cursor = 0
	m.offset = 0
}

// ensureVisible scrolls so the cursor row is on screen.
func (m *Model) ensureVisible() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(fmt.Sprintf("Check a branch against %s", m.base)))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString(m.styles.Muted.Render("  no matching branches"))
		b.WriteString("\n")
	}

	end := min(m.offset+m.height, len(m.visible))
	now := m.now()
	for row := m.offset; row < end; row++ {
		br := m.branches[m.visible[row]]
		age := m.styles.Muted.Render(humanize.RelTime(br.When, now, "ago", "from now"))
		if row == m.cursor {
			b.WriteString(m.styles.ItemSelected.Render(br.Name))
		} else {
			b.WriteString(m.styles.Item.Render(br.Name))
		}
		b.WriteString(" ")
		b.WriteString(age)
		b.WriteString("\n")
	}

	help := fmt.Sprintf("%s select  %s move  %s cancel",
		m.styles.HelpKey.Render("enter"),
		m.styles.HelpKey.Render("↑/↓"),
		m.styles.HelpKey.Render("esc"),
	)
	b.WriteString(m.styles.HelpBar.Render(help))
	return b.String()
}

// Run shows the picker on the terminal and returns the chosen branch.
// It fails with errors.ErrCanceled when the user backs out.
func Run(branches []gitrepo.Branch, base string, in io.Reader, out io.Writer) (string, error) {
	if len(branches) == 0 {
		return "", errors.NewValidationError("no candidate branches to choose from")
	}

	p := tea.NewProgram(New(branches, base), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("branch picker failed: %w", err)
	}

	chosen := final.(Model).Chosen()
	if chosen == "" {
		return "", errors.ErrCanceled
	}
	return chosen, nil
}
