// Package tui provides an interactive preview of the ellipsis renderer using Bubble Tea.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JoobyPM/ellipsis-render/internal/ellipsis"
)

const maxCutoff = 500

const (
	colorPrimary = "#7D56F4"
	colorDim     = "#666666"
	colorHelp    = "#626262"
	colorWhite   = "#FFFFFF"
	colorGreen   = "#87D787"
	colorYellow  = "#FFD787"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorDim)).
			Width(10)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWhite))

	onStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorGreen)).
		Bold(true)

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorDim))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorYellow))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorPrimary)).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorHelp)).
			MarginTop(1)
)

// ErrTUIUnexpectedModel is returned when the program returns an unexpected model type.
var ErrTUIUnexpectedModel = errors.New("unexpected TUI model type")

// Model is the preview state: the value being typed and the renderer options.
type Model struct {
	input    textinput.Model
	opts     ellipsis.Options
	quitting bool
}

// New creates a preview model. A cutoff below 1 is raised to 1.
func New(opts ellipsis.Options, initial string) Model {
	if opts.Cutoff < 1 {
		opts.Cutoff = 1
	}
	ti := textinput.New()
	ti.Placeholder = "type a value, <b>markup</b> works too"
	ti.Prompt = "› "
	ti.SetValue(initial)
	ti.Focus()

	return Model{input: ti, opts: opts}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up":
			if m.opts.Cutoff < maxCutoff {
				m.opts.Cutoff++
			}
			return m, nil
		case "down":
			if m.opts.Cutoff > 1 {
				m.opts.Cutoff--
			}
			return m, nil
		case "ctrl+w":
			m.opts.WordBreak = !m.opts.WordBreak
			return m, nil
		case "ctrl+e":
			m.opts.EscapeHTML = !m.opts.EscapeHTML
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Options returns the current renderer options.
func (m Model) Options() ellipsis.Options {
	return m.opts
}

// Value returns the current input value.
func (m Model) Value() string {
	return m.input.Value()
}

// Rendered returns the display fragment for the current value.
func (m Model) Rendered() string {
	out := ellipsis.MustNew(m.opts).Render(m.input.Value(), ellipsis.ModeDisplay, nil)
	s, _ := out.(string)
	return s
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("ellipsis preview"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("cutoff", valueStyle.Render(fmt.Sprintf("%d", m.opts.Cutoff)))
	row("wordbreak", toggle(m.opts.WordBreak))
	row("escape", toggle(m.opts.EscapeHTML))
	row("kind", kindStyle.Render(ellipsis.Classify(m.input.Value()).Kind.String()))

	b.WriteString(boxStyle.Render(m.Rendered()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ cutoff • ctrl+w word break • ctrl+e escape • esc quit"))
	return b.String()
}

func toggle(on bool) string {
	if on {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}

// Run starts the preview and returns the final options.
func Run(opts ellipsis.Options, initial string) (ellipsis.Options, error) {
	final, err := tea.NewProgram(New(opts, initial)).Run()
	if err != nil {
		return opts, fmt.Errorf("run preview: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return opts, ErrTUIUnexpectedModel
	}
	return m.Options(), nil
}
