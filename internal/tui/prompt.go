package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type promptKind int

const (
	promptNone promptKind = iota
	promptOpen
	promptWrite
)

// PathPrompt asks for a file path in the bottom bar.
type PathPrompt struct {
	Kind  promptKind
	input textinput.Model
}

func NewPathPrompt() PathPrompt {
	ti := textinput.New()
	ti.CharLimit = 4096
	return PathPrompt{input: ti}
}

func (p *PathPrompt) Open(kind promptKind, value string, width int) tea.Cmd {
	p.Kind = kind
	switch kind {
	case promptOpen:
		p.input.Prompt = "Open: "
	case promptWrite:
		p.input.Prompt = "Write to: "
	}
	p.input.Width = width - len(p.input.Prompt) - 4
	p.input.SetValue(value)
	p.input.CursorEnd()
	return p.input.Focus()
}

func (p *PathPrompt) Close() {
	p.Kind = promptNone
	p.input.Blur()
}

func (p PathPrompt) Active() bool { return p.Kind != promptNone }

func (p PathPrompt) Value() string { return p.input.Value() }

func (p PathPrompt) Update(msg tea.Msg) (PathPrompt, tea.Cmd) {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p PathPrompt) View() string {
	return lipgloss.NewStyle().Padding(0, 1).Render(p.input.View())
}
