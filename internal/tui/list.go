package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/filler/internal/types"
	"github.com/lotas/filler/internal/workspace"
)

// TopicList is the left pane: one row per topic with its active flag and
// run status.
type TopicList struct {
	Cursor int // topic index
	Offset int // scroll offset
	Width  int
	Height int
}

func (m *TopicList) Reset() {
	m.Cursor = 0
	m.Offset = 0
}

// MoveUp moves the cursor up.
func (m *TopicList) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
}

// MoveDown moves the cursor down within n rows.
func (m *TopicList) MoveDown(n int) {
	if m.Cursor < n-1 {
		m.Cursor++
	}
	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 1
	}
	if m.Cursor >= m.Offset+visibleRows {
		m.Offset = m.Cursor - visibleRows + 1
	}
}

var (
	cursorStyle   = lipgloss.NewStyle().Bold(true).Reverse(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	readyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	emptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
)

func statusMarker(e workspace.Entry, ok bool) string {
	if !ok {
		return " "
	}
	switch e.Status {
	case types.OutcomeReady:
		if e.Err != nil {
			return failedStyle.Render("!")
		}
		return readyStyle.Render("✓")
	case types.OutcomeEmpty:
		return emptyStyle.Render("∅")
	case types.OutcomeResolveFailed, types.OutcomeFetchFailed:
		return failedStyle.Render("✗")
	}
	return " "
}

// View renders the visible rows.
func (m TopicList) View(ws *workspace.Workspace) string {
	topics := ws.Topics()
	if len(topics) == 0 {
		return "No topics loaded.\n\nPress o to open a file."
	}

	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 20
	}
	end := m.Offset + visibleRows
	if end > len(topics) {
		end = len(topics)
	}

	selected := ws.SelectedTopic()

	var b strings.Builder
	for i := m.Offset; i < end; i++ {
		check := "[ ]"
		if ws.IsActive(i) {
			check = "[x]"
		}
		e, ok := ws.Entry(i)
		marker := statusMarker(e, ok)

		maxLen := m.Width - 7
		if maxLen < 10 {
			maxLen = 10
		}
		text := topics[i]
		if r := []rune(text); len(r) > maxLen {
			text = string(r[:maxLen-1]) + "…"
		}

		switch {
		case i == selected:
			text = selectedStyle.Render(text)
		case !ws.IsActive(i):
			text = inactiveStyle.Render(text)
		}

		line := check + " " + marker + " " + text
		if i == m.Cursor {
			if pad := m.Width - lipgloss.Width(line); pad > 0 {
				line += strings.Repeat(" ", pad)
			}
			line = cursorStyle.Render(line)
		}

		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
