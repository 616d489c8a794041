package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/filler/internal/types"
	"github.com/lotas/filler/internal/workspace"
	"github.com/muesli/reflow/wordwrap"
)

// headerLines is the height of the title and candidate block above the
// summary viewport.
const headerLines = 5

// DetailModel shows the selected summary and its candidate picker.
type DetailModel struct {
	Width  int
	Height int
	vp     viewport.Model
}

func NewDetailModel() DetailModel {
	vp := viewport.New(0, 0)
	// Only page keys scroll; j/k belong to the topic list.
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}
	return DetailModel{vp: vp}
}

func (m *DetailModel) SetSize(width, height int) {
	m.Width = width
	m.Height = height
	m.vp.Width = width
	m.vp.Height = height - headerLines
	if m.vp.Height < 1 {
		m.vp.Height = 1
	}
}

// SetSummary replaces the viewport content and scrolls to the top.
func (m *DetailModel) SetSummary(text string) {
	width := m.Width
	if width < 20 {
		width = 20
	}
	m.vp.SetContent(wordwrap.String(text, width))
	m.vp.GotoTop()
}

// Update forwards page keys to the viewport.
func (m DetailModel) Update(msg tea.Msg) (DetailModel, tea.Cmd) {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	pickStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// View renders the detail pane. pick is the candidate being previewed with
// [ and ], or -1.
func (m DetailModel) View(ws *workspace.Workspace, cursor, pick int) string {
	if n, ok := ws.Selected(); ok {
		return m.viewSummary(ws, n, pick)
	}
	return m.viewTopic(ws, cursor)
}

func (m DetailModel) viewSummary(ws *workspace.Workspace, n, pick int) string {
	var b strings.Builder
	candidates := ws.CandidateSets()[n]
	chosen := ws.Chosen()

	b.WriteString(labelStyle.Render("Article") + "\n")
	if pick >= 0 && pick < len(candidates) && candidates[pick] != chosen {
		b.WriteString(pickStyle.Render("→ "+candidates[pick]) + hintStyle.Render("  (enter to use, esc to cancel)") + "\n")
	} else {
		b.WriteString(chosen + "\n")
	}
	b.WriteString(hintStyle.Render(fmt.Sprintf("%d candidates · [ ] to browse", len(candidates))) + "\n")

	topic := ws.SelectedTopic()
	if e, ok := ws.Entry(topic); ok && e.Err != nil {
		b.WriteString(failedStyle.Render("Could not fetch: "+e.Err.Error()) + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	return b.String()
}

func (m DetailModel) viewTopic(ws *workspace.Workspace, i int) string {
	topics := ws.Topics()
	if i < 0 || i >= len(topics) {
		return ""
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render("Topic") + "\n")
	b.WriteString(wordwrap.String(topics[i], m.Width) + "\n\n")

	e, ok := ws.Entry(i)
	switch {
	case ws.Running() && !ok && ws.IsActive(i):
		b.WriteString(hintStyle.Render("Waiting…"))
	case !ok:
		if ws.IsActive(i) {
			b.WriteString(hintStyle.Render("Press f to fetch summaries."))
		} else {
			b.WriteString(hintStyle.Render("Skipped."))
		}
	case e.Status == types.OutcomeReady:
		if !ws.IsActive(i) {
			b.WriteString(hintStyle.Render("Skipped; fetch again to include it."))
		} else if e.Summary == "" {
			b.WriteString(emptyStyle.Render("The article has no summary."))
		} else {
			b.WriteString(hintStyle.Render("Press enter to show the summary."))
		}
	case e.Status == types.OutcomeEmpty:
		b.WriteString(emptyStyle.Render("No article found; topic skipped."))
	default:
		b.WriteString(failedStyle.Render(wordwrap.String(e.Status.String()+": "+errString(e.Err), m.Width)))
	}
	return b.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
