// Package tui is the terminal shell: a topic list, a summary pane with a
// candidate picker, and the file open/write prompts.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/filler/internal/applog"
	"github.com/lotas/filler/internal/export"
	"github.com/lotas/filler/internal/pipeline"
	"github.com/lotas/filler/internal/types"
	"github.com/lotas/filler/internal/workspace"
)

// --- Messages ---

type fileLoadedMsg struct {
	path string
	data []byte
	err  error
}

type fileWrittenMsg struct {
	path string
	err  error
}

type resultMsg struct{ res types.Result }

type runDoneMsg struct{ gen uint64 }

type reresolvedMsg struct{ res types.Reresolved }

// --- Model ---

type Model struct {
	// Data
	ctx  context.Context
	src  pipeline.Source
	ws   *workspace.Workspace
	path string // input file
	lang string

	// UI state
	list    TopicList
	detail  DetailModel
	prompt  PathPrompt
	spinner spinner.Model
	pick    int // candidate previewed with [ and ], -1 for none
	status  string
	isErr   bool
	width   int
	height  int

	// Current run
	results   <-chan types.Result
	runGen    uint64
	cancelRun context.CancelFunc
}

func NewModel(ctx context.Context, src pipeline.Source, path, lang string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:     ctx,
		src:     src,
		ws:      workspace.New(),
		path:    path,
		lang:    lang,
		detail:  NewDetailModel(),
		prompt:  NewPathPrompt(),
		spinner: sp,
		pick:    -1,
	}
}

func (m Model) Init() tea.Cmd {
	if m.path != "" {
		return readFile(m.path)
	}
	return nil
}

func readFile(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		return fileLoadedMsg{path: path, data: data, err: err}
	}
}

func writeFile(path, text string) tea.Cmd {
	return func() tea.Msg {
		err := os.WriteFile(path, []byte(text), 0o644)
		return fileWrittenMsg{path: path, err: err}
	}
}

// waitForResult reads one result off the run's channel. It is re-armed after
// every resultMsg so the UI takes results one frame at a time.
func waitForResult(ch <-chan types.Result, gen uint64) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return runDoneMsg{gen: gen}
		}
		return resultMsg{res: res}
	}
}

func reresolve(ctx context.Context, src pipeline.Source, req pipeline.ReresolveRequest) tea.Cmd {
	return func() tea.Msg {
		return reresolvedMsg{res: pipeline.Reresolve(ctx, src, req)}
	}
}

// DefaultOutPath is out.txt next to the input file.
func DefaultOutPath(input string) string {
	if input == "" {
		return "out.txt"
	}
	return filepath.Join(filepath.Dir(input), "out.txt")
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.isErr = false
}

func (m *Model) setError(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.isErr = true
}

func (m *Model) stopRun() {
	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}
	m.results = nil
	m.runGen = 0
}

func (m Model) startRun() (Model, tea.Cmd) {
	req, err := m.ws.BeginRun()
	if errors.Is(err, workspace.ErrRunInProgress) {
		return m, nil
	}
	if err != nil {
		m.setError("Cannot fetch: %v", err)
		return m, nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelRun = cancel
	m.runGen = req.Gen
	m.results = pipeline.Start(ctx, m.src, req)
	m.pick = -1
	m.setStatus("Fetching %d topics", m.ws.Stats().Active)
	return m, tea.Batch(waitForResult(m.results, m.runGen), m.spinner.Tick)
}

func (m *Model) showSelected() {
	if n, ok := m.ws.Selected(); ok {
		m.detail.SetSummary(m.ws.Summaries()[n])
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listWidth := m.width * 40 / 100
		detailWidth := m.width - listWidth - 4 // borders
		paneHeight := m.height - 4              // top bar + bottom bar + borders
		m.list.Width = listWidth
		m.list.Height = paneHeight
		m.detail.SetSize(detailWidth, paneHeight)
		m.showSelected()
		return m, nil

	case spinner.TickMsg:
		if !m.ws.Running() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fileLoadedMsg:
		if msg.err != nil {
			m.setError("Cannot open %s: %v", msg.path, msg.err)
			return m, nil
		}
		if err := m.ws.Load(msg.data); err != nil {
			m.setError("Cannot open %s: %v", msg.path, err)
			return m, nil
		}
		m.stopRun()
		m.path = msg.path
		m.list.Reset()
		m.pick = -1
		m.setStatus("Loaded %d topics from %s", len(m.ws.Topics()), filepath.Base(msg.path))
		if !strings.EqualFold(filepath.Ext(msg.path), ".txt") {
			m.status += " (not a .txt file)"
		}
		applog.Info("tui.load", "path", msg.path, "topics", len(m.ws.Topics()))
		return m, nil

	case fileWrittenMsg:
		if msg.err != nil {
			m.setError("Cannot write %s: %v", msg.path, msg.err)
			applog.Error("tui.write", msg.err, "path", msg.path)
			return m, nil
		}
		m.setStatus("Wrote %s", msg.path)
		applog.Info("tui.write", "path", msg.path)
		return m, nil

	case resultMsg:
		if msg.res.Gen != m.runGen || m.results == nil {
			return m, nil
		}
		m.ws.Apply(msg.res)
		return m, waitForResult(m.results, m.runGen)

	case runDoneMsg:
		if msg.gen != m.runGen {
			return m, nil
		}
		m.ws.EndRun(msg.gen)
		m.stopRun()
		st := m.ws.Stats()
		m.setStatus("Done: %d ready · %d not found · %d failed", st.Ready, st.Empty, st.Failed)
		return m, nil

	case reresolvedMsg:
		if !m.ws.ApplyReresolve(msg.res) {
			return m, nil
		}
		if msg.res.Err != nil {
			m.setError("Cannot fetch %q: %v", msg.res.Title, msg.res.Err)
		} else {
			m.setStatus("Showing %s", msg.res.Title)
		}
		if m.ws.SelectedTopic() == msg.res.Index {
			m.showSelected()
		}
		return m, nil

	case tea.KeyMsg:
		if m.prompt.Active() {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompt.Close()
		return m, nil
	case "ctrl+c":
		m.stopRun()
		return m, tea.Quit
	case "enter":
		kind, path := m.prompt.Kind, m.prompt.Value()
		m.prompt.Close()
		if path == "" {
			return m, nil
		}
		if kind == promptOpen {
			return m, readFile(path)
		}
		text, err := m.ws.Render(export.FormatText, m.path)
		if err != nil {
			m.setError("Cannot write: %v", err)
			return m, nil
		}
		return m, writeFile(path, text)
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.stopRun()
		return m, tea.Quit
	case "up", "k":
		m.list.MoveUp()
		m.pick = -1
	case "down", "j":
		m.list.MoveDown(len(m.ws.Topics()))
		m.pick = -1
	case " ":
		if err := m.ws.ToggleActive(m.list.Cursor); err != nil {
			return m, nil
		}
	case "f":
		return m.startRun()
	case "enter":
		if m.pick >= 0 {
			return m.applyPick()
		}
		n, ok := m.ws.SummaryIndex(m.list.Cursor)
		if !ok || !m.ws.Selectable(n) {
			return m, nil
		}
		if err := m.ws.Select(n); err != nil {
			return m, nil
		}
		m.showSelected()
	case "[", "]":
		m.cyclePick(msg.String() == "]")
	case "esc":
		m.pick = -1
	case "o":
		cmd := m.prompt.Open(promptOpen, m.path, m.width)
		return m, cmd
	case "w":
		cmd := m.prompt.Open(promptWrite, DefaultOutPath(m.path), m.width)
		return m, cmd
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

// cyclePick moves the candidate preview forward or back, starting from the
// chosen title.
func (m *Model) cyclePick(forward bool) {
	n, ok := m.ws.Selected()
	if !ok {
		return
	}
	candidates := m.ws.CandidateSets()[n]
	if len(candidates) < 2 {
		return
	}

	cur := m.pick
	if cur < 0 {
		cur = 0
		for i, c := range candidates {
			if c == m.ws.Chosen() {
				cur = i
				break
			}
		}
	}
	if forward {
		cur = (cur + 1) % len(candidates)
	} else {
		cur = (cur - 1 + len(candidates)) % len(candidates)
	}
	m.pick = cur
}

func (m Model) applyPick() (tea.Model, tea.Cmd) {
	n, ok := m.ws.Selected()
	pick := m.pick
	m.pick = -1
	if !ok {
		return m, nil
	}
	candidates := m.ws.CandidateSets()[n]
	if pick >= len(candidates) || candidates[pick] == m.ws.Chosen() {
		return m, nil
	}

	req, err := m.ws.Choose(candidates[pick])
	if err != nil {
		m.setError("%v", err)
		return m, nil
	}
	m.setStatus("Fetching %s", req.Title)
	return m, reresolve(m.ctx, m.src, req)
}

func (m Model) View() string {
	topBarStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	statsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	name := "no file"
	if m.path != "" {
		name = filepath.Base(m.path)
	}
	st := m.ws.Stats()
	stats := fmt.Sprintf("%d topics · %d active", st.Topics, st.Active)
	if st.Ready+st.Empty+st.Failed > 0 {
		stats += fmt.Sprintf(" · %d ready", st.Ready)
	}
	if st.Empty > 0 {
		stats += fmt.Sprintf(" · %d not found", st.Empty)
	}
	if st.Failed > 0 {
		stats += fmt.Sprintf(" · %d failed", st.Failed)
	}
	if m.ws.Running() {
		stats += " · " + m.spinner.View() + " fetching"
	}
	topBar := topBarStyle.Render("filler ["+m.lang+"] "+name) + statsStyle.Render(stats)

	listBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.list.Width).
		Height(m.list.Height)

	detailBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.detail.Width).
		Height(m.detail.Height)

	left := listBorder.Render(m.list.View(m.ws))
	right := detailBorder.Render(m.detail.View(m.ws, m.list.Cursor, m.pick))
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	var bottomBar string
	if m.prompt.Active() {
		bottomBar = m.prompt.View()
	} else {
		bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
		help := "o open · space toggle · f fetch · enter show · [ ] article · w write · pgup/pgdn scroll · q quit"
		if m.status != "" {
			style := lipgloss.NewStyle().Padding(0, 1)
			if m.isErr {
				style = style.Foreground(lipgloss.Color("196"))
			}
			bottomBar = style.Render(m.status) + bottomBarStyle.Render(help)
		} else {
			bottomBar = bottomBarStyle.Render(help)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, topBar, panes, bottomBar)
}
