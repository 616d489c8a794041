package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeSource struct {
	results   map[string][]string
	summaries map[string]string
}

func (s fakeSource) Search(ctx context.Context, q string) ([]string, error) {
	return s.results[q], nil
}

func (s fakeSource) Summary(ctx context.Context, title string) (string, error) {
	body, ok := s.summaries[title]
	if !ok {
		return "", errors.New("page not found")
	}
	return body, nil
}

func animals() fakeSource {
	return fakeSource{
		results: map[string][]string{
			"Cat": {"Cat", "Cat (film)", "Cats (musical)"},
			"Dog": {"Dog"},
		},
		summaries: map[string]string{
			"Cat":            "A cat.",
			"Cat (film)":     "A film.",
			"Cats (musical)": "A musical.",
			"Dog":            "A dog.",
		},
	}
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func loaded(t *testing.T, text string) Model {
	t.Helper()
	m := NewModel(context.Background(), animals(), "", "en")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	path := filepath.Join(t.TempDir(), "topics.txt")
	m, _ = update(t, m, fileLoadedMsg{path: path, data: []byte(text)})
	return m
}

// drain feeds every result of the current run back through Update, the
// way the program loop would.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for m.results != nil {
		msg := waitForResult(m.results, m.runGen)()
		m, _ = update(t, m, msg)
	}
	return m
}

func fetched(t *testing.T, text string) Model {
	t.Helper()
	m := loaded(t, text)
	m, cmd := update(t, m, keyPress("f"))
	if cmd == nil {
		t.Fatal("f should start a run")
	}
	return drain(t, m)
}

func TestLoad(t *testing.T) {
	m := loaded(t, "  Cat \n\nDog\n")
	if got := m.ws.Topics(); len(got) != 2 || got[0] != "Cat" {
		t.Errorf("topics = %q", got)
	}
	if !strings.Contains(m.status, "Loaded 2 topics") {
		t.Errorf("status = %q", m.status)
	}
}

func TestLoad_WarnsOnNonTxt(t *testing.T) {
	m := loaded(t, "Cat\n")
	m, _ = update(t, m, fileLoadedMsg{path: "notes.md", data: []byte("Dog\n")})
	if !strings.Contains(m.status, "not a .txt file") {
		t.Errorf("status = %q", m.status)
	}
	if got := m.ws.Topics(); len(got) != 1 || got[0] != "Dog" {
		t.Errorf("topics = %q, want file loaded anyway", got)
	}
}

func TestLoad_InvalidUTF8KeepsState(t *testing.T) {
	m := loaded(t, "Cat\n")
	m, _ = update(t, m, fileLoadedMsg{path: "bad.txt", data: []byte{0xff, 0xfe}})
	if len(m.ws.Topics()) != 1 || !m.isErr {
		t.Errorf("topics = %q, isErr = %v", m.ws.Topics(), m.isErr)
	}
}

func TestToggleBeforeFetch(t *testing.T) {
	m := loaded(t, "Cat\nDog\n")
	m, _ = update(t, m, keyPress("j"))
	m, _ = update(t, m, keyPress(" "))
	if m.ws.IsActive(1) {
		t.Error("Dog should be inactive after space")
	}

	m, _ = update(t, m, keyPress("f"))
	m = drain(t, m)
	if got := m.ws.Summaries(); len(got) != 1 || got[0] != "A cat." {
		t.Errorf("summaries = %q", got)
	}
}

func TestFetchStreamsAndFinishes(t *testing.T) {
	m := loaded(t, "Cat\nXyzzy\nDog\n")
	m, _ = update(t, m, keyPress("f"))
	if !m.ws.Running() {
		t.Fatal("expected running")
	}

	// First result is applied before the run is over.
	m, cmd := update(t, m, waitForResult(m.results, m.runGen)())
	if cmd == nil {
		t.Fatal("listener should be re-armed after a result")
	}
	if got := m.ws.Summaries(); len(got) != 1 {
		t.Errorf("after first result summaries = %q", got)
	}

	m = drain(t, m)
	if m.ws.Running() {
		t.Error("run should be over")
	}
	if m.ws.IsActive(1) {
		t.Error("Xyzzy should be deactivated")
	}
	if !strings.Contains(m.status, "2 ready") || !strings.Contains(m.status, "1 not found") {
		t.Errorf("status = %q", m.status)
	}
}

func TestFetchIgnoredWhileRunning(t *testing.T) {
	m := loaded(t, "Cat\n")
	m, _ = update(t, m, keyPress("f"))
	ch := m.results
	m, cmd := update(t, m, keyPress("f"))
	if cmd != nil || m.results != ch {
		t.Error("second f should be ignored while running")
	}
	drain(t, m)
}

func TestStaleResultsDroppedAfterReload(t *testing.T) {
	m := loaded(t, "Cat\n")
	m, _ = update(t, m, keyPress("f"))
	res := waitForResult(m.results, m.runGen)()

	m, _ = update(t, m, fileLoadedMsg{path: "other.txt", data: []byte("Dog\n")})
	m, cmd := update(t, m, res)
	if cmd != nil {
		t.Error("stale result should not re-arm the listener")
	}
	if len(m.ws.Summaries()) != 0 {
		t.Errorf("summaries = %q, want none", m.ws.Summaries())
	}
}

func TestSelectAndChooseCandidate(t *testing.T) {
	m := fetched(t, "Cat\nDog\n")

	m, _ = update(t, m, keyPress("enter"))
	if n, ok := m.ws.Selected(); !ok || n != 0 {
		t.Fatalf("Selected = %d, %v", n, ok)
	}
	if m.ws.Chosen() != "Cat" {
		t.Errorf("chosen = %q", m.ws.Chosen())
	}

	m, _ = update(t, m, keyPress("]"))
	m, _ = update(t, m, keyPress("]"))
	if m.pick != 2 {
		t.Fatalf("pick = %d, want 2", m.pick)
	}
	m, _ = update(t, m, keyPress("["))
	if m.pick != 1 {
		t.Fatalf("pick = %d, want 1", m.pick)
	}

	m, cmd := update(t, m, keyPress("enter"))
	if cmd == nil {
		t.Fatal("enter on a pick should start a re-resolve")
	}
	if m.ws.Chosen() != "Cat (film)" {
		t.Errorf("chosen = %q, want immediate update", m.ws.Chosen())
	}

	m, _ = update(t, m, cmd())
	if got := m.ws.Summaries(); got[0] != "A film." || got[1] != "A dog." {
		t.Errorf("summaries = %q", got)
	}
	if got := m.ws.CandidateSets()[0]; len(got) != 3 || got[0] != "Cat" {
		t.Errorf("candidates changed: %q", got)
	}
}

func TestLatePickResultIgnored(t *testing.T) {
	m := fetched(t, "Cat\n")
	m, _ = update(t, m, keyPress("enter"))

	m, _ = update(t, m, keyPress("]"))
	m, first := update(t, m, keyPress("enter"))
	m, _ = update(t, m, keyPress("]"))
	m, second := update(t, m, keyPress("enter"))
	if first == nil || second == nil {
		t.Fatal("each pick should start a re-resolve")
	}
	if m.ws.Chosen() != "Cats (musical)" {
		t.Fatalf("chosen = %q", m.ws.Chosen())
	}

	m, _ = update(t, m, second())
	m, _ = update(t, m, first())
	if got := m.ws.Summaries()[0]; got != "A musical." {
		t.Errorf("summary = %q, want the latest pick's", got)
	}
	if got := m.ws.Titles()[0]; got != m.ws.Chosen() {
		t.Errorf("title = %q, chosen = %q", got, m.ws.Chosen())
	}
}

func TestChooseFailureKeepsSummary(t *testing.T) {
	m := fetched(t, "Cat\n")
	m, _ = update(t, m, keyPress("enter"))

	src := animals()
	delete(src.summaries, "Cats (musical)")
	m.src = src

	m, _ = update(t, m, keyPress("["))
	m, cmd := update(t, m, keyPress("enter"))
	m, _ = update(t, m, cmd())

	if got := m.ws.Summaries()[0]; got != "A cat." {
		t.Errorf("summary = %q, want previous kept", got)
	}
	if !m.isErr {
		t.Errorf("expected error status, got %q", m.status)
	}
}

func TestEscCancelsPick(t *testing.T) {
	m := fetched(t, "Cat\n")
	m, _ = update(t, m, keyPress("enter"))
	m, _ = update(t, m, keyPress("]"))
	m, _ = update(t, m, keyPress("esc"))
	if m.pick != -1 {
		t.Errorf("pick = %d", m.pick)
	}
}

func TestWrite(t *testing.T) {
	m := fetched(t, "Cat\nXyzzy\nDog\n")
	out := filepath.Join(t.TempDir(), "result.txt")

	m, _ = update(t, m, keyPress("w"))
	if !m.prompt.Active() {
		t.Fatal("w should open the prompt")
	}
	if got := m.prompt.Value(); filepath.Base(got) != "out.txt" {
		t.Errorf("default path = %q", got)
	}
	m.prompt.input.SetValue(out)

	m, cmd := update(t, m, keyPress("enter"))
	if cmd == nil {
		t.Fatalf("expected write command, status %q", m.status)
	}
	m, _ = update(t, m, cmd())

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "Cat\nA cat.\n\nXyzzy\n\n\nDog\nA dog.\n\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
	if !strings.HasPrefix(m.status, "Wrote") {
		t.Errorf("status = %q", m.status)
	}
}

func TestWriteRefusedBeforeFetch(t *testing.T) {
	m := loaded(t, "Cat\n")
	m, _ = update(t, m, keyPress("w"))
	m, cmd := update(t, m, keyPress("enter"))
	if cmd != nil {
		t.Error("write should be refused")
	}
	if !m.isErr || !strings.Contains(m.status, "Cannot write") {
		t.Errorf("status = %q", m.status)
	}
}

func TestWriteRefusedWhenSkippedTopicReactivated(t *testing.T) {
	m := fetched(t, "Cat\nXyzzy\nDog\n")
	m, _ = update(t, m, keyPress("j"))
	m, _ = update(t, m, keyPress(" ")) // Xyzzy has no summary
	m, _ = update(t, m, keyPress("w"))
	m, cmd := update(t, m, keyPress("enter"))
	if cmd != nil {
		t.Error("write should be refused")
	}
	if !m.isErr {
		t.Errorf("status = %q", m.status)
	}
}

func TestWriteAfterDeactivatingFetchedTopic(t *testing.T) {
	m := fetched(t, "Cat\nDog\n")
	m, _ = update(t, m, keyPress("j"))
	m, _ = update(t, m, keyPress(" "))

	out := filepath.Join(t.TempDir(), "out.txt")
	m, _ = update(t, m, keyPress("w"))
	m.prompt.input.SetValue(out)
	m, cmd := update(t, m, keyPress("enter"))
	if cmd == nil {
		t.Fatalf("write should succeed, status %q", m.status)
	}
	cmd()

	data, _ := os.ReadFile(out)
	if want := "Cat\nA cat.\n\nDog\n\n\n"; string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestDefaultOutPath(t *testing.T) {
	if got := DefaultOutPath(""); got != "out.txt" {
		t.Errorf("DefaultOutPath(\"\") = %q", got)
	}
	if got := DefaultOutPath("/tmp/x/topics.txt"); got != "/tmp/x/out.txt" {
		t.Errorf("got %q", got)
	}
}

func TestView_Renders(t *testing.T) {
	m := fetched(t, "Cat\nXyzzy\n")
	m, _ = update(t, m, keyPress("enter"))
	v := m.View()
	for _, want := range []string{"Cat", "A cat.", "candidates"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
