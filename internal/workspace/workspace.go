// Package workspace holds the topic list and everything derived from it:
// active flags, per-topic summaries and candidates, and the current
// selection. A Workspace is not safe for concurrent use; it is owned by a
// single control loop, and network results are applied to it as values.
package workspace

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lotas/filler/internal/pipeline"
	"github.com/lotas/filler/internal/types"
)

var (
	ErrDecode        = errors.New("input is not valid UTF-8 text")
	ErrNoTopics      = errors.New("no topics loaded")
	ErrRunInProgress = errors.New("a summary run is already in progress")
	ErrOutOfRange    = errors.New("index out of range")
	ErrNoSelection   = errors.New("no summary selected")
)

// Entry is what one pass produced for a single topic. Candidates and
// Summary are set together, and only when Status is ready.
type Entry struct {
	Status     types.Outcome
	Candidates []string
	Title      string
	Summary    string
	Err        error
}

// Workspace is the application state shared by every shell.
type Workspace struct {
	topics  []string
	active  []bool
	entries map[int]*Entry

	selected int // topic index, -1 for none
	chosen   string

	running bool
	gen     uint64

	seq   uint64
	picks map[int]uint64 // topic index -> seq of its latest pick
}

func New() *Workspace {
	return &Workspace{entries: make(map[int]*Entry), picks: make(map[int]uint64), selected: -1}
}

// ParseTopics splits text into trimmed, non-empty lines.
func ParseTopics(data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, ErrDecode
	}
	var topics []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			topics = append(topics, line)
		}
	}
	return topics, nil
}

// Load replaces the topic list and resets all derived state. On a decode
// error nothing changes.
func (w *Workspace) Load(data []byte) error {
	topics, err := ParseTopics(data)
	if err != nil {
		return err
	}
	w.topics = topics
	w.active = make([]bool, len(topics))
	for i := range w.active {
		w.active[i] = true
	}
	w.entries = make(map[int]*Entry)
	w.picks = make(map[int]uint64)
	w.selected = -1
	w.chosen = ""
	w.running = false
	w.gen++
	return nil
}

// Topics returns a copy of the topic list.
func (w *Workspace) Topics() []string {
	return append([]string(nil), w.topics...)
}

// Active returns a copy of the active flags.
func (w *Workspace) Active() []bool {
	return append([]bool(nil), w.active...)
}

func (w *Workspace) IsActive(i int) bool {
	return i >= 0 && i < len(w.active) && w.active[i]
}

// ToggleActive flips a topic's active flag. Summaries are left alone; they
// are only rebuilt by the next run.
func (w *Workspace) ToggleActive(i int) error {
	if i < 0 || i >= len(w.active) {
		return fmt.Errorf("toggle %d: %w", i, ErrOutOfRange)
	}
	w.active[i] = !w.active[i]
	return nil
}

// Entry returns the result recorded for a topic, if any.
func (w *Workspace) Entry(i int) (Entry, bool) {
	e, ok := w.entries[i]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (w *Workspace) Running() bool { return w.running }

func (w *Workspace) Gen() uint64 { return w.gen }

// BeginRun marks a pass as started and returns the snapshot it should work
// on. The previous pass's entries and the selection are discarded.
func (w *Workspace) BeginRun() (pipeline.Request, error) {
	if w.running {
		return pipeline.Request{}, ErrRunInProgress
	}
	if len(w.topics) == 0 {
		return pipeline.Request{}, ErrNoTopics
	}
	w.gen++
	w.running = true
	w.entries = make(map[int]*Entry)
	w.picks = make(map[int]uint64)
	w.selected = -1
	w.chosen = ""
	return pipeline.Request{Gen: w.gen, Topics: w.Topics(), Active: w.Active()}, nil
}

// EndRun clears the in-progress flag for the given generation.
func (w *Workspace) EndRun(gen uint64) {
	if gen == w.gen {
		w.running = false
	}
}

// Apply records one pipeline result. Results from an older generation are
// dropped and Apply reports false.
func (w *Workspace) Apply(res types.Result) bool {
	if res.Gen != w.gen || res.Index < 0 || res.Index >= len(w.topics) {
		return false
	}
	switch res.Outcome {
	case types.OutcomeReady:
		w.entries[res.Index] = &Entry{
			Status:     types.OutcomeReady,
			Candidates: append([]string(nil), res.Candidates...),
			Title:      res.Title,
			Summary:    res.Summary,
		}
	case types.OutcomeEmpty:
		w.active[res.Index] = false
		w.entries[res.Index] = &Entry{Status: types.OutcomeEmpty}
	default:
		w.entries[res.Index] = &Entry{Status: res.Outcome, Title: res.Title, Err: res.Err}
	}
	return true
}
