package workspace

import (
	"fmt"
	"time"

	"github.com/lotas/filler/internal/export"
	"github.com/lotas/filler/internal/pipeline"
	"github.com/lotas/filler/internal/types"
)

// SummaryTopics returns the topic index behind each summary slot: active
// topics with a ready entry, in topic order.
func (w *Workspace) SummaryTopics() []int {
	var idx []int
	for i := range w.topics {
		if !w.active[i] {
			continue
		}
		if e, ok := w.entries[i]; ok && e.Status == types.OutcomeReady {
			idx = append(idx, i)
		}
	}
	return idx
}

// Summaries returns the summary list aligned with SummaryTopics.
func (w *Workspace) Summaries() []string {
	idx := w.SummaryTopics()
	out := make([]string, len(idx))
	for n, i := range idx {
		out[n] = w.entries[i].Summary
	}
	return out
}

// CandidateSets returns the candidate lists aligned with Summaries.
func (w *Workspace) CandidateSets() [][]string {
	idx := w.SummaryTopics()
	out := make([][]string, len(idx))
	for n, i := range idx {
		out[n] = append([]string(nil), w.entries[i].Candidates...)
	}
	return out
}

// Titles returns the title each summary was fetched for.
func (w *Workspace) Titles() []string {
	idx := w.SummaryTopics()
	out := make([]string, len(idx))
	for n, i := range idx {
		out[n] = w.entries[i].Title
	}
	return out
}

// SummaryIndex maps a topic index to its summary slot.
func (w *Workspace) SummaryIndex(topic int) (int, bool) {
	for n, i := range w.SummaryTopics() {
		if i == topic {
			return n, true
		}
	}
	return 0, false
}

// Selectable reports whether a summary slot can be shown in detail. Slots
// whose summary came back empty are not offered.
func (w *Workspace) Selectable(summaryIndex int) bool {
	idx := w.SummaryTopics()
	if summaryIndex < 0 || summaryIndex >= len(idx) {
		return false
	}
	return w.entries[idx[summaryIndex]].Summary != ""
}

// Select makes a summary the displayed one and resets the chosen candidate
// to its best match.
func (w *Workspace) Select(summaryIndex int) error {
	idx := w.SummaryTopics()
	if summaryIndex < 0 || summaryIndex >= len(idx) {
		return fmt.Errorf("select %d of %d: %w", summaryIndex, len(idx), ErrOutOfRange)
	}
	topic := idx[summaryIndex]
	w.selected = topic
	w.chosen = w.entries[topic].Candidates[0]
	return nil
}

// Selected returns the summary slot currently displayed.
func (w *Workspace) Selected() (int, bool) {
	if w.selected < 0 {
		return 0, false
	}
	return w.SummaryIndex(w.selected)
}

// SelectedTopic returns the topic index behind the selection, or -1.
func (w *Workspace) SelectedTopic() int {
	if _, ok := w.Selected(); !ok {
		return -1
	}
	return w.selected
}

// Chosen returns the candidate title chosen for the selected summary.
func (w *Workspace) Chosen() string { return w.chosen }

// Choose records the user's candidate pick immediately and returns the
// request that fetches its summary.
func (w *Workspace) Choose(title string) (pipeline.ReresolveRequest, error) {
	topic := w.SelectedTopic()
	if topic < 0 {
		return pipeline.ReresolveRequest{}, ErrNoSelection
	}
	found := false
	for _, c := range w.entries[topic].Candidates {
		if c == title {
			found = true
			break
		}
	}
	if !found {
		return pipeline.ReresolveRequest{}, fmt.Errorf("choose %q: not a candidate of %q", title, w.topics[topic])
	}
	w.chosen = title
	w.seq++
	w.picks[topic] = w.seq
	return pipeline.ReresolveRequest{Gen: w.gen, Seq: w.seq, Index: topic, Title: title}, nil
}

// ApplyReresolve overwrites the summary of the topic the request was issued
// for. Candidates are never touched. On failure the previous summary stays
// and the error is kept on the entry. A result superseded by a later pick
// for the same topic is dropped.
func (w *Workspace) ApplyReresolve(res types.Reresolved) bool {
	if res.Gen != w.gen || res.Seq != w.picks[res.Index] {
		return false
	}
	e, ok := w.entries[res.Index]
	if !ok || e.Status != types.OutcomeReady {
		return false
	}
	if res.Err != nil {
		e.Err = res.Err
		return true
	}
	e.Summary = res.Summary
	e.Title = res.Title
	e.Err = nil
	return true
}

// Doc builds the export document from the current state.
func (w *Workspace) Doc(source string) export.Doc {
	return export.Doc{
		Source:     source,
		Topics:     w.Topics(),
		Active:     w.Active(),
		Summaries:  w.Summaries(),
		Titles:     w.Titles(),
		Candidates: w.CandidateSets(),
		CreatedAt:  time.Now(),
	}
}

// Render serializes the workspace. It refuses with export.ErrAlignment
// unless every active topic has a summary.
func (w *Workspace) Render(format export.Format, source string) (string, error) {
	return export.Render(format, w.Doc(source))
}

// Stats counts topics by state.
func (w *Workspace) Stats() types.Stats {
	s := types.Stats{Topics: len(w.topics)}
	for i := range w.topics {
		if w.active[i] {
			s.Active++
		}
		e, ok := w.entries[i]
		if !ok {
			if w.active[i] {
				s.Pending++
			}
			continue
		}
		switch {
		case e.Status == types.OutcomeReady:
			s.Ready++
		case e.Status == types.OutcomeEmpty:
			s.Empty++
		case e.Status.Failed():
			s.Failed++
		}
	}
	return s
}
