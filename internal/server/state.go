package server

import (
	"github.com/lotas/filler/internal/workspace"
)

// TopicPayload is one row of the topic list as the page shows it.
type TopicPayload struct {
	Text   string `json:"text"`
	Active bool   `json:"active"`
	Status string `json:"status"` // pending, ready, empty, resolve-failed, fetch-failed
	Error  string `json:"error,omitempty"`
}

// StatePayload is the full workspace view pushed after every change.
// Summaries, Titles and Candidates are aligned; SummaryTopics maps each
// slot back to its topic index.
type StatePayload struct {
	Topics        []TopicPayload `json:"topics"`
	Summaries     []string       `json:"summaries"`
	Titles        []string       `json:"titles"`
	Candidates    [][]string     `json:"candidates"`
	SummaryTopics []int          `json:"summaryTopics"`
	Selected      int            `json:"selected"` // summary index, -1 for none
	Chosen        string         `json:"chosen,omitempty"`
	Running       bool           `json:"running"`
}

func statePayload(ws *workspace.Workspace) *StatePayload {
	topics := ws.Topics()
	p := &StatePayload{
		Topics:        make([]TopicPayload, len(topics)),
		Summaries:     ws.Summaries(),
		Titles:        ws.Titles(),
		Candidates:    ws.CandidateSets(),
		SummaryTopics: ws.SummaryTopics(),
		Selected:      -1,
		Chosen:        ws.Chosen(),
		Running:       ws.Running(),
	}
	for i, t := range topics {
		tp := TopicPayload{Text: t, Active: ws.IsActive(i), Status: "pending"}
		if e, ok := ws.Entry(i); ok {
			tp.Status = e.Status.String()
			if e.Err != nil {
				tp.Error = e.Err.Error()
			}
		}
		p.Topics[i] = tp
	}
	if n, ok := ws.Selected(); ok {
		p.Selected = n
	}
	return p
}
