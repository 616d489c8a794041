package export

import (
	"encoding/json"
	"time"
)

type jsonExport struct {
	Source    string      `json:"source,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Topics    []jsonTopic `json:"topics"`
}

type jsonTopic struct {
	Topic      string   `json:"topic"`
	Active     bool     `json:"active"`
	Title      string   `json:"title,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// JSON formats the document as a JSON array of topics.
func JSON(d Doc) (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}

	out := jsonExport{
		Source:    d.Source,
		CreatedAt: d.CreatedAt,
		Topics:    make([]jsonTopic, 0, len(d.Topics)),
	}

	next := 0
	for i, topic := range d.Topics {
		jt := jsonTopic{Topic: topic, Active: d.Active[i]}
		if d.Active[i] {
			jt.Summary = d.Summaries[next]
			if next < len(d.Titles) {
				jt.Title = d.Titles[next]
			}
			if next < len(d.Candidates) {
				jt.Candidates = d.Candidates[next]
			}
			next++
		}
		out.Topics = append(out.Topics, jt)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
