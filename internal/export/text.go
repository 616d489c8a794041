package export

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlignment is returned when the number of active topics does not match
// the number of summaries. Pairing would be undefined, so nothing is written.
var ErrAlignment = errors.New("active topics and summaries are misaligned")

// Format selects an output renderer.
type Format int

const (
	FormatText Format = iota
	FormatMarkdown
	FormatJSON
)

var formatNames = []string{"text", "markdown", "json"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// ParseFormat maps a --format value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown format %q (supported: text, markdown, json)", s)
}

// CheckAlignment reports ErrAlignment unless every active topic has exactly
// one summary to pair with and there is at least one summary.
func CheckAlignment(active []bool, summaries []string) error {
	n := 0
	for _, a := range active {
		if a {
			n++
		}
	}
	if len(summaries) == 0 || n != len(summaries) {
		return fmt.Errorf("%w: %d active, %d summaries", ErrAlignment, n, len(summaries))
	}
	return nil
}

// Text renders the line-oriented output format: every topic on its own line,
// followed by its summary and a blank line when active, or by two newlines
// when inactive. Summaries are consumed in order by the active topics.
func Text(topics []string, active []bool, summaries []string) (string, error) {
	if len(active) != len(topics) {
		return "", fmt.Errorf("%w: %d topics, %d flags", ErrAlignment, len(topics), len(active))
	}
	if err := CheckAlignment(active, summaries); err != nil {
		return "", err
	}

	var b strings.Builder
	next := 0
	for i, topic := range topics {
		b.WriteString(topic)
		b.WriteByte('\n')
		if active[i] {
			b.WriteString(summaries[next])
			b.WriteString("\n\n")
			next++
		} else {
			b.WriteString("\n\n")
		}
	}
	return b.String(), nil
}

// Render dispatches on format.
func Render(format Format, doc Doc) (string, error) {
	switch format {
	case FormatMarkdown:
		return Markdown(doc)
	case FormatJSON:
		return JSON(doc)
	default:
		return Text(doc.Topics, doc.Active, doc.Summaries)
	}
}
