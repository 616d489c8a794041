package export

import (
	"fmt"
	"strings"
	"time"
)

// Doc carries everything the richer formats need. Summaries, Titles and
// Candidates are aligned with each other and with the active topics.
type Doc struct {
	Source     string
	Topics     []string
	Active     []bool
	Summaries  []string
	Titles     []string
	Candidates [][]string
	CreatedAt  time.Time
}

func (d Doc) check() error {
	if len(d.Active) != len(d.Topics) {
		return fmt.Errorf("%w: %d topics, %d flags", ErrAlignment, len(d.Topics), len(d.Active))
	}
	if err := CheckAlignment(d.Active, d.Summaries); err != nil {
		return err
	}
	if len(d.Titles) != 0 && len(d.Titles) != len(d.Summaries) {
		return fmt.Errorf("%w: %d titles, %d summaries", ErrAlignment, len(d.Titles), len(d.Summaries))
	}
	return nil
}

// Markdown formats the document with one section per topic.
func Markdown(d Doc) (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}

	var b strings.Builder
	heading := "Summaries"
	if d.Source != "" {
		heading += ": " + d.Source
	}
	fmt.Fprintf(&b, "# %s\n", heading)
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "> Generated %s\n", d.CreatedAt.Format("2006-01-02 15:04"))
	}

	next := 0
	for i, topic := range d.Topics {
		fmt.Fprintf(&b, "\n## %s\n\n", topic)
		if !d.Active[i] {
			b.WriteString("_skipped_\n")
			continue
		}
		if next < len(d.Titles) && d.Titles[next] != "" && d.Titles[next] != topic {
			fmt.Fprintf(&b, "*%s*\n\n", d.Titles[next])
		}
		b.WriteString(d.Summaries[next])
		b.WriteByte('\n')
		next++
	}

	return b.String(), nil
}
