package export

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleDoc() Doc {
	return Doc{
		Source:     "topics.txt",
		Topics:     []string{"Cat", "Xyzzy", "Mercury"},
		Active:     []bool{true, false, true},
		Summaries:  []string{"Cats are felines.", "Mercury is a planet."},
		Titles:     []string{"Cat", "Mercury (planet)"},
		Candidates: [][]string{{"Cat", "Cat (disambiguation)"}, {"Mercury (planet)", "Mercury (element)"}},
		CreatedAt:  time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestMarkdown(t *testing.T) {
	result, err := Markdown(sampleDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"# Summaries: topics.txt",
		"> Generated 2025-01-15 10:30",
		"## Cat\n\nCats are felines.",
		"## Xyzzy\n\n_skipped_",
		"## Mercury\n\n*Mercury (planet)*\n\nMercury is a planet.",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("missing %q, got:\n%s", want, result)
		}
	}
	if strings.Contains(result, "*Cat*") {
		t.Errorf("title equal to topic should not be repeated, got:\n%s", result)
	}
}

func TestMarkdown_Misaligned(t *testing.T) {
	d := sampleDoc()
	d.Summaries = d.Summaries[:1]
	if _, err := Markdown(d); !errors.Is(err, ErrAlignment) {
		t.Errorf("expected ErrAlignment, got %v", err)
	}
}
