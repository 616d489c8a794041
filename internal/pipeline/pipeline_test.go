package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/lotas/filler/internal/types"
)

func animals() *fakeSource {
	return &fakeSource{
		results: map[string][]string{
			"Cat":     {"Cat", "Cat (disambiguation)", "Felidae"},
			"Dog":     {"Dog", "Dog (zodiac)"},
			"Mercury": {"Mercury (planet)", "Mercury (element)"},
		},
		summaries: map[string]string{
			"Cat":               "Cats are felines.",
			"Dog":               "Dogs are canines.",
			"Mercury (planet)":  "Mercury is a planet.",
			"Mercury (element)": "Mercury is an element.",
		},
	}
}

func TestCollect_AllReady(t *testing.T) {
	src := animals()
	req := Request{Gen: 7, Topics: []string{"Cat", "Dog"}, Active: []bool{true, true}}

	results := Collect(context.Background(), src, req)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Outcome != types.OutcomeReady {
			t.Errorf("result %d: outcome %v, err %v", i, res.Outcome, res.Err)
		}
		if res.Index != i || res.Gen != 7 {
			t.Errorf("result %d: index %d gen %d", i, res.Index, res.Gen)
		}
	}
	if results[0].Summary != "Cats are felines." {
		t.Errorf("summary = %q", results[0].Summary)
	}
	if len(results[0].Candidates) != 3 || results[0].Candidates[0] != "Cat" {
		t.Errorf("candidates = %v", results[0].Candidates)
	}
}

func TestCollect_SkipsInactive(t *testing.T) {
	src := animals()
	req := Request{Topics: []string{"Cat", "Dog"}, Active: []bool{false, true}}

	results := Collect(context.Background(), src, req)
	if len(results) != 1 || results[0].Index != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(src.searched) != 1 || src.searched[0] != "Dog" {
		t.Errorf("searched = %v", src.searched)
	}
}

func TestCollect_ZeroCandidates(t *testing.T) {
	src := animals()
	req := Request{Topics: []string{"Cat", "Xyzzyunknown"}, Active: []bool{true, true}}

	results := Collect(context.Background(), src, req)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Outcome != types.OutcomeEmpty {
		t.Errorf("outcome = %v", results[1].Outcome)
	}
	if len(results[1].Candidates) != 0 || results[1].Summary != "" {
		t.Errorf("empty outcome should carry nothing: %+v", results[1])
	}
	for _, title := range src.fetched {
		if title == "Xyzzyunknown" {
			t.Error("summary should not be fetched for an empty resolution")
		}
	}
}

func TestCollect_FailuresContinue(t *testing.T) {
	src := animals()
	src.searchErrs = map[string]error{"Cat": errFake}
	src.summaryErrs = map[string]error{"Dog": errFake}
	req := Request{Topics: []string{"Cat", "Dog", "Mercury"}, Active: []bool{true, true, true}}

	results := Collect(context.Background(), src, req)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Outcome != types.OutcomeResolveFailed || !errors.Is(results[0].Err, errFake) {
		t.Errorf("result 0: %+v", results[0])
	}
	if results[1].Outcome != types.OutcomeFetchFailed || !errors.Is(results[1].Err, errFake) {
		t.Errorf("result 1: %+v", results[1])
	}
	if len(results[1].Candidates) != 0 {
		t.Errorf("failed fetch must not commit candidates: %v", results[1].Candidates)
	}
	if results[2].Outcome != types.OutcomeReady {
		t.Errorf("result 2: %+v", results[2])
	}
}

func TestRun_EmptyTopicsClosesImmediately(t *testing.T) {
	out := make(chan types.Result)
	Run(context.Background(), animals(), Request{}, out)
	if _, ok := <-out; ok {
		t.Error("expected closed channel")
	}
}

func TestStart_StreamsInTopicOrder(t *testing.T) {
	req := Request{Topics: []string{"Mercury", "Cat", "Dog"}, Active: []bool{true, true, true}}
	ch := Start(context.Background(), animals(), req)

	var got []int
	for res := range ch {
		got = append(got, res.Index)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("order = %v", got)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Collect(ctx, animals(), Request{Topics: []string{"Cat"}, Active: []bool{true}})
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReresolve(t *testing.T) {
	src := animals()
	res := Reresolve(context.Background(), src, ReresolveRequest{Gen: 2, Index: 4, Title: "Mercury (element)"})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Summary != "Mercury is an element." || res.Index != 4 || res.Gen != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	src.summaryErrs = map[string]error{"Dog": errFake}
	res = Reresolve(context.Background(), src, ReresolveRequest{Title: "Dog"})
	if res.Err == nil || res.Summary != "" {
		t.Errorf("expected failure, got %+v", res)
	}
}
