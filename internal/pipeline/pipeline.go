package pipeline

import (
	"context"
	"fmt"

	"github.com/lotas/filler/internal/applog"
	"github.com/lotas/filler/internal/types"
)

// Source is the encyclopedia the pipeline resolves topics against.
//
// Search returns candidate titles best match first and may return an empty
// list. Summary returns the text body for one title and may fail.
type Source interface {
	Search(ctx context.Context, query string) ([]string, error)
	Summary(ctx context.Context, title string) (string, error)
}

// Request is an immutable snapshot of the topics a run works on.
type Request struct {
	Gen    uint64
	Topics []string
	Active []bool
}

// ReresolveRequest asks for a fresh summary for the candidate the user chose.
type ReresolveRequest struct {
	Gen   uint64
	Seq   uint64
	Index int
	Title string
}

// Run resolves and fetches every active topic in order, sending one Result
// per processed topic to out as soon as it is known. out is closed when the
// pass is over. Topics are processed one at a time; results arrive in topic
// order. A cancelled context stops the pass after the current topic.
func Run(ctx context.Context, src Source, req Request, out chan<- types.Result) {
	defer close(out)

	if len(req.Topics) == 0 {
		return
	}

	run := applog.NewRun("run")
	run.Info("pipeline.start", "topics", len(req.Topics), "gen", req.Gen)

	var ready, empty, failed int
	for i, topic := range req.Topics {
		if ctx.Err() != nil {
			run.Info("pipeline.cancelled", "at", i)
			return
		}
		if i >= len(req.Active) || !req.Active[i] {
			continue
		}

		res := resolve(ctx, src, topic)
		res.Gen = req.Gen
		res.Index = i

		switch res.Outcome {
		case types.OutcomeReady:
			ready++
			run.Info("pipeline.topic", "index", i, "topic", topic, "title", res.Title, "candidates", len(res.Candidates))
		case types.OutcomeEmpty:
			empty++
			run.Info("pipeline.topic.empty", "index", i, "topic", topic)
		default:
			failed++
			run.Error("pipeline.topic."+res.Outcome.String(), res.Err, "index", i, "topic", topic)
		}

		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
	}

	run.Info("pipeline.done", "ready", ready, "empty", empty, "failed", failed)
}

// Collect runs a pass on the calling goroutine and returns every result.
func Collect(ctx context.Context, src Source, req Request) []types.Result {
	out := make(chan types.Result, len(req.Topics))
	Run(ctx, src, req, out)

	results := make([]types.Result, 0, len(req.Topics))
	for res := range out {
		results = append(results, res)
	}
	return results
}

// Start launches Run on its own goroutine and returns the result channel.
func Start(ctx context.Context, src Source, req Request) <-chan types.Result {
	out := make(chan types.Result, 1)
	go Run(ctx, src, req, out)
	return out
}

func resolve(ctx context.Context, src Source, topic string) types.Result {
	res := types.Result{Topic: topic}

	candidates, err := src.Search(ctx, topic)
	if err != nil {
		res.Outcome = types.OutcomeResolveFailed
		res.Err = fmt.Errorf("search %q: %w", topic, err)
		return res
	}
	if len(candidates) == 0 {
		res.Outcome = types.OutcomeEmpty
		return res
	}

	title := candidates[0]
	summary, err := src.Summary(ctx, title)
	if err != nil {
		res.Outcome = types.OutcomeFetchFailed
		res.Title = title
		res.Err = fmt.Errorf("summary %q: %w", title, err)
		return res
	}

	res.Outcome = types.OutcomeReady
	res.Candidates = candidates
	res.Title = title
	res.Summary = summary
	return res
}

// Reresolve fetches the summary for a chosen candidate title.
func Reresolve(ctx context.Context, src Source, req ReresolveRequest) types.Reresolved {
	res := types.Reresolved{Gen: req.Gen, Seq: req.Seq, Index: req.Index, Title: req.Title}
	summary, err := src.Summary(ctx, req.Title)
	if err != nil {
		res.Err = fmt.Errorf("summary %q: %w", req.Title, err)
		applog.Error("pipeline.reresolve", err, "index", req.Index, "title", req.Title)
		return res
	}
	res.Summary = summary
	applog.Info("pipeline.reresolve", "index", req.Index, "title", req.Title)
	return res
}
