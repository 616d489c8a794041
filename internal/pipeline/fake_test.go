package pipeline

import (
	"context"
	"errors"
	"sync"
)

// fakeSource is an in-memory Source keyed by query and title.
type fakeSource struct {
	mu          sync.Mutex
	results     map[string][]string
	summaries   map[string]string
	searchErrs  map[string]error
	summaryErrs map[string]error
	searched    []string
	fetched     []string
}

var errFake = errors.New("network unreachable")

func (f *fakeSource) Search(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, query)
	if err := f.searchErrs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

func (f *fakeSource) Summary(ctx context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, title)
	if err := f.summaryErrs[title]; err != nil {
		return "", err
	}
	return f.summaries[title], nil
}
