package cache

import (
	"context"

	"github.com/lotas/filler/internal/applog"
)

type upstream interface {
	Search(ctx context.Context, query string) ([]string, error)
	Summary(ctx context.Context, title string) (string, error)
}

// Source serves lookups from the cache and falls through to Upstream on a
// miss. Errors are never cached; a broken cache degrades to Upstream.
type Source struct {
	Upstream upstream
	Cache    *Cache
}

func (s *Source) Search(ctx context.Context, query string) ([]string, error) {
	results, ok, err := s.Cache.GetSearch(query)
	if err != nil {
		applog.Error("cache.get", err, "kind", "search")
	}
	if ok {
		applog.Info("cache.hit", "kind", "search", "query", query)
		return results, nil
	}

	results, err = s.Upstream.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.PutSearch(query, results); err != nil {
		applog.Error("cache.put", err, "kind", "search")
	}
	return results, nil
}

func (s *Source) Summary(ctx context.Context, title string) (string, error) {
	body, ok, err := s.Cache.GetSummary(title)
	if err != nil {
		applog.Error("cache.get", err, "kind", "summary")
	}
	if ok {
		applog.Info("cache.hit", "kind", "summary", "title", title)
		return body, nil
	}

	body, err = s.Upstream.Summary(ctx, title)
	if err != nil {
		return "", err
	}
	if err := s.Cache.PutSummary(title, body); err != nil {
		applog.Error("cache.put", err, "kind", "summary")
	}
	return body, nil
}
