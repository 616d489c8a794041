// Package wiki talks to a MediaWiki installation (Wikipedia by default) and
// implements the search and summary operations the pipeline consumes.
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lotas/filler/internal/applog"
	"github.com/lotas/filler/internal/retry"
)

const defaultUserAgent = "filler/1.0 (https://github.com/lotas/filler)"

// ErrPageNotFound is returned when a title does not name an existing page.
var ErrPageNotFound = errors.New("page not found")

// StatusError is a non-2xx response from the wiki.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

func (e *StatusError) HTTPStatus() int { return e.Code }

// Client is a minimal MediaWiki API client.
type Client struct {
	APIURL      string // e.g. https://en.wikipedia.org/w/api.php
	PageURL     string // e.g. https://en.wikipedia.org/wiki/
	SearchLimit int
	UserAgent   string
	HTTP        *http.Client
	Retry       retry.Config
	// Readable enables the article-page fallback when the API returns an
	// empty extract.
	Readable bool
}

// New returns a client for the Wikipedia of the given language code.
func New(lang string) *Client {
	if lang == "" {
		lang = "en"
	}
	host := fmt.Sprintf("https://%s.wikipedia.org", lang)
	return &Client{
		APIURL:      host + "/w/api.php",
		PageURL:     host + "/wiki/",
		SearchLimit: 10,
		UserAgent:   defaultUserAgent,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
		Retry:       retry.DefaultConfig(),
		Readable:    true,
	}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type extractResponse struct {
	Query struct {
		Pages []struct {
			Title   string `json:"title"`
			Missing bool   `json:"missing"`
			Invalid bool   `json:"invalid"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mediawiki %s: %s", e.Code, e.Info)
}

// Search returns page titles matching query, best match first.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srprop", "")
	params.Set("srlimit", strconv.Itoa(c.searchLimit()))

	var resp searchResponse
	if err := c.getJSON(ctx, params, &resp); err != nil {
		applog.Error("wiki.search", err, "query", query)
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, r := range resp.Query.Search {
		titles = append(titles, r.Title)
	}
	return titles, nil
}

// Summary returns the plain-text introduction of a page. Redirects are
// followed. When the extract is empty and Readable is set, the rendered
// article is fetched and its first readable paragraph is used instead.
func (c *Client) Summary(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("titles", title)

	var resp extractResponse
	if err := c.getJSON(ctx, params, &resp); err != nil {
		applog.Error("wiki.summary", err, "title", title)
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing || resp.Query.Pages[0].Invalid {
		return "", fmt.Errorf("%q: %w", title, ErrPageNotFound)
	}

	extract := strings.TrimSpace(resp.Query.Pages[0].Extract)
	if extract != "" || !c.Readable {
		return extract, nil
	}

	text, err := c.readableIntro(ctx, resp.Query.Pages[0].Title)
	if err != nil {
		applog.Error("wiki.readable", err, "title", title)
		return "", fmt.Errorf("readable %q: %w", title, err)
	}
	return text, nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	reqURL := c.APIURL + "?" + params.Encode()

	return retry.WithBackoff(ctx, c.Retry, func(ctx context.Context) error {
		body, err := c.get(ctx, reqURL)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", params.Get("action"), err)
		}
		return nil
	})
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return resp.Body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) searchLimit() int {
	if c.SearchLimit <= 0 {
		return 10
	}
	return c.SearchLimit
}
