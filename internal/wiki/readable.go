package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/lotas/filler/internal/retry"
)

const (
	maxIntroLen = 2000
	minParaLen  = 40
)

// readableIntro fetches the rendered article for title and returns the first
// paragraph of its readable text.
func (c *Client) readableIntro(ctx context.Context, title string) (string, error) {
	pageURL := c.PageURL + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", pageURL, err)
	}

	var article readability.Article
	err = retry.WithBackoff(ctx, c.Retry, func(ctx context.Context) error {
		body, err := c.get(ctx, pageURL)
		if err != nil {
			return err
		}
		defer body.Close()
		article, err = readability.FromReader(body, u)
		if err != nil {
			return fmt.Errorf("extract readable content from %s: %w", pageURL, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return firstParagraph(article.TextContent), nil
}

// firstParagraph returns the first paragraph of text long enough to be
// prose rather than a heading, cut at a word boundary. Short text falls back
// to its first non-blank line.
func firstParagraph(text string) string {
	first := ""
	for _, para := range strings.Split(text, "\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		if first == "" {
			first = para
		}
		if len(para) >= minParaLen {
			return truncate(para)
		}
	}
	return truncate(first)
}

func truncate(para string) string {
	if len(para) <= maxIntroLen {
		return para
	}
	cut := strings.LastIndex(para[:maxIntroLen], " ")
	if cut <= 0 {
		cut = maxIntroLen
	}
	return para[:cut] + "…"
}
