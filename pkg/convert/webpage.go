package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-shiori/go-readability"
)

// fetchURL downloads a page with browser-like headers to avoid being
// blocked (e.g. 403 Forbidden or Cloudflare), capped at maxFetchSize.
func (c *Converter) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.google.com/")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got status code %d", resp.StatusCode)
	}

	limit := c.maxFetchSize()
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("content length %d exceeds limit of %d bytes", resp.ContentLength, limit)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) >= limit {
		return nil, fmt.Errorf("response body exceeded maximum size of %d bytes", limit)
	}
	return body, nil
}

// convertWebpage fetches a URL and extracts the readable article text.
func (c *Converter) convertWebpage(ctx context.Context, in Input) (*Result, error) {
	body, err := c.fetchURL(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	parsedURL, _ := url.Parse(in.URL)
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}
	c.logf("extracted %d chars from %s", len(article.TextContent), in.URL)

	return &Result{
		Text:      article.TextContent,
		Type:      TypeOther,
		PageTitle: article.Title,
		Size:      int64(len(body)),
	}, nil
}
