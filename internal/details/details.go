// Package details fetches an event's source page and renders it as markdown
// for the /details command.
package details

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const maxChars = 50000

var ErrNoURL = errors.New("event has no url")

// Fetcher converts event pages to markdown.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 30 second timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads rawURL and returns its content as markdown, truncated to
// maxChars.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", ErrNoURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid event url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Connector/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch event page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch event page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	if runes := []rune(md); len(runes) > maxChars {
		md = string(runes[:maxChars]) + "\n\n[Content truncated]"
	}
	return md, nil
}
