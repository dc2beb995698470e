// Package fetch downloads web pages and reduces them to readable text
// for the navigate_to_website tool.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nugget/savant/internal/httpkit"
)

const (
	// DefaultMaxChars caps extracted text when the caller passes zero.
	DefaultMaxChars = 1000

	timeout        = 30 * time.Second
	maxBody  int64 = 5 << 20
	accept         = "text/html,application/xhtml+xml,text/plain;q=0.8,*/*;q=0.5"
)

// Result is the readable content of one page.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
	StatusCode  int    `json:"status_code"`
}

// Fetcher downloads pages.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher. A nil client uses an httpkit client with a
// 30 second timeout.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = httpkit.NewClient(httpkit.WithTimeout(timeout))
	}
	return &Fetcher{client: client}
}

// Fetch downloads rawURL and returns at most maxChars runes of its
// readable text. A URL without a scheme is fetched over https. Non-2xx
// responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxChars int) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("fetch: url is required")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	body, resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	res := &Result{URL: rawURL, ContentType: resp.Header.Get("Content-Type"), StatusCode: resp.StatusCode}
	mediaType, _, _ := mime.ParseMediaType(res.ContentType)
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		res.Title, res.Content = extractHTML(string(body))
	case strings.HasPrefix(mediaType, "text/") || utf8.Valid(body):
		res.Content = cleanWhitespace(string(body))
	default:
		res.Content = fmt.Sprintf("Binary content (%s), %d bytes", res.ContentType, len(body))
		return res, nil
	}
	res.Content, res.Truncated = truncateChars(res.Content, maxChars)
	return res, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: invalid url: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, nil, fmt.Errorf("fetch: HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 256))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: read body: %w", err)
	}
	return body, resp, nil
}

// truncateChars cuts s to maxChars runes.
func truncateChars(s string, maxChars int) (string, bool) {
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i], true
		}
		n++
	}
	return s, false
}
