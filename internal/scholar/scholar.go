// Package scholar talks to literature services: Semantic Scholar for
// search and metadata, arXiv for PDFs, and Papers with Code for linked
// repositories.
package scholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nugget/savant/internal/httpkit"
)

// DefaultClient returns the HTTP client shared by the scholar services.
func DefaultClient() *http.Client {
	return httpkit.NewClient(
		httpkit.WithTimeout(60*time.Second),
		httpkit.WithRetry(3, 2*time.Second),
	)
}

// getJSON issues a GET and decodes a 200 response into dst.
func getJSON(ctx context.Context, client *http.Client, rawURL string, query url.Values, header http.Header, dst any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
