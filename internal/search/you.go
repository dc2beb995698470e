package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const youURL = "https://api.ydc-index.io/search"

// You queries the You.com search API. The API has no count parameter,
// so hits are trimmed locally.
type You struct{ api apiClient }

// NewYou creates a You.com provider. Empty baseURL and nil client pick
// the public endpoint and a retrying default client.
func NewYou(apiKey, baseURL string, c *http.Client) *You {
	if baseURL == "" {
		baseURL = youURL
	}
	return &You{api: newAPIClient("you", baseURL, "X-API-Key", apiKey, c)}
}

func (y *You) Name() string { return "you" }

func (y *You) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	var body struct {
		Hits []struct {
			Title       string   `json:"title"`
			URL         string   `json:"url"`
			Description string   `json:"description"`
			Snippets    []string `json:"snippets"`
		} `json:"hits"`
	}
	if err := y.api.get(ctx, url.Values{"query": {query}}, &body); err != nil {
		return nil, err
	}

	hits := body.Hits[:min(opts.count(), len(body.Hits))]
	results := make([]Result, len(hits))
	for i, h := range hits {
		snippet := h.Description
		if len(h.Snippets) > 0 {
			snippet = strings.Join(h.Snippets, " ")
		}
		results[i] = Result{Title: h.Title, URL: h.URL, Snippet: snippet}
	}
	return results, nil
}
