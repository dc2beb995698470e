package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const braveURL = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search web API.
type Brave struct{ api apiClient }

// NewBrave creates a Brave provider. Empty baseURL and nil client pick
// the public endpoint and a retrying default client.
func NewBrave(apiKey, baseURL string, c *http.Client) *Brave {
	if baseURL == "" {
		baseURL = braveURL
	}
	return &Brave{api: newAPIClient("brave", baseURL, "X-Subscription-Token", apiKey, c)}
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	var body struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	params := url.Values{"q": {query}, "count": {strconv.Itoa(opts.count())}}
	if err := b.api.get(ctx, params, &body); err != nil {
		return nil, err
	}

	results := make([]Result, len(body.Web.Results))
	for i, r := range body.Web.Results {
		results[i] = Result{Title: r.Title, URL: r.URL, Snippet: r.Description}
	}
	return results, nil
}
