package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nugget/savant/internal/httpkit"
)

// apiClient is the GET-and-decode plumbing shared by the JSON search APIs.
type apiClient struct {
	name       string
	endpoint   string
	authHeader string
	apiKey     string
	http       *http.Client
}

func newAPIClient(name, endpoint, authHeader, apiKey string, c *http.Client) apiClient {
	if c == nil {
		c = httpkit.NewClient(httpkit.WithTimeout(15*time.Second), httpkit.WithRetry(2, time.Second))
	}
	return apiClient{name: name, endpoint: endpoint, authHeader: authHeader, apiKey: apiKey, http: c}
}

func (a apiClient) get(ctx context.Context, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", a.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(a.authHeader, a.apiKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d: %s", a.name, resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", a.name, err)
	}
	return nil
}
