package scholar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const papersWithCodeURL = "https://paperswithcode.com/api/v1"

// PWCPaper is a Papers with Code paper record.
type PWCPaper struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Abstract string    `json:"abstract"`
	Authors  []string  `json:"authors"`
	URLAbs   string    `json:"url_abs"`
	URLPDF   string    `json:"url_pdf"`
	Tasks    []PWCTask `json:"tasks,omitempty"`
}

// PWCTask is a research task a paper is tagged with.
type PWCTask struct {
	Name string `json:"name"`
}

// Repository is a code repository linked to a paper.
type Repository struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	Stars       int    `json:"stars"`
	Framework   string `json:"framework"`
	IsOfficial  bool   `json:"is_official"`
	Description string `json:"description"`
}

// PapersWithCode is a client for the Papers with Code REST API.
type PapersWithCode struct {
	baseURL string
	client  *http.Client
}

// NewPapersWithCode creates a client. An empty baseURL uses the public API.
func NewPapersWithCode(baseURL string, client *http.Client) *PapersWithCode {
	if baseURL == "" {
		baseURL = papersWithCodeURL
	}
	if client == nil {
		client = DefaultClient()
	}
	return &PapersWithCode{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type pwcPage[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func (p *PapersWithCode) get(ctx context.Context, path string, query url.Values, dst any) error {
	if err := getJSON(ctx, p.client, p.baseURL+path, query, nil, dst); err != nil {
		return fmt.Errorf("papers with code: %w", err)
	}
	return nil
}

// Search finds papers matching query, returning at most limit results.
func (p *PapersWithCode) Search(ctx context.Context, query string, limit int) ([]PWCPaper, error) {
	var page pwcPage[PWCPaper]
	if err := p.get(ctx, "/papers/", url.Values{"q": {query}}, &page); err != nil {
		return nil, err
	}
	if limit > 0 && len(page.Results) > limit {
		page.Results = page.Results[:limit]
	}
	return page.Results, nil
}

// Paper fetches one paper by its Papers with Code id.
func (p *PapersWithCode) Paper(ctx context.Context, id string) (*PWCPaper, error) {
	var paper PWCPaper
	if err := p.get(ctx, "/papers/"+url.PathEscape(id)+"/", nil, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// Repositories lists code repositories linked to a paper.
func (p *PapersWithCode) Repositories(ctx context.Context, id string) ([]Repository, error) {
	var page pwcPage[Repository]
	if err := p.get(ctx, "/papers/"+url.PathEscape(id)+"/repositories/", nil, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}
