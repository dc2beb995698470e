package scholar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const semanticScholarURL = "https://api.semanticscholar.org/graph/v1"

// Search defaults.
const (
	SearchLimit  = 10
	SearchFields = "title,abstract,externalIds"
	DetailFields = "title,year,abstract,authors.name,externalIds,url"
)

// Author is a paper author.
type Author struct {
	Name string `json:"name"`
}

// Paper is a Semantic Scholar paper record. Only requested fields are set.
type Paper struct {
	PaperID     string         `json:"paperId"`
	Title       string         `json:"title"`
	Abstract    string         `json:"abstract"`
	Year        int            `json:"year,omitempty"`
	URL         string         `json:"url,omitempty"`
	Authors     []Author       `json:"authors,omitempty"`
	ExternalIDs map[string]any `json:"externalIds,omitempty"`
}

// ArxivID returns the paper's arXiv identifier, or "" when it has none.
func (p Paper) ArxivID() string {
	switch v := p.ExternalIDs["ArXiv"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// AuthorNames returns the author names joined with commas.
func (p Paper) AuthorNames() string {
	names := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// SemanticScholar is a client for the Semantic Scholar Graph API.
type SemanticScholar struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSemanticScholar creates a client. apiKey may be empty for the
// shared anonymous rate limit. An empty baseURL uses the public API.
func NewSemanticScholar(apiKey, baseURL string, client *http.Client) *SemanticScholar {
	if baseURL == "" {
		baseURL = semanticScholarURL
	}
	if client == nil {
		client = DefaultClient()
	}
	return &SemanticScholar{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

func (s *SemanticScholar) get(ctx context.Context, path string, query url.Values, dst any) error {
	var header http.Header
	if s.apiKey != "" {
		header = http.Header{"X-Api-Key": {s.apiKey}}
	}
	if err := getJSON(ctx, s.client, s.baseURL+path, query, header, dst); err != nil {
		return fmt.Errorf("semantic scholar: %w", err)
	}
	return nil
}

// Search finds papers matching query.
func (s *SemanticScholar) Search(ctx context.Context, query string, limit int) ([]Paper, error) {
	if limit <= 0 {
		limit = SearchLimit
	}
	var resp struct {
		Data []Paper `json:"data"`
	}
	q := url.Values{
		"query":  {query},
		"fields": {SearchFields},
		"limit":  {strconv.Itoa(limit)},
	}
	if err := s.get(ctx, "/paper/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Paper fetches one paper. Empty fields uses DetailFields.
func (s *SemanticScholar) Paper(ctx context.Context, paperID, fields string) (*Paper, error) {
	if fields == "" {
		fields = DetailFields
	}
	var p Paper
	if err := s.get(ctx, "/paper/"+url.PathEscape(paperID), url.Values{"fields": {fields}}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Citations returns papers that cite paperID.
func (s *SemanticScholar) Citations(ctx context.Context, paperID string, limit int) ([]Paper, error) {
	if limit <= 0 {
		limit = SearchLimit
	}
	var resp struct {
		Data []struct {
			CitingPaper Paper `json:"citingPaper"`
		} `json:"data"`
	}
	q := url.Values{
		"fields": {"title,year,abstract,authors.name"},
		"limit":  {strconv.Itoa(limit)},
	}
	if err := s.get(ctx, "/paper/"+url.PathEscape(paperID)+"/citations", q, &resp); err != nil {
		return nil, err
	}
	papers := make([]Paper, len(resp.Data))
	for i, d := range resp.Data {
		papers[i] = d.CitingPaper
	}
	return papers, nil
}
