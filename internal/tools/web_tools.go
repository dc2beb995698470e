package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/savant/internal/fetch"
	"github.com/nugget/savant/internal/search"
)

// Web tool names.
const (
	ToolSearchInternet = "search_the_internet"
	ToolNavigate       = "navigate_to_website"
)

// WebSearcher runs a web search. *search.Manager implements it.
type WebSearcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
	Configured() bool
}

// PageFetcher downloads readable page text. *fetch.Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, maxChars int) (*fetch.Result, error)
}

// WebSpecs declares the web search and browsing tools.
func WebSpecs() []Spec {
	return []Spec{
		{
			Name:        ToolSearchInternet,
			Description: "Search the internet for general or current information.",
			Params:      []Param{stringParam("query", "The search query.")},
		},
		{
			Name:        ToolNavigate,
			Description: "Visit a URL and extract the main text of the page.",
			Params:      []Param{stringParam("url", "The URL of the website to visit.")},
		},
	}
}

// WebTools implements search_the_internet and navigate_to_website.
type WebTools struct {
	searcher WebSearcher
	fetcher  PageFetcher
	results  int
	maxChars int
}

// NewWebTools creates the web tools. results caps search hits and
// maxChars caps page text; zero values use 5 and fetch.DefaultMaxChars.
func NewWebTools(searcher WebSearcher, fetcher PageFetcher, results, maxChars int) *WebTools {
	if results <= 0 {
		results = 5
	}
	if maxChars <= 0 {
		maxChars = fetch.DefaultMaxChars
	}
	return &WebTools{searcher: searcher, fetcher: fetcher, results: results, maxChars: maxChars}
}

// Register binds the web tools. search_the_internet stays unbound when
// no search provider is configured, so calls report it as unavailable.
func (w *WebTools) Register(d *Dispatcher) error {
	var errs []error
	if w.searcher != nil && w.searcher.Configured() {
		errs = append(errs, d.Register(ToolSearchInternet, Typed(ToolSearchInternet, w.searchInternet)))
	}
	if w.fetcher != nil {
		errs = append(errs, d.Register(ToolNavigate, Typed(ToolNavigate, w.navigate)))
	}
	return errors.Join(errs...)
}

type queryArgs struct {
	Query string `json:"query"`
}

type urlArgs struct {
	URL string `json:"url"`
}

func (w *WebTools) searchInternet(ctx context.Context, args queryArgs) Result {
	results, err := w.searcher.Search(ctx, args.Query, search.Options{Count: w.results})
	if err != nil {
		return Failure(ToolSearchInternet, fmt.Sprintf("You tried to search for '%s'", args.Query), err)
	}
	if len(results) > w.results {
		results = results[:w.results]
	}
	return Success(ToolSearchInternet, fmt.Sprintf("You searched for '%s'", args.Query),
		"Here are the top search results:\n"+search.FormatResults(results))
}

func (w *WebTools) navigate(ctx context.Context, args urlArgs) Result {
	page, err := w.fetcher.Fetch(ctx, args.URL, w.maxChars)
	if err != nil {
		return Failure(ToolNavigate, fmt.Sprintf("You tried to navigate to '%s'", args.URL), err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Content from %s:\n\n", page.URL)
	if page.Title != "" {
		b.WriteString(page.Title + "\n\n")
	}
	b.WriteString(page.Content)
	if page.Truncated {
		b.WriteString("...")
	}
	return Success(ToolNavigate, fmt.Sprintf("You navigated to '%s'", args.URL), b.String())
}
