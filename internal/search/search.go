// Package search runs web searches for the search_the_internet tool.
// Backends implement [Provider]; a [Manager] tries the configured
// default first and falls back to the others.
package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// defaultCount is used when a query does not ask for a result count.
const defaultCount = 5

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options tune a single query.
type Options struct {
	// Count caps the number of hits. Zero means defaultCount.
	Count int `json:"count,omitempty"`
}

func (o Options) count() int {
	if o.Count <= 0 {
		return defaultCount
	}
	return o.Count
}

// Provider is a search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Manager routes queries across registered providers.
type Manager struct {
	providers map[string]Provider
	order     []string
	primary   string
}

// NewManager creates a manager whose default backend is primary.
func NewManager(primary string) *Manager {
	return &Manager{providers: make(map[string]Provider), primary: primary}
}

// Register adds p, replacing any provider with the same name.
func (m *Manager) Register(p Provider) {
	if _, ok := m.providers[p.Name()]; !ok {
		m.order = append(m.order, p.Name())
	}
	m.providers[p.Name()] = p
}

// Configured reports whether any provider is registered.
func (m *Manager) Configured() bool { return len(m.providers) > 0 }

// Providers lists registered backends in the order Search tries them.
func (m *Manager) Providers() []string {
	if _, ok := m.providers[m.primary]; !ok {
		return slices.Clone(m.order)
	}
	names := []string{m.primary}
	for _, n := range m.order {
		if n != m.primary {
			names = append(names, n)
		}
	}
	return names
}

// Search queries each provider in turn and returns the first success.
// When all fail their errors are joined.
func (m *Manager) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if !m.Configured() {
		return nil, fmt.Errorf("no search provider configured (default %q)", m.primary)
	}
	var errs []error
	for _, name := range m.Providers() {
		results, err := m.providers[name].Search(ctx, query, opts)
		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// FormatResults renders hits as a numbered list for the model.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n   %s", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "\n   %s", r.Snippet)
		}
	}
	return b.String()
}
