package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// mockProvider is a simple test provider.
type mockProvider struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Search(_ context.Context, _ string, _ Options) ([]Result, error) {
	m.calls++
	return m.results, m.err
}

func TestManagerSearch(t *testing.T) {
	mgr := NewManager("mock")
	mgr.Register(&mockProvider{
		name: "mock",
		results: []Result{
			{Title: "Test", URL: "https://example.com", Snippet: "A test result"},
		},
	})

	results, err := mgr.Search(t.Context(), "test", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "Test" {
		t.Errorf("expected title 'Test', got %q", results[0].Title)
	}
}

func TestManagerFallsBack(t *testing.T) {
	primary := &mockProvider{name: "you", err: errors.New("HTTP 500")}
	backup := &mockProvider{name: "brave", results: []Result{{Title: "Backup"}}}

	mgr := NewManager("you")
	mgr.Register(backup)
	mgr.Register(primary)

	results, err := mgr.Search(t.Context(), "test", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Title != "Backup" {
		t.Errorf("expected 'Backup', got %q", results[0].Title)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want 1 (tried first)", primary.calls)
	}
}

func TestManagerAllFail(t *testing.T) {
	mgr := NewManager("a")
	mgr.Register(&mockProvider{name: "a", err: errors.New("first down")})
	mgr.Register(&mockProvider{name: "b", err: errors.New("second down")})

	_, err := mgr.Search(t.Context(), "test", Options{})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	for _, want := range []string{"first down", "second down"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestManagerProvidersOrder(t *testing.T) {
	mgr := NewManager("brave")
	mgr.Register(&mockProvider{name: "you"})
	mgr.Register(&mockProvider{name: "serp"})
	mgr.Register(&mockProvider{name: "brave"})

	got := strings.Join(mgr.Providers(), ",")
	if got != "brave,you,serp" {
		t.Errorf("Providers() = %s, want primary first then registration order", got)
	}
}

func TestManagerUnconfigured(t *testing.T) {
	mgr := NewManager("missing")
	_, err := mgr.Search(t.Context(), "test", Options{})
	if err == nil {
		t.Fatal("expected error for missing provider")
	}
}

func TestFormatResults(t *testing.T) {
	results := []Result{
		{Title: "First", URL: "https://a.com", Snippet: "Snippet A"},
		{Title: "Second", URL: "https://b.com"},
	}
	want := "1. First\n   https://a.com\n   Snippet A\n\n2. Second\n   https://b.com"
	if got := FormatResults(results); got != want {
		t.Errorf("FormatResults =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatResultsEmpty(t *testing.T) {
	out := FormatResults(nil)
	if out != "No results found." {
		t.Errorf("expected 'No results found.', got %q", out)
	}
}

func TestConfigured(t *testing.T) {
	mgr := NewManager("test")
	if mgr.Configured() {
		t.Error("empty manager should not be configured")
	}
	mgr.Register(&mockProvider{name: "test"})
	if !mgr.Configured() {
		t.Error("manager with provider should be configured")
	}
}

func TestYouSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "you-key" {
			t.Errorf("X-API-Key = %q", r.Header.Get("X-API-Key"))
		}
		if r.URL.Query().Get("query") != "diffusion models" {
			t.Errorf("query = %q", r.URL.Query().Get("query"))
		}
		hits := make([]map[string]any, 8)
		for i := range hits {
			hits[i] = map[string]any{"title": "hit", "url": "https://example.com", "snippets": []string{"a", "b"}}
		}
		json.NewEncoder(w).Encode(map[string]any{"hits": hits})
	}))
	defer srv.Close()

	y := NewYou("you-key", srv.URL, srv.Client())
	results, err := y.Search(t.Context(), "diffusion models", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want default of 5", len(results))
	}
	if results[0].Snippet != "a b" {
		t.Errorf("Snippet = %q, want joined snippets", results[0].Snippet)
	}
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("X-Subscription-Token = %q", r.Header.Get("X-Subscription-Token"))
		}
		if r.URL.Query().Get("count") != "3" {
			t.Errorf("count = %q, want 3", r.URL.Query().Get("count"))
		}
		w.Write([]byte(`{"web": {"results": [{"title": "T", "url": "https://t.example", "description": "D"}]}}`))
	}))
	defer srv.Close()

	b := NewBrave("brave-key", srv.URL, srv.Client())
	results, err := b.Search(t.Context(), "q", Options{Count: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Snippet != "D" {
		t.Errorf("results = %+v", results)
	}
}

func TestBraveSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad token"))
	}))
	defer srv.Close()

	b := NewBrave("wrong", srv.URL, srv.Client())
	_, err := b.Search(t.Context(), "q", Options{})
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("err = %v, want HTTP 401", err)
	}
}
