package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nugget/savant/internal/fetch"
	"github.com/nugget/savant/internal/scholar"
	"github.com/nugget/savant/internal/search"
)

type fakeRepo struct {
	files map[string]string
	err   error
}

func (f *fakeRepo) Readme(_ context.Context, repoURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.files["README.md"], nil
}

func (f *fakeRepo) ListFiles(context.Context, string) ([]string, error) {
	return []string{"README.md", "train.py"}, f.err
}

func (f *fakeRepo) FileContent(_ context.Context, _, path string) (string, error) {
	content, ok := f.files[path]
	if !ok {
		return "", errors.New("404 Not Found")
	}
	return content, nil
}

func TestGitHubTools(t *testing.T) {
	d := newTestDispatcher(t)
	repo := &fakeRepo{files: map[string]string{"README.md": "# Hello", "train.py": "import torch"}}
	if err := NewGitHubTools(repo).Register(d); err != nil {
		t.Fatal(err)
	}
	url := "https://github.com/o/r"

	tests := []struct {
		name       string
		toolName   string
		params     map[string]any
		wantTool   string
		wantStatus string
		wantStdout string
	}{
		{"readme", "", map[string]any{"repo_url": url}, ToolGitHubReadme, StatusSuccess, "Here is the readme content: # Hello"},
		{"list files by name", ToolGitHubListFiles, map[string]any{"repo_url": url}, ToolGitHubListFiles, StatusSuccess, "README.md\ntrain.py"},
		{"file code", "", map[string]any{"repo_url": url, "file_path": "train.py"}, ToolGitHubFileCode, StatusSuccess, "import torch"},
		{"missing file", "", map[string]any{"repo_url": url, "file_path": "nope.py"}, ToolGitHubFileCode, StatusFailure, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Dispatch(t.Context(), tt.toolName, tt.params)
			if res.Tool != tt.wantTool || res.Status != tt.wantStatus {
				t.Fatalf("result = %+v, want %s %s", res, tt.wantTool, tt.wantStatus)
			}
			if !strings.Contains(res.Stdout, tt.wantStdout) {
				t.Errorf("Stdout = %q, want containing %q", res.Stdout, tt.wantStdout)
			}
		})
	}
}

type fakePapers struct {
	paper  scholar.Paper
	fields []string
}

func (f *fakePapers) Search(_ context.Context, query string, limit int) ([]scholar.Paper, error) {
	return []scholar.Paper{f.paper}, nil
}

func (f *fakePapers) Paper(_ context.Context, id, fields string) (*scholar.Paper, error) {
	f.fields = append(f.fields, fields)
	if id != f.paper.PaperID {
		return nil, errors.New("HTTP 404")
	}
	p := f.paper
	return &p, nil
}

func (f *fakePapers) Citations(context.Context, string, int) ([]scholar.Paper, error) {
	return []scholar.Paper{{PaperID: "c1", Title: "Citing Paper"}}, nil
}

type fakeDownloader struct{}

func (fakeDownloader) Download(_ context.Context, arxivID, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, arxivID+".pdf")
	return path, os.WriteFile(path, []byte("%PDF"), 0o644)
}

type fakeCodeIndex struct{}

func (fakeCodeIndex) Search(context.Context, string, int) ([]scholar.PWCPaper, error) {
	return []scholar.PWCPaper{{ID: "resnet", Title: "ResNet"}}, nil
}

func (fakeCodeIndex) Paper(context.Context, string) (*scholar.PWCPaper, error) {
	return &scholar.PWCPaper{ID: "resnet", Title: "ResNet", Authors: []string{"He", "Zhang"}, Tasks: []scholar.PWCTask{{Name: "Image Classification"}}}, nil
}

func (fakeCodeIndex) Repositories(context.Context, string) ([]scholar.Repository, error) {
	return nil, nil
}

func TestPaperTools(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	papers := &fakePapers{paper: scholar.Paper{
		PaperID:     "p1",
		Title:       "Attention Is All You Need",
		Abstract:    "Transformers.",
		ExternalIDs: map[string]any{"ArXiv": "1706.03762"},
	}}
	d := newTestDispatcher(t)
	if err := NewPaperTools(papers, fakeDownloader{}, fakeCodeIndex{}, ws).Register(d); err != nil {
		t.Fatal(err)
	}
	ctx := WithRunID(t.Context(), 77)

	tests := []struct {
		name       string
		toolName   string
		params     map[string]any
		wantTool   string
		wantStatus string
		wantStdout string
	}{
		{"search", "", map[string]any{"query": "attention"}, ToolSearchPapers, StatusSuccess, "arxiv_id: 1706.03762"},
		{"details", "", map[string]any{"paper_id": "p1"}, ToolPaperDetails, StatusSuccess, "title: Attention Is All You Need"},
		{"abstract", ToolPaperAbstract, map[string]any{"paper_id": "p1"}, ToolPaperAbstract, StatusSuccess, "abstract: Transformers."},
		{"citations", ToolPaperCitations, map[string]any{"paper_id": "p1"}, ToolPaperCitations, StatusSuccess, "Citing Paper"},
		{"download", ToolDownloadPaper, map[string]any{"paper_id": "p1"}, ToolDownloadPaper, StatusSuccess, filepath.Join("77", "papers", "1706.03762.pdf")},
		{"unknown paper", "", map[string]any{"paper_id": "zzz"}, ToolPaperDetails, StatusFailure, ""},
		{"pwc search", ToolSearchPWC, map[string]any{"query": "resnet"}, ToolSearchPWC, StatusSuccess, "Paper ID: resnet"},
		{"pwc details", ToolPaperDetailsPWC, map[string]any{"paper_id": "resnet"}, ToolPaperDetailsPWC, StatusSuccess, "Tasks: Image Classification"},
		{"pwc code links", ToolCodeLinksPWC, map[string]any{"paper_id": "resnet"}, ToolCodeLinksPWC, StatusSuccess, "No code repositories found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Dispatch(ctx, tt.toolName, tt.params)
			if res.Tool != tt.wantTool || res.Status != tt.wantStatus {
				t.Fatalf("result = %+v, want %s %s", res, tt.wantTool, tt.wantStatus)
			}
			if !strings.Contains(res.Stdout, tt.wantStdout) {
				t.Errorf("Stdout = %q, want containing %q", res.Stdout, tt.wantStdout)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(ws.RunDir(77), "papers", "1706.03762.pdf")); err != nil {
		t.Errorf("downloaded pdf missing: %v", err)
	}
}

func TestPaperTools_DownloadNeedsRun(t *testing.T) {
	ws, _ := NewWorkspace(t.TempDir())
	d := newTestDispatcher(t)
	papers := &fakePapers{paper: scholar.Paper{PaperID: "p1", ExternalIDs: map[string]any{"ArXiv": "1"}}}
	NewPaperTools(papers, fakeDownloader{}, nil, ws).Register(d)

	res := d.Dispatch(t.Context(), ToolDownloadPaper, map[string]any{"paper_id": "p1"})
	if res.Status != StatusFailure || !strings.Contains(res.Stderr, "no run") {
		t.Errorf("result = %+v, want failure without a run", res)
	}
	if d.Registered(ToolSearchPWC) {
		t.Error("Papers with Code tools should stay unbound without a client")
	}
}

type fakeSearcher struct {
	results []search.Result
	opts    search.Options
}

func (f *fakeSearcher) Search(_ context.Context, _ string, opts search.Options) ([]search.Result, error) {
	f.opts = opts
	return f.results, nil
}

func (f *fakeSearcher) Configured() bool { return len(f.results) > 0 }

type fakeFetcher struct {
	maxChars int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, maxChars int) (*fetch.Result, error) {
	f.maxChars = maxChars
	return &fetch.Result{URL: rawURL, Title: "Docs", Content: "Readable text", Truncated: true}, nil
}

func TestWebTools(t *testing.T) {
	searcher := &fakeSearcher{results: make([]search.Result, 8)}
	for i := range searcher.results {
		searcher.results[i] = search.Result{Title: "hit", URL: "https://example.com"}
	}
	fetcher := &fakeFetcher{}
	d := newTestDispatcher(t)
	if err := NewWebTools(searcher, fetcher, 5, 0).Register(d); err != nil {
		t.Fatal(err)
	}

	res := d.Dispatch(t.Context(), ToolSearchInternet, map[string]any{"query": "pytorch docs"})
	if res.Status != StatusSuccess || strings.Count(res.Stdout, "hit") != 5 {
		t.Errorf("search = %+v, want 5 hits", res)
	}
	if searcher.opts.Count != 5 {
		t.Errorf("requested count = %d, want 5", searcher.opts.Count)
	}

	res = d.Dispatch(t.Context(), "", map[string]any{"url": "https://pytorch.org"})
	if res.Tool != ToolNavigate || res.Status != StatusSuccess {
		t.Fatalf("navigate = %+v", res)
	}
	if !strings.HasPrefix(res.Stdout, "Content from https://pytorch.org:") || !strings.HasSuffix(res.Stdout, "Readable text...") {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if fetcher.maxChars != fetch.DefaultMaxChars {
		t.Errorf("maxChars = %d, want %d", fetcher.maxChars, fetch.DefaultMaxChars)
	}
}

func TestWebTools_SearchUnconfigured(t *testing.T) {
	d := newTestDispatcher(t)
	NewWebTools(&fakeSearcher{}, nil, 0, 0).Register(d)

	res := d.Dispatch(t.Context(), ToolSearchInternet, map[string]any{"query": "q"})
	if res.Status != StatusFailure || !strings.Contains(res.Stderr, "not available") {
		t.Errorf("result = %+v, want unavailable failure", res)
	}
}
