package forge

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

// newTestGitHub creates a GitHub reader backed by the given handler.
// The test server is closed automatically when the test finishes.
func newTestGitHub(t *testing.T, handler http.Handler) *GitHub {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gh, err := NewGitHub(ts.Client(), "test-token", ts.URL, logger)
	if err != nil {
		t.Fatalf("NewGitHub: %v", err)
	}
	return gh
}

func encodedContent(text string) map[string]any {
	return map[string]any{
		"type":     "file",
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(text)),
	}
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in        string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{in: "https://github.com/huggingface/transformers", wantOwner: "huggingface", wantName: "transformers"},
		{in: "https://github.com/pytorch/vision.git", wantOwner: "pytorch", wantName: "vision"},
		{in: "https://github.com/karpathy/nanoGPT/tree/master/data", wantOwner: "karpathy", wantName: "nanoGPT"},
		{in: "github.com/owner/repo", wantOwner: "owner", wantName: "repo"},
		{in: "owner/repo", wantOwner: "owner", wantName: "repo"},
		{in: "just-a-name", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		owner, name, err := ParseRepo(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRepo(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if owner != tt.wantOwner || name != tt.wantName {
			t.Errorf("ParseRepo(%q) = %s/%s, want %s/%s", tt.in, owner, name, tt.wantOwner, tt.wantName)
		}
	}
}

func TestGitHubReadme(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/owner/repo/readme", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(encodedContent("# Project\nTraining code."))
	})

	gh := newTestGitHub(t, mux)
	text, err := gh.Readme(t.Context(), "https://github.com/owner/repo")
	if err != nil {
		t.Fatalf("Readme: %v", err)
	}
	if text != "# Project\nTraining code." {
		t.Errorf("Readme = %q", text)
	}
}

func TestGitHubListFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/owner/repo", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "repo", "default_branch": "main"})
	})
	mux.HandleFunc("GET /api/v3/repos/owner/repo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") == "" {
			t.Error("tree request should be recursive")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sha": "abc",
			"tree": []map[string]any{
				{"path": "README.md", "type": "blob"},
				{"path": "src", "type": "tree"},
				{"path": "src/train.py", "type": "blob"},
			},
		})
	})

	gh := newTestGitHub(t, mux)
	files, err := gh.ListFiles(t.Context(), "owner/repo")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	want := []string{"README.md", "src/train.py"}
	if !slices.Equal(files, want) {
		t.Errorf("ListFiles = %v, want %v", files, want)
	}
}

func TestGitHubFileContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/owner/repo/contents/src/train.py", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(encodedContent("print('train')\n"))
	})

	gh := newTestGitHub(t, mux)
	text, err := gh.FileContent(t.Context(), "https://github.com/owner/repo", "/src/train.py")
	if err != nil {
		t.Fatalf("FileContent: %v", err)
	}
	if text != "print('train')\n" {
		t.Errorf("FileContent = %q", text)
	}
}

func TestGitHubNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/owner/missing/readme", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	})

	gh := newTestGitHub(t, mux)
	if _, err := gh.Readme(t.Context(), "owner/missing"); err == nil {
		t.Error("Readme of a missing repo should error")
	}
}
