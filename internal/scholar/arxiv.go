package scholar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nugget/savant/internal/httpkit"
)

const arxivURL = "https://arxiv.org"

// maxPDFBytes caps a single download.
const maxPDFBytes = 100 << 20

// Arxiv downloads paper PDFs from arXiv.
type Arxiv struct {
	baseURL string
	client  *http.Client
}

// NewArxiv creates a downloader. An empty baseURL uses arxiv.org.
func NewArxiv(baseURL string, client *http.Client) *Arxiv {
	if baseURL == "" {
		baseURL = arxivURL
	}
	if client == nil {
		client = DefaultClient()
	}
	return &Arxiv{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Download saves the PDF for arxivID into dir and returns the file path.
// dir is created if needed.
func (a *Arxiv) Download(ctx context.Context, arxivID, dir string) (string, error) {
	arxivID = strings.TrimSpace(arxivID)
	if arxivID == "" {
		return "", fmt.Errorf("arxiv: empty id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/pdf/"+arxivID, nil)
	if err != nil {
		return "", fmt.Errorf("arxiv: build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("arxiv: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arxiv: HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 256))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("arxiv: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, strings.ReplaceAll(arxivID, "/", "_")+".pdf")

	f, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("arxiv: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxPDFBytes)); err != nil {
		f.Close()
		return "", fmt.Errorf("arxiv: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("arxiv: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return "", fmt.Errorf("arxiv: %w", err)
	}
	return path, nil
}
