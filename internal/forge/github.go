// Package forge reads source repositories on GitHub so the agent can
// study reference implementations.
package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v69/github"
)

// GitHub reads repository content through the GitHub REST API.
type GitHub struct {
	client *gogithub.Client
	logger *slog.Logger
}

// NewGitHub creates a reader. token may be empty for anonymous access
// (60 requests per hour). A non-empty baseURL targets GitHub Enterprise
// or a test server.
func NewGitHub(httpClient *http.Client, token, baseURL string, logger *slog.Logger) (*GitHub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := gogithub.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("forge: github base url: %w", err)
		}
	}
	return &GitHub{client: client, logger: logger.With("component", "forge")}, nil
}

// ParseRepo extracts owner and name from a repository URL or an
// "owner/repo" string.
func ParseRepo(repoURL string) (string, string, error) {
	s := strings.TrimSpace(repoURL)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	s = strings.Trim(s, "/")
	s = strings.TrimPrefix(s, "github.com/")
	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q: expected a GitHub URL or owner/repo", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// checkRateLimit logs a warning when remaining API calls drop below threshold.
func (g *GitHub) checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 10 {
		g.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset", resp.Rate.Reset.Time,
		)
	}
}

// Readme returns the decoded README of a repository.
func (g *GitHub) Readme(ctx context.Context, repoURL string) (string, error) {
	owner, name, err := ParseRepo(repoURL)
	if err != nil {
		return "", err
	}
	content, resp, err := g.client.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		return "", fmt.Errorf("forge: get readme: %w", err)
	}
	g.checkRateLimit(resp)
	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("forge: decode readme: %w", err)
	}
	return text, nil
}

// ListFiles returns every file path on the default branch.
func (g *GitHub) ListFiles(ctx context.Context, repoURL string) ([]string, error) {
	owner, name, err := ParseRepo(repoURL)
	if err != nil {
		return nil, err
	}
	repo, resp, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("forge: get repository: %w", err)
	}
	g.checkRateLimit(resp)

	tree, resp, err := g.client.Git.GetTree(ctx, owner, name, repo.GetDefaultBranch(), true)
	if err != nil {
		return nil, fmt.Errorf("forge: get tree: %w", err)
	}
	g.checkRateLimit(resp)
	if tree.GetTruncated() {
		g.logger.Warn("github tree listing truncated", "repo", owner+"/"+name)
	}

	var files []string
	for _, e := range tree.Entries {
		if e.GetType() == "blob" {
			files = append(files, e.GetPath())
		}
	}
	return files, nil
}

// FileContent returns the decoded content of one file.
func (g *GitHub) FileContent(ctx context.Context, repoURL, path string) (string, error) {
	owner, name, err := ParseRepo(repoURL)
	if err != nil {
		return "", err
	}
	file, dir, resp, err := g.client.Repositories.GetContents(ctx, owner, name, strings.TrimPrefix(path, "/"), nil)
	if err != nil {
		return "", fmt.Errorf("forge: get contents: %w", err)
	}
	g.checkRateLimit(resp)
	if file == nil {
		if dir != nil {
			return "", fmt.Errorf("forge: %s is a directory", path)
		}
		return "", errors.New("forge: empty response")
	}
	text, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("forge: decode %s: %w", path, err)
	}
	return text, nil
}
