package tools

import (
	"context"
	"errors"
	"strings"
)

// GitHub tool names.
const (
	ToolGitHubReadme    = "github_get_readme"
	ToolGitHubListFiles = "github_list_files"
	ToolGitHubFileCode  = "github_get_file_code"
)

// RepoReader reads public repository content. *forge.GitHub implements it.
type RepoReader interface {
	Readme(ctx context.Context, repoURL string) (string, error)
	ListFiles(ctx context.Context, repoURL string) ([]string, error)
	FileContent(ctx context.Context, repoURL, path string) (string, error)
}

// GitHubSpecs declares the repository reading tools.
func GitHubSpecs() []Spec {
	repo := stringParam("repo_url", "The GitHub repository URL, for example https://github.com/owner/repo.")
	return []Spec{
		{
			Name:        ToolGitHubReadme,
			Description: "Get the README of a GitHub repository.",
			Params:      []Param{repo},
		},
		{
			Name:        ToolGitHubListFiles,
			Description: "List every file in a GitHub repository.",
			Params:      []Param{repo},
		},
		{
			Name:        ToolGitHubFileCode,
			Description: "Get the contents of one file in a GitHub repository.",
			Params: []Param{
				repo,
				stringParam("file_path", "Path of the file inside the repository."),
			},
		},
	}
}

// GitHubTools implements the github_* tools over a RepoReader.
type GitHubTools struct {
	repo RepoReader
}

// NewGitHubTools creates the GitHub tools.
func NewGitHubTools(repo RepoReader) *GitHubTools {
	return &GitHubTools{repo: repo}
}

// Register binds the github_* tools.
func (g *GitHubTools) Register(d *Dispatcher) error {
	return errors.Join(
		d.Register(ToolGitHubReadme, Typed(ToolGitHubReadme, g.readme)),
		d.Register(ToolGitHubListFiles, Typed(ToolGitHubListFiles, g.listFiles)),
		d.Register(ToolGitHubFileCode, Typed(ToolGitHubFileCode, g.fileCode)),
	)
}

type repoArgs struct {
	RepoURL  string `json:"repo_url"`
	FilePath string `json:"file_path"`
}

func (g *GitHubTools) readme(ctx context.Context, args repoArgs) Result {
	text, err := g.repo.Readme(ctx, args.RepoURL)
	if err != nil {
		return Failure(ToolGitHubReadme, "You tried to look at "+args.RepoURL, err)
	}
	return Success(ToolGitHubReadme, "You looked at "+args.RepoURL, "Here is the readme content: "+text)
}

func (g *GitHubTools) listFiles(ctx context.Context, args repoArgs) Result {
	files, err := g.repo.ListFiles(ctx, args.RepoURL)
	if err != nil {
		return Failure(ToolGitHubListFiles, "You tried to look at "+args.RepoURL, err)
	}
	return Success(ToolGitHubListFiles, "You looked at "+args.RepoURL,
		"Here is the list of files:\n"+strings.Join(files, "\n"))
}

func (g *GitHubTools) fileCode(ctx context.Context, args repoArgs) Result {
	code, err := g.repo.FileContent(ctx, args.RepoURL, args.FilePath)
	if err != nil {
		return Failure(ToolGitHubFileCode, "You tried to look at "+args.FilePath, err)
	}
	return Success(ToolGitHubFileCode, "You looked at "+args.FilePath, "Here is the code: "+code)
}
