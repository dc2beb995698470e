package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nugget/savant/internal/scholar"
)

// Literature tool names.
const (
	ToolSearchPapers    = "search_papers"
	ToolPaperDetails    = "get_paper_details"
	ToolPaperAbstract   = "get_paper_abstract"
	ToolPaperCitations  = "get_paper_citations"
	ToolDownloadPaper   = "download_paper"
	ToolSearchPWC       = "search_papers_with_code"
	ToolPaperDetailsPWC = "get_paper_details_pwc"
	ToolCodeLinksPWC    = "get_code_links_pwc"
)

// papersDir is created inside the run directory for downloaded PDFs.
const papersDir = "papers"

const pwcSearchLimit = 10

// PaperIndex searches and describes papers. *scholar.SemanticScholar
// implements it.
type PaperIndex interface {
	Search(ctx context.Context, query string, limit int) ([]scholar.Paper, error)
	Paper(ctx context.Context, paperID, fields string) (*scholar.Paper, error)
	Citations(ctx context.Context, paperID string, limit int) ([]scholar.Paper, error)
}

// PaperDownloader saves a PDF by arXiv id. *scholar.Arxiv implements it.
type PaperDownloader interface {
	Download(ctx context.Context, arxivID, dir string) (string, error)
}

// CodeIndex links papers to code. *scholar.PapersWithCode implements it.
type CodeIndex interface {
	Search(ctx context.Context, query string, limit int) ([]scholar.PWCPaper, error)
	Paper(ctx context.Context, id string) (*scholar.PWCPaper, error)
	Repositories(ctx context.Context, id string) ([]scholar.Repository, error)
}

// PaperSpecs declares the literature tools.
func PaperSpecs() []Spec {
	s2ID := stringParam("paper_id", "The Semantic Scholar paper ID.")
	pwcID := stringParam("paper_id", "The Papers with Code paper ID.")
	return []Spec{
		{
			Name:        ToolSearchPapers,
			Description: "Search Semantic Scholar for papers using simple terms, for example 'attention mechanism'.",
			Params:      []Param{stringParam("query", "The search query.")},
		},
		{
			Name:        ToolPaperDetails,
			Description: "Get the title, year, authors and abstract of a paper from Semantic Scholar.",
			Params:      []Param{s2ID},
		},
		{
			Name:        ToolPaperAbstract,
			Description: "Get only the title and abstract of a paper from Semantic Scholar.",
			Params:      []Param{s2ID},
		},
		{
			Name:        ToolPaperCitations,
			Description: "List papers that cite a paper on Semantic Scholar.",
			Params:      []Param{s2ID},
		},
		{
			Name:        ToolDownloadPaper,
			Description: "Download the PDF of a paper from arXiv into the papers directory of your working directory.",
			Params:      []Param{s2ID},
		},
		{
			Name:        ToolSearchPWC,
			Description: "Search Papers with Code for papers that have code implementations.",
			Params:      []Param{stringParam("query", "The search query.")},
		},
		{
			Name:        ToolPaperDetailsPWC,
			Description: "Get details of a paper from Papers with Code.",
			Params:      []Param{pwcID},
		},
		{
			Name:        ToolCodeLinksPWC,
			Description: "List code repositories linked to a paper on Papers with Code.",
			Params:      []Param{pwcID},
		},
	}
}

// PaperTools implements the literature tools.
type PaperTools struct {
	index      PaperIndex
	downloader PaperDownloader
	code       CodeIndex
	ws         *Workspace
}

// NewPaperTools creates the literature tools. Nil collaborators leave
// their tools unbound.
func NewPaperTools(index PaperIndex, downloader PaperDownloader, code CodeIndex, ws *Workspace) *PaperTools {
	return &PaperTools{index: index, downloader: downloader, code: code, ws: ws}
}

// Register binds every tool whose collaborator is present.
func (p *PaperTools) Register(d *Dispatcher) error {
	var errs []error
	if p.index != nil {
		errs = append(errs,
			d.Register(ToolSearchPapers, Typed(ToolSearchPapers, p.searchPapers)),
			d.Register(ToolPaperDetails, Typed(ToolPaperDetails, p.paperDetails)),
			d.Register(ToolPaperAbstract, Typed(ToolPaperAbstract, p.paperAbstract)),
			d.Register(ToolPaperCitations, Typed(ToolPaperCitations, p.paperCitations)),
		)
		if p.downloader != nil {
			errs = append(errs, d.Register(ToolDownloadPaper, Typed(ToolDownloadPaper, p.downloadPaper)))
		}
	}
	if p.code != nil {
		errs = append(errs,
			d.Register(ToolSearchPWC, Typed(ToolSearchPWC, p.searchPWC)),
			d.Register(ToolPaperDetailsPWC, Typed(ToolPaperDetailsPWC, p.paperDetailsPWC)),
			d.Register(ToolCodeLinksPWC, Typed(ToolCodeLinksPWC, p.codeLinksPWC)),
		)
	}
	return errors.Join(errs...)
}

type paperArgs struct {
	PaperID string `json:"paper_id"`
}

func (p *PaperTools) searchPapers(ctx context.Context, args queryArgs) Result {
	papers, err := p.index.Search(ctx, args.Query, scholar.SearchLimit)
	if err != nil {
		return Failure(ToolSearchPapers, "You tried to search for "+args.Query, err)
	}
	return Success(ToolSearchPapers, "You searched for "+args.Query,
		"Here are the search results:\n"+formatPapers(papers))
}

func (p *PaperTools) paperDetails(ctx context.Context, args paperArgs) Result {
	paper, err := p.index.Paper(ctx, args.PaperID, "")
	if err != nil {
		return Failure(ToolPaperDetails, "You tried to look at "+args.PaperID, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "title: %s\n", paper.Title)
	if paper.Year != 0 {
		fmt.Fprintf(&b, "year: %d\n", paper.Year)
	}
	if authors := paper.AuthorNames(); authors != "" {
		fmt.Fprintf(&b, "authors: %s\n", authors)
	}
	if id := paper.ArxivID(); id != "" {
		fmt.Fprintf(&b, "arxiv_id: %s\n", id)
	}
	if paper.URL != "" {
		fmt.Fprintf(&b, "url: %s\n", paper.URL)
	}
	fmt.Fprintf(&b, "abstract: %s", paper.Abstract)
	return Success(ToolPaperDetails, "You looked at "+args.PaperID, "Here are the paper details:\n"+b.String())
}

func (p *PaperTools) paperAbstract(ctx context.Context, args paperArgs) Result {
	paper, err := p.index.Paper(ctx, args.PaperID, "title,abstract")
	if err != nil {
		return Failure(ToolPaperAbstract, "You tried to read the abstract of "+args.PaperID, err)
	}
	return Success(ToolPaperAbstract, "You read the abstract of "+args.PaperID,
		fmt.Sprintf("title: %s\nabstract: %s", paper.Title, paper.Abstract))
}

func (p *PaperTools) paperCitations(ctx context.Context, args paperArgs) Result {
	papers, err := p.index.Citations(ctx, args.PaperID, scholar.SearchLimit)
	if err != nil {
		return Failure(ToolPaperCitations, "You tried to look at "+args.PaperID, err)
	}
	return Success(ToolPaperCitations, "You looked at "+args.PaperID, "Here are the citations:\n"+formatPapers(papers))
}

func (p *PaperTools) downloadPaper(ctx context.Context, args paperArgs) Result {
	attempt := "You tried to download " + args.PaperID
	runID, ok := RunIDFromContext(ctx)
	if !ok {
		return Failure(ToolDownloadPaper, attempt, errors.New("no run in context"))
	}
	paper, err := p.index.Paper(ctx, args.PaperID, "externalIds")
	if err != nil {
		return Failure(ToolDownloadPaper, attempt, err)
	}
	arxivID := paper.ArxivID()
	if arxivID == "" {
		return Failure(ToolDownloadPaper, attempt, fmt.Errorf("paper %s has no arXiv id", args.PaperID))
	}
	path, err := p.downloader.Download(ctx, arxivID, filepath.Join(p.ws.RunDir(runID), papersDir))
	if err != nil {
		return Failure(ToolDownloadPaper, attempt, err)
	}
	rel, err := filepath.Rel(p.ws.Root(), path)
	if err != nil {
		rel = path
	}
	return Success(ToolDownloadPaper, "You downloaded "+args.PaperID, "The paper was saved to "+rel)
}

func (p *PaperTools) searchPWC(ctx context.Context, args queryArgs) Result {
	papers, err := p.code.Search(ctx, args.Query, pwcSearchLimit)
	if err != nil {
		return Failure(ToolSearchPWC, fmt.Sprintf("You tried to search for '%s'", args.Query), err)
	}
	var b strings.Builder
	for _, paper := range papers {
		fmt.Fprintf(&b, "Title: %s\nPaper ID: %s\nURL: %s\n\n", paper.Title, paper.ID, paper.URLAbs)
	}
	return Success(ToolSearchPWC, fmt.Sprintf("You searched for '%s'", args.Query),
		"Here are the top search results:\n"+strings.TrimSpace(b.String()))
}

func (p *PaperTools) paperDetailsPWC(ctx context.Context, args paperArgs) Result {
	paper, err := p.code.Paper(ctx, args.PaperID)
	if err != nil {
		return Failure(ToolPaperDetailsPWC, fmt.Sprintf("You tried to retrieve details for paper ID '%s'", args.PaperID), err)
	}
	tasks := make([]string, len(paper.Tasks))
	for i, t := range paper.Tasks {
		tasks[i] = t.Name
	}
	out := fmt.Sprintf("Title: %s\nAuthors: %s\nAbstract: %s\nPDF URL: %s\nAbstract URL: %s\nTasks: %s",
		paper.Title, strings.Join(paper.Authors, ", "), paper.Abstract, paper.URLPDF, paper.URLAbs, strings.Join(tasks, ", "))
	return Success(ToolPaperDetailsPWC, fmt.Sprintf("You retrieved details for paper ID '%s'", args.PaperID), out)
}

func (p *PaperTools) codeLinksPWC(ctx context.Context, args paperArgs) Result {
	repos, err := p.code.Repositories(ctx, args.PaperID)
	if err != nil {
		return Failure(ToolCodeLinksPWC, fmt.Sprintf("You tried to retrieve code links for paper ID '%s'", args.PaperID), err)
	}
	out := "No code repositories found for this paper."
	if len(repos) > 0 {
		var b strings.Builder
		for _, r := range repos {
			fmt.Fprintf(&b, "Repository Name: %s\nURL: %s\n", r.Name, r.URL)
			if r.IsOfficial {
				b.WriteString("Official: yes\n")
			}
			b.WriteString("\n")
		}
		out = strings.TrimSpace(b.String())
	}
	return Success(ToolCodeLinksPWC, fmt.Sprintf("You retrieved code links for paper ID '%s'", args.PaperID), out)
}

func formatPapers(papers []scholar.Paper) string {
	if len(papers) == 0 {
		return "No papers found."
	}
	var b strings.Builder
	for _, p := range papers {
		fmt.Fprintf(&b, "title: %s\nabstract: %s\npaper_id: %s\n", p.Title, p.Abstract, p.PaperID)
		if id := p.ArxivID(); id != "" {
			fmt.Fprintf(&b, "arxiv_id: %s\n", id)
		}
		b.WriteString(strings.Repeat("-", 47) + "\n")
	}
	return strings.TrimSpace(b.String())
}
