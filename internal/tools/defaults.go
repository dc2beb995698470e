package tools

import "slices"

// DefaultSpecs returns every built-in tool spec.
func DefaultSpecs() []Spec {
	return slices.Concat(
		ProcessSpecs(),
		CodeSpecs(),
		AgentSpecs(),
		GitHubSpecs(),
		PaperSpecs(),
		WebSpecs(),
	)
}

// DefaultMatchOrder is the structural match table for DefaultSpecs.
// Tools needing more keys come first so a superset of keys is never
// captured by a tool that needs fewer.
func DefaultMatchOrder() []string {
	return []string{
		ToolInsertCode,
		ToolReplaceCode,
		ToolScratchpad,
		ToolGitHubFileCode,
		ToolReturnFn,
		ToolWriteCode,
		ToolDeleteCode,
		ToolRunPython,
		ToolRunBash,
		ToolThought,
		ToolNavigate,
		ToolGitHubReadme,
		ToolGitHubListFiles,
		ToolSearchPapers,
		ToolSearchInternet,
		ToolSearchPWC,
		ToolPaperDetails,
		ToolPaperAbstract,
		ToolPaperCitations,
		ToolDownloadPaper,
		ToolPaperDetailsPWC,
		ToolCodeLinksPWC,
	}
}

// NewDefaultCatalog builds the catalog of built-in tools.
func NewDefaultCatalog() (*Catalog, error) {
	return NewCatalog(DefaultSpecs(), DefaultMatchOrder())
}
