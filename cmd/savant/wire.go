package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nugget/savant/internal/agent"
	"github.com/nugget/savant/internal/config"
	"github.com/nugget/savant/internal/fetch"
	"github.com/nugget/savant/internal/forge"
	"github.com/nugget/savant/internal/httpkit"
	"github.com/nugget/savant/internal/llm"
	"github.com/nugget/savant/internal/memory"
	"github.com/nugget/savant/internal/scholar"
	"github.com/nugget/savant/internal/search"
	"github.com/nugget/savant/internal/supervisor"
	"github.com/nugget/savant/internal/tokenizer"
	"github.com/nugget/savant/internal/tools"
	"github.com/nugget/savant/internal/usage"
)

// loadConfig loads .env, then the config file. With no explicit path
// and no file in the search path, built-in defaults are used.
func loadConfig(explicit string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, "", err
	}

	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		cfg := config.Default()
		return cfg, "", cfg.Validate()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	return config.NewLogger(w, cfg.LogLevel, cfg.LogFormat)
}

// stores holds the persistent state shared by every command.
type stores struct {
	turns  memory.Store
	ledger *usage.Store
}

func openStores(ctx context.Context, cfg *config.Config, withLedger bool) (*stores, error) {
	turns, err := memory.Open(ctx, cfg.Memory)
	if err != nil {
		return nil, err
	}
	s := &stores{turns: turns}
	if withLedger {
		if err := os.MkdirAll(filepath.Dir(cfg.Usage.Path), 0o755); err != nil {
			turns.Close()
			return nil, fmt.Errorf("create usage directory: %w", err)
		}
		ledger, err := usage.NewStore(ledgerDriver(cfg.Memory.Driver), cfg.Usage.Path)
		if err != nil {
			turns.Close()
			return nil, err
		}
		s.ledger = ledger
	}
	return s, nil
}

// ledgerDriver follows the turn store's SQLite driver so a pure-Go
// build never needs cgo.
func ledgerDriver(memoryDriver string) string {
	if memoryDriver == memory.DriverPure {
		return memory.DriverPure
	}
	return memory.DriverCgo
}

func (s *stores) Close() error {
	var errs []error
	errs = append(errs, s.turns.Close())
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	return errors.Join(errs...)
}

// buildDispatcher registers every tool whose collaborator is available.
func buildDispatcher(cfg *config.Config, catalog *tools.Catalog, ws *tools.Workspace, echo io.Writer, logger *slog.Logger) (*tools.Dispatcher, error) {
	d := tools.NewDispatcher(catalog, logger)

	runner := tools.NewRunner(tools.RunnerConfig{
		Shell:          cfg.Tools.Shell.Shell,
		Python:         cfg.Tools.Shell.Python,
		Timeout:        cfg.Tools.Shell.Timeout,
		DeniedPatterns: tools.DefaultDeniedPatterns(),
		Echo:           echo,
	}, ws, logger)

	httpClient := httpkit.NewClient(httpkit.WithLogger(logger))
	gh, err := forge.NewGitHub(httpClient, cfg.Tools.GitHub.Token, "", logger)
	if err != nil {
		return nil, err
	}
	if cfg.Tools.GitHub.Token == "" {
		logger.Info("no GitHub token configured, using anonymous rate limits")
	}

	sc := cfg.Tools.Scholar
	scholarClient := scholar.DefaultClient()
	papers := tools.NewPaperTools(
		scholar.NewSemanticScholar(sc.SemanticScholarKey, sc.SemanticScholarURL, scholarClient),
		scholar.NewArxiv(sc.ArxivURL, scholarClient),
		scholar.NewPapersWithCode(sc.PapersWithCodeURL, scholarClient),
		ws,
	)

	searcher := search.NewManager(cfg.Tools.Search.Default)
	if cfg.Tools.Search.You.Configured() {
		searcher.Register(search.NewYou(cfg.Tools.Search.You.APIKey, "", nil))
	}
	if cfg.Tools.Search.Brave.Configured() {
		searcher.Register(search.NewBrave(cfg.Tools.Search.Brave.APIKey, "", nil))
	}
	if !searcher.Configured() {
		logger.Warn("no search provider configured, search_the_internet is unavailable")
	}
	web := tools.NewWebTools(searcher, fetch.New(nil), cfg.Tools.Search.Results, cfg.Tools.Web.MaxChars)

	for _, r := range []interface{ Register(*tools.Dispatcher) error }{
		runner,
		tools.NewCodeEditor(ws),
		tools.NewNotebook(ws),
		tools.NewGitHubTools(gh),
		papers,
		web,
	} {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// newClient builds the model client for provider.
func newClient(provider string, pc config.ProviderConfig, logger *slog.Logger) (llm.Client, error) {
	switch provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIClient(pc.APIKey, pc.BaseURL, logger), nil
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(pc.APIKey, pc.BaseURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: openai, anthropic)", provider)
	}
}

// newSupervisor assembles the planner, gateway and worker for provider.
func newSupervisor(cfg *config.Config, provider string, st *stores, ws *tools.Workspace, d *tools.Dispatcher, logger *slog.Logger) (*supervisor.Supervisor, error) {
	pc := cfg.OpenAI
	if provider == config.ProviderAnthropic {
		pc = cfg.Anthropic
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", provider)
	}
	client, err := newClient(provider, pc, logger)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.NewTiktoken(cfg.Gateway.Encoding)
	if err != nil {
		return nil, err
	}

	var rec *usage.Recorder
	if cfg.Usage.Enabled && st.ledger != nil {
		rec = usage.NewRecorder(st.ledger, cfg.Usage.Pricing)
	}

	catalog := d.Catalog()
	gw := llm.NewGateway(client, catalog, tok, llm.GatewayConfig{
		Model:             pc.Model,
		MaxContextTokens:  pc.MaxContextTokens,
		ReservedTokens:    cfg.Gateway.ReservedTokens,
		MaxResponseTokens: cfg.Gateway.MaxResponseTokens,
		Temperature:       cfg.Gateway.Temperature,
		// Anthropic replies are not counted toward the response budget.
		CountResponseTokens: provider == config.ProviderOpenAI,
	}, logger)

	worker := agent.NewWorker(gw, d, st.turns, ws, rec, agent.ConfigFrom(cfg.Worker), logger)

	names := make([]string, 0, len(catalog.AllSpecs()))
	for _, s := range catalog.AllSpecs() {
		names = append(names, s.Name)
	}
	planner := supervisor.NewPlanner(client, supervisor.PlannerConfig{
		Model:       pc.Model,
		Temperature: cfg.Gateway.Temperature,
		MaxTokens:   cfg.Gateway.MaxResponseTokens,
	}, names, rec, logger)

	return supervisor.New(planner, worker, cfg.UserID, logger), nil
}

func logShadowed(catalog *tools.Catalog, logger *slog.Logger) {
	for _, s := range catalog.Shadowed() {
		logger.Debug("tool only reachable by name", "tool", s.Tool, "shadowed_by", s.By)
	}
}
