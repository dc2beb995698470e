// Package config handles savant configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted by the provider selector.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/savant/config.yaml, /etc/savant/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "savant", "config.yaml"))
	}

	paths = append(paths, "/etc/savant/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// LoadDotEnv loads KEY=value pairs from a .env file into the process
// environment. Variables already set are left alone. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Config holds all savant configuration.
type Config struct {
	// Provider selects the model provider for both planner and worker.
	Provider string `yaml:"provider"`

	OpenAI    ProviderConfig  `yaml:"openai"`
	Anthropic ProviderConfig  `yaml:"anthropic"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Worker    WorkerConfig    `yaml:"worker"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Memory    MemoryConfig    `yaml:"memory"`
	Tools     ToolsConfig     `yaml:"tools"`
	Usage     UsageConfig     `yaml:"usage"`

	UserID    int    `yaml:"user_id"`
	DataDir   string `yaml:"data_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json
}

// ProviderConfig holds credentials and limits for one model provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// MaxContextTokens is the provider's prompt budget before the
	// reserved margin and system prompt are subtracted.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// GatewayConfig tunes prompt truncation and sampling.
type GatewayConfig struct {
	Encoding          string  `yaml:"encoding"`
	ReservedTokens    int     `yaml:"reserved_tokens"`
	MaxResponseTokens int     `yaml:"max_response_tokens"`
	Temperature       float64 `yaml:"temperature"`
}

// WorkerConfig controls the subtask loop.
type WorkerConfig struct {
	// TaskDuration is the advisory time budget shown in every prompt.
	TaskDuration time.Duration `yaml:"task_duration"`
	// ShortTermTurns is how many recent turns are replayed into the prompt.
	ShortTermTurns int `yaml:"short_term_turns"`
	// MaxTurns stops a run after this many model calls. Zero means no limit.
	MaxTurns int `yaml:"max_turns"`
	// TerminationTool names the tool that ends a run.
	TerminationTool string `yaml:"termination_tool"`
	// SubstringTermination also ends the run when any attempt text
	// contains TerminationTool. Defaults to true.
	SubstringTermination *bool `yaml:"substring_termination"`
}

// WorkspaceConfig defines where run directories are created.
type WorkspaceConfig struct {
	// Path is the root directory; each run works in Path/<run_id>.
	Path string `yaml:"path"`
}

// MemoryConfig selects the turn store backend.
type MemoryConfig struct {
	// Driver is "sqlite3" (cgo), "sqlite" (pure Go) or "postgres".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn"`
}

// ToolsConfig holds per-collaborator tool settings.
type ToolsConfig struct {
	Shell   ShellConfig   `yaml:"shell"`
	GitHub  GitHubConfig  `yaml:"github"`
	Search  SearchConfig  `yaml:"search"`
	Scholar ScholarConfig `yaml:"scholar"`
	Web     WebConfig     `yaml:"web"`
}

// ShellConfig controls run_bash and run_python.
type ShellConfig struct {
	Shell   string        `yaml:"shell"`
	Python  string        `yaml:"python"`
	Timeout time.Duration `yaml:"timeout"`
}

// GitHubConfig configures the github_* tools.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// SearchConfig configures search_the_internet.
type SearchConfig struct {
	// Default names the provider used first ("you" or "brave").
	Default string            `yaml:"default"`
	You     SearchProviderKey `yaml:"you"`
	Brave   SearchProviderKey `yaml:"brave"`
	Results int               `yaml:"results"`
}

// SearchProviderKey holds a search provider credential.
type SearchProviderKey struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether the provider has a credential.
func (k SearchProviderKey) Configured() bool { return k.APIKey != "" }

// ScholarConfig configures the literature tools.
type ScholarConfig struct {
	SemanticScholarKey string `yaml:"semantic_scholar_key"`
	SemanticScholarURL string `yaml:"semantic_scholar_url"`
	PapersWithCodeURL  string `yaml:"papers_with_code_url"`
	ArxivURL           string `yaml:"arxiv_url"`
}

// WebConfig configures navigate_to_website.
type WebConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// UsageConfig controls the per-call token ledger.
type UsageConfig struct {
	Enabled bool                    `yaml:"enabled"`
	Path    string                  `yaml:"path"`
	Pricing map[string]PricingEntry `yaml:"pricing"`
}

// PricingEntry is the USD price per million tokens for one model.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Load reads configuration from a YAML file, expands ${VAR} references,
// fills environment fallbacks and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment fallbacks
// applied. Used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

// applyEnv fills secrets from the environment when the file left them empty.
func (c *Config) applyEnv() {
	fill := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&c.OpenAI.APIKey, "OPENAI_API_KEY", "OPENAI")
	fill(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY", "ANTHROPIC")
	fill(&c.Tools.GitHub.Token, "GITHUB_ACCESS_TOKEN", "GITHUB_TOKEN")
	fill(&c.Tools.Search.You.APIKey, "YOU_API_KEY")
	fill(&c.Tools.Search.Brave.APIKey, "BRAVE_API_KEY")
	fill(&c.Tools.Scholar.SemanticScholarKey, "SEMANTIC_SCHOLAR_API_KEY")
	fill(&c.Memory.DSN, "SAVANT_DATABASE_URL")
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	c.Provider = strings.ToLower(c.Provider)

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.MaxContextTokens == 0 {
		c.OpenAI.MaxContextTokens = 124000
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-3-5-sonnet-20240620"
	}
	if c.Anthropic.MaxContextTokens == 0 {
		c.Anthropic.MaxContextTokens = 200000
	}

	if c.Gateway.Encoding == "" {
		c.Gateway.Encoding = "cl100k_base"
	}
	if c.Gateway.ReservedTokens == 0 {
		c.Gateway.ReservedTokens = 100
	}
	if c.Gateway.MaxResponseTokens == 0 {
		c.Gateway.MaxResponseTokens = 1024
	}

	if c.Worker.TaskDuration == 0 {
		c.Worker.TaskDuration = 24 * time.Hour
	}
	if c.Worker.ShortTermTurns == 0 {
		c.Worker.ShortTermTurns = 5
	}
	if c.Worker.TerminationTool == "" {
		c.Worker.TerminationTool = "return_fn"
	}
	if c.Worker.SubstringTermination == nil {
		on := true
		c.Worker.SubstringTermination = &on
	}

	if c.UserID == 0 {
		c.UserID = 1
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Workspace.Path == "" {
		c.Workspace.Path = "."
	}

	if c.Memory.Driver == "" {
		c.Memory.Driver = "sqlite3"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = filepath.Join(c.DataDir, "turns.db")
	}
	if c.Usage.Path == "" {
		c.Usage.Path = filepath.Join(c.DataDir, "usage.db")
	}

	if c.Tools.Shell.Shell == "" {
		c.Tools.Shell.Shell = "bash"
	}
	if c.Tools.Shell.Python == "" {
		c.Tools.Shell.Python = "python3"
	}
	if c.Tools.Shell.Timeout == 0 {
		c.Tools.Shell.Timeout = time.Hour
	}
	if c.Tools.Search.Default == "" {
		c.Tools.Search.Default = "you"
	}
	if c.Tools.Search.Results == 0 {
		c.Tools.Search.Results = 5
	}
	if c.Tools.Web.MaxChars == 0 {
		c.Tools.Web.MaxChars = 1000
	}
}

// Validate checks for values that cannot work at runtime.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("provider %q is not supported (valid: openai, anthropic)", c.Provider))
	}

	switch c.Memory.Driver {
	case "sqlite", "sqlite3":
	case "postgres":
		if c.Memory.DSN == "" {
			errs = append(errs, errors.New("memory.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("memory.driver %q is not supported (valid: sqlite3, sqlite, postgres)", c.Memory.Driver))
	}

	if c.Gateway.ReservedTokens < 0 {
		errs = append(errs, errors.New("gateway.reserved_tokens must not be negative"))
	}
	if c.Worker.ShortTermTurns < 0 {
		errs = append(errs, errors.New("worker.short_term_turns must not be negative"))
	}
	if c.Worker.MaxTurns < 0 {
		errs = append(errs, errors.New("worker.max_turns must not be negative"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not supported (valid: text, json)", c.LogFormat))
	}

	return errors.Join(errs...)
}

// ActiveProvider returns the settings for the selected provider.
func (c *Config) ActiveProvider() ProviderConfig {
	if c.Provider == ProviderAnthropic {
		return c.Anthropic
	}
	return c.OpenAI
}
