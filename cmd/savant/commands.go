package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/savant/examples"
	"github.com/nugget/savant/internal/agent"
	"github.com/nugget/savant/internal/config"
	"github.com/nugget/savant/internal/tools"
	"github.com/nugget/savant/internal/usage"
)

// runOptions are the arguments of "savant run".
type runOptions struct {
	prompt   string
	provider string
	runID    int64
}

func parseRunArgs(args []string) (runOptions, error) {
	var opts runOptions
	var words []string
	for i := 0; i < len(args); i++ {
		flagValue := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("flag %s needs a value", args[i])
			}
			i++
			return args[i], nil
		}
		switch a := args[i]; {
		case a == "-prompt" || a == "--prompt":
			v, err := flagValue()
			if err != nil {
				return opts, err
			}
			opts.prompt = v
		case strings.HasPrefix(a, "-prompt="):
			opts.prompt = strings.TrimPrefix(a, "-prompt=")
		case a == "-provider" || a == "--provider":
			v, err := flagValue()
			if err != nil {
				return opts, err
			}
			opts.provider = v
		case strings.HasPrefix(a, "-provider="):
			opts.provider = strings.TrimPrefix(a, "-provider=")
		case a == "-run-id" || a == "--run-id" || strings.HasPrefix(a, "-run-id="):
			v := strings.TrimPrefix(a, "-run-id=")
			if v == a {
				var err error
				if v, err = flagValue(); err != nil {
					return opts, err
				}
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return opts, fmt.Errorf("invalid run id %q", v)
			}
			opts.runID = id
		case strings.HasPrefix(a, "-"):
			return opts, fmt.Errorf("unknown run flag: %s", a)
		default:
			words = append(words, a)
		}
	}
	if opts.prompt == "" {
		opts.prompt = strings.Join(words, " ")
	}
	if strings.TrimSpace(opts.prompt) == "" {
		return opts, fmt.Errorf("usage: savant run -prompt <task> [-provider openai|anthropic] [-run-id N]")
	}
	opts.provider = strings.ToLower(opts.provider)
	return opts, nil
}

// runTask handles "savant run". SIGINT and SIGTERM cancel the run
// between turns; the partial result is still printed.
func runTask(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, opts runOptions) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, cfg)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	provider := cfg.Provider
	if opts.provider != "" {
		provider = opts.provider
	}

	st, err := openStores(ctx, cfg, cfg.Usage.Enabled)
	if err != nil {
		return err
	}
	defer st.Close()

	ws, err := tools.NewWorkspace(cfg.Workspace.Path)
	if err != nil {
		return err
	}
	catalog, err := tools.NewDefaultCatalog()
	if err != nil {
		return err
	}
	logShadowed(catalog, logger)

	var echo io.Writer
	if lvl, _ := config.ParseLogLevel(cfg.LogLevel); lvl <= slog.LevelDebug {
		echo = stderr
	}
	d, err := buildDispatcher(cfg, catalog, ws, echo, logger)
	if err != nil {
		return err
	}

	sup, err := newSupervisor(cfg, provider, st, ws, d, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, runErr := sup.Run(ctx, opts.prompt, opts.runID)
	if res != nil {
		if err := printResult(stdout, outputFmt, res); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

func printResult(w io.Writer, outputFmt string, res *agent.Result) error {
	if outputFmt == "json" {
		return writeJSON(w, res)
	}
	cell := func(s string) string {
		s = strings.ReplaceAll(s, "|", `\|`)
		return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "<br>")
	}
	fmt.Fprintln(w, "| Field | Value |")
	fmt.Fprintln(w, "|---|---|")
	fmt.Fprintf(w, "| plan | %s |\n", cell(res.Plan))
	fmt.Fprintf(w, "| result | %s |\n", cell(res.Result))
	fmt.Fprintf(w, "| total_tokens | %d |\n", res.TotalTokens)
	fmt.Fprintf(w, "| total_turns | %d |\n", res.TotalTurns)
	fmt.Fprintf(w, "| run_number | %d |\n", res.RunNumber)
	fmt.Fprintf(w, "| terminated | %t |\n", res.Terminated)
	return nil
}

// runHistory handles "savant history <run_id>".
func runHistory(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, rawID string) error {
	runID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", rawID)
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	withLedger := cfg.Usage.Enabled
	if withLedger {
		if _, err := os.Stat(cfg.Usage.Path); err != nil {
			withLedger = false
		}
	}
	st, err := openStores(ctx, cfg, withLedger)
	if err != nil {
		return err
	}
	defer st.Close()

	turns, err := st.turns.Turns(ctx, runID)
	if err != nil {
		return err
	}
	var spent *usage.Summary
	if st.ledger != nil {
		if spent, err = st.ledger.RunSummary(ctx, runID); err != nil {
			return err
		}
	}

	if outputFmt == "json" {
		return writeJSON(stdout, map[string]any{"run_id": runID, "turns": turns, "usage": spent})
	}
	if len(turns) == 0 {
		fmt.Fprintf(stdout, "No turns recorded for run %d\n", runID)
		return nil
	}
	for _, t := range turns {
		mark := ""
		if t.Terminal {
			mark = " (terminal)"
		}
		fmt.Fprintf(stdout, "#%d %s %s %s%s\n", t.Seq, t.CreatedAt.Local().Format(time.DateTime), t.Tool, t.Status, mark)
		fmt.Fprintf(stdout, "  attempt: %s\n", t.Attempt)
		if t.Stdout != "" {
			fmt.Fprintf(stdout, "  stdout:  %s\n", indent(t.Stdout))
		}
		if t.Stderr != "" {
			fmt.Fprintf(stdout, "  stderr:  %s\n", indent(t.Stderr))
		}
		fmt.Fprintf(stdout, "  tokens:  %d (prompt %d, response %d)\n", t.TotalTokens, t.PromptTokens, t.ResponseTokens)
	}
	if spent != nil && spent.TotalRecords > 0 {
		fmt.Fprintf(stdout, "\n%d model calls, %d input / %d output tokens, $%.4f\n",
			spent.TotalRecords, spent.TotalInputTokens, spent.TotalOutputTokens, spent.TotalCostUSD)
	}
	return nil
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n           ")
}

// runTools handles "savant tools".
func runTools(stdout io.Writer, outputFmt string) error {
	catalog, err := tools.NewDefaultCatalog()
	if err != nil {
		return err
	}
	shadowedBy := make(map[string]string)
	for _, s := range catalog.Shadowed() {
		shadowedBy[s.Tool] = s.By
	}

	if outputFmt == "json" {
		type entry struct {
			Tool       string   `json:"tool"`
			Keys       []string `json:"required_keys"`
			ShadowedBy string   `json:"shadowed_by,omitempty"`
		}
		var out []entry
		for _, m := range catalog.Matchers() {
			out = append(out, entry{Tool: m.Tool, Keys: m.Keys, ShadowedBy: shadowedBy[m.Tool]})
		}
		return writeJSON(stdout, out)
	}

	for i, m := range catalog.Matchers() {
		fmt.Fprintf(stdout, "%2d. %-24s %s", i+1, m.Tool, strings.Join(m.Keys, ", "))
		if by, ok := shadowedBy[m.Tool]; ok {
			fmt.Fprintf(stdout, "  (shadowed by %s; call by name)", by)
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

// runUsage handles "savant usage [-days N]".
func runUsage(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	days := 30
	for i := 0; i < len(args); i++ {
		v, ok := strings.CutPrefix(args[i], "-days=")
		if !ok && args[i] == "-days" && i+1 < len(args) {
			v, ok = args[i+1], true
			i++
		}
		if !ok {
			return fmt.Errorf("unknown usage flag: %s", args[i])
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid -days %q", v)
		}
		days = n
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Usage.Path); err != nil {
		return fmt.Errorf("no usage ledger at %s", cfg.Usage.Path)
	}
	ledger, err := usage.NewStore(ledgerDriver(cfg.Memory.Driver), cfg.Usage.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	end := time.Now()
	start := end.AddDate(0, 0, -days)
	total, err := ledger.Summary(ctx, start, end)
	if err != nil {
		return err
	}
	byModel, err := ledger.SummaryByModel(ctx, start, end)
	if err != nil {
		return err
	}
	byRole, err := ledger.SummaryByRole(ctx, start, end)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		return writeJSON(stdout, map[string]any{"days": days, "total": total, "by_model": byModel, "by_role": byRole})
	}
	fmt.Fprintf(stdout, "Last %d days: %d calls, %d input / %d output tokens, $%.4f\n",
		days, total.TotalRecords, total.TotalInputTokens, total.TotalOutputTokens, total.TotalCostUSD)
	for _, group := range []struct {
		title string
		sums  map[string]*usage.Summary
	}{{"By model", byModel}, {"By role", byRole}} {
		if len(group.sums) == 0 {
			continue
		}
		fmt.Fprintf(stdout, "\n%s:\n", group.title)
		for _, key := range slices.Sorted(maps.Keys(group.sums)) {
			s := group.sums[key]
			fmt.Fprintf(stdout, "  %-28s %6d calls  $%.4f\n", key, s.TotalRecords, s.TotalCostUSD)
		}
	}
	return nil
}

// runInit writes a starter config.yaml into dir. Existing files are
// never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Savant workspace in %s\n", dir)

	for _, sub := range []string{"data", "runs"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	switch {
	case errors.Is(err, os.ErrExist):
		fmt.Fprintf(w, "  - %s (exists, skipped)\n", configPath)
		return nil
	case err != nil:
		return fmt.Errorf("create %s: %w", configPath, err)
	}
	defer f.Close()
	if _, err := f.Write(examples.ConfigYAML); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)
	return nil
}
