package tools

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Dispatcher routes an action to exactly one registered handler.
type Dispatcher struct {
	catalog  *Catalog
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over catalog with no handlers.
func NewDispatcher(catalog *Catalog, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		catalog:  catalog,
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "dispatcher"),
	}
}

// Catalog returns the catalog the dispatcher routes against.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Register binds a handler to a catalog tool.
func (d *Dispatcher) Register(name string, h Handler) error {
	if _, ok := d.catalog.Spec(name); !ok {
		return fmt.Errorf("register %q: not in catalog", name)
	}
	d.handlers[name] = h
	return nil
}

// Registered reports whether name has a handler.
func (d *Dispatcher) Registered(name string) bool {
	_, ok := d.handlers[name]
	return ok
}

// Dispatch resolves and runs one action. When name is a catalog tool it
// is used directly; otherwise params are matched structurally against
// the catalog's match table. Dispatch always returns a well-formed
// result: a miss yields {tool: "none", status: "failure"}.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params map[string]any) Result {
	tool, ok := d.resolve(name, params)
	if !ok {
		keys := sortedKeys(params)
		d.logger.Info("no tool matched action", "name", name, "keys", keys)
		return Result{
			Tool:    ToolNone,
			Status:  StatusFailure,
			Attempt: "Your response did not match any tool",
			Stderr:  fmt.Sprintf("no tool accepts the parameters %v", keys),
		}
	}

	spec, _ := d.catalog.Spec(tool)
	if missing := missingKeys(spec, params); len(missing) > 0 {
		return Result{
			Tool:    tool,
			Status:  StatusFailure,
			Attempt: "Your call was rejected: missing required parameters",
			Stderr:  "missing required parameters: " + strings.Join(missing, ", "),
		}
	}

	h, ok := d.handlers[tool]
	if !ok {
		err := &ErrToolUnavailable{ToolName: tool, Reason: "not configured"}
		return Failure(tool, "Your call could not be run", err)
	}

	start := time.Now()
	res := d.invoke(ctx, tool, h, params)
	if res.Tool == "" {
		res.Tool = tool
	}
	if spec.Process {
		res.Stdout = Sanitize(res.Stdout)
		res.Stderr = Sanitize(res.Stderr)
	}
	if spec.Terminal && res.Status == StatusSuccess {
		res.Terminal = true
	}

	d.logger.Debug("tool executed",
		"tool", tool,
		"status", res.Status,
		"named", name == tool,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res
}

func (d *Dispatcher) resolve(name string, params map[string]any) (string, bool) {
	if name != "" {
		if _, ok := d.catalog.Spec(name); ok {
			return name, true
		}
		d.logger.Debug("unknown tool name, matching by parameters", "name", name)
	}
	return d.catalog.Match(params)
}

// invoke runs h and converts a panic into a failure result.
func (d *Dispatcher) invoke(ctx context.Context, tool string, h Handler, params map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", tool, "panic", r)
			res = Failure(tool, "Your call crashed", fmt.Errorf("panic: %v", r))
		}
	}()
	return h(ctx, params)
}

func missingKeys(spec Spec, params map[string]any) []string {
	var missing []string
	for _, k := range spec.RequiredKeys() {
		if _, ok := params[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
