// Package supervisor turns a task into a plan and hands both to the
// worker.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/savant/internal/llm"
	"github.com/nugget/savant/internal/prompts"
	"github.com/nugget/savant/internal/tools"
	"github.com/nugget/savant/internal/usage"
)

// ErrEmptyPlan is returned when the model's reply holds no steps.
var ErrEmptyPlan = errors.New("planner returned no steps")

var planSpec = tools.Spec{
	Name:        prompts.PlanToolName,
	Description: "Generate a plan for an AI agent, given a prompt",
	Params: []tools.Param{{
		Name:        "plan",
		Type:        "array",
		Items:       "string",
		Description: "the ordered steps of the plan",
		Required:    true,
	}},
}

// PlannerConfig tunes the planning call.
type PlannerConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Planner asks a model for a step-by-step plan.
type Planner struct {
	client llm.Client
	cfg    PlannerConfig
	system string
	usage  *usage.Recorder
	logger *slog.Logger
}

// NewPlanner creates a planner. toolNames are listed in the system
// prompt as the worker's capabilities. rec may be nil.
func NewPlanner(client llm.Client, cfg PlannerConfig, toolNames []string, rec *usage.Recorder, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		client: client,
		cfg:    cfg,
		system: prompts.PlannerSystem(toolNames),
		usage:  rec,
		logger: logger.With("component", "planner", "provider", client.Name()),
	}
}

// Plan returns the steps for task. The model is forced to call the
// plan tool; a free-text reply is split into lines instead.
func (p *Planner) Plan(ctx context.Context, runID int64, task string) ([]string, error) {
	resp, err := p.client.Chat(ctx, &llm.Request{
		Model: p.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: p.system},
			{Role: "user", Content: task},
		},
		Tools:       []map[string]any{planSpec.Definition()},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		ToolChoice:  prompts.PlanToolName,
	})
	if err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = p.cfg.Model
	}
	if err := p.usage.Observe(ctx, runID, usage.RolePlanner, p.client.Name(), model, resp.InputTokens, resp.OutputTokens); err != nil {
		p.logger.Warn("usage not recorded", "run_id", runID, "error", err)
	}

	var steps []string
	for _, call := range resp.Message.ToolCalls {
		if call.Function.Name != prompts.PlanToolName {
			continue
		}
		for _, key := range []string{"plan", "plans"} {
			if v, ok := call.Function.Arguments[key]; ok {
				steps = flatten(v, steps)
			}
		}
	}
	if len(steps) == 0 {
		steps = splitLines(resp.Message.Content)
	}
	if len(steps) == 0 {
		return nil, ErrEmptyPlan
	}

	p.logger.Debug("plan generated", "run_id", runID, "steps", len(steps))
	return steps, nil
}

// flatten appends the steps found in v. Models nest plans in several
// shapes: a list of strings, a list of {"plan": [...]} groups, or
// objects carrying the step under "step", "description" or "Subtask".
func flatten(v any, out []string) []string {
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range x {
			out = flatten(item, out)
		}
	case map[string]any:
		for _, key := range []string{"plan", "Subtask", "step", "description"} {
			if inner, ok := x[key]; ok {
				return flatten(inner, out)
			}
		}
	case nil:
	default:
		out = append(out, fmt.Sprint(x))
	}
	return out
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}
