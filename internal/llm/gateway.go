package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nugget/savant/internal/tokenizer"
)

// Action is the outcome of one model call. Exactly one of Params or
// Text is meaningful: a structured call carries Params (and Name when
// the provider reported one); free text carries Text.
type Action struct {
	Name   string
	Params map[string]any
	Text   string
}

// IsText reports whether the action is free text rather than a call.
func (a *Action) IsText() bool { return a.Params == nil }

// Usage is the token accounting for one gateway call.
// Total = System + Prompt + Response.
type Usage struct {
	Total    int
	System   int
	Prompt   int
	Response int

	// As reported by the provider, for the usage ledger.
	Model          string
	ProviderInput  int
	ProviderOutput int
}

// ToolSource supplies tool definitions in OpenAI function shape.
type ToolSource interface {
	Definitions() []map[string]any
}

// GatewayConfig tunes a Gateway.
type GatewayConfig struct {
	Model string
	// MaxContextTokens is the provider's prompt budget.
	MaxContextTokens int
	// ReservedTokens is kept free for the response.
	ReservedTokens    int
	MaxResponseTokens int
	Temperature       float64
	// CountResponseTokens tokenizes the reply for the response count.
	// When false the response count is 0, matching providers whose
	// structured replies were never counted.
	CountResponseTokens bool
}

// Gateway sends one prompt plus the tool catalog to a provider and
// returns a single action.
type Gateway struct {
	client       Client
	tools        ToolSource
	tok          tokenizer.Tokenizer
	cfg          GatewayConfig
	logger       *slog.Logger
	system       string
	systemTokens int
}

// NewGateway creates a gateway. Call WithSystemPrompt before use.
func NewGateway(client Client, tools ToolSource, tok tokenizer.Tokenizer, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client: client,
		tools:  tools,
		tok:    tok,
		cfg:    cfg,
		logger: logger.With("component", "gateway", "provider", client.Name()),
	}
}

// WithSystemPrompt returns a copy of g bound to system.
func (g *Gateway) WithSystemPrompt(system string) *Gateway {
	cp := *g
	cp.system = system
	cp.systemTokens = tokenizer.Count(g.tok, system)
	return &cp
}

// Provider returns the underlying client's name.
func (g *Gateway) Provider() string { return g.client.Name() }

// Model returns the configured model name.
func (g *Gateway) Model() string { return g.cfg.Model }

// Available is the prompt token budget left after the system prompt
// and the reserved margin.
func (g *Gateway) Available() int {
	return g.cfg.MaxContextTokens - g.systemTokens - g.cfg.ReservedTokens
}

// GenerateResponse truncates prompt to the available budget, sends it,
// and parses the reply into an action. A nil action means the reply had
// no usable content. Provider failures are returned as *ProviderError.
func (g *Gateway) GenerateResponse(ctx context.Context, prompt string) (*Action, Usage, error) {
	available := g.Available()
	if available <= 0 {
		g.logger.Warn("system prompt exhausts the context budget",
			"system_tokens", g.systemTokens,
			"max_context_tokens", g.cfg.MaxContextTokens,
		)
	}
	truncated, promptTokens := tokenizer.Truncate(g.tok, prompt, available)
	if truncated != prompt {
		g.logger.Debug("prompt truncated", "available", available, "prompt_tokens", promptTokens)
	}

	usage := Usage{System: g.systemTokens, Prompt: promptTokens, Model: g.cfg.Model}

	resp, err := g.client.Chat(ctx, &Request{
		Model: g.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: g.system},
			{Role: "user", Content: truncated},
		},
		Tools:       g.tools.Definitions(),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxResponseTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, usage, ctxErr
		}
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = &ProviderError{Provider: g.client.Name(), Err: err}
		}
		return nil, usage, err
	}

	usage.ProviderInput = resp.InputTokens
	usage.ProviderOutput = resp.OutputTokens
	if resp.Model != "" {
		usage.Model = resp.Model
	}

	action := actionFromResponse(resp)
	if action != nil && g.cfg.CountResponseTokens {
		usage.Response = g.countReply(resp)
	}
	usage.Total = usage.System + usage.Prompt + usage.Response

	return action, usage, nil
}

func (g *Gateway) countReply(resp *ChatResponse) int {
	if len(resp.Message.ToolCalls) > 0 {
		raw, err := json.Marshal(resp.Message.ToolCalls[0].Function.Arguments)
		if err != nil {
			return 0
		}
		return tokenizer.Count(g.tok, string(raw))
	}
	return tokenizer.Count(g.tok, resp.Message.Content)
}

// actionFromResponse prefers a native tool call, then a JSON object in
// the text, then the text itself.
func actionFromResponse(resp *ChatResponse) *Action {
	if len(resp.Message.ToolCalls) > 0 {
		fn := resp.Message.ToolCalls[0].Function
		params := fn.Arguments
		if params == nil {
			params = map[string]any{}
		}
		return &Action{Name: fn.Name, Params: params}
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return nil
	}
	if a := parseTextAction(text); a != nil {
		return a
	}
	return &Action{Text: text}
}

// parseTextAction recognizes a reply that is a single JSON object,
// optionally fenced. {"name": ..., "arguments"|"parameters"|"input": {...}}
// is a named call; any other non-empty object is a flat parameter set.
func parseTextAction(text string) *Action {
	text = stripFence(text)
	if !strings.HasPrefix(text, "{") {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || len(obj) == 0 {
		return nil
	}

	if name, ok := obj["name"].(string); ok && name != "" {
		for _, key := range []string{"arguments", "parameters", "input"} {
			if params, ok := obj[key].(map[string]any); ok {
				return &Action{Name: name, Params: params}
			}
		}
	}
	return &Action{Params: obj}
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
