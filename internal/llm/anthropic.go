package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/savant/internal/httpkit"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	anthropicPingModel  = "claude-3-5-haiku-20241022"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	url        string
	header     http.Header
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a client. An empty baseURL uses the
// public endpoint.
func NewAnthropicClient(apiKey, baseURL string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	url := anthropicAPIURL
	if baseURL != "" {
		url = strings.TrimRight(baseURL, "/") + "/v1/messages"
	}
	header := http.Header{}
	header.Set("x-api-key", apiKey)
	header.Set("anthropic-version", anthropicAPIVersion)

	return &AnthropicClient{
		url:    url,
		header: header,
		logger: logger.With("provider", "anthropic"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithResponseHeaderTimeout(120*time.Second),
			httpkit.WithRetry(2, 2*time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicResponse struct {
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends one non-streaming Messages request. System messages are
// lifted into the top-level system field.
func (c *AnthropicClient) Chat(ctx context.Context, req *Request) (*ChatResponse, error) {
	msgs, system := convertToAnthropic(req.Messages)
	areq := anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Tools:       convertToolsToAnthropic(req.Tools),
	}
	if areq.MaxTokens == 0 {
		areq.MaxTokens = 1024
	}
	if req.ToolChoice != "" {
		areq.ToolChoice = &anthropicToolChoice{Type: "tool", Name: req.ToolChoice}
	}
	c.logger.Debug("preparing request", "model", req.Model, "messages", len(msgs), "tools", len(areq.Tools))

	var ar anthropicResponse
	if err := postJSON(ctx, c.httpClient, c.logger, c.Name(), c.url, c.header, areq, &ar); err != nil {
		return nil, err
	}
	result := convertFromAnthropic(&ar)
	logResponse(ctx, c.logger, result)
	return result, nil
}

// Ping sends a one-token request to verify the key.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	_, err := c.Chat(ctx, &Request{
		Model:     anthropicPingModel,
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

func convertToAnthropic(messages []Message) ([]anthropicMessage, string) {
	var system []string
	var out []anthropicMessage
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return out, strings.Join(system, "\n\n")
}

// convertToolsToAnthropic unwraps OpenAI function definitions.
func convertToolsToAnthropic(tools []map[string]any) []anthropicTool {
	var out []anthropicTool
	for _, tool := range tools {
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		schema := fn["parameters"]
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, anthropicTool{Name: name, Description: desc, InputSchema: schema})
	}
	return out
}

// convertFromAnthropic joins text blocks with a single space and turns
// tool_use blocks into tool calls.
func convertFromAnthropic(resp *anthropicResponse) *ChatResponse {
	var texts []string
	var calls []ToolCall
	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		case "tool_use":
			args := b.Input
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, ToolCall{ID: b.ID, Function: FunctionCall{Name: b.Name, Arguments: args}})
		}
	}
	return &ChatResponse{
		Model:        resp.Model,
		Message:      Message{Role: "assistant", Content: strings.Join(texts, " "), ToolCalls: calls},
		StopReason:   resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
}
