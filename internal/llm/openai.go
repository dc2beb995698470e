package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/savant/internal/httpkit"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient is a client for the OpenAI Chat Completions API. It
// also works against compatible servers via a custom base URL.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithResponseHeaderTimeout(120*time.Second),
			httpkit.WithRetry(2, 2*time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

// Name implements Client.
func (c *OpenAIClient) Name() string { return "openai" }

type openAIRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  any              `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request. A non-empty ToolChoice forces
// that function.
func (c *OpenAIClient) Chat(ctx context.Context, req *Request) (*ChatResponse, error) {
	oreq := openAIRequest{
		Model:       req.Model,
		Messages:    convertToOpenAI(req.Messages),
		Tools:       req.Tools,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ToolChoice != "" {
		oreq.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]any{"name": req.ToolChoice},
		}
	}
	c.logger.Debug("preparing request", "model", req.Model, "messages", len(oreq.Messages), "tools", len(oreq.Tools))

	var or openAIResponse
	if err := postJSON(ctx, c.httpClient, c.logger, c.Name(), c.baseURL+"/chat/completions", c.header(), oreq, &or); err != nil {
		return nil, err
	}
	result, err := convertFromOpenAI(&or)
	if err != nil {
		return nil, providerErr(c.Name(), 0, "%w", err)
	}
	logResponse(ctx, c.logger, result)
	return result, nil
}

func (c *OpenAIClient) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	return h
}

// Ping lists models to verify the API key.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = c.header()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providerErr("openai", 0, "request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 64*1024)

	if resp.StatusCode != http.StatusOK {
		return providerErr("openai", resp.StatusCode, "ping failed")
	}
	return nil
}

func convertToOpenAI(messages []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		out = append(out, openAIMessage{Role: m.Role, Content: &content})
	}
	return out
}

// convertFromOpenAI decodes the first choice. Tool call arguments
// arrive as a JSON string and are decoded into a mapping.
func convertFromOpenAI(resp *openAIResponse) (*ChatResponse, error) {
	result := &ChatResponse{
		Model:        resp.Model,
		Message:      Message{Role: "assistant"},
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return result, nil
	}

	choice := resp.Choices[0]
	result.StopReason = choice.FinishReason
	if choice.Message.Content != nil {
		result.Message.Content = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("decode arguments for %s: %w", tc.Function.Name, err)
			}
		}
		result.Message.ToolCalls = append(result.Message.ToolCalls, ToolCall{
			ID:       tc.ID,
			Function: FunctionCall{Name: tc.Function.Name, Arguments: args},
		})
	}
	return result, nil
}
