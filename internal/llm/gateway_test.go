package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// wordTokenizer maps each whitespace-separated word to one token.
type wordTokenizer struct {
	vocab []string
	index map[string]int
}

func newWordTokenizer() *wordTokenizer { return &wordTokenizer{index: map[string]int{}} }

func (w *wordTokenizer) Encode(text string) []int {
	var out []int
	for _, f := range strings.Fields(text) {
		id, ok := w.index[f]
		if !ok {
			id = len(w.vocab)
			w.vocab = append(w.vocab, f)
			w.index[f] = id
		}
		out = append(out, id)
	}
	return out
}

func (w *wordTokenizer) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, id := range tokens {
		parts[i] = w.vocab[id]
	}
	return strings.Join(parts, " ")
}

type scriptedClient struct {
	name      string
	responses []*ChatResponse
	errs      []error
	requests  []*Request
}

func (c *scriptedClient) Name() string {
	if c.name == "" {
		return "scripted"
	}
	return c.name
}

func (c *scriptedClient) Chat(_ context.Context, req *Request) (*ChatResponse, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return &ChatResponse{}, nil
}

func (c *scriptedClient) Ping(context.Context) error { return nil }

type staticTools []map[string]any

func (s staticTools) Definitions() []map[string]any { return s }

func newTestGateway(client Client, cfg GatewayConfig) *Gateway {
	tools := staticTools{{"type": "function", "function": map[string]any{"name": "run_bash"}}}
	return NewGateway(client, tools, newWordTokenizer(), cfg, nil)
}

func toolCallResponse(name string, args map[string]any) *ChatResponse {
	return &ChatResponse{Message: Message{ToolCalls: []ToolCall{{Function: FunctionCall{Name: name, Arguments: args}}}}}
}

func TestGateway_TruncatesToAvailable(t *testing.T) {
	client := &scriptedClient{responses: []*ChatResponse{{Message: Message{Content: "ok"}}}}
	gw := newTestGateway(client, GatewayConfig{MaxContextTokens: 20, ReservedTokens: 5}).
		WithSystemPrompt("you are a careful agent")

	if gw.Available() != 10 {
		t.Fatalf("Available() = %d, want 10", gw.Available())
	}

	prompt := strings.Repeat("word ", 40)
	_, usage, err := gw.GenerateResponse(t.Context(), prompt)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}

	sent := client.requests[0].Messages[1].Content
	if n := len(strings.Fields(sent)); n != 10 {
		t.Errorf("sent prompt has %d tokens, want exactly 10", n)
	}
	if usage.Prompt != 10 {
		t.Errorf("usage.Prompt = %d, want 10", usage.Prompt)
	}
	if usage.System != 5 {
		t.Errorf("usage.System = %d, want 5", usage.System)
	}
}

func TestGateway_ShortPromptUntouched(t *testing.T) {
	client := &scriptedClient{responses: []*ChatResponse{{Message: Message{Content: "ok"}}}}
	gw := newTestGateway(client, GatewayConfig{MaxContextTokens: 1000, ReservedTokens: 100}).WithSystemPrompt("sys")

	if _, _, err := gw.GenerateResponse(t.Context(), "a short prompt"); err != nil {
		t.Fatal(err)
	}
	if got := client.requests[0].Messages[1].Content; got != "a short prompt" {
		t.Errorf("sent prompt = %q, want unchanged", got)
	}
	req := client.requests[0]
	if req.Messages[0].Role != "system" || req.Messages[0].Content != "sys" {
		t.Errorf("system message = %+v", req.Messages[0])
	}
	if len(req.Tools) != 1 {
		t.Errorf("request tools = %d, want catalog definitions", len(req.Tools))
	}
}

func TestGateway_ActionShapes(t *testing.T) {
	tests := []struct {
		name       string
		resp       *ChatResponse
		wantNil    bool
		wantText   string
		wantName   string
		wantParams map[string]string
	}{
		{
			name:       "native tool call",
			resp:       toolCallResponse("run_bash", map[string]any{"script": "ls"}),
			wantName:   "run_bash",
			wantParams: map[string]string{"script": "ls"},
		},
		{
			name:     "free text",
			resp:     &ChatResponse{Message: Message{Content: "You submitted return_fn with answer 42"}},
			wantText: "You submitted return_fn with answer 42",
		},
		{
			name:       "flat json text",
			resp:       &ChatResponse{Message: Message{Content: `{"query": "vision transformers"}`}},
			wantParams: map[string]string{"query": "vision transformers"},
		},
		{
			name:       "named json text",
			resp:       &ChatResponse{Message: Message{Content: "```json\n{\"name\": \"thought\", \"arguments\": {\"thought\": \"hmm\"}}\n```"}},
			wantName:   "thought",
			wantParams: map[string]string{"thought": "hmm"},
		},
		{
			name:     "json array is text",
			resp:     &ChatResponse{Message: Message{Content: `["a", "b"]`}},
			wantText: `["a", "b"]`,
		},
		{
			name:    "empty reply",
			resp:    &ChatResponse{Message: Message{Content: "   "}},
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{responses: []*ChatResponse{tt.resp}}
			gw := newTestGateway(client, GatewayConfig{MaxContextTokens: 1000}).WithSystemPrompt("sys")

			action, _, err := gw.GenerateResponse(t.Context(), "prompt")
			if err != nil {
				t.Fatalf("GenerateResponse: %v", err)
			}
			if tt.wantNil {
				if action != nil {
					t.Fatalf("action = %+v, want nil", action)
				}
				return
			}
			if action == nil {
				t.Fatal("action = nil")
			}
			if tt.wantText != "" {
				if !action.IsText() || action.Text != tt.wantText {
					t.Errorf("action = %+v, want text %q", action, tt.wantText)
				}
				return
			}
			if action.IsText() {
				t.Fatalf("action is text %q, want params", action.Text)
			}
			if action.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", action.Name, tt.wantName)
			}
			for k, v := range tt.wantParams {
				if action.Params[k] != v {
					t.Errorf("Params[%s] = %v, want %q", k, action.Params[k], v)
				}
			}
		})
	}
}

func TestGateway_TokenAccounting(t *testing.T) {
	tests := []struct {
		name         string
		count        bool
		resp         *ChatResponse
		wantResponse int
	}{
		{name: "uncounted tool call", count: false, resp: toolCallResponse("run_bash", map[string]any{"script": "ls"}), wantResponse: 0},
		{name: "counted text", count: true, resp: &ChatResponse{Message: Message{Content: "three word reply"}}, wantResponse: 3},
		{name: "counted tool call", count: true, resp: toolCallResponse("run_bash", map[string]any{"script": "ls"}), wantResponse: 1},
		{name: "nil action", count: true, resp: &ChatResponse{}, wantResponse: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{responses: []*ChatResponse{tt.resp}}
			gw := newTestGateway(client, GatewayConfig{MaxContextTokens: 1000, CountResponseTokens: tt.count}).
				WithSystemPrompt("two words")

			_, usage, err := gw.GenerateResponse(t.Context(), "four words of prompt")
			if err != nil {
				t.Fatal(err)
			}
			if usage.Response != tt.wantResponse {
				t.Errorf("Response = %d, want %d", usage.Response, tt.wantResponse)
			}
			if want := 2 + 4 + tt.wantResponse; usage.Total != want {
				t.Errorf("Total = %d, want %d", usage.Total, want)
			}
		})
	}
}

func TestGateway_ProviderError(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("connection reset")}}
	gw := newTestGateway(client, GatewayConfig{MaxContextTokens: 1000}).WithSystemPrompt("sys")

	action, _, err := gw.GenerateResponse(t.Context(), "prompt")
	if action != nil {
		t.Errorf("action = %+v, want nil", action)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.Provider != "scripted" {
		t.Errorf("Provider = %q, want scripted", pe.Provider)
	}
}

func TestGateway_CancelledContext(t *testing.T) {
	client := &scriptedClient{errs: []error{context.Canceled}}
	gw := newTestGateway(client, GatewayConfig{MaxContextTokens: 1000}).WithSystemPrompt("sys")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, _, err := gw.GenerateResponse(ctx, "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if IsProviderError(err) {
		t.Error("cancellation should not be reported as a provider error")
	}
}
