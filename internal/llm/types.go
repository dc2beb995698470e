// Package llm provides model provider clients and the gateway that turns
// a prompt into a single structured action.
package llm

import "log/slog"

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is one chat message. Requests carry only system and user
// text; ToolCalls is set on responses.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the name and decoded arguments of a tool call.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Request is one provider-neutral chat completion request. Tools use
// the OpenAI function-definition shape; clients convert as needed.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []map[string]any
	Temperature float64
	MaxTokens   int
	// ToolChoice forces the named tool when non-empty.
	ToolChoice string
}

// ChatResponse is a provider reply reduced to what the gateway needs.
type ChatResponse struct {
	Model      string
	Message    Message
	StopReason string

	// Token usage as reported by the provider.
	InputTokens  int
	OutputTokens int
}
