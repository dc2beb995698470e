package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{
			"model": "gpt-test",
			"choices": [{
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "run_bash", "arguments": "{\"script\": \"ls -la\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 9}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, nil)
	resp, err := c.Chat(t.Context(), &Request{
		Model:    "gpt-test",
		Messages: []Message{{Role: "user", Content: "list files"}},
		Tools: []map[string]any{{
			"type":     "function",
			"function": map[string]any{"name": "run_bash", "parameters": map[string]any{"type": "object"}},
		}},
		MaxTokens: 1024,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if temp, ok := got["temperature"].(float64); !ok || temp != 0 {
		t.Errorf("request temperature = %v, want explicit 0", got["temperature"])
	}
	if got["max_tokens"] != float64(1024) {
		t.Errorf("request max_tokens = %v, want 1024", got["max_tokens"])
	}
	if _, ok := got["tool_choice"]; ok {
		t.Error("tool_choice should be omitted when not forced")
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.Message.ToolCalls))
	}
	call := resp.Message.ToolCalls[0]
	if call.Function.Name != "run_bash" || call.Function.Arguments["script"] != "ls -la" {
		t.Errorf("call = %+v", call)
	}
	if resp.InputTokens != 30 || resp.OutputTokens != 9 {
		t.Errorf("usage = %d/%d, want 30/9", resp.InputTokens, resp.OutputTokens)
	}
}

func TestOpenAIClient_ForcedToolChoice(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, nil)
	resp, err := c.Chat(t.Context(), &Request{Model: "m", ToolChoice: "plan_generator"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	choice, _ := got["tool_choice"].(map[string]any)
	fn, _ := choice["function"].(map[string]any)
	if fn["name"] != "plan_generator" {
		t.Errorf("tool_choice = %v, want plan_generator", got["tool_choice"])
	}
	if resp.Message.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Message.Content)
	}
}

func TestOpenAIClient_BadArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"tool_calls": [{"id": "c", "type": "function", "function": {"name": "run_bash", "arguments": "{not json"}}]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, nil)
	_, err := c.Chat(t.Context(), &Request{Model: "m"})
	if !IsProviderError(err) {
		t.Errorf("err = %v, want ProviderError", err)
	}
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "context_length_exceeded"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, nil)
	_, err := c.Chat(t.Context(), &Request{Model: "m"})

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", pe.StatusCode)
	}
}

func TestOpenAIClientImplementsInterface(t *testing.T) {
	var _ Client = (*OpenAIClient)(nil)
}
