package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nugget/savant/internal/httpkit"
)

// postJSON sends in to url and decodes a 200 response into out. Every
// failure past request construction is a *ProviderError.
func postJSON(ctx context.Context, hc *http.Client, logger *slog.Logger, provider, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	logger.Log(ctx, LevelTrace, "request payload", "json", string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = header.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return providerErr(provider, 0, "request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := httpkit.ReadErrorBody(resp.Body, 4096)
		logger.Error("API error", "status", resp.StatusCode, "body", msg)
		return providerErr(provider, resp.StatusCode, "%s", msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providerErr(provider, 0, "decode response: %w", err)
	}
	return nil
}

func logResponse(ctx context.Context, logger *slog.Logger, r *ChatResponse) {
	logger.Debug("response received",
		"model", r.Model,
		"input_tokens", r.InputTokens,
		"output_tokens", r.OutputTokens,
		"tool_calls", len(r.Message.ToolCalls),
		"stop_reason", r.StopReason,
	)
	logger.Log(ctx, LevelTrace, "response content", "content", r.Message.Content)
}
