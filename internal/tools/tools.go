// Package tools defines the agent's tool catalog, the dispatcher that
// routes a model action to exactly one tool, and the tool
// implementations themselves.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ToolNone is the tool name recorded when no tool matched an action.
const ToolNone = "none"

// Result is the normalized record every tool returns. ReturnCode is set
// only by tools that run a process.
type Result struct {
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	Attempt    string `json:"attempt"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode *int   `json:"returncode,omitempty"`
	// Terminal is set when the run should end after this result.
	Terminal bool `json:"terminal,omitempty"`
}

// Success builds a successful result.
func Success(tool, attempt, stdout string) Result {
	return Result{Tool: tool, Status: StatusSuccess, Attempt: attempt, Stdout: stdout}
}

// Failure builds a failed result carrying err in stderr.
func Failure(tool, attempt string, err error) Result {
	r := Result{Tool: tool, Status: StatusFailure, Attempt: attempt}
	if err != nil {
		r.Stderr = err.Error()
	}
	return r
}

// Handler executes one tool call. Handlers report every failure through
// the returned Result; they never return Go errors.
type Handler func(ctx context.Context, params map[string]any) Result

// Typed adapts a handler that takes a decoded argument struct. Params
// that do not decode into T produce a failure result.
func Typed[T any](tool string, fn func(ctx context.Context, args T) Result) Handler {
	return func(ctx context.Context, params map[string]any) Result {
		var args T
		if err := decodeArgs(params, &args); err != nil {
			return Failure(tool, "Your call had invalid arguments", err)
		}
		return fn(ctx, args)
	}
}

func decodeArgs(params map[string]any, dst any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// Param declares one named tool parameter.
type Param struct {
	Name        string
	Type        string // "string", "integer" or "array"
	Items       string // element type when Type is "array"
	Description string
	Enum        []string
	Required    bool
}

// Spec is the static description of a tool.
type Spec struct {
	Name        string
	Description string
	Params      []Param
	// Process marks tools that run external processes; their output is
	// sanitized by the dispatcher.
	Process bool
	// Terminal marks the tool that ends a run on success.
	Terminal bool
}

// RequiredKeys returns the names of required parameters in declaration order.
func (s Spec) RequiredKeys() []string {
	var keys []string
	for _, p := range s.Params {
		if p.Required {
			keys = append(keys, p.Name)
		}
	}
	return keys
}

// Definition renders the spec in OpenAI function-definition shape.
func (s Spec) Definition() map[string]any {
	props := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Type == "array" {
			items := p.Items
			if items == "" {
				items = "string"
			}
			prop["items"] = map[string]any{"type": items}
		}
		if len(p.Enum) > 0 {
			prop["enum"] = slices.Clone(p.Enum)
		}
		props[p.Name] = prop
	}
	required := s.RequiredKeys()
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}

// stringParam is shorthand for a required string parameter.
func stringParam(name, description string) Param {
	return Param{Name: name, Type: "string", Description: description, Required: true}
}
