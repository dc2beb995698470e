package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nugget/savant/internal/agent"
	"github.com/nugget/savant/internal/llm"
	"github.com/nugget/savant/internal/usage"
)

type fakeClient struct {
	resp *llm.ChatResponse
	err  error
	req  *llm.Request
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) Chat(_ context.Context, req *llm.Request) (*llm.ChatResponse, error) {
	c.req = req
	return c.resp, c.err
}

func (c *fakeClient) Ping(context.Context) error { return nil }

func planCall(args map[string]any) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model:        "planner-model",
		InputTokens:  50,
		OutputTokens: 20,
		Message: llm.Message{ToolCalls: []llm.ToolCall{{
			Function: llm.FunctionCall{Name: "plan_generator", Arguments: args},
		}}},
	}
}

func TestPlanner_Shapes(t *testing.T) {
	tests := []struct {
		name string
		resp *llm.ChatResponse
		want []string
	}{
		{
			name: "list of strings",
			resp: planCall(map[string]any{"plan": []any{"Find data", "Train model"}}),
			want: []string{"Find data", "Train model"},
		},
		{
			name: "grouped plans",
			resp: planCall(map[string]any{"plan": []any{
				map[string]any{"plan": []any{"A", "B"}},
				map[string]any{"plan": []any{"C"}},
			}}),
			want: []string{"A", "B", "C"},
		},
		{
			name: "step objects",
			resp: planCall(map[string]any{"plan": []any{
				map[string]any{"step": "Clone repo"},
				map[string]any{"description": "Run tests"},
				map[string]any{"Subtask": map[string]any{"plan": []any{"Nested"}}},
			}}),
			want: []string{"Clone repo", "Run tests", "Nested"},
		},
		{
			name: "single string",
			resp: planCall(map[string]any{"plan": "Do it all"}),
			want: []string{"Do it all"},
		},
		{
			name: "plans key",
			resp: planCall(map[string]any{"plans": []any{"X", " ", "Y"}}),
			want: []string{"X", "Y"},
		},
		{
			name: "free text",
			resp: &llm.ChatResponse{Message: llm.Message{Content: "1. Read papers\n\n2. Write code\n"}},
			want: []string{"1. Read papers", "2. Write code"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(&fakeClient{resp: tt.resp}, PlannerConfig{Model: "m"}, nil, nil, nil)
			got, err := p.Plan(t.Context(), 1, "task")
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("steps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanner_Request(t *testing.T) {
	client := &fakeClient{resp: planCall(map[string]any{"plan": []any{"a"}})}
	p := NewPlanner(client, PlannerConfig{Model: "gpt-4o", MaxTokens: 1024}, []string{"run_bash"}, nil, nil)

	if _, err := p.Plan(t.Context(), 1, "reproduce the paper"); err != nil {
		t.Fatal(err)
	}
	req := client.req
	if req.ToolChoice != "plan_generator" {
		t.Errorf("ToolChoice = %q, want plan_generator", req.ToolChoice)
	}
	if req.Temperature != 0 || req.Model != "gpt-4o" || req.MaxTokens != 1024 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Tools) != 1 {
		t.Fatalf("Tools = %d, want 1", len(req.Tools))
	}
	fn := req.Tools[0]["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	if diff := cmp.Diff([]string{"plan"}, params["required"]); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}
	if req.Messages[1].Content != "reproduce the paper" {
		t.Errorf("user message = %q", req.Messages[1].Content)
	}
}

func TestPlanner_Errors(t *testing.T) {
	p := NewPlanner(&fakeClient{err: &llm.ProviderError{Provider: "fake", Err: errors.New("down")}}, PlannerConfig{}, nil, nil, nil)
	if _, err := p.Plan(t.Context(), 1, "task"); !llm.IsProviderError(err) {
		t.Errorf("err = %v, want ProviderError", err)
	}

	p = NewPlanner(&fakeClient{resp: planCall(map[string]any{"plan": []any{}})}, PlannerConfig{}, nil, nil, nil)
	if _, err := p.Plan(t.Context(), 1, "task"); !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("err = %v, want ErrEmptyPlan", err)
	}
}

func TestPlanner_RecordsUsage(t *testing.T) {
	ledger, err := usage.NewStore("sqlite", filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	client := &fakeClient{resp: planCall(map[string]any{"plan": []any{"a"}})}
	p := NewPlanner(client, PlannerConfig{Model: "m"}, nil, usage.NewRecorder(ledger, nil), nil)
	if _, err := p.Plan(t.Context(), 77, "task"); err != nil {
		t.Fatal(err)
	}
	sum, err := ledger.RunSummary(t.Context(), 77)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalRecords != 1 || sum.TotalInputTokens != 50 || sum.TotalOutputTokens != 20 {
		t.Errorf("usage = %+v", sum)
	}
}

type fakeWorker struct {
	got agent.Run
}

func (w *fakeWorker) Run(_ context.Context, run agent.Run) (*agent.Result, error) {
	w.got = run
	return &agent.Result{Plan: run.Plan, Result: "done", TotalTurns: 2, RunNumber: run.ID, Terminated: true}, nil
}

func TestSupervisor_Run(t *testing.T) {
	client := &fakeClient{resp: planCall(map[string]any{"plan": []any{"Find data", "Train model"}})}
	w := &fakeWorker{}
	s := New(NewPlanner(client, PlannerConfig{}, nil, nil, nil), w, 3, nil)

	res, err := s.Run(t.Context(), "  train a classifier ", 99)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := agent.Run{ID: 99, UserID: 3, Goal: "train a classifier", Plan: "1. Find data\n2. Train model\n"}
	if diff := cmp.Diff(want, w.got); diff != "" {
		t.Errorf("worker run mismatch (-want +got):\n%s", diff)
	}
	if res.RunNumber != 99 || res.Result != "done" {
		t.Errorf("result = %+v", res)
	}
}

func TestSupervisor_RandomRunID(t *testing.T) {
	client := &fakeClient{resp: planCall(map[string]any{"plan": []any{"a"}})}
	w := &fakeWorker{}
	s := New(NewPlanner(client, PlannerConfig{}, nil, nil, nil), w, 0, nil)

	if _, err := s.Run(t.Context(), "task", 0); err != nil {
		t.Fatal(err)
	}
	if w.got.ID <= 0 {
		t.Errorf("run ID = %d, want a generated positive ID", w.got.ID)
	}
}

func TestSupervisor_Errors(t *testing.T) {
	w := &fakeWorker{}
	s := New(NewPlanner(&fakeClient{err: errors.New("boom")}, PlannerConfig{}, nil, nil, nil), w, 0, nil)

	if _, err := s.Run(t.Context(), "   ", 1); !errors.Is(err, ErrNoTask) {
		t.Errorf("empty task err = %v, want ErrNoTask", err)
	}
	if _, err := s.Run(t.Context(), "task", 1); err == nil {
		t.Error("expected planning error")
	}
	if w.got.ID != 0 {
		t.Error("worker should not run when planning fails")
	}
}
