package prompts

import (
	"fmt"
	"strings"
)

// PlanToolName is the tool the planner is forced to call.
const PlanToolName = "plan_generator"

const plannerSystemTemplate = `You are a decision-making supervisor who writes plans for an autonomous research agent. The agent will carry out your plan one tool call at a time.

Guidelines:
1. Base the plan on the task description that follows.
2. Only plan steps the agent can perform with its tools:
%s
3. Make each step concrete and actionable. Name the models, datasets and libraries to use.
4. Tell the agent to keep progress notes with the scratchpad tool.
5. Write the plan only. Do not attempt the task yourself.
6. PyTorch, torchvision, torchaudio, pandas and numpy are already installed.
7. Mention which tools each step should use.

Call the %s tool with the plan as an array of steps.`

// PlannerSystem returns the planner's system prompt. toolNames lists the
// tools available to the worker.
func PlannerSystem(toolNames []string) string {
	return fmt.Sprintf(plannerSystemTemplate, bulletList(toolNames), PlanToolName)
}

// PlanText renders plan steps as numbered lines.
func PlanText(steps []string) string {
	var b strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "   - (no tools)"
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "   - " + it
	}
	return strings.Join(lines, "\n")
}
