package prompts

import (
	"fmt"
	"strings"
	"time"
)

const workerSystemTemplate = `You are a capable AI research agent. Complete the goal you are given efficiently and correctly.

Guidelines:
1. Act through your tools, one call per turn. Available tools: %s.
2. Prefer writing and running code to solve problems.
3. Keep progress notes and important findings with the scratchpad tool.
4. Use the thought tool to reason out loud.
5. Use search_the_internet when you need information from the web.
6. PyTorch, torchvision, torchaudio, pandas and numpy are installed. Install anything else with run_bash.
7. Your working directory is %s. Run every command and keep every file inside it.
8. If you cannot find the working directory, look for it before doing anything else.
9. Save your work in the working directory before calling %s.
10. Work through the plan in order, combining steps when that is faster.
11. Call %s only when the task is complete and you have a result to report.

Remember:
- Recover from errors and make reasonable assumptions.
- Act on a plan as soon as you have one.
- Try a different approach when an action keeps failing.
- The working directory persists between turns.`

// WorkerSystem returns the worker's system prompt for one run.
func WorkerSystem(workDir string, toolNames []string, terminationTool string) string {
	return fmt.Sprintf(workerSystemTemplate,
		strings.Join(toolNames, ", "), workDir, terminationTool, terminationTool)
}

const workerTurnTemplate = `Your goal is: %s
Your working directory is: %s
Time spent: %.2f minutes. Remaining: %.2f minutes.

Plan outline:
%s

%s
Previous attempt:
%s

Previous output:
%s

Additional output: %s

Instructions:
- Find the working directory before starting.
- Record important information with the scratchpad tool.
- Use the thought tool to reason.
- Save your work to the working directory before calling %s.
- Call %s only when the goal is complete.
- Weigh the compute you have and the time left.
Think about what you have done and what remains. Take only the steps that are necessary.`

// WorkerInput holds the dynamic parts of one worker turn prompt.
type WorkerInput struct {
	Goal    string
	WorkDir string
	Elapsed time.Duration
	// Remaining may be negative once the task duration has passed.
	Remaining       time.Duration
	Plan            string
	Memory          string
	PrevAttempt     string
	PrevStdout      string
	PrevStderr      string
	TerminationTool string
}

// WorkerTurn returns the prompt for the next worker turn.
func WorkerTurn(in WorkerInput) string {
	return fmt.Sprintf(workerTurnTemplate,
		in.Goal,
		in.WorkDir,
		in.Elapsed.Minutes(),
		in.Remaining.Minutes(),
		in.Plan,
		in.Memory,
		in.PrevAttempt,
		in.PrevStdout,
		in.PrevStderr,
		in.TerminationTool,
		in.TerminationTool,
	)
}
