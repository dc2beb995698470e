// Package agent implements the worker: the subtask loop that turns a
// goal and a plan into a sequence of tool calls.
package agent

import (
	"math/rand/v2"
	"time"
)

// Run identifies one end-to-end execution of the agent against a task.
type Run struct {
	ID     int64
	UserID int
	Goal   string
	Plan   string
}

// NewRunID returns a random positive 32-bit run identifier.
func NewRunID() int64 {
	return int64(rand.Uint32()>>1) + 1
}

// Result is what a finished run reports to its caller.
type Result struct {
	Plan        string `json:"plan"`
	Result      string `json:"result"`
	TotalTokens int    `json:"total_tokens"`
	TotalTurns  int    `json:"total_turns"`
	RunNumber   int64  `json:"run_number"`
	// Terminated is false when the run stopped for any reason other
	// than the termination tool (turn limit, cancellation).
	Terminated bool `json:"terminated"`
}

// runState is owned by a single Worker.Run call. Nothing in it is
// shared between runs.
type runState struct {
	run     Run
	workDir string
	start   time.Time
	// seq is the sequence number of the last persisted turn.
	seq int
	// calls counts model calls made so far.
	calls  int
	tokens []int
	prev   previous
}

// previous is the slice of the last turn fed into the next prompt.
type previous struct {
	attempt string
	stdout  string
	stderr  string
}

func (s *runState) totalTokens() int {
	total := 0
	for _, n := range s.tokens {
		total += n
	}
	return total
}

func (s *runState) result(terminated bool) *Result {
	return &Result{
		Plan:        s.run.Plan,
		Result:      s.prev.attempt,
		TotalTokens: s.totalTokens(),
		TotalTurns:  s.seq + 1,
		RunNumber:   s.run.ID,
		Terminated:  terminated,
	}
}
